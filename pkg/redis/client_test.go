package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/stockhold-backend/pkg/config"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCommander()
	client := &Client{cmd: fake}

	for i, want := range []bool{true, true, false} {
		allowed, count, err := client.FixedWindowAllow(ctx, "writes:10.0.0.1", 2, 30*time.Second)
		if err != nil {
			t.Fatalf("hit %d: %v", i+1, err)
		}
		if allowed != want || count != int64(i+1) {
			t.Fatalf("hit %d: allowed=%v count=%d", i+1, allowed, count)
		}
	}

	key := client.RateLimitKey("writes:10.0.0.1")
	if got := fake.expiries[key]; got != 30000 {
		t.Fatalf("expected window expiry of 30000ms, got %d", got)
	}
	if fake.expireCount != 1 {
		t.Fatalf("expiry should be set once per window, got %d", fake.expireCount)
	}
}

func TestReleaseIfOwner(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCommander()
	client := &Client{cmd: fake}
	key := client.LockKey("cron:prod")

	if ok, _ := client.SetNX(ctx, key, "owner-a", time.Minute); !ok {
		t.Fatal("expected lock acquired")
	}
	released, err := client.ReleaseIfOwner(ctx, key, "owner-b")
	if err != nil || released {
		t.Fatalf("foreign owner must not release: released=%v err=%v", released, err)
	}
	released, err = client.ReleaseIfOwner(ctx, key, "owner-a")
	if err != nil || !released {
		t.Fatalf("owner release failed: released=%v err=%v", released, err)
	}
	if _, err := client.Get(ctx, key); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected key gone, got %v", err)
	}
}

func TestJSONCache(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newFakeCommander()}

	type summary struct {
		TotalItems int `json:"total_items"`
	}
	key := client.CacheKey("inventory", "analytics", "all")

	var out summary
	if err := client.GetJSON(ctx, key, &out); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected cache miss, got %v", err)
	}
	if err := client.SetJSON(ctx, key, summary{TotalItems: 12}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := client.GetJSON(ctx, key, &out); err != nil || out.TotalItems != 12 {
		t.Fatalf("get: %+v err=%v", out, err)
	}
	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del: %v", err)
	}
	if err := client.GetJSON(ctx, key, &out); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestKeys(t *testing.T) {
	client := &Client{}
	cases := [][2]string{
		{client.IdempotencyKey("scope", "id"), "sh:idempotency:scope:id"},
		{client.RateLimitKey(" writes "), "sh:rate_limit:writes"},
		{client.CacheKey("inventory", "", "analytics"), "sh:cache:inventory:analytics"},
		{client.LockKey("reservation-expiry"), "sh:lock:reservation-expiry"},
	}
	for _, tc := range cases {
		if tc[0] != tc[1] {
			t.Fatalf("expected %s got %s", tc[1], tc[0])
		}
	}
}

func TestNilClient(t *testing.T) {
	var client *Client
	if err := client.Ping(context.Background()); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
}

func TestConnOptions(t *testing.T) {
	cfg := config.RedisConfig{
		URL:         "redis://:secret@cache.internal:6380/3",
		DB:          7,
		PoolSize:    20,
		DialTimeout: 2 * time.Second,
	}
	opts, err := connOptions(cfg)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.Addr != "cache.internal:6380" || opts.DB != 3 || opts.Password != "secret" {
		t.Fatalf("url values should win, got %+v", opts)
	}
	if opts.PoolSize != 20 || opts.DialTimeout != 2*time.Second {
		t.Fatalf("config should fill unset values, got pool=%d dial=%s", opts.PoolSize, opts.DialTimeout)
	}

	opts, err = connOptions(config.RedisConfig{Address: "localhost:6379", DB: 1})
	if err != nil || opts.Addr != "localhost:6379" || opts.DB != 1 {
		t.Fatalf("address config: %+v err=%v", opts, err)
	}

	if _, err := connOptions(config.RedisConfig{}); err == nil {
		t.Fatal("expected error without url or address")
	}
}

type fakeCommander struct {
	values      map[string]string
	expiries    map[string]int64
	expireCount int
}

func newFakeCommander() *fakeCommander {
	return &fakeCommander{values: map[string]string{}, expiries: map[string]int64{}}
}

func (f *fakeCommander) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeCommander) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCommander) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.values[key] = stringify(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCommander) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = stringify(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommander) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, key := range keys {
		if _, ok := f.values[key]; ok {
			delete(f.values, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

// Eval emulates the two scripts the client runs.
func (f *fakeCommander) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	key := keys[0]
	switch script {
	case fixedWindowScript:
		n, _ := strconv.ParseInt(f.values[key], 10, 64)
		n++
		f.values[key] = strconv.FormatInt(n, 10)
		if n == 1 {
			f.expiries[key] = args[0].(int64)
			f.expireCount++
		}
		return redis.NewCmdResult(n, nil)
	case releaseScript:
		if v, ok := f.values[key]; ok && v == args[0] {
			delete(f.values, key)
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	}
	return redis.NewCmdResult(nil, fmt.Errorf("unexpected script"))
}

func stringify(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(v)
}
