package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	return entry
}

func TestContextFieldsAccumulate(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Level: zerolog.DebugLevel, Output: buf})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithFields(ctx, map[string]any{"reservation_id": "res-1", "quantity": 3})
	log.Error(ctx, "reserve failed", errors.New("stock insufficient"))

	entry := decodeLine(t, buf)
	want := map[string]any{
		"service":        "api",
		"request_id":     "req-123",
		"reservation_id": "res-1",
		"level":          "error",
		"error":          "stock insufficient",
		"message":        "reserve failed",
	}
	for key, value := range want {
		if entry[key] != value {
			t.Fatalf("expected %s=%v, got entry %v", key, value, entry)
		}
	}
	if _, ok := entry["stack"]; !ok {
		t.Fatal("error entries carry a stack")
	}
}

func TestWithFieldDoesNotLeakToParent(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Output: buf})

	parent := log.WithUserID(context.Background(), "u-1")
	_ = log.WithField(parent, "item_id", "i-1")
	log.Info(parent, "done")

	entry := decodeLine(t, buf)
	if entry["user_id"] != "u-1" {
		t.Fatalf("missing parent field: %v", entry)
	}
	if _, ok := entry["item_id"]; ok {
		t.Fatalf("child field leaked into parent: %v", entry)
	}
}

func TestWarnStack(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{ServiceName: "cron", Output: buf, WarnStack: true}).Warn(context.Background(), "lock held")
	if _, ok := decodeLine(t, buf)["stack"]; !ok {
		t.Fatal("expected stack with WarnStack")
	}

	buf.Reset()
	New(Options{ServiceName: "cron", Output: buf}).Warn(context.Background(), "lock held")
	if _, ok := decodeLine(t, buf)["stack"]; ok {
		t.Fatal("unexpected stack without WarnStack")
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Output: buf})
	log.Debug(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered at the default level, got %s", buf.String())
	}

	Nop().Error(context.Background(), "dropped", errors.New("x"))
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":         zerolog.InfoLevel,
		"bogus":    zerolog.InfoLevel,
		" WARN ":   zerolog.WarnLevel,
		"debug":    zerolog.DebugLevel,
		"disabled": zerolog.Disabled,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v want %v", in, got, want)
		}
	}
}
