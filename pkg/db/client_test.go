package db

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/stockhold-backend/pkg/logger"
)

type testModel struct {
	ID   int
	Name string
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewSQLite("file:" + t.Name() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	if err := client.DB().AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return client
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	client := newTestClient(t)
	db := client.DB()

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestPing(t *testing.T) {
	client := newTestClient(t)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestViolationHelpers(t *testing.T) {
	check := &pgconn.PgError{Code: "23514", ConstraintName: "chk_inventory_items_reserved_le_on_hand"}
	if !IsCheckViolation(check, "") {
		t.Fatalf("expected check violation")
	}
	if !IsCheckViolation(check, "chk_inventory_items_reserved_le_on_hand") {
		t.Fatalf("expected named check violation")
	}
	if IsUniqueViolation(check, "") {
		t.Fatalf("check violation is not a unique violation")
	}

	unique := &pgconn.PgError{Code: "23505", ConstraintName: "ux_admin_order_reviews_order"}
	if !IsUniqueViolation(unique, "ux_admin_order_reviews_order") {
		t.Fatalf("expected named unique violation")
	}
	if IsUniqueViolation(unique, "other") {
		t.Fatalf("constraint mismatch should not match")
	}

	sqliteErr := errors.New("UNIQUE constraint failed: admin_order_reviews.order_id")
	if !IsUniqueViolation(sqliteErr, "") {
		t.Fatalf("expected sqlite unique message to match")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatalf("nil is never a violation")
	}
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	client := newTestClient(t)
	func() {
		defer func() { _ = recover() }()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&testModel{Name: "panicked"}).Error; err != nil {
				return err
			}
			panic("boom")
		})
	}()

	var count int64
	client.DB().Model(&testModel{}).Where("name = ?", "panicked").Count(&count)
	if count != 0 {
		t.Fatalf("expected panic to roll back, found %d rows", count)
	}
}

func TestQueryLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	ql := newQueryLogger(logger.New(logger.Options{ServiceName: "db-test", Output: buf}), 50*time.Millisecond)
	ctx := context.Background()
	stmt := func() (string, int64) { return "UPDATE inventory_items SET quantity_reserved = 3", 1 }

	ql.Trace(ctx, time.Now(), stmt, gorm.ErrRecordNotFound)
	ql.Trace(ctx, time.Now(), stmt, nil)
	if buf.Len() != 0 {
		t.Fatalf("fast and not-found statements should not be logged, got %s", buf.String())
	}

	ql.Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	if !strings.Contains(buf.String(), "slow query") || !strings.Contains(buf.String(), "inventory_items") {
		t.Fatalf("expected slow query warning, got %s", buf.String())
	}

	buf.Reset()
	ql.Trace(ctx, time.Now(), stmt, errors.New("deadlock detected"))
	if !strings.Contains(buf.String(), "query failed") || !strings.Contains(buf.String(), "deadlock detected") {
		t.Fatalf("expected failure log, got %s", buf.String())
	}

	buf.Reset()
	ql.LogMode(gormlogger.Silent).Trace(ctx, time.Now(), stmt, errors.New("ignored"))
	if buf.Len() != 0 {
		t.Fatalf("silent mode should drop everything, got %s", buf.String())
	}

	if newQueryLogger(nil, time.Second) != gormlogger.Discard {
		t.Fatal("nil service logger should discard")
	}
}
