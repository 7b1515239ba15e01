package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockhold-backend/internal/inventory"
	"github.com/angelmondragon/stockhold-backend/pkg/db/dbtest"
	"github.com/angelmondragon/stockhold-backend/pkg/db/models"
	"github.com/angelmondragon/stockhold-backend/pkg/enums"
	"github.com/angelmondragon/stockhold-backend/pkg/logger"
	"github.com/angelmondragon/stockhold-backend/pkg/outbox"
)

func TestStockAlertJobQueuesOncePerDay(t *testing.T) {
	client := dbtest.New(t)
	conn := client.DB()
	warehouse := &models.Warehouse{Code: "WH1", Name: "Main", IsActive: true}
	if err := conn.Create(warehouse).Error; err != nil {
		t.Fatalf("seed warehouse: %v", err)
	}
	seed := func(sku string, onHand, reserved, reorder int) {
		item := &models.InventoryItem{
			WarehouseID:      warehouse.ID,
			ProductID:        uuid.New(),
			SKU:              sku,
			QuantityOnHand:   onHand,
			QuantityReserved: reserved,
			ReorderLevel:     reorder,
		}
		if err := conn.Create(item).Error; err != nil {
			t.Fatalf("seed item: %v", err)
		}
	}
	seed("LOW", 6, 2, 5)
	seed("OUT", 0, 0, 5)
	seed("OK", 50, 0, 5)

	jobIface, err := NewStockAlertJob(StockAlertJobParams{
		Logger:    logger.Nop(),
		DB:        client,
		Inventory: inventory.NewRepository(conn),
		Outbox:    outbox.NewService(outbox.NewRepository(conn), nil),
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	job := jobIface.(*stockAlertJob)
	day := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return day }

	countEvents := func() int64 {
		var n int64
		if err := conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventStockLow).Count(&n).Error; err != nil {
			t.Fatalf("count: %v", err)
		}
		return n
	}

	ctx := context.Background()
	if err := job.Run(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if got := countEvents(); got != 2 {
		t.Fatalf("expected 2 stock_low events, got %d", got)
	}
	if err := job.Run(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := countEvents(); got != 2 {
		t.Fatalf("expected dedupe within a day, got %d", got)
	}

	job.now = func() time.Time { return day.Add(24 * time.Hour) }
	if err := job.Run(ctx); err != nil {
		t.Fatalf("next day run: %v", err)
	}
	if got := countEvents(); got != 4 {
		t.Fatalf("expected fresh events the next day, got %d", got)
	}
}
