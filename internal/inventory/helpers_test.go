package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold-backend/pkg/db"
	"github.com/angelmondragon/stockhold-backend/pkg/db/dbtest"
	"github.com/angelmondragon/stockhold-backend/pkg/db/models"
	"github.com/angelmondragon/stockhold-backend/pkg/redis"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func mustWarehouse(t *testing.T, conn *gorm.DB, code string) *models.Warehouse {
	t.Helper()
	warehouse := &models.Warehouse{Code: code, Name: "Main " + code, IsActive: true}
	if err := conn.Create(warehouse).Error; err != nil {
		t.Fatalf("seed warehouse: %v", err)
	}
	return warehouse
}

func mustItem(t *testing.T, conn *gorm.DB, warehouseID uuid.UUID, sku string, onHand, reserved int) *models.InventoryItem {
	t.Helper()
	item := &models.InventoryItem{
		WarehouseID:      warehouseID,
		ProductID:        uuid.New(),
		SKU:              sku,
		QuantityOnHand:   onHand,
		QuantityReserved: reserved,
		ReorderLevel:     5,
	}
	if err := conn.Create(item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return item
}

func newTestRepo(t *testing.T) (*db.Client, *repository) {
	t.Helper()
	client := dbtest.New(t)
	r := NewRepository(client.DB()).(*repository)
	r.now = func() time.Time { return fixedNow }
	return client, r
}

type recordedAppend struct {
	item     models.InventoryItem
	movement models.InventoryMovement
}

type fakeLedger struct {
	calls []recordedAppend
	err   error
}

func (f *fakeLedger) Append(ctx context.Context, tx *gorm.DB, item *models.InventoryItem, movement *models.InventoryMovement) error {
	if f.err != nil {
		return f.err
	}
	movement.InventoryItemID = item.ID
	movement.MovementNumber = "MOV-TEST-" + uuid.NewString()[:8]
	if err := tx.Create(movement).Error; err != nil {
		return err
	}
	f.calls = append(f.calls, recordedAppend{item: *item, movement: *movement})
	return nil
}

type fakeCache struct {
	store map[string]Analytics
	sets  int
}

func (f *fakeCache) CacheKey(parts ...string) string {
	key := "sh:cache"
	for _, part := range parts {
		key += ":" + part
	}
	return key
}

func (f *fakeCache) GetJSON(ctx context.Context, key string, dest any) error {
	value, ok := f.store[key]
	if !ok {
		return redis.ErrCacheMiss
	}
	*(dest.(*Analytics)) = value
	return nil
}

func (f *fakeCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if f.store == nil {
		f.store = map[string]Analytics{}
	}
	f.store[key] = *(value.(*Analytics))
	f.sets++
	return nil
}
