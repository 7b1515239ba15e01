package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Warehouse is a physical stock location. Rows are deactivated, never deleted.
type Warehouse struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Code      string    `gorm:"column:code;not null;uniqueIndex:ux_warehouses_code"`
	Name      string    `gorm:"column:name;not null"`
	Location  *string   `gorm:"column:location"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (w *Warehouse) BeforeCreate(*gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// InventoryItem is the per-warehouse stock record for a product/variant.
// Available stock is derived as on_hand - reserved and is never stored.
type InventoryItem struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	WarehouseID      uuid.UUID        `gorm:"column:warehouse_id;type:uuid;not null;index:idx_inventory_items_warehouse;uniqueIndex:ux_inventory_items_warehouse_sku,priority:1"`
	ProductID        uuid.UUID        `gorm:"column:product_id;type:uuid;not null;index"`
	SKU              string           `gorm:"column:sku;not null;uniqueIndex:ux_inventory_items_warehouse_sku,priority:2"`
	QuantityOnHand   int              `gorm:"column:quantity_on_hand;not null;default:0;check:chk_inventory_items_on_hand_nonneg,quantity_on_hand >= 0"`
	QuantityReserved int              `gorm:"column:quantity_reserved;not null;default:0;check:chk_inventory_items_reserved_le_on_hand,quantity_reserved >= 0 AND quantity_reserved <= quantity_on_hand"`
	ReorderLevel     int              `gorm:"column:reorder_level;not null;default:5"`
	MaxStockLevel    *int             `gorm:"column:max_stock_level"`
	UnitCost         *decimal.Decimal `gorm:"column:unit_cost;type:numeric(12,2)"`
	Location         *string          `gorm:"column:location"`
	BatchNumber      *string          `gorm:"column:batch_number"`
	ExpiryDate       *time.Time       `gorm:"column:expiry_date"`
	LastCountedAt    *time.Time       `gorm:"column:last_counted_at"`
	Version          int64            `gorm:"column:version;not null;default:1"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *InventoryItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.Version == 0 {
		i.Version = 1
	}
	return nil
}

// Available returns on_hand - reserved.
func (i InventoryItem) Available() int {
	return i.QuantityOnHand - i.QuantityReserved
}
