package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold-backend/pkg/enums"
)

// InventoryReservation is a temporary hold against an item's available stock.
type InventoryReservation struct {
	ID               uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	InventoryItemID  uuid.UUID               `gorm:"column:inventory_item_id;type:uuid;not null;index:idx_inventory_reservations_item_status,priority:1"`
	OrderID          *uuid.UUID              `gorm:"column:order_id;type:uuid;index"`
	ReservedQuantity int                     `gorm:"column:reserved_quantity;not null;check:chk_inventory_reservations_qty_positive,reserved_quantity > 0"`
	Status           enums.ReservationStatus `gorm:"column:status;not null;index:idx_inventory_reservations_item_status,priority:2;index:idx_inventory_reservations_status_expires,priority:1"`
	ExpiresAt        *time.Time              `gorm:"column:expires_at;index:idx_inventory_reservations_status_expires,priority:2"`
	CreatedBy        *uuid.UUID              `gorm:"column:created_by;type:uuid"`
	ClosedAt         *time.Time              `gorm:"column:closed_at"`
	CreatedAt        time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *InventoryReservation) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
