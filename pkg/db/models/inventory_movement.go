package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold-backend/pkg/enums"
)

// InventoryMovement is an immutable stock ledger entry. Quantity is a positive
// magnitude except for ADJUST rows, which carry a signed delta.
type InventoryMovement struct {
	ID              uuid.UUID                    `gorm:"column:id;type:uuid;primaryKey"`
	MovementNumber  string                       `gorm:"column:movement_number;not null;uniqueIndex:ux_inventory_movements_number"`
	InventoryItemID uuid.UUID                    `gorm:"column:inventory_item_id;type:uuid;not null;index"`
	MovementType    enums.MovementType           `gorm:"column:movement_type;not null"`
	Quantity        int                          `gorm:"column:quantity;not null;check:chk_inventory_movements_qty_nonzero,quantity <> 0"`
	ReferenceType   *enums.MovementReferenceType `gorm:"column:reference_type"`
	ReferenceID     *uuid.UUID                   `gorm:"column:reference_id;type:uuid"`
	Reason          *string                      `gorm:"column:reason"`
	Notes           *string                      `gorm:"column:notes"`
	PerformedBy     *uuid.UUID                   `gorm:"column:performed_by;type:uuid"`
	CreatedAt       time.Time                    `gorm:"column:created_at;autoCreateTime;index:idx_inventory_movements_created_at"`
}

func (m *InventoryMovement) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
