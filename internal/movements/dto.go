package movements

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockhold-backend/pkg/db/models"
	"github.com/angelmondragon/stockhold-backend/pkg/enums"
)

const (
	// MaxQueryLimit caps a movement query.
	MaxQueryLimit = 100

	// movementNumberDigits is how many hex digits of the movement id the
	// ledger number keeps; 64 bits keeps same-day collisions out of reach.
	movementNumberDigits = 16

	reasonTransferOut = "transfer_out"
	reasonTransferIn  = "transfer_in"
)

// RecordInput describes a manual stock movement.
type RecordInput struct {
	ItemID        uuid.UUID
	Type          enums.MovementType
	Quantity      int
	ReferenceType *enums.MovementReferenceType
	ReferenceID   *uuid.UUID
	Reason        *string
	Notes         *string
	PerformedBy   *uuid.UUID
}

// TransferInput moves stock between two items, usually the same SKU in
// different warehouses.
type TransferInput struct {
	FromItemID  uuid.UUID
	ToItemID    uuid.UUID
	Quantity    int
	Notes       *string
	PerformedBy *uuid.UUID
}

// CycleCountInput carries a physical count. ExpectedVersion, when set, must
// match the item's version at write time.
type CycleCountInput struct {
	ItemID          uuid.UUID
	CountedQuantity int
	ExpectedVersion *int64
	Notes           *string
	PerformedBy     *uuid.UUID
}

// ReturnInput removes stock through the returns flow.
type ReturnInput struct {
	ItemID      uuid.UUID
	Quantity    int
	Reason      enums.ReturnReason
	Notes       *string
	PerformedBy *uuid.UUID
}

// Result pairs a written movement with the item state after it. Movement is
// nil for a cycle count without variance.
type Result struct {
	Movement *models.InventoryMovement
	Item     *models.InventoryItem
}

// TransferResult holds both legs of a transfer.
type TransferResult struct {
	Out Result
	In  Result
}

// QueryFilter selects movements in [From, To).
type QueryFilter struct {
	From   time.Time
	To     time.Time
	ItemID *uuid.UUID
	Type   *enums.MovementType
	Limit  int
}

// MovementDTO is the API representation of a ledger row.
type MovementDTO struct {
	ID              uuid.UUID                    `json:"id"`
	MovementNumber  string                       `json:"movement_number"`
	InventoryItemID uuid.UUID                    `json:"inventory_item_id"`
	MovementType    enums.MovementType           `json:"movement_type"`
	Quantity        int                          `json:"quantity"`
	ReferenceType   *enums.MovementReferenceType `json:"reference_type,omitempty"`
	ReferenceID     *uuid.UUID                   `json:"reference_id,omitempty"`
	Reason          *string                      `json:"reason,omitempty"`
	Notes           *string                      `json:"notes,omitempty"`
	PerformedBy     *uuid.UUID                   `json:"performed_by,omitempty"`
	CreatedAt       time.Time                    `json:"created_at"`
}

// NewMovementDTO maps a stored movement to its API form.
func NewMovementDTO(m models.InventoryMovement) MovementDTO {
	return MovementDTO{
		ID:              m.ID,
		MovementNumber:  m.MovementNumber,
		InventoryItemID: m.InventoryItemID,
		MovementType:    m.MovementType,
		Quantity:        m.Quantity,
		ReferenceType:   m.ReferenceType,
		ReferenceID:     m.ReferenceID,
		Reason:          m.Reason,
		Notes:           m.Notes,
		PerformedBy:     m.PerformedBy,
		CreatedAt:       m.CreatedAt,
	}
}
