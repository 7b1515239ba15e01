package reservations

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockhold-backend/pkg/db/models"
	"github.com/angelmondragon/stockhold-backend/pkg/enums"
)

// CreateInput requests a hold on an item. A nil ExpiresAt falls back to the
// configured default TTL.
type CreateInput struct {
	ItemID    uuid.UUID
	Quantity  int
	OrderID   *uuid.UUID
	ExpiresAt *time.Time
	CreatedBy *uuid.UUID
}

// FulfillInput ships the held stock of a reservation.
type FulfillInput struct {
	ReservationID uuid.UUID
	Notes         *string
	PerformedBy   *uuid.UUID
}

// Result pairs a reservation with the item state after the operation.
type Result struct {
	Reservation *models.InventoryReservation
	Item        *models.InventoryItem
	Movement    *models.InventoryMovement
}

// ListFilter narrows reservation listings.
type ListFilter struct {
	ItemID  *uuid.UUID
	OrderID *uuid.UUID
	Status  *enums.ReservationStatus
}

// ListParams are the controller-facing list inputs.
type ListParams struct {
	Filter ListFilter
	Limit  int
	Cursor string
}

// ListResult wraps returned reservations and the cursor for the next page.
type ListResult struct {
	Items  []ReservationDTO `json:"items"`
	Cursor string           `json:"cursor"`
}

// ReservationDTO is the API representation of a reservation.
type ReservationDTO struct {
	ID               uuid.UUID               `json:"id"`
	InventoryItemID  uuid.UUID               `json:"inventory_item_id"`
	OrderID          *uuid.UUID              `json:"order_id,omitempty"`
	ReservedQuantity int                     `json:"reserved_quantity"`
	Status           enums.ReservationStatus `json:"status"`
	ExpiresAt        *time.Time              `json:"expires_at,omitempty"`
	CreatedBy        *uuid.UUID              `json:"created_by,omitempty"`
	ClosedAt         *time.Time              `json:"closed_at,omitempty"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

// NewReservationDTO maps a stored reservation to its API form.
func NewReservationDTO(r models.InventoryReservation) ReservationDTO {
	return ReservationDTO{
		ID:               r.ID,
		InventoryItemID:  r.InventoryItemID,
		OrderID:          r.OrderID,
		ReservedQuantity: r.ReservedQuantity,
		Status:           r.Status,
		ExpiresAt:        r.ExpiresAt,
		CreatedBy:        r.CreatedBy,
		ClosedAt:         r.ClosedAt,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}
