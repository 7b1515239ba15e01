package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockhold-backend/pkg/enums"
)

// ReservationCreatedEvent is emitted once stock is held for a caller.
type ReservationCreatedEvent struct {
	ReservationID   uuid.UUID  `json:"reservation_id"`
	InventoryItemID uuid.UUID  `json:"inventory_item_id"`
	WarehouseID     uuid.UUID  `json:"warehouse_id"`
	OrderID         *uuid.UUID `json:"order_id,omitempty"`
	Quantity        int        `json:"quantity"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	AvailableAfter  int        `json:"available_after"`
}

// ReservationReleasedEvent covers both cancellation and expiry.
type ReservationReleasedEvent struct {
	ReservationID   uuid.UUID               `json:"reservation_id"`
	InventoryItemID uuid.UUID               `json:"inventory_item_id"`
	OrderID         *uuid.UUID              `json:"order_id,omitempty"`
	Quantity        int                     `json:"quantity"`
	Status          enums.ReservationStatus `json:"status"`
	AvailableAfter  int                     `json:"available_after"`
}

// ReservationFulfilledEvent is emitted when held stock leaves the warehouse.
type ReservationFulfilledEvent struct {
	ReservationID   uuid.UUID  `json:"reservation_id"`
	InventoryItemID uuid.UUID  `json:"inventory_item_id"`
	OrderID         *uuid.UUID `json:"order_id,omitempty"`
	Quantity        int        `json:"quantity"`
	MovementID      uuid.UUID  `json:"movement_id"`
}

// MovementRecordedEvent mirrors one stock ledger row plus the resulting levels.
type MovementRecordedEvent struct {
	MovementID      uuid.UUID                    `json:"movement_id"`
	MovementNumber  string                       `json:"movement_number"`
	InventoryItemID uuid.UUID                    `json:"inventory_item_id"`
	WarehouseID     uuid.UUID                    `json:"warehouse_id"`
	MovementType    enums.MovementType           `json:"movement_type"`
	Quantity        int                          `json:"quantity"`
	ReferenceType   *enums.MovementReferenceType `json:"reference_type,omitempty"`
	ReferenceID     *uuid.UUID                   `json:"reference_id,omitempty"`
	OnHandAfter     int                          `json:"on_hand_after"`
	ReservedAfter   int                          `json:"reserved_after"`
	RecordedAt      time.Time                    `json:"recorded_at"`
}

// StockLowEvent flags an item at or below its reorder level.
type StockLowEvent struct {
	InventoryItemID uuid.UUID                `json:"inventory_item_id"`
	WarehouseID     uuid.UUID                `json:"warehouse_id"`
	SKU             string                   `json:"sku"`
	Available       int                      `json:"available"`
	ReorderLevel    int                      `json:"reorder_level"`
	Severity        enums.StockAlertSeverity `json:"severity"`
}

// OrderReviewRequestedEvent is emitted when an affiliate order enters admin review.
type OrderReviewRequestedEvent struct {
	ReviewID         uuid.UUID `json:"review_id"`
	OrderID          uuid.UUID `json:"order_id"`
	AffiliateStoreID uuid.UUID `json:"affiliate_store_id"`
	MerchantID       uuid.UUID `json:"merchant_id"`
}

// OrderReviewDecidedEvent records the admin outcome and the order status it produced.
type OrderReviewDecidedEvent struct {
	ReviewID             uuid.UUID          `json:"review_id"`
	OrderID              uuid.UUID          `json:"order_id"`
	Decision             enums.ReviewStatus `json:"decision"`
	OrderStatus          enums.OrderStatus  `json:"order_status"`
	ReviewedBy           *uuid.UUID         `json:"reviewed_by,omitempty"`
	ReleasedReservations int                `json:"released_reservations"`
}
