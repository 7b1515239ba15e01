package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// InventoryEventRow mirrors the inventory_events BigQuery schema. One row is
// written per outbox event; columns that do not apply to an event stay NULL.
type InventoryEventRow struct {
	EventID         string             `bigquery:"event_id"`
	EventType       string             `bigquery:"event_type"`
	AggregateType   string             `bigquery:"aggregate_type"`
	AggregateID     string             `bigquery:"aggregate_id"`
	OccurredAt      time.Time          `bigquery:"occurred_at"`
	InventoryItemID *string            `bigquery:"inventory_item_id"`
	WarehouseID     *string            `bigquery:"warehouse_id"`
	ReservationID   *string            `bigquery:"reservation_id"`
	MovementID      *string            `bigquery:"movement_id"`
	OrderID         *string            `bigquery:"order_id"`
	ReviewID        *string            `bigquery:"review_id"`
	MovementType    *string            `bigquery:"movement_type"`
	Quantity        *int64             `bigquery:"quantity"`
	OnHandAfter     *int64             `bigquery:"on_hand_after"`
	ReservedAfter   *int64             `bigquery:"reserved_after"`
	AvailableAfter  *int64             `bigquery:"available_after"`
	Status          *string            `bigquery:"status"`
	Severity        *string            `bigquery:"severity"`
	Payload         cbigquery.NullJSON `bigquery:"payload"`
}
