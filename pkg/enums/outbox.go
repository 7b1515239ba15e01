package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox row belongs to.
type OutboxAggregateType string

const (
	AggregateInventoryItem        OutboxAggregateType = "inventory_item"
	AggregateInventoryReservation OutboxAggregateType = "inventory_reservation"
	AggregateOrder                OutboxAggregateType = "order"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateInventoryItem,
	AggregateInventoryReservation,
	AggregateOrder,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a domain event queued on the outbox.
type OutboxEventType string

const (
	EventReservationCreated   OutboxEventType = "reservation_created"
	EventReservationReleased  OutboxEventType = "reservation_released"
	EventReservationFulfilled OutboxEventType = "reservation_fulfilled"
	EventMovementRecorded     OutboxEventType = "movement_recorded"
	EventStockLow             OutboxEventType = "stock_low"
	EventOrderReviewRequested OutboxEventType = "order_review_requested"
	EventOrderReviewDecided   OutboxEventType = "order_review_decided"
)

var validOutboxEventTypes = []OutboxEventType{
	EventReservationCreated,
	EventReservationReleased,
	EventReservationFulfilled,
	EventMovementRecorded,
	EventStockLow,
	EventOrderReviewRequested,
	EventOrderReviewDecided,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason records why the publisher gave up on a row.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonMaxAttempts: transient failures exhausted the attempt budget.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// OutboxDLQReasonNonRetryable: the row can never publish as stored.
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonNonRetryable
}
