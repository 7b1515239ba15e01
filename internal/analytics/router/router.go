// Package router turns decoded outbox events into BigQuery inventory event
// rows, one handler per event type.
package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/stockhold-backend/internal/analytics/types"
	"github.com/angelmondragon/stockhold-backend/pkg/enums"
	"github.com/angelmondragon/stockhold-backend/pkg/logger"
	"github.com/angelmondragon/stockhold-backend/pkg/outbox/payloads"
)

var (
	ErrUnsupportedEventType = errors.New("unsupported analytics event type")
	// ErrUndecodablePayload wraps payloads no redelivery can fix.
	ErrUndecodablePayload = errors.New("undecodable analytics payload")
)

// Writer delivers BigQuery rows produced by analytics handlers.
type Writer interface {
	InsertInventoryEvent(ctx context.Context, row types.InventoryEventRow) error
}

// Handler receives an envelope plus its decoded payload, a pointer to the
// matching payloads struct.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

type Router struct {
	handlers map[enums.OutboxEventType]Handler
}

// NewRouter installs the row handler for every event type; overrides replace
// the handler of an event type the router already knows.
func NewRouter(writer Writer, logg *logger.Logger, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	builders := map[enums.OutboxEventType]rowBuilder{
		enums.EventReservationCreated:   reservationCreatedRow,
		enums.EventReservationReleased:  reservationReleasedRow,
		enums.EventReservationFulfilled: reservationFulfilledRow,
		enums.EventMovementRecorded:     movementRecordedRow,
		enums.EventStockLow:             stockLowRow,
		enums.EventOrderReviewRequested: reviewRequestedRow,
		enums.EventOrderReviewDecided:   reviewDecidedRow,
	}
	handlers := make(map[enums.OutboxEventType]Handler, len(builders))
	for eventType, build := range builders {
		handlers[eventType] = newRowHandler(writer, logg, build)
	}
	for eventType, custom := range overrides {
		if _, known := handlers[eventType]; known && custom != nil {
			handlers[eventType] = custom
		}
	}
	return &Router{handlers: handlers}, nil
}

func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	handler, ok := r.handlers[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	payload, err := payloads.Decode(envelope.EventType, envelope.Version, envelope.Payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUndecodablePayload, err)
	}
	return handler.Handle(ctx, envelope, payload)
}
