package router

import (
	"context"
	"fmt"

	"github.com/angelmondragon/stockhold-backend/internal/analytics/types"
	analyticswriter "github.com/angelmondragon/stockhold-backend/internal/analytics/writer"
	"github.com/angelmondragon/stockhold-backend/pkg/logger"
	"github.com/angelmondragon/stockhold-backend/pkg/outbox/payloads"
)

// rowBuilder fills the event-specific columns of a row whose envelope
// columns are already set.
type rowBuilder func(row *types.InventoryEventRow, payload any) error

type rowHandler struct {
	writer Writer
	logg   *logger.Logger
	build  rowBuilder
}

func newRowHandler(writer Writer, logg *logger.Logger, build rowBuilder) Handler {
	return &rowHandler{writer: writer, logg: logg, build: build}
}

func (h *rowHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_id":     envelope.EventID,
		"event_type":   envelope.EventType,
		"aggregate_id": envelope.AggregateID,
	})

	row, err := baseRow(envelope, payload)
	if err != nil {
		h.logg.Error(logCtx, "failed to encode analytics payload", err)
		return err
	}
	if err := h.build(&row, payload); err != nil {
		h.logg.Error(logCtx, "failed to build inventory event row", err)
		return err
	}
	if err := h.writer.InsertInventoryEvent(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert inventory event row", err)
		return err
	}

	h.logg.Info(logCtx, "inventory event row inserted")
	return nil
}

func baseRow(envelope types.Envelope, payload any) (types.InventoryEventRow, error) {
	payloadJSON, err := analyticswriter.EncodeJSON(payload)
	if err != nil {
		return types.InventoryEventRow{}, fmt.Errorf("encode payload json: %w", err)
	}
	return types.InventoryEventRow{
		EventID:       envelope.EventID,
		EventType:     string(envelope.EventType),
		AggregateType: string(envelope.AggregateType),
		AggregateID:   envelope.AggregateID,
		OccurredAt:    envelope.OccurredAt.UTC(),
		Payload:       payloadJSON,
	}, nil
}

func reservationCreatedRow(row *types.InventoryEventRow, payload any) error {
	event, ok := payload.(*payloads.ReservationCreatedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for reservation_created")
	}
	row.ReservationID = uuidPtr(event.ReservationID)
	row.InventoryItemID = uuidPtr(event.InventoryItemID)
	row.WarehouseID = uuidPtr(event.WarehouseID)
	row.OrderID = optionalUUID(event.OrderID)
	row.Quantity = int64Ptr(event.Quantity)
	row.AvailableAfter = int64Ptr(event.AvailableAfter)
	return nil
}

func reservationReleasedRow(row *types.InventoryEventRow, payload any) error {
	event, ok := payload.(*payloads.ReservationReleasedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for reservation_released")
	}
	row.ReservationID = uuidPtr(event.ReservationID)
	row.InventoryItemID = uuidPtr(event.InventoryItemID)
	row.OrderID = optionalUUID(event.OrderID)
	row.Quantity = int64Ptr(event.Quantity)
	row.AvailableAfter = int64Ptr(event.AvailableAfter)
	row.Status = stringPtr(string(event.Status))
	return nil
}

func reservationFulfilledRow(row *types.InventoryEventRow, payload any) error {
	event, ok := payload.(*payloads.ReservationFulfilledEvent)
	if !ok {
		return fmt.Errorf("invalid payload for reservation_fulfilled")
	}
	row.ReservationID = uuidPtr(event.ReservationID)
	row.InventoryItemID = uuidPtr(event.InventoryItemID)
	row.MovementID = uuidPtr(event.MovementID)
	row.OrderID = optionalUUID(event.OrderID)
	row.Quantity = int64Ptr(event.Quantity)
	return nil
}

func movementRecordedRow(row *types.InventoryEventRow, payload any) error {
	event, ok := payload.(*payloads.MovementRecordedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for movement_recorded")
	}
	row.MovementID = uuidPtr(event.MovementID)
	row.InventoryItemID = uuidPtr(event.InventoryItemID)
	row.WarehouseID = uuidPtr(event.WarehouseID)
	row.MovementType = stringPtr(string(event.MovementType))
	row.Quantity = int64Ptr(event.Quantity)
	row.OnHandAfter = int64Ptr(event.OnHandAfter)
	row.ReservedAfter = int64Ptr(event.ReservedAfter)
	row.AvailableAfter = int64Ptr(event.OnHandAfter - event.ReservedAfter)
	if !event.RecordedAt.IsZero() {
		row.OccurredAt = event.RecordedAt.UTC()
	}
	return nil
}

func stockLowRow(row *types.InventoryEventRow, payload any) error {
	event, ok := payload.(*payloads.StockLowEvent)
	if !ok {
		return fmt.Errorf("invalid payload for stock_low")
	}
	row.InventoryItemID = uuidPtr(event.InventoryItemID)
	row.WarehouseID = uuidPtr(event.WarehouseID)
	row.AvailableAfter = int64Ptr(event.Available)
	row.Severity = stringPtr(string(event.Severity))
	return nil
}

func reviewRequestedRow(row *types.InventoryEventRow, payload any) error {
	event, ok := payload.(*payloads.OrderReviewRequestedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for order_review_requested")
	}
	row.ReviewID = uuidPtr(event.ReviewID)
	row.OrderID = uuidPtr(event.OrderID)
	return nil
}

func reviewDecidedRow(row *types.InventoryEventRow, payload any) error {
	event, ok := payload.(*payloads.OrderReviewDecidedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for order_review_decided")
	}
	row.ReviewID = uuidPtr(event.ReviewID)
	row.OrderID = uuidPtr(event.OrderID)
	row.Status = stringPtr(string(event.Decision))
	row.Quantity = int64Ptr(event.ReleasedReservations)
	return nil
}
