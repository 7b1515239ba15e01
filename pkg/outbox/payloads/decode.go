package payloads

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/stockhold-backend/pkg/enums"
)

// CurrentVersion is the data schema version written by today's producers.
// Version 0 marks envelopes written before versioning and decodes as 1.
const CurrentVersion = 1

var (
	ErrUnknownEvent       = errors.New("unknown event type")
	ErrUnsupportedVersion = errors.New("unsupported payload version")
	ErrEmptyPayload       = errors.New("empty payload")
)

var factories = map[enums.OutboxEventType]func() any{
	enums.EventReservationCreated:   func() any { return &ReservationCreatedEvent{} },
	enums.EventReservationReleased:  func() any { return &ReservationReleasedEvent{} },
	enums.EventReservationFulfilled: func() any { return &ReservationFulfilledEvent{} },
	enums.EventMovementRecorded:     func() any { return &MovementRecordedEvent{} },
	enums.EventStockLow:             func() any { return &StockLowEvent{} },
	enums.EventOrderReviewRequested: func() any { return &OrderReviewRequestedEvent{} },
	enums.EventOrderReviewDecided:   func() any { return &OrderReviewDecidedEvent{} },
}

// Decode unmarshals data into the payload struct for eventType and returns a
// pointer to it, for example *StockLowEvent.
func Decode(eventType enums.OutboxEventType, version int, data json.RawMessage) (any, error) {
	factory, ok := factories[eventType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, eventType)
	}
	if version != 0 && version != CurrentVersion {
		return nil, fmt.Errorf("%w: %s@v%d", ErrUnsupportedVersion, eventType, version)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%w: %s", ErrEmptyPayload, eventType)
	}
	payload := factory()
	if err := json.Unmarshal(trimmed, payload); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", eventType, err)
	}
	return payload, nil
}
