package types

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/stockhold-backend/pkg/enums"
)

// Envelope is one inventory or order event as the analytics worker sees it:
// routing metadata from the message attributes plus the event's data block.
type Envelope struct {
	EventID       string
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	OccurredAt    time.Time
	Version       int
	Payload       json.RawMessage
}
