package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold-backend/pkg/db/models"
	"github.com/angelmondragon/stockhold-backend/pkg/enums"
	"github.com/angelmondragon/stockhold-backend/pkg/logger"
)

const envelopeVersion = 1

// DomainEvent is what services hand to the outbox inside their transaction.
// DedupeKey, when set, collapses repeated emits of the same logical event
// for an aggregate, for example one low-stock alert per item per day.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	DedupeKey     string
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

// Service turns domain events into outbox rows.
type Service struct {
	repo  *Repository
	logg  *logger.Logger
	now   func() time.Time
	newID func() uuid.UUID
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: time.Now, newID: uuid.New}
}

// Emit queues event in tx.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	row, err := s.row(event)
	if err != nil {
		return err
	}
	if _, err := s.repo.InsertTx(tx, row, false); err != nil {
		return fmt.Errorf("queue %s: %w", event.EventType, err)
	}
	s.logQueued(ctx, row)
	return nil
}

// EmitIfNotExists queues event unless a row with the same event type,
// aggregate and dedupe key exists, and reports whether it queued one.
func (s *Service) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event DomainEvent) (bool, error) {
	if event.DedupeKey == "" {
		return false, errors.New("dedupe key required")
	}
	row, err := s.row(event)
	if err != nil {
		return false, err
	}
	inserted, err := s.repo.InsertTx(tx, row, true)
	if err != nil {
		return false, fmt.Errorf("queue %s: %w", event.EventType, err)
	}
	if inserted {
		s.logQueued(ctx, row)
	}
	return inserted, nil
}

// row builds the outbox row, wrapping event data in a PayloadEnvelope.
func (s *Service) row(event DomainEvent) (*models.OutboxEvent, error) {
	if !event.EventType.IsValid() {
		return nil, fmt.Errorf("unknown event type %q", event.EventType)
	}
	if event.AggregateID == uuid.Nil {
		return nil, fmt.Errorf("%s: aggregate id required", event.EventType)
	}
	data, err := json.Marshal(event.Data)
	if err != nil {
		return nil, fmt.Errorf("encode %s data: %w", event.EventType, err)
	}

	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = s.now()
	}
	occurred = occurred.UTC()
	version := event.Version
	if version == 0 {
		version = envelopeVersion
	}

	id := s.newID()
	payload, err := json.Marshal(PayloadEnvelope{
		Version:    version,
		EventID:    id.String(),
		OccurredAt: occurred,
		Actor:      event.Actor,
		Data:       data,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", event.EventType, err)
	}

	dedupe := event.DedupeKey
	if dedupe == "" {
		dedupe = id.String()
	}
	return &models.OutboxEvent{
		ID:            id,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		DedupeKey:     dedupe,
		Payload:       payload,
		CreatedAt:     occurred,
	}, nil
}

func (s *Service) logQueued(ctx context.Context, row *models.OutboxEvent) {
	if s.logg == nil {
		return
	}
	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
		"event_id":       row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID.String(),
	}), "outbox event queued")
}
