package worker

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/stockhold-backend/internal/analytics/router"
	"github.com/angelmondragon/stockhold-backend/internal/analytics/types"
	"github.com/angelmondragon/stockhold-backend/internal/analytics/writer"
	"github.com/angelmondragon/stockhold-backend/pkg/logger"
)

// consumerName scopes the processed-event marks in Redis.
const consumerName = "analytics"

// Handler turns one inventory event into warehouse rows.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, envelope types.Envelope) error

func (fn HandlerFunc) Handle(ctx context.Context, envelope types.Envelope) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, envelope)
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Service consumes the inventory analytics subscription. Each event is
// handled at most once per idempotency TTL; failures that may succeed later
// are nacked for redelivery.
type Service struct {
	subscription *gcppubsub.Subscriber
	handler      Handler
	seen         idempotencyChecker
	logg         *logger.Logger
}

func NewService(subscription *gcppubsub.Subscriber, handler Handler, seen idempotencyChecker, logg *logger.Logger) (*Service, error) {
	switch {
	case subscription == nil:
		return nil, errors.New("analytics subscription is required")
	case handler == nil:
		return nil, errors.New("analytics handler is required")
	case seen == nil:
		return nil, errors.New("idempotency manager is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}
	return &Service{subscription: subscription, handler: handler, seen: seen, logg: logg}, nil
}

// Run receives until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(msgCtx context.Context, msg *gcppubsub.Message) {
		if s.process(msgCtx, msg) == redeliver {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type disposition int

const (
	settled disposition = iota
	redeliver
)

func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) disposition {
	fields := map[string]any{"message_id": msg.ID}
	if msg.DeliveryAttempt != nil {
		fields["delivery_attempt"] = *msg.DeliveryAttempt
	}

	envelope, err := decodeEnvelope(msg)
	if err != nil {
		fields["error"] = err.Error()
		s.logg.Warn(s.logg.WithFields(ctx, fields), "dropping malformed analytics message")
		return settled
	}
	for k, v := range envelope.logFields() {
		fields[k] = v
	}
	ctx = s.logg.WithFields(ctx, fields)

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		s.logg.Warn(ctx, "dropping analytics message with non-uuid event id")
		return settled
	}

	duplicate, err := s.seen.CheckAndMarkProcessed(ctx, consumerName, eventID)
	if err != nil {
		s.logg.Error(ctx, "idempotency check failed", err)
		return redeliver
	}
	if duplicate {
		s.logg.Debug(ctx, "analytics event already handled")
		return settled
	}

	err = s.handler.Handle(ctx, envelope.Envelope)
	var rejected *writer.RejectedRowsError
	switch {
	case err == nil:
		s.logg.Info(ctx, "analytics event handled")
		return settled
	case errors.Is(err, router.ErrUnsupportedEventType):
		s.logg.Warn(ctx, "analytics event type not handled")
		return settled
	case errors.Is(err, router.ErrUndecodablePayload):
		s.logg.Error(ctx, "dropping analytics event with undecodable payload", err)
		return settled
	case errors.As(err, &rejected):
		// Redelivery cannot fix a row BigQuery refuses.
		s.logg.Error(ctx, "analytics row rejected by bigquery", err)
		return settled
	default:
		s.logg.Error(ctx, "analytics handler failed", err)
		if delErr := s.seen.Delete(ctx, consumerName, eventID); delErr != nil {
			s.logg.Error(ctx, "failed to clear processed mark", delErr)
		}
		return redeliver
	}
}
