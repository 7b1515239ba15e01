package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold-backend/pkg/config"
	"github.com/angelmondragon/stockhold-backend/pkg/db/models"
	"github.com/angelmondragon/stockhold-backend/pkg/enums"
	"github.com/angelmondragon/stockhold-backend/pkg/logger"
	"github.com/angelmondragon/stockhold-backend/pkg/metrics"
	"github.com/angelmondragon/stockhold-backend/pkg/outbox"
	"github.com/angelmondragon/stockhold-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/stockhold-backend/pkg/outbox/registry"
)

func reservationEvent(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventReservationCreated,
		AggregateType: enums.AggregateInventoryReservation,
		AggregateID:   uuid.New(),
		Payload:       envelopePayload(t),
		AttemptCount:  attempts,
	}
}

func inventoryResolution() *registry.ResolvedEvent {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: "sh-inventory-events"},
		Payload:    &payloads.ReservationCreatedEvent{},
	}
}

func TestRelayBatchSettlesEachRowIndependently(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{reservationEvent(t, 0), reservationEvent(t, 0)}}
	pub := &fakePublisher{results: []publishResult{
		fakePublishResult{err: errors.New("deadline exceeded")},
		fakePublishResult{},
	}}
	svc := newTestService(t, repo, pub, &fakeRegistry{resolved: inventoryResolution()}, &fakeDLQRepo{}, nil)

	tally, err := svc.relayBatch(context.Background())
	if err != nil {
		t.Fatalf("relay batch: %v", err)
	}
	if tally.retried != 1 || tally.published != 1 || tally.deadLettered != 0 {
		t.Fatalf("unexpected tally %+v", tally)
	}
	if len(repo.failed) != 1 || repo.failed[0] != repo.events[0].ID {
		t.Fatalf("expected first row marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != repo.events[1].ID {
		t.Fatalf("expected second row marked published, got %v", repo.published)
	}
}

func TestDeliverSetsAttributesAndOrderingKey(t *testing.T) {
	created := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventMovementRecorded,
		AggregateType: enums.AggregateInventoryItem,
		AggregateID:   uuid.New(),
		Payload:       envelopePayload(t),
		CreatedAt:     created,
	}
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	resolved := &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: "sh-inventory-events"},
		Envelope:   outbox.PayloadEnvelope{Version: 1},
		Payload:    &payloads.MovementRecordedEvent{},
	}
	svc := newTestService(t, repo, pub, &fakeRegistry{resolved: resolved}, &fakeDLQRepo{}, &config.OutboxConfig{OrderedDelivery: true})
	var topics []string
	svc.publishers = func(topic string) publisher {
		topics = append(topics, topic)
		return pub
	}
	svc.now = func() time.Time { return created.Add(time.Minute) }

	if _, err := svc.relayBatch(context.Background()); err != nil {
		t.Fatalf("relay batch: %v", err)
	}
	if len(topics) != 1 || topics[0] != "sh-inventory-events" {
		t.Fatalf("unexpected topics %v", topics)
	}
	if len(pub.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(pub.sent))
	}
	msg := pub.sent[0]
	want := map[string]string{
		"event_id":         event.ID.String(),
		"event_type":       "movement_recorded",
		"aggregate_type":   "inventory_item",
		"aggregate_id":     event.AggregateID.String(),
		"created_at":       created.Format(time.RFC3339Nano),
		"envelope_version": "1",
	}
	for key, value := range want {
		if msg.Attributes[key] != value {
			t.Fatalf("attribute %s: expected %q got %q", key, value, msg.Attributes[key])
		}
	}
	if msg.OrderingKey != "inventory_item:"+event.AggregateID.String() {
		t.Fatalf("unexpected ordering key %q", msg.OrderingKey)
	}
	if !bytes.Equal(msg.Data, event.Payload) {
		t.Fatal("expected stored envelope as message data")
	}
	if len(repo.publishedAt) != 1 || !repo.publishedAt[0].Equal(created.Add(time.Minute)) {
		t.Fatalf("unexpected published_at %v", repo.publishedAt)
	}
}

func TestDeliverWithoutOrderingLeavesKeyEmpty(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{reservationEvent(t, 0)}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	svc := newTestService(t, repo, pub, &fakeRegistry{resolved: inventoryResolution()}, &fakeDLQRepo{}, nil)

	if _, err := svc.relayBatch(context.Background()); err != nil {
		t.Fatalf("relay batch: %v", err)
	}
	if pub.sent[0].OrderingKey != "" {
		t.Fatalf("expected no ordering key, got %q", pub.sent[0].OrderingKey)
	}
}

func TestFailedOrderedPublishResumesKey(t *testing.T) {
	event := reservationEvent(t, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("unavailable")}}}
	svc := newTestService(t, repo, pub, &fakeRegistry{resolved: inventoryResolution()}, &fakeDLQRepo{}, &config.OutboxConfig{OrderedDelivery: true})

	tally, err := svc.relayBatch(context.Background())
	if err != nil {
		t.Fatalf("relay batch: %v", err)
	}
	if tally.retried != 1 {
		t.Fatalf("expected a retry, got %+v", tally)
	}
	if len(pub.resumed) != 1 || pub.resumed[0] != orderingKey(event) {
		t.Fatalf("expected ordering key to be resumed, got %v", pub.resumed)
	}
}

func TestMissingPublisherDeadLetters(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{reservationEvent(t, 0)}}
	dlq := &fakeDLQRepo{}
	svc := newTestService(t, repo, nil, &fakeRegistry{resolved: inventoryResolution()}, dlq, nil)
	svc.publishers = func(string) publisher { return nil }

	tally, err := svc.relayBatch(context.Background())
	if err != nil {
		t.Fatalf("relay batch: %v", err)
	}
	if tally.deadLettered != 1 {
		t.Fatalf("unexpected tally %+v", tally)
	}
	if len(dlq.entries) != 1 || dlq.entries[0].ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("expected non-retryable dlq entry, got %+v", dlq.entries)
	}
	if len(repo.published) != 0 {
		t.Fatal("event should not be marked published")
	}
}

func TestUnresolvableRowDeadLettersWithPayload(t *testing.T) {
	event := reservationEvent(t, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQRepo{}
	reg := &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	svc := newTestService(t, repo, &fakePublisher{}, reg, dlq, nil)

	if _, err := svc.relayBatch(context.Background()); err != nil {
		t.Fatalf("relay batch: %v", err)
	}
	if len(dlq.entries) != 1 {
		t.Fatalf("expected dlq entry, got %d", len(dlq.entries))
	}
	entry := dlq.entries[0]
	if entry.EventID != event.ID || !bytes.Equal(entry.Payload, event.Payload) {
		t.Fatalf("dlq entry does not mirror the row: %+v", entry)
	}
	if entry.ErrorMessage == nil || *entry.ErrorMessage != "invalid payload" {
		t.Fatalf("unexpected error message %v", entry.ErrorMessage)
	}
	if len(repo.terminal) != 1 {
		t.Fatal("expected row to be marked terminal")
	}
}

func TestLastAttemptDeadLetters(t *testing.T) {
	event := reservationEvent(t, 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("transient")}}}
	dlq := &fakeDLQRepo{}
	svc := newTestService(t, repo, pub, &fakeRegistry{resolved: inventoryResolution()}, dlq, &config.OutboxConfig{MaxAttempts: 2})

	tally, err := svc.relayBatch(context.Background())
	if err != nil {
		t.Fatalf("relay batch: %v", err)
	}
	if tally.deadLettered != 1 || tally.retried != 0 {
		t.Fatalf("unexpected tally %+v", tally)
	}
	if len(dlq.entries) != 1 || dlq.entries[0].ErrorReason != enums.OutboxDLQReasonMaxAttempts {
		t.Fatalf("expected max-attempts dlq entry, got %+v", dlq.entries)
	}
	if len(repo.failed) != 0 {
		t.Fatal("terminal row must not also be marked failed")
	}
}

func TestRelayRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	repo := &fakeRepo{events: []models.OutboxEvent{reservationEvent(t, 0)}}
	repo.events[0].CreatedAt = time.Now().Add(-2 * time.Second)
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	svc := newTestService(t, repo, pub, &fakeRegistry{resolved: inventoryResolution()}, &fakeDLQRepo{}, nil)
	svc.metrics = metrics.NewOutboxMetrics(reg)

	if _, err := svc.relayBatch(context.Background()); err != nil {
		t.Fatalf("relay batch: %v", err)
	}
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "stockhold_outbox_relayed_total" {
			found = len(mf.GetMetric()) == 1 && mf.GetMetric()[0].GetCounter().GetValue() == 1
		}
	}
	if !found {
		t.Fatal("expected one published row counted")
	}
}

func TestRunStopsWhenDependencyIsDown(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{}, &fakeDLQRepo{}, nil)
	svc.db = &fakeDB{pingErr: errors.New("connection refused")}

	if err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected readiness error")
	}
}

func TestRunReturnsOnCancel(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{}, &fakeDLQRepo{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewServiceRequiresDLQ(t *testing.T) {
	_, err := NewService(ServiceParams{
		Config:     &config.Config{},
		Logger:     logger.Nop(),
		DB:         &fakeDB{},
		PubSub:     &fakePubSubClient{},
		Repository: &fakeRepo{},
		Registry:   &fakeRegistry{},
	})
	if err == nil {
		t.Fatal("expected error without dlq repository")
	}
}

func TestNewServiceDefaults(t *testing.T) {
	svc := newTestService(t, &fakeRepo{}, nil, &fakeRegistry{}, &fakeDLQRepo{}, &config.OutboxConfig{})
	if svc.batchSize != defaultBatchSize || svc.maxAttempts != defaultMaxAttempts || svc.pollInterval != defaultPollInterval {
		t.Fatalf("unexpected defaults batch=%d attempts=%d poll=%s", svc.batchSize, svc.maxAttempts, svc.pollInterval)
	}
}

func newTestService(t *testing.T, repo outboxRepository, pub publisher, reg registryResolver, dlq dlqRepository, override *config.OutboxConfig) *Service {
	t.Helper()
	outboxCfg := config.OutboxConfig{BatchSize: 2, PollIntervalMS: 100, MaxAttempts: 5}
	if override != nil {
		outboxCfg = *override
	}
	svc, err := NewService(ServiceParams{
		Config:           &config.Config{Outbox: outboxCfg},
		Logger:           logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:               &fakeDB{},
		PubSub:           &fakePubSubClient{},
		Repository:       repo,
		Registry:         reg,
		PublisherFactory: func(string) publisher { return pub },
		DLQRepository:    dlq,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return svc
}

func envelopePayload(tb testing.TB) json.RawMessage {
	tb.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	})
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

type fakeRepo struct {
	events      []models.OutboxEvent
	published   []uuid.UUID
	publishedAt []time.Time
	failed      []uuid.UUID
	terminal    []uuid.UUID
}

func (f *fakeRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	f.published = append(f.published, id)
	f.publishedAt = append(f.publishedAt, at)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct {
	pingErr error
}

func (f *fakeDB) Ping(context.Context) error {
	return f.pingErr
}

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct{}

func (f *fakePubSubClient) Ping(context.Context) error {
	return nil
}

func (f *fakePubSubClient) Publisher(name string) *gcppubsub.Publisher {
	return nil
}

type fakePublisher struct {
	results []publishResult
	sent    []*gcppubsub.Message
	resumed []string
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.sent = append(f.sent, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

func (f *fakePublisher) ResumePublish(key string) {
	f.resumed = append(f.resumed, key)
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "", f.err
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.resolved == nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Descriptor.AggregateType = event.AggregateType
	resolved.Envelope.EventID = event.ID.String()
	resolved.Envelope.OccurredAt = time.Now()
	return &resolved, f.err
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}
