package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/stockhold-backend/internal/analytics/router"
	"github.com/angelmondragon/stockhold-backend/internal/analytics/types"
	"github.com/angelmondragon/stockhold-backend/internal/analytics/worker"
	"github.com/angelmondragon/stockhold-backend/internal/analytics/writer"
	"github.com/angelmondragon/stockhold-backend/pkg/bigquery"
	"github.com/angelmondragon/stockhold-backend/pkg/config"
	"github.com/angelmondragon/stockhold-backend/pkg/instance"
	"github.com/angelmondragon/stockhold-backend/pkg/logger"
	"github.com/angelmondragon/stockhold-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/stockhold-backend/pkg/pubsub"
	"github.com/angelmondragon/stockhold-backend/pkg/redis"
)

const serviceKind = "analytics-worker"

func main() {
	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: serviceKind})

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind
	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"workerId":    instance.GetID(),
	})

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "analytics worker failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "analytics worker shut down gracefully")
}

// run wires Redis dedupe, the Pub/Sub subscription and the BigQuery writer,
// then blocks in the receive loop until ctx ends.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	var closers []namedCloser
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				logg.Error(ctx, "close "+closers[i].name, err)
			}
		}
	}()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	closers = append(closers, namedCloser{"redis", redisClient})

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	closers = append(closers, namedCloser{"pubsub", pubsubClient})

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg, bigquery.TableSpec{
		Name:           cfg.BigQuery.InventoryEventsTable,
		Schema:         types.InventoryEventSchema(),
		PartitionField: "occurred_at",
		ClusterFields:  []string{"event_type", "aggregate_type"},
	})
	if err != nil {
		return fmt.Errorf("bigquery: %w", err)
	}
	closers = append(closers, namedCloser{"bigquery", bqClient})

	subscription := pubsubClient.AnalyticsSubscription()
	if subscription == nil {
		return errors.New("analytics subscription not configured")
	}
	seen, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return fmt.Errorf("idempotency manager: %w", err)
	}
	sink, err := writer.New(bqClient, writer.Config{InventoryTable: cfg.BigQuery.InventoryEventsTable})
	if err != nil {
		return fmt.Errorf("bigquery writer: %w", err)
	}
	handler, err := router.NewRouter(sink, logg, nil)
	if err != nil {
		return fmt.Errorf("event router: %w", err)
	}
	service, err := worker.NewService(subscription, handler, seen, logg)
	if err != nil {
		return fmt.Errorf("worker: %w", err)
	}

	logg.Info(ctx, "analytics worker ready")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

type namedCloser struct {
	name string
	io.Closer
}
