package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/stockhold-backend/api/routes"
	"github.com/angelmondragon/stockhold-backend/internal/inventory"
	"github.com/angelmondragon/stockhold-backend/internal/movements"
	"github.com/angelmondragon/stockhold-backend/internal/reports"
	"github.com/angelmondragon/stockhold-backend/internal/reservations"
	"github.com/angelmondragon/stockhold-backend/internal/reviews"
	"github.com/angelmondragon/stockhold-backend/pkg/config"
	"github.com/angelmondragon/stockhold-backend/pkg/db"
	"github.com/angelmondragon/stockhold-backend/pkg/logger"
	"github.com/angelmondragon/stockhold-backend/pkg/metrics"
	"github.com/angelmondragon/stockhold-backend/pkg/migrate"
	"github.com/angelmondragon/stockhold-backend/pkg/outbox"
	"github.com/angelmondragon/stockhold-backend/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	services, err := buildServices(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"serviceKind": cfg.Service.Kind,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, promhttp.Handler(), services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err, ok := <-serverErr:
		if ok && err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
		return
	case <-sigCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "api server shutdown failed", err)
		return
	}
	logg.Info(ctx, "api server shut down gracefully")
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.Services, error) {
	outboxRepo := outbox.NewRepository(dbClient.DB())
	publisher := outbox.NewService(outboxRepo, logg)
	inventoryMetrics := metrics.NewInventoryMetrics(prometheus.DefaultRegisterer)
	inventoryRepo := inventory.NewRepository(dbClient.DB())

	ledger, err := movements.NewService(movements.ServiceParams{
		Repo:      movements.NewRepository(dbClient.DB()),
		Inventory: inventoryRepo,
		Tx:        dbClient,
		Outbox:    publisher,
		Metrics:   inventoryMetrics,
		Logger:    logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	inventoryService, err := inventory.NewService(inventory.ServiceParams{
		Repo:   inventoryRepo,
		Tx:     dbClient,
		Ledger: ledger,
		Cache:  redisClient,
		Config: cfg.Inventory,
		Logger: logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	reservationService, err := reservations.NewService(reservations.ServiceParams{
		Repo:       reservations.NewRepository(dbClient.DB()),
		Inventory:  inventoryRepo,
		Ledger:     ledger,
		Tx:         dbClient,
		Outbox:     publisher,
		Metrics:    inventoryMetrics,
		Logger:     logg,
		DefaultTTL: cfg.Inventory.ReservationDefaultTTL,
	})
	if err != nil {
		return routes.Services{}, err
	}

	reportService, err := reports.NewService(reports.ServiceParams{
		Movements: ledger,
		Location:  cfg.Inventory.Location(),
		Logger:    logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	reviewService, err := reviews.NewService(reviews.ServiceParams{
		Repo:         reviews.NewRepository(dbClient.DB()),
		Tx:           dbClient,
		Outbox:       publisher,
		Reservations: reservationService,
		Logger:       logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Inventory:    inventoryService,
		Reservations: reservationService,
		Movements:    ledger,
		Reports:      reportService,
		Reviews:      reviewService,
	}, nil
}
