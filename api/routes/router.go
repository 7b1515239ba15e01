package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/stockhold-backend/api/controllers"
	inventorycontrollers "github.com/angelmondragon/stockhold-backend/api/controllers/inventory"
	movementcontrollers "github.com/angelmondragon/stockhold-backend/api/controllers/movements"
	reportcontrollers "github.com/angelmondragon/stockhold-backend/api/controllers/reports"
	reservationcontrollers "github.com/angelmondragon/stockhold-backend/api/controllers/reservations"
	reviewcontrollers "github.com/angelmondragon/stockhold-backend/api/controllers/reviews"
	"github.com/angelmondragon/stockhold-backend/api/middleware"
	"github.com/angelmondragon/stockhold-backend/internal/inventory"
	"github.com/angelmondragon/stockhold-backend/internal/movements"
	"github.com/angelmondragon/stockhold-backend/internal/reports"
	"github.com/angelmondragon/stockhold-backend/internal/reservations"
	"github.com/angelmondragon/stockhold-backend/internal/reviews"
	"github.com/angelmondragon/stockhold-backend/pkg/config"
	"github.com/angelmondragon/stockhold-backend/pkg/enums"
	"github.com/angelmondragon/stockhold-backend/pkg/logger"
	"github.com/angelmondragon/stockhold-backend/pkg/redis"
)

type windowCounter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Services bundles the domain services the HTTP surface delegates to.
type Services struct {
	Inventory    inventory.Service
	Reservations reservations.Service
	Movements    movements.Service
	Reports      reports.Service
	Reviews      reviews.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient *redis.Client,
	metricsHandler http.Handler,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var (
		limiter     windowCounter
		idempotency middleware.IdempotencyStore
		readyDeps   = map[string]controllers.Pinger{"db": dbP}
	)
	if redisClient != nil {
		limiter = redisClient
		idempotency = redisClient
		readyDeps["redis"] = redisClient
	}

	writeLimit := middleware.RateLimit(
		middleware.NewRateLimitPolicy("writes", cfg.RateLimit.WriteWindow, cfg.RateLimit.WriteLimit),
		limiter, logg, nil,
	)
	affiliateLimit := middleware.RateLimit(
		middleware.NewRateLimitPolicy("affiliate-order", cfg.RateLimit.AffiliateOrderWindow, cfg.RateLimit.AffiliateOrderLimit),
		limiter, logg, reviewcontrollers.WriteFunctionError,
	)
	loc := cfg.Inventory.Location()

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readyDeps))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/functions/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.With(affiliateLimit).Post("/process-affiliate-order", reviewcontrollers.ProcessAffiliateOrder(svc.Reviews, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotency, cfg.Eventing.HTTPIdempotencyTTL, logg))

		r.Route("/warehouses", func(r chi.Router) {
			r.Get("/", inventorycontrollers.ListWarehouses(svc.Inventory, logg))
			r.With(
				middleware.RequireRole(logg, enums.UserRoleAdmin, enums.UserRoleMerchant),
				writeLimit,
			).Post("/", inventorycontrollers.CreateWarehouse(svc.Inventory, logg))
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/alerts", inventorycontrollers.Alerts(svc.Inventory, logg))
			r.Get("/analytics", inventorycontrollers.Analytics(svc.Inventory, logg))

			r.Route("/items", func(r chi.Router) {
				r.Get("/", inventorycontrollers.ListItems(svc.Inventory, logg))
				r.With(writeLimit).Post("/", inventorycontrollers.CreateItem(svc.Inventory, logg))
				r.Get("/{itemId}", inventorycontrollers.ItemDetail(svc.Inventory, logg))
				r.With(writeLimit).Post("/{itemId}/cycle-count", movementcontrollers.CycleCount(svc.Movements, logg))
				r.With(writeLimit).Post("/{itemId}/returns", movementcontrollers.Return(svc.Movements, logg))
			})

			r.Route("/reservations", func(r chi.Router) {
				r.Get("/", reservationcontrollers.List(svc.Reservations, logg))
				r.With(writeLimit).Post("/", reservationcontrollers.Create(svc.Reservations, logg))
				r.Get("/{id}", reservationcontrollers.Detail(svc.Reservations, logg))
				r.With(writeLimit).Post("/{id}/cancel", reservationcontrollers.Cancel(svc.Reservations, logg))
				r.With(writeLimit).Post("/{id}/fulfill", reservationcontrollers.Fulfill(svc.Reservations, logg))
			})

			r.Route("/movements", func(r chi.Router) {
				r.Get("/", reportcontrollers.Movements(svc.Reports, loc, logg))
				r.Get("/export.csv", reportcontrollers.ExportCSV(svc.Reports, loc, logg))
				r.With(writeLimit).Post("/", movementcontrollers.Record(svc.Movements, logg))
				r.With(writeLimit).Post("/transfer", movementcontrollers.Transfer(svc.Movements, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
		r.Use(middleware.Idempotency(idempotency, cfg.Eventing.HTTPIdempotencyTTL, logg))

		r.Get("/order-reviews", reviewcontrollers.AdminList(svc.Reviews, logg))
		r.With(writeLimit).Post("/order-reviews/{reviewId}/decision", reviewcontrollers.AdminDecision(svc.Reviews, logg))
	})

	return r
}
