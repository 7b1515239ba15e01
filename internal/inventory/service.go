package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold-backend/internal/repo"
	"github.com/angelmondragon/stockhold-backend/pkg/config"
	dbpkg "github.com/angelmondragon/stockhold-backend/pkg/db"
	"github.com/angelmondragon/stockhold-backend/pkg/db/models"
	"github.com/angelmondragon/stockhold-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockhold-backend/pkg/errors"
	"github.com/angelmondragon/stockhold-backend/pkg/logger"
	"github.com/angelmondragon/stockhold-backend/pkg/redis"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// StockLedger appends a movement row for a quantity change that was already
// applied to item inside tx.
type StockLedger interface {
	Append(ctx context.Context, tx *gorm.DB, item *models.InventoryItem, movement *models.InventoryMovement) error
}

type analyticsCache interface {
	CacheKey(parts ...string) string
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Service exposes the read side of inventory plus item and warehouse creation.
type Service interface {
	CreateWarehouse(ctx context.Context, input CreateWarehouseInput) (*models.Warehouse, error)
	ListWarehouses(ctx context.Context, includeInactive bool) ([]models.Warehouse, error)
	CreateItem(ctx context.Context, input CreateItemInput) (*models.InventoryItem, error)
	GetItem(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]models.InventoryItem, error)
	Alerts(ctx context.Context, filter ItemFilter) ([]Alert, error)
	Analytics(ctx context.Context, warehouseID *uuid.UUID) (*Analytics, error)
}

// ServiceParams configure the inventory service.
type ServiceParams struct {
	Repo   Repository
	Tx     txRunner
	Ledger StockLedger
	Cache  analyticsCache
	Config config.InventoryConfig
	Logger *logger.Logger
}

type service struct {
	repo   Repository
	tx     txRunner
	ledger StockLedger
	cache  analyticsCache
	cfg    config.InventoryConfig
	logg   *logger.Logger
	group  singleflight.Group
	now    func() time.Time
}

// NewService builds an inventory service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:   params.Repo,
		tx:     params.Tx,
		ledger: params.Ledger,
		cache:  params.Cache,
		cfg:    params.Config,
		logg:   logg,
		now:    time.Now,
	}, nil
}

func (s *service) CreateWarehouse(ctx context.Context, input CreateWarehouseInput) (*models.Warehouse, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	name := strings.TrimSpace(input.Name)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse code required")
	}
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse name required")
	}
	warehouse := &models.Warehouse{
		Code:     code,
		Name:     name,
		Location: input.Location,
		IsActive: true,
	}
	if err := s.repo.CreateWarehouse(ctx, warehouse); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "warehouse code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create warehouse")
	}
	return warehouse, nil
}

func (s *service) ListWarehouses(ctx context.Context, includeInactive bool) ([]models.Warehouse, error) {
	warehouses, err := s.repo.ListWarehouses(ctx, includeInactive)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list warehouses")
	}
	return warehouses, nil
}

func (s *service) CreateItem(ctx context.Context, input CreateItemInput) (*models.InventoryItem, error) {
	sku := strings.TrimSpace(input.SKU)
	switch {
	case input.WarehouseID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse id required")
	case input.ProductID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	case sku == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku required")
	case input.InitialQuantity < 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "initial quantity must not be negative")
	case input.ReorderLevel != nil && *input.ReorderLevel < 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reorder level must not be negative")
	case input.MaxStockLevel != nil && *input.MaxStockLevel <= 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max stock level must be positive")
	case input.UnitCost != nil && input.UnitCost.IsNegative():
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit cost must not be negative")
	}

	reorder := s.cfg.DefaultReorderLevel
	if input.ReorderLevel != nil {
		reorder = *input.ReorderLevel
	}

	var created *models.InventoryItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		warehouse, err := txRepo.FindWarehouse(ctx, input.WarehouseID)
		if err != nil {
			return mapLookup(err, "warehouse")
		}
		if !warehouse.IsActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "warehouse is inactive")
		}

		item := &models.InventoryItem{
			WarehouseID:    input.WarehouseID,
			ProductID:      input.ProductID,
			SKU:            sku,
			QuantityOnHand: input.InitialQuantity,
			ReorderLevel:   reorder,
			MaxStockLevel:  input.MaxStockLevel,
			UnitCost:       input.UnitCost,
			Location:       input.Location,
			BatchNumber:    input.BatchNumber,
			ExpiryDate:     input.ExpiryDate,
		}
		if err := txRepo.CreateItem(ctx, item); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "sku already exists in warehouse")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create inventory item")
		}

		if input.InitialQuantity > 0 {
			ref := enums.ReferenceManualAdd
			notes := "initial stock"
			movement := &models.InventoryMovement{
				InventoryItemID: item.ID,
				MovementType:    enums.MovementTypeIn,
				Quantity:        input.InitialQuantity,
				ReferenceType:   &ref,
				Notes:           &notes,
				PerformedBy:     input.PerformedBy,
			}
			if err := s.ledger.Append(ctx, tx, item, movement); err != nil {
				return err
			}
		}
		created = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) GetItem(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	item, err := s.repo.FindItem(ctx, id)
	if err != nil {
		return nil, mapLookup(err, "inventory item")
	}
	return item, nil
}

func (s *service) ListItems(ctx context.Context, filter ItemFilter) ([]models.InventoryItem, error) {
	items, err := s.repo.ListItems(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory items")
	}
	return items, nil
}

func (s *service) Alerts(ctx context.Context, filter ItemFilter) ([]Alert, error) {
	filter.LowStockOnly = false
	items, err := s.ListItems(ctx, filter)
	if err != nil {
		return nil, err
	}
	return DeriveAlerts(items, s.now().UTC(), s.cfg.ExpiringSoonWindow), nil
}

// Analytics serves a cached summary. Concurrent misses for the same scope
// share one computation.
func (s *service) Analytics(ctx context.Context, warehouseID *uuid.UUID) (*Analytics, error) {
	scope := "all"
	if warehouseID != nil {
		scope = warehouseID.String()
	}
	if s.cache == nil || s.cfg.AnalyticsCacheTTL <= 0 {
		return s.computeAnalytics(ctx, warehouseID)
	}

	key := s.cache.CacheKey("inventory", "analytics", scope)
	var cached Analytics
	err := s.cache.GetJSON(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, redis.ErrCacheMiss) {
		s.logg.Warn(s.logg.WithField(ctx, "cache_key", key), "analytics cache read failed: "+err.Error())
	}

	result, err, _ := s.group.Do(key, func() (any, error) {
		summary, err := s.computeAnalytics(ctx, warehouseID)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetJSON(ctx, key, summary, s.cfg.AnalyticsCacheTTL); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "cache_key", key), "analytics cache write failed: "+err.Error())
		}
		return summary, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Analytics), nil
}

func (s *service) computeAnalytics(ctx context.Context, warehouseID *uuid.UUID) (*Analytics, error) {
	items, err := s.ListItems(ctx, ItemFilter{WarehouseID: warehouseID})
	if err != nil {
		return nil, err
	}
	active, err := s.repo.CountActiveReservations(ctx, warehouseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count active reservations")
	}

	now := s.now().UTC()
	summary := &Analytics{
		TotalItems:         len(items),
		TotalStockValue:    decimal.Zero,
		ActiveReservations: active,
		GeneratedAt:        now,
	}
	for _, item := range items {
		available := item.Available()
		switch {
		case available <= 0:
			summary.OutOfStockItems++
		case available <= item.ReorderLevel:
			summary.LowStockItems++
		}
		if item.UnitCost != nil {
			summary.TotalStockValue = summary.TotalStockValue.Add(item.UnitCost.Mul(decimal.NewFromInt(int64(item.QuantityOnHand))))
		}
	}
	for _, alert := range DeriveAlerts(items, now, s.cfg.ExpiringSoonWindow) {
		if alert.Severity == enums.SeverityCritical {
			summary.CriticalAlerts++
		}
	}
	return summary, nil
}

func mapLookup(err error, entity string) error {
	return repo.MapLookupError(err, entity)
}
