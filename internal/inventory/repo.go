package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold-backend/internal/repo"
	"github.com/angelmondragon/stockhold-backend/pkg/db/models"
	"github.com/angelmondragon/stockhold-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockhold-backend/pkg/errors"
)

// Repository is the only code path that mutates item quantities. Each
// mutation is one conditional UPDATE whose WHERE clause carries the stock
// invariant, so concurrent writers cannot both pass the guard.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateWarehouse(ctx context.Context, warehouse *models.Warehouse) error
	FindWarehouse(ctx context.Context, id uuid.UUID) (*models.Warehouse, error)
	ListWarehouses(ctx context.Context, includeInactive bool) ([]models.Warehouse, error)
	CreateItem(ctx context.Context, item *models.InventoryItem) error
	FindItem(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]models.InventoryItem, error)
	CountActiveReservations(ctx context.Context, warehouseID *uuid.UUID) (int64, error)
	Reserve(ctx context.Context, id uuid.UUID, qty int) (*models.InventoryItem, error)
	Release(ctx context.Context, id uuid.UUID, qty int) (*models.InventoryItem, error)
	Consume(ctx context.Context, id uuid.UUID, qty int) (*models.InventoryItem, error)
	ApplyOnHandDelta(ctx context.Context, id uuid.UUID, delta int) (*models.InventoryItem, error)
	SetOnHand(ctx context.Context, id uuid.UUID, counted int, expectedVersion *int64, countedAt time.Time) (*models.InventoryItem, error)
}

type repository struct {
	repo.Base
	now func() time.Time
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db), now: time.Now}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Base.WithTx(tx), now: r.now}
}

func (r *repository) CreateWarehouse(ctx context.Context, warehouse *models.Warehouse) error {
	return r.DB(ctx).Create(warehouse).Error
}

func (r *repository) FindWarehouse(ctx context.Context, id uuid.UUID) (*models.Warehouse, error) {
	var warehouse models.Warehouse
	if err := r.DB(ctx).Where("id = ?", id).First(&warehouse).Error; err != nil {
		return nil, err
	}
	return &warehouse, nil
}

func (r *repository) ListWarehouses(ctx context.Context, includeInactive bool) ([]models.Warehouse, error) {
	q := r.DB(ctx).Order("code ASC")
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	var warehouses []models.Warehouse
	if err := q.Find(&warehouses).Error; err != nil {
		return nil, err
	}
	return warehouses, nil
}

func (r *repository) CreateItem(ctx context.Context, item *models.InventoryItem) error {
	return r.DB(ctx).Create(item).Error
}

func (r *repository) FindItem(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := r.DB(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) ListItems(ctx context.Context, filter ItemFilter) ([]models.InventoryItem, error) {
	q := r.DB(ctx).Model(&models.InventoryItem{})
	if filter.WarehouseID != nil {
		q = q.Where("warehouse_id = ?", *filter.WarehouseID)
	}
	if filter.ProductID != nil {
		q = q.Where("product_id = ?", *filter.ProductID)
	}
	if filter.LowStockOnly {
		q = q.Where("quantity_on_hand - quantity_reserved <= reorder_level")
	}
	var items []models.InventoryItem
	if err := q.Order("sku ASC").Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) CountActiveReservations(ctx context.Context, warehouseID *uuid.UUID) (int64, error) {
	q := r.DB(ctx).Model(&models.InventoryReservation{}).
		Where("inventory_reservations.status = ?", enums.ReservationStatusActive)
	if warehouseID != nil {
		q = q.Joins("JOIN inventory_items ON inventory_items.id = inventory_reservations.inventory_item_id").
			Where("inventory_items.warehouse_id = ?", *warehouseID)
	}
	var count int64
	err := q.Count(&count).Error
	return count, err
}

func (r *repository) Reserve(ctx context.Context, id uuid.UUID, qty int) (*models.InventoryItem, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	affected, err := r.guardedUpdate(ctx, id,
		"quantity_on_hand - quantity_reserved >= ?", []any{qty},
		map[string]any{"quantity_reserved": gorm.Expr("quantity_reserved + ?", qty)},
	)
	if err != nil {
		return nil, err
	}
	return r.resolve(ctx, id, affected, func(item *models.InventoryItem) error {
		return insufficientStock(item, qty, "stock insufficient")
	})
}

func (r *repository) Release(ctx context.Context, id uuid.UUID, qty int) (*models.InventoryItem, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	affected, err := r.guardedUpdate(ctx, id,
		"quantity_reserved >= ?", []any{qty},
		map[string]any{"quantity_reserved": gorm.Expr("quantity_reserved - ?", qty)},
	)
	if err != nil {
		return nil, err
	}
	return r.resolve(ctx, id, affected, func(item *models.InventoryItem) error {
		return pkgerrors.New(pkgerrors.CodeConflict, "reserved quantity below release amount").
			WithDetails(map[string]any{"reserved": item.QuantityReserved, "requested": qty})
	})
}

func (r *repository) Consume(ctx context.Context, id uuid.UUID, qty int) (*models.InventoryItem, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	affected, err := r.guardedUpdate(ctx, id,
		"quantity_reserved >= ? AND quantity_on_hand >= ?", []any{qty, qty},
		map[string]any{
			"quantity_on_hand":  gorm.Expr("quantity_on_hand - ?", qty),
			"quantity_reserved": gorm.Expr("quantity_reserved - ?", qty),
		},
	)
	if err != nil {
		return nil, err
	}
	return r.resolve(ctx, id, affected, func(item *models.InventoryItem) error {
		return pkgerrors.New(pkgerrors.CodeConflict, "reserved stock below fulfillment amount").
			WithDetails(map[string]any{"reserved": item.QuantityReserved, "on_hand": item.QuantityOnHand, "requested": qty})
	})
}

func (r *repository) ApplyOnHandDelta(ctx context.Context, id uuid.UUID, delta int) (*models.InventoryItem, error) {
	if delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity delta must be non-zero")
	}
	affected, err := r.guardedUpdate(ctx, id,
		"quantity_on_hand + ? >= quantity_reserved", []any{delta},
		map[string]any{"quantity_on_hand": gorm.Expr("quantity_on_hand + ?", delta)},
	)
	if err != nil {
		return nil, err
	}
	return r.resolve(ctx, id, affected, func(item *models.InventoryItem) error {
		return insufficientStock(item, -delta, "stock insufficient")
	})
}

func (r *repository) SetOnHand(ctx context.Context, id uuid.UUID, counted int, expectedVersion *int64, countedAt time.Time) (*models.InventoryItem, error) {
	if counted < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "counted quantity must not be negative")
	}
	where := "quantity_reserved <= ?"
	args := []any{counted}
	if expectedVersion != nil {
		where += " AND version = ?"
		args = append(args, *expectedVersion)
	}
	affected, err := r.guardedUpdate(ctx, id, where, args, map[string]any{
		"quantity_on_hand": counted,
		"last_counted_at":  countedAt.UTC(),
	})
	if err != nil {
		return nil, err
	}
	return r.resolve(ctx, id, affected, func(item *models.InventoryItem) error {
		if counted < item.QuantityReserved || expectedVersion == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "counted quantity below reserved stock").
				WithDetails(map[string]any{"reserved": item.QuantityReserved, "counted": counted})
		}
		return pkgerrors.New(pkgerrors.CodeConflict, "item changed since count started").
			WithDetails(map[string]any{"expected_version": *expectedVersion, "current_version": item.Version})
	})
}

// guardedUpdate applies updates to one item when guard holds and bumps the
// concurrency token.
func (r *repository) guardedUpdate(ctx context.Context, id uuid.UUID, guard string, args []any, updates map[string]any) (int64, error) {
	updates["version"] = gorm.Expr("version + 1")
	updates["updated_at"] = r.now().UTC()
	res := r.DB(ctx).Model(&models.InventoryItem{}).
		Where("id = ?", id).
		Where(guard, args...).
		Updates(updates)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// resolve re-reads the item after a guarded update. Zero affected rows means
// either the item is missing or the guard rejected the change.
func (r *repository) resolve(ctx context.Context, id uuid.UUID, affected int64, rejected func(*models.InventoryItem) error) (*models.InventoryItem, error) {
	item, err := r.FindItem(ctx, id)
	if err != nil {
		return nil, repo.MapLookupError(err, "inventory item")
	}
	if affected == 0 {
		return nil, rejected(item)
	}
	return item, nil
}

func insufficientStock(item *models.InventoryItem, requested int, message string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, message).WithDetails(StockShortage{
		Available: item.Available(),
		Requested: requested,
	})
}
