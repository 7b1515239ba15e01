package reservations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold-backend/internal/repo"
	"github.com/angelmondragon/stockhold-backend/pkg/db/models"
	"github.com/angelmondragon/stockhold-backend/pkg/enums"
	"github.com/angelmondragon/stockhold-backend/pkg/pagination"
)

// Repository persists reservations. Status changes are compare-and-set on
// the current status so a reservation closes exactly once.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, reservation *models.InventoryReservation) error
	Find(ctx context.Context, id uuid.UUID) (*models.InventoryReservation, error)
	Transition(ctx context.Context, id uuid.UUID, from, to enums.ReservationStatus, at time.Time) (bool, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.InventoryReservation, error)
	ListActiveByOrder(ctx context.Context, orderID uuid.UUID) ([]models.InventoryReservation, error)
	List(ctx context.Context, params listParams) ([]models.InventoryReservation, *pagination.Cursor, error)
}

type listParams struct {
	Filter ListFilter
	Limit  int
	Cursor *pagination.Cursor
}

type repository struct {
	repo.Base
}

// NewRepository returns a reservation repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) Create(ctx context.Context, reservation *models.InventoryReservation) error {
	return r.DB(ctx).Create(reservation).Error
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.InventoryReservation, error) {
	var reservation models.InventoryReservation
	if err := r.DB(ctx).Where("id = ?", id).First(&reservation).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) Transition(ctx context.Context, id uuid.UUID, from, to enums.ReservationStatus, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": at.UTC(),
	}
	if to.IsTerminal() {
		updates["closed_at"] = at.UTC()
	}
	res := r.DB(ctx).Model(&models.InventoryReservation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.InventoryReservation, error) {
	var rows []models.InventoryReservation
	err := r.DB(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", enums.ReservationStatusActive, now.UTC()).
		Order("expires_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListActiveByOrder(ctx context.Context, orderID uuid.UUID) ([]models.InventoryReservation, error) {
	var rows []models.InventoryReservation
	err := r.DB(ctx).
		Where("order_id = ? AND status = ?", orderID, enums.ReservationStatusActive).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) List(ctx context.Context, params listParams) ([]models.InventoryReservation, *pagination.Cursor, error) {
	query := r.DB(ctx).Model(&models.InventoryReservation{})
	if params.Filter.ItemID != nil {
		query = query.Where("inventory_item_id = ?", *params.Filter.ItemID)
	}
	if params.Filter.OrderID != nil {
		query = query.Where("order_id = ?", *params.Filter.OrderID)
	}
	if params.Filter.Status != nil {
		query = query.Where("status = ?", *params.Filter.Status)
	}

	var rows []models.InventoryReservation
	if err := pagination.Scope(query, params.Cursor, params.Limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, params.Limit, func(row models.InventoryReservation) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return page, next, nil
}
