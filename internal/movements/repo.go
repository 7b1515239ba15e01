package movements

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold-backend/internal/repo"
	"github.com/angelmondragon/stockhold-backend/pkg/db/models"
)

// Repository persists ledger rows. Movements are append-only, so it has no
// update or delete path.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, movement *models.InventoryMovement) error
	Query(ctx context.Context, filter QueryFilter) ([]models.InventoryMovement, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a movement repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) Insert(ctx context.Context, movement *models.InventoryMovement) error {
	return r.DB(ctx).Create(movement).Error
}

// Query returns movements in [From, To), newest first.
func (r *repository) Query(ctx context.Context, filter QueryFilter) ([]models.InventoryMovement, error) {
	q := r.DB(ctx).
		Where("created_at >= ? AND created_at < ?", filter.From.UTC(), filter.To.UTC())
	if filter.ItemID != nil {
		q = q.Where("inventory_item_id = ?", *filter.ItemID)
	}
	if filter.Type != nil {
		q = q.Where("movement_type = ?", *filter.Type)
	}
	var rows []models.InventoryMovement
	err := q.Order("created_at DESC").
		Order("id DESC").
		Limit(filter.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
