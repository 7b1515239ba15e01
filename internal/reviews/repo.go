package reviews

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

// Repository persists admin order reviews and the order status they gate.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	TransitionOrder(ctx context.Context, id uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus) (bool, error)
	CreateReview(ctx context.Context, review *models.AdminOrderReview) error
	FindReview(ctx context.Context, id uuid.UUID) (*models.AdminOrderReview, error)
	FindReviewByOrder(ctx context.Context, orderID uuid.UUID) (*models.AdminOrderReview, error)
	DecideReview(ctx context.Context, id uuid.UUID, decision decisionUpdate) (bool, error)
	ListReviews(ctx context.Context, params listParams) ([]models.AdminOrderReview, *pagination.Cursor, error)
}

type decisionUpdate struct {
	Status     enums.ReviewStatus
	AdminNotes *string
	ReviewedBy *uuid.UUID
	ReviewedAt time.Time
}

type listParams struct {
	Status *enums.ReviewStatus
	Limit  int
	Cursor *pagination.Cursor
}

type repository struct {
	repo.Base
	now func() time.Time
}

// NewRepository returns a review repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db), now: time.Now}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Base.WithTx(tx), now: r.now}
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.DB(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) TransitionOrder(ctx context.Context, id uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus) (bool, error) {
	res := r.DB(ctx).Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": r.now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CreateReview(ctx context.Context, review *models.AdminOrderReview) error {
	return r.DB(ctx).Create(review).Error
}

func (r *repository) FindReview(ctx context.Context, id uuid.UUID) (*models.AdminOrderReview, error) {
	var review models.AdminOrderReview
	if err := r.DB(ctx).Where("id = ?", id).First(&review).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *repository) FindReviewByOrder(ctx context.Context, orderID uuid.UUID) (*models.AdminOrderReview, error) {
	var review models.AdminOrderReview
	if err := r.DB(ctx).Where("order_id = ?", orderID).First(&review).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

// DecideReview stamps the decision only while the review is still PENDING.
func (r *repository) DecideReview(ctx context.Context, id uuid.UUID, decision decisionUpdate) (bool, error) {
	at := decision.ReviewedAt.UTC()
	res := r.DB(ctx).Model(&models.AdminOrderReview{}).
		Where("id = ? AND status = ?", id, enums.ReviewStatusPending).
		Updates(map[string]any{
			"status":      decision.Status,
			"admin_notes": decision.AdminNotes,
			"reviewed_by": decision.ReviewedBy,
			"reviewed_at": at,
			"updated_at":  at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListReviews(ctx context.Context, params listParams) ([]models.AdminOrderReview, *pagination.Cursor, error) {
	query := r.DB(ctx).Model(&models.AdminOrderReview{})
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var rows []models.AdminOrderReview
	if err := pagination.Scope(query, params.Cursor, params.Limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, params.Limit, func(row models.AdminOrderReview) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return page, next, nil
}
