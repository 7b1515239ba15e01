package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold-backend/internal/repo"
	dbpkg "github.com/angelmondragon/stockhold-backend/pkg/db"
	"github.com/angelmondragon/stockhold-backend/pkg/db/models"
	"github.com/angelmondragon/stockhold-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockhold-backend/pkg/errors"
	"github.com/angelmondragon/stockhold-backend/pkg/logger"
	"github.com/angelmondragon/stockhold-backend/pkg/outbox"
	"github.com/angelmondragon/stockhold-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/stockhold-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// reservationCanceller releases every ACTIVE reservation held for an order
// inside the caller's transaction.
type reservationCanceller interface {
	CancelByOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actor *uuid.UUID) (int, error)
}

var errReviewExists = errors.New("review already exists")

// Service gates affiliate orders behind an admin review.
type Service interface {
	ProcessAffiliateOrder(ctx context.Context, input ProcessInput) (*ProcessResult, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Decide(ctx context.Context, input DecideInput) (*DecideResult, error)
}

// ServiceParams configure the review service.
type ServiceParams struct {
	Repo         Repository
	Tx           txRunner
	Outbox       outboxPublisher
	Reservations reservationCanceller
	Logger       *logger.Logger
}

type service struct {
	repo         Repository
	tx           txRunner
	outbox       outboxPublisher
	reservations reservationCanceller
	logg         *logger.Logger
	now          func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("review repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Reservations == nil {
		return nil, fmt.Errorf("reservation service required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:         params.Repo,
		tx:           params.Tx,
		outbox:       params.Outbox,
		reservations: params.Reservations,
		logg:         logg,
		now:          time.Now,
	}, nil
}

// ProcessAffiliateOrder opens a PENDING review and moves the order to
// ADMIN_REVIEW in one transaction. A repeated call returns the existing review.
func (s *service) ProcessAffiliateOrder(ctx context.Context, input ProcessInput) (*ProcessResult, error) {
	orderID, err := parseID("orderId", input.OrderID)
	if err != nil {
		return nil, err
	}
	affiliateID, err := parseID("affiliateStoreId", input.AffiliateStoreID)
	if err != nil {
		return nil, err
	}
	merchantID, err := parseID("merchantId", input.MerchantID)
	if err != nil {
		return nil, err
	}

	var result ProcessResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		existing, err := txRepo.FindReviewByOrder(ctx, orderID)
		if err == nil {
			result = ProcessResult{ReviewID: existing.ID}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order review")
		}

		order, err := txRepo.FindOrder(ctx, orderID)
		if err != nil {
			return repo.MapLookupError(err, "order")
		}
		if err := matchParties(order, affiliateID, merchantID); err != nil {
			return err
		}
		moved, err := txRepo.TransitionOrder(ctx, orderID, []enums.OrderStatus{enums.OrderStatusPending}, enums.OrderStatusAdminReview)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !moved {
			// A concurrent call may have opened the review after our first
			// lookup; its commit is what moved the order.
			if raced, err := txRepo.FindReviewByOrder(ctx, orderID); err == nil {
				result = ProcessResult{ReviewID: raced.ID}
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting review").
				WithDetails(map[string]any{"status": order.Status})
		}

		review := &models.AdminOrderReview{
			OrderID:          orderID,
			AffiliateStoreID: affiliateID,
			MerchantID:       merchantID,
			Status:           enums.ReviewStatusPending,
		}
		if err := txRepo.CreateReview(ctx, review); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return errReviewExists
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order review")
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderReviewRequested,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			OccurredAt:    s.now().UTC(),
			Data: payloads.OrderReviewRequestedEvent{
				ReviewID:         review.ID,
				OrderID:          orderID,
				AffiliateStoreID: affiliateID,
				MerchantID:       merchantID,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order_review_requested")
		}
		result = ProcessResult{ReviewID: review.ID, Created: true}
		return nil
	})
	if errors.Is(err, errReviewExists) {
		existing, findErr := s.repo.FindReviewByOrder(ctx, orderID)
		if findErr != nil {
			return nil, repo.MapLookupError(findErr, "order review")
		}
		return &ProcessResult{ReviewID: existing.ID}, nil
	}
	if err != nil {
		return nil, err
	}

	if result.Created {
		ctx = s.logg.WithFields(ctx, map[string]any{"order_id": orderID.String(), "review_id": result.ReviewID.String()})
		s.logg.Info(ctx, "affiliate order queued for admin review")
	}
	return &result, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid review status")
	}
	query := listParams{Status: params.Status, Limit: params.Limit}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.ListReviews(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order reviews")
	}
	items := make([]ReviewDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, NewReviewDTO(row))
	}
	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: items, Cursor: cursor}, nil
}

// Decide records an admin outcome on a PENDING review. Rejection cancels the
// order and releases its reservations in the same transaction.
func (s *service) Decide(ctx context.Context, input DecideInput) (*DecideResult, error) {
	if input.ReviewID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "review id required")
	}
	if !input.Decision.IsDecision() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid review decision").
			WithDetails(map[string]any{"decision": string(input.Decision)})
	}
	orderStatus := enums.OrderStatusConfirmed
	if input.Decision == enums.ReviewStatusRejected {
		orderStatus = enums.OrderStatusCanceled
	}

	var result DecideResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		review, err := txRepo.FindReview(ctx, input.ReviewID)
		if err != nil {
			return repo.MapLookupError(err, "order review")
		}
		if review.Status != enums.ReviewStatusPending {
			return decidedConflict(review.Status)
		}

		now := s.now().UTC()
		decided, err := txRepo.DecideReview(ctx, review.ID, decisionUpdate{
			Status:     input.Decision,
			AdminNotes: trimmed(input.AdminNotes),
			ReviewedBy: input.ReviewerID,
			ReviewedAt: now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order review")
		}
		if !decided {
			return decidedConflict("")
		}

		moved, err := txRepo.TransitionOrder(ctx, review.OrderID, []enums.OrderStatus{enums.OrderStatusAdminReview}, orderStatus)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not in admin review")
		}

		released := 0
		if input.Decision == enums.ReviewStatusRejected {
			released, err = s.reservations.CancelByOrder(ctx, tx, review.OrderID, input.ReviewerID)
			if err != nil {
				return err
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderReviewDecided,
			AggregateType: enums.AggregateOrder,
			AggregateID:   review.OrderID,
			OccurredAt:    now,
			Data: payloads.OrderReviewDecidedEvent{
				ReviewID:             review.ID,
				OrderID:              review.OrderID,
				Decision:             input.Decision,
				OrderStatus:          orderStatus,
				ReviewedBy:           input.ReviewerID,
				ReleasedReservations: released,
			},
		}
		if input.ReviewerID != nil && *input.ReviewerID != uuid.Nil {
			event.Actor = &outbox.ActorRef{UserID: *input.ReviewerID, Role: string(enums.UserRoleAdmin)}
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order_review_decided")
		}

		stored, err := txRepo.FindReview(ctx, review.ID)
		if err != nil {
			return repo.MapLookupError(err, "order review")
		}
		result = DecideResult{
			Review:               NewReviewDTO(*stored),
			OrderStatus:          orderStatus,
			ReleasedReservations: released,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"review_id": input.ReviewID.String(),
		"decision":  string(input.Decision),
		"released":  result.ReleasedReservations,
	})
	s.logg.Info(ctx, "order review decided")
	return &result, nil
}

func matchParties(order *models.Order, affiliateID, merchantID uuid.UUID) error {
	if order.AffiliateStoreID == nil || *order.AffiliateStoreID != affiliateID {
		return pkgerrors.New(pkgerrors.CodeValidation, "order does not belong to affiliate store").
			WithDetails(map[string]any{"field": "affiliateStoreId"})
	}
	if order.MerchantID == nil || *order.MerchantID != merchantID {
		return pkgerrors.New(pkgerrors.CodeValidation, "order does not belong to merchant").
			WithDetails(map[string]any{"field": "merchantId"})
	}
	return nil
}

func decidedConflict(status enums.ReviewStatus) error {
	err := pkgerrors.New(pkgerrors.CodeStateConflict, "order review already decided")
	if status != "" {
		err = err.WithDetails(map[string]any{"status": string(status)})
	}
	return err
}

func parseID(field, raw string) (uuid.UUID, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, field+" is required").
			WithDetails(map[string]any{"field": field})
	}
	id, err := uuid.Parse(value)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, field+" must be a valid uuid").
			WithDetails(map[string]any{"field": field})
	}
	return id, nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
