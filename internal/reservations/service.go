package reservations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold-backend/internal/inventory"
	"github.com/angelmondragon/stockhold-backend/internal/repo"
	dbpkg "github.com/angelmondragon/stockhold-backend/pkg/db"
	"github.com/angelmondragon/stockhold-backend/pkg/db/models"
	"github.com/angelmondragon/stockhold-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockhold-backend/pkg/errors"
	"github.com/angelmondragon/stockhold-backend/pkg/logger"
	"github.com/angelmondragon/stockhold-backend/pkg/metrics"
	"github.com/angelmondragon/stockhold-backend/pkg/outbox"
	"github.com/angelmondragon/stockhold-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/stockhold-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (bool, error)
}

// Service owns the reservation lifecycle: ACTIVE to FULFILLED, CANCELLED or
// EXPIRED. Each transition moves item quantities in the same transaction.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*Result, error)
	Cancel(ctx context.Context, id uuid.UUID, actor *uuid.UUID) (*models.InventoryReservation, error)
	Fulfill(ctx context.Context, input FulfillInput) (*Result, error)
	ExpireDue(ctx context.Context, now time.Time, limit int) (int, error)
	CancelByOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actor *uuid.UUID) (int, error)
	Get(ctx context.Context, id uuid.UUID) (*models.InventoryReservation, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

// ServiceParams configure the reservation service.
type ServiceParams struct {
	Repo       Repository
	Inventory  inventory.Repository
	Ledger     inventory.StockLedger
	Tx         txRunner
	Outbox     outboxPublisher
	Metrics    *metrics.InventoryMetrics
	Logger     *logger.Logger
	DefaultTTL time.Duration
}

type service struct {
	repo       Repository
	inventory  inventory.Repository
	ledger     inventory.StockLedger
	tx         txRunner
	outbox     outboxPublisher
	metrics    *metrics.InventoryMetrics
	logg       *logger.Logger
	defaultTTL time.Duration
	now        func() time.Time
}

// NewService builds a reservation service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("reservation repository required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.DefaultTTL < 0 {
		return nil, fmt.Errorf("default ttl must not be negative")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:       params.Repo,
		inventory:  params.Inventory,
		ledger:     params.Ledger,
		tx:         params.Tx,
		outbox:     params.Outbox,
		metrics:    params.Metrics,
		logg:       logg,
		defaultTTL: params.DefaultTTL,
		now:        time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*Result, error) {
	if input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	now := s.now().UTC()
	expiresAt := input.ExpiresAt
	if expiresAt != nil {
		if !expiresAt.After(now) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "expires_at must be in the future")
		}
		utc := expiresAt.UTC()
		expiresAt = &utc
	} else if s.defaultTTL > 0 {
		at := now.Add(s.defaultTTL)
		expiresAt = &at
	}

	var result Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		item, err := s.inventory.WithTx(tx).Reserve(ctx, input.ItemID, input.Quantity)
		if err != nil {
			return s.stockError(err, "reserve")
		}

		reservation := &models.InventoryReservation{
			InventoryItemID:  item.ID,
			OrderID:          input.OrderID,
			ReservedQuantity: input.Quantity,
			Status:           enums.ReservationStatusActive,
			ExpiresAt:        expiresAt,
			CreatedBy:        input.CreatedBy,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.repo.WithTx(tx).Create(ctx, reservation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reservation")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventReservationCreated,
			AggregateType: enums.AggregateInventoryReservation,
			AggregateID:   reservation.ID,
			Actor:         actorRef(input.CreatedBy),
			OccurredAt:    now,
			Data: payloads.ReservationCreatedEvent{
				ReservationID:   reservation.ID,
				InventoryItemID: item.ID,
				WarehouseID:     item.WarehouseID,
				OrderID:         reservation.OrderID,
				Quantity:        reservation.ReservedQuantity,
				ExpiresAt:       reservation.ExpiresAt,
				AvailableAfter:  item.Available(),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit reservation event")
		}
		if low, ok := inventory.StockLowEvent(item, now); ok {
			if _, err := s.outbox.EmitIfNotExists(ctx, tx, low); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit stock low event")
			}
		}

		result = Result{Reservation: reservation, Item: item}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ReservationCreated(result.Item.WarehouseID.String())
	return &result, nil
}

// Cancel releases an ACTIVE reservation. Cancelling a closed reservation is a
// no-op that returns it unchanged.
func (s *service) Cancel(ctx context.Context, id uuid.UUID, actor *uuid.UUID) (*models.InventoryReservation, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}
	var current *models.InventoryReservation
	closed := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		reservation, err := s.repo.WithTx(tx).Find(ctx, id)
		if err != nil {
			return repo.MapLookupError(err, "reservation")
		}
		if reservation.Status.IsTerminal() {
			current = reservation
			return nil
		}
		closed, err = s.close(ctx, tx, reservation, enums.ReservationStatusCancelled, actor)
		if err != nil {
			return err
		}
		current, err = s.repo.WithTx(tx).Find(ctx, id)
		return repo.MapLookupError(err, "reservation")
	})
	if err != nil {
		return nil, err
	}
	if closed {
		s.metrics.ReservationClosed(string(enums.ReservationStatusCancelled))
	}
	return current, nil
}

// Fulfill consumes the held stock and appends the OUT movement. A second
// fulfill is a no-op; fulfilling a cancelled or expired reservation is a
// state conflict.
func (s *service) Fulfill(ctx context.Context, input FulfillInput) (*Result, error) {
	if input.ReservationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}
	var result Result
	fulfilled := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		resRepo := s.repo.WithTx(tx)
		reservation, err := resRepo.Find(ctx, input.ReservationID)
		if err != nil {
			return repo.MapLookupError(err, "reservation")
		}
		now := s.now().UTC()
		switch {
		case reservation.Status == enums.ReservationStatusFulfilled:
			result.Reservation = reservation
			return nil
		case reservation.Status.IsTerminal():
			return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation is "+string(reservation.Status)).
				WithDetails(map[string]any{"status": reservation.Status})
		case reservation.ExpiresAt != nil && !reservation.ExpiresAt.After(now):
			return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation has expired")
		}

		ok, err := resRepo.Transition(ctx, reservation.ID, enums.ReservationStatusActive, enums.ReservationStatusFulfilled, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update reservation status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation closed concurrently")
		}

		item, err := s.inventory.WithTx(tx).Consume(ctx, reservation.InventoryItemID, reservation.ReservedQuantity)
		if err != nil {
			return s.stockError(err, "fulfill")
		}

		refType := enums.ReferenceReservation
		refID := reservation.ID
		if reservation.OrderID != nil {
			refType = enums.ReferenceOrder
			refID = *reservation.OrderID
		}
		movement := &models.InventoryMovement{
			MovementType:  enums.MovementTypeOut,
			Quantity:      reservation.ReservedQuantity,
			ReferenceType: &refType,
			ReferenceID:   &refID,
			Notes:         input.Notes,
			PerformedBy:   input.PerformedBy,
		}
		if err := s.ledger.Append(ctx, tx, item, movement); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventReservationFulfilled,
			AggregateType: enums.AggregateInventoryReservation,
			AggregateID:   reservation.ID,
			Actor:         actorRef(input.PerformedBy),
			OccurredAt:    now,
			Data: payloads.ReservationFulfilledEvent{
				ReservationID:   reservation.ID,
				InventoryItemID: item.ID,
				OrderID:         reservation.OrderID,
				Quantity:        reservation.ReservedQuantity,
				MovementID:      movement.ID,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit reservation event")
		}
		if low, ok := inventory.StockLowEvent(item, now); ok {
			if _, err := s.outbox.EmitIfNotExists(ctx, tx, low); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit stock low event")
			}
		}

		updated, err := resRepo.Find(ctx, reservation.ID)
		if err != nil {
			return repo.MapLookupError(err, "reservation")
		}
		result = Result{Reservation: updated, Item: item, Movement: movement}
		fulfilled = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if fulfilled {
		s.metrics.ReservationClosed(string(enums.ReservationStatusFulfilled))
	}
	return &result, nil
}

// ExpireDue closes up to limit ACTIVE reservations whose expiry has passed,
// one transaction per reservation. Failures are collected and the sweep
// continues.
func (s *service) ExpireDue(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "limit must be positive")
	}
	due, err := s.repo.ListDue(ctx, now, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list due reservations")
	}

	expired := 0
	var errs error
	for i := range due {
		if err := ctx.Err(); err != nil {
			return expired, multierr.Append(errs, err)
		}
		reservation := due[i]
		var closed bool
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			var cerr error
			closed, cerr = s.close(ctx, tx, &reservation, enums.ReservationStatusExpired, nil)
			return cerr
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire reservation %s: %w", reservation.ID, err))
			continue
		}
		if closed {
			expired++
			s.metrics.ReservationClosed(string(enums.ReservationStatusExpired))
		}
	}
	return expired, errs
}

// CancelByOrder cancels every ACTIVE reservation held for orderID inside the
// caller's transaction.
func (s *service) CancelByOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actor *uuid.UUID) (int, error) {
	if tx == nil {
		return 0, errors.New("transaction required")
	}
	if orderID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	active, err := s.repo.WithTx(tx).ListActiveByOrder(ctx, orderID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order reservations")
	}
	cancelled := 0
	for i := range active {
		closed, err := s.close(ctx, tx, &active[i], enums.ReservationStatusCancelled, actor)
		if err != nil {
			return cancelled, err
		}
		if closed {
			cancelled++
			s.metrics.ReservationClosed(string(enums.ReservationStatusCancelled))
		}
	}
	return cancelled, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.InventoryReservation, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}
	reservation, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, repo.MapLookupError(err, "reservation")
	}
	return reservation, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Filter.Status != nil && !params.Filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid reservation status")
	}
	query := listParams{Filter: params.Filter, Limit: params.Limit}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reservations")
	}
	items := make([]ReservationDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, NewReservationDTO(row))
	}
	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: items, Cursor: cursor}, nil
}

// close moves an ACTIVE reservation to a releasing terminal status and
// returns its quantity to the item. It reports false when another writer
// closed the reservation first.
func (s *service) close(ctx context.Context, tx *gorm.DB, reservation *models.InventoryReservation, to enums.ReservationStatus, actor *uuid.UUID) (bool, error) {
	now := s.now().UTC()
	ok, err := s.repo.WithTx(tx).Transition(ctx, reservation.ID, enums.ReservationStatusActive, to, now)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update reservation status")
	}
	if !ok {
		return false, nil
	}

	item, err := s.inventory.WithTx(tx).Release(ctx, reservation.InventoryItemID, reservation.ReservedQuantity)
	if err != nil {
		return false, s.stockError(err, "release")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventReservationReleased,
		AggregateType: enums.AggregateInventoryReservation,
		AggregateID:   reservation.ID,
		Actor:         actorRef(actor),
		OccurredAt:    now,
		Data: payloads.ReservationReleasedEvent{
			ReservationID:   reservation.ID,
			InventoryItemID: item.ID,
			OrderID:         reservation.OrderID,
			Quantity:        reservation.ReservedQuantity,
			Status:          to,
			AvailableAfter:  item.Available(),
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit reservation event")
	}
	return true, nil
}

func (s *service) stockError(err error, operation string) error {
	if typed := pkgerrors.As(err); typed != nil {
		if typed.Code() == pkgerrors.CodeConflict {
			s.metrics.StockConflict(operation)
		}
		return err
	}
	if dbpkg.IsCheckViolation(err, "") {
		s.metrics.StockConflict(operation)
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "stock insufficient")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update inventory item")
}

func actorRef(userID *uuid.UUID) *outbox.ActorRef {
	if userID == nil || *userID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: *userID}
}
