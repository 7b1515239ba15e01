package movements

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
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
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (bool, error)
}

// Service records stock movements. Every operation writes the quantity change
// and its ledger row in one transaction.
type Service interface {
	inventory.StockLedger
	Record(ctx context.Context, input RecordInput) (*Result, error)
	Transfer(ctx context.Context, input TransferInput) (*TransferResult, error)
	CycleCount(ctx context.Context, input CycleCountInput) (*Result, error)
	Return(ctx context.Context, input ReturnInput) (*Result, error)
	Query(ctx context.Context, filter QueryFilter) ([]models.InventoryMovement, error)
}

// ServiceParams configure the movement service.
type ServiceParams struct {
	Repo      Repository
	Inventory inventory.Repository
	Tx        txRunner
	Outbox    outboxPublisher
	Metrics   *metrics.InventoryMetrics
	Logger    *logger.Logger
}

type service struct {
	repo      Repository
	inventory inventory.Repository
	tx        txRunner
	outbox    outboxPublisher
	metrics   *metrics.InventoryMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds a movement service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("movement repository required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:      params.Repo,
		inventory: params.Inventory,
		tx:        params.Tx,
		outbox:    params.Outbox,
		metrics:   params.Metrics,
		logg:      logg,
		now:       time.Now,
	}, nil
}

func (s *service) Record(ctx context.Context, input RecordInput) (*Result, error) {
	if input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if input.Type == enums.MovementTypeTransfer {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfers must name both items").
			WithDetails(map[string]any{"movement_type": "use the transfer operation"})
	}
	delta, err := signedDelta(input.Type, input.Quantity)
	if err != nil {
		return nil, err
	}
	if input.ReferenceType != nil && !input.ReferenceType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid reference type")
	}

	var result Result
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		item, err := s.inventory.WithTx(tx).ApplyOnHandDelta(ctx, input.ItemID, delta)
		if err != nil {
			return s.stockError(err, "record_"+strings.ToLower(string(input.Type)))
		}
		movement := &models.InventoryMovement{
			MovementType:  input.Type,
			Quantity:      input.Quantity,
			ReferenceType: input.ReferenceType,
			ReferenceID:   input.ReferenceID,
			Reason:        trimmed(input.Reason),
			Notes:         trimmed(input.Notes),
			PerformedBy:   input.PerformedBy,
		}
		if err := s.Append(ctx, tx, item, movement); err != nil {
			return err
		}
		if delta < 0 {
			if err := s.emitStockLow(ctx, tx, item); err != nil {
				return err
			}
		}
		result = Result{Movement: movement, Item: item}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *service) Transfer(ctx context.Context, input TransferInput) (*TransferResult, error) {
	switch {
	case input.FromItemID == uuid.Nil || input.ToItemID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source and destination items required")
	case input.FromItemID == input.ToItemID:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source and destination must differ")
	case input.Quantity <= 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var result TransferResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		invRepo := s.inventory.WithTx(tx)
		from, err := invRepo.FindItem(ctx, input.FromItemID)
		if err != nil {
			return repo.MapLookupError(err, "source item")
		}
		to, err := invRepo.FindItem(ctx, input.ToItemID)
		if err != nil {
			return repo.MapLookupError(err, "destination item")
		}
		if from.ProductID != to.ProductID {
			return pkgerrors.New(pkgerrors.CodeValidation, "transfer items must reference the same product")
		}

		// Rows are updated in id order so opposing transfers cannot deadlock.
		legs := []struct {
			id    uuid.UUID
			delta int
		}{
			{id: from.ID, delta: -input.Quantity},
			{id: to.ID, delta: input.Quantity},
		}
		if to.ID.String() < from.ID.String() {
			legs[0], legs[1] = legs[1], legs[0]
		}
		updated := make(map[uuid.UUID]*models.InventoryItem, 2)
		for _, leg := range legs {
			item, err := invRepo.ApplyOnHandDelta(ctx, leg.id, leg.delta)
			if err != nil {
				return s.stockError(err, "transfer")
			}
			updated[leg.id] = item
		}

		ref := enums.ReferenceTransfer
		outMovement := &models.InventoryMovement{
			MovementType:  enums.MovementTypeTransfer,
			Quantity:      input.Quantity,
			ReferenceType: &ref,
			ReferenceID:   &to.ID,
			Reason:        strPtr(reasonTransferOut),
			Notes:         trimmed(input.Notes),
			PerformedBy:   input.PerformedBy,
		}
		if err := s.Append(ctx, tx, updated[from.ID], outMovement); err != nil {
			return err
		}
		inMovement := &models.InventoryMovement{
			MovementType:  enums.MovementTypeTransfer,
			Quantity:      input.Quantity,
			ReferenceType: &ref,
			ReferenceID:   &from.ID,
			Reason:        strPtr(reasonTransferIn),
			Notes:         trimmed(input.Notes),
			PerformedBy:   input.PerformedBy,
		}
		if err := s.Append(ctx, tx, updated[to.ID], inMovement); err != nil {
			return err
		}
		if err := s.emitStockLow(ctx, tx, updated[from.ID]); err != nil {
			return err
		}
		result = TransferResult{
			Out: Result{Movement: outMovement, Item: updated[from.ID]},
			In:  Result{Movement: inMovement, Item: updated[to.ID]},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *service) CycleCount(ctx context.Context, input CycleCountInput) (*Result, error) {
	if input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if input.CountedQuantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "counted quantity must not be negative")
	}

	var result Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		invRepo := s.inventory.WithTx(tx)
		before, err := invRepo.FindItem(ctx, input.ItemID)
		if err != nil {
			return repo.MapLookupError(err, "inventory item")
		}
		expected := input.ExpectedVersion
		if expected == nil {
			expected = &before.Version
		}
		item, err := invRepo.SetOnHand(ctx, input.ItemID, input.CountedQuantity, expected, s.now())
		if err != nil {
			return s.stockError(err, "cycle_count")
		}
		result = Result{Item: item}

		variance := input.CountedQuantity - before.QuantityOnHand
		if variance == 0 {
			return nil
		}
		ref := enums.ReferenceCycleCount
		movement := &models.InventoryMovement{
			MovementType:  enums.MovementTypeAdjust,
			Quantity:      variance,
			ReferenceType: &ref,
			Reason:        strPtr("cycle_count"),
			Notes:         trimmed(input.Notes),
			PerformedBy:   input.PerformedBy,
		}
		if err := s.Append(ctx, tx, item, movement); err != nil {
			return err
		}
		if variance < 0 {
			if err := s.emitStockLow(ctx, tx, item); err != nil {
				return err
			}
		}
		result.Movement = movement
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *service) Return(ctx context.Context, input ReturnInput) (*Result, error) {
	if !input.Reason.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid return reason")
	}
	ref := enums.ReferenceReturn
	reason := string(input.Reason)
	return s.Record(ctx, RecordInput{
		ItemID:        input.ItemID,
		Type:          enums.MovementTypeOut,
		Quantity:      input.Quantity,
		ReferenceType: &ref,
		Reason:        &reason,
		Notes:         input.Notes,
		PerformedBy:   input.PerformedBy,
	})
}

func (s *service) Query(ctx context.Context, filter QueryFilter) ([]models.InventoryMovement, error) {
	if filter.From.IsZero() || filter.To.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "date range required")
	}
	if !filter.From.Before(filter.To) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "date range start must precede its end")
	}
	if filter.Type != nil && !filter.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid movement type")
	}
	filter.Limit = NormalizeLimit(filter.Limit)
	rows, err := s.repo.Query(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query movements")
	}
	return rows, nil
}

// Append writes movement for item inside tx and queues movement_recorded.
// The quantity change must already be applied to item.
func (s *service) Append(ctx context.Context, tx *gorm.DB, item *models.InventoryItem, movement *models.InventoryMovement) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if item == nil || movement == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "movement and item required")
	}
	now := s.now().UTC()
	if movement.ID == uuid.Nil {
		movement.ID = uuid.New()
	}
	movement.InventoryItemID = item.ID
	movement.CreatedAt = now
	movement.MovementNumber = MovementNumber(now, movement.ID)

	if err := s.repo.WithTx(tx).Insert(ctx, movement); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert movement")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventMovementRecorded,
		AggregateType: enums.AggregateInventoryItem,
		AggregateID:   item.ID,
		OccurredAt:    now,
		Data: payloads.MovementRecordedEvent{
			MovementID:      movement.ID,
			MovementNumber:  movement.MovementNumber,
			InventoryItemID: item.ID,
			WarehouseID:     item.WarehouseID,
			MovementType:    movement.MovementType,
			Quantity:        movement.Quantity,
			ReferenceType:   movement.ReferenceType,
			ReferenceID:     movement.ReferenceID,
			OnHandAfter:     item.QuantityOnHand,
			ReservedAfter:   item.QuantityReserved,
			RecordedAt:      now,
		},
	}
	if movement.PerformedBy != nil {
		event.Actor = &outbox.ActorRef{UserID: *movement.PerformedBy}
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit movement event")
	}
	s.metrics.MovementRecorded(string(movement.MovementType))
	return nil
}

func (s *service) emitStockLow(ctx context.Context, tx *gorm.DB, item *models.InventoryItem) error {
	event, low := inventory.StockLowEvent(item, s.now())
	if !low {
		return nil
	}
	if _, err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit stock low event")
	}
	return nil
}

// stockError keeps typed errors from the inventory store, maps CHECK
// violations to Conflict and wraps everything else as a dependency failure.
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

// MovementNumber renders the human readable ledger reference,
// MOV-YYYYMMDD-<16 hex digits of the id>.
func MovementNumber(at time.Time, id uuid.UUID) string {
	suffix := strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:movementNumberDigits])
	return "MOV-" + at.UTC().Format("20060102") + "-" + suffix
}

// NormalizeLimit applies the default and cap for movement queries.
func NormalizeLimit(limit int) int {
	if limit <= 0 || limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return limit
}

func signedDelta(kind enums.MovementType, qty int) (int, error) {
	if !kind.IsValid() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid movement type")
	}
	if qty == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be non-zero")
	}
	switch kind {
	case enums.MovementTypeIn:
		if qty < 0 {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		return qty, nil
	case enums.MovementTypeOut:
		if qty < 0 {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		return -qty, nil
	case enums.MovementTypeAdjust:
		return qty, nil
	default:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "movement type not recordable")
	}
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

func strPtr(value string) *string {
	return &value
}
