package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockhold-backend/internal/inventory"
	"github.com/angelmondragon/stockhold-backend/pkg/db/models"
	"github.com/angelmondragon/stockhold-backend/pkg/logger"
	"github.com/angelmondragon/stockhold-backend/pkg/outbox"
)

type lowStockLister interface {
	ListItems(ctx context.Context, filter inventory.ItemFilter) ([]models.InventoryItem, error)
}

type dedupedEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (bool, error)
}

// StockAlertJobParams configure the low stock scan.
type StockAlertJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Inventory lowStockLister
	Outbox    dedupedEmitter
}

// NewStockAlertJob returns the job that queues stock_low for every item at or
// below its reorder level, at most once per item per UTC day.
func NewStockAlertJob(params StockAlertJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &stockAlertJob{
		logg:      params.Logger,
		db:        params.DB,
		inventory: params.Inventory,
		outbox:    params.Outbox,
		now:       time.Now,
	}, nil
}

type stockAlertJob struct {
	logg      *logger.Logger
	db        txRunner
	inventory lowStockLister
	outbox    dedupedEmitter
	now       func() time.Time
}

func (j *stockAlertJob) Name() string { return "stock-alerts" }

func (j *stockAlertJob) Run(ctx context.Context) error {
	items, err := j.inventory.ListItems(ctx, inventory.ItemFilter{LowStockOnly: true})
	if err != nil {
		return fmt.Errorf("list low stock items: %w", err)
	}
	now := j.now().UTC()
	queued := 0
	var errs error
	for i := range items {
		event, ok := inventory.StockLowEvent(&items[i], now)
		if !ok {
			continue
		}
		var inserted bool
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			var emitErr error
			inserted, emitErr = j.outbox.EmitIfNotExists(ctx, tx, event)
			return emitErr
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("queue stock_low for %s: %w", items[i].SKU, err))
			continue
		}
		if inserted {
			queued++
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"low_stock_items": len(items),
		"queued":          queued,
	})
	j.logg.Info(logCtx, "stock alert scan complete")
	return errs
}
