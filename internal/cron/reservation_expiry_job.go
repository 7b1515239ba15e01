package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/stockhold-backend/pkg/logger"
)

const (
	defaultExpiryBatch  = 200
	maxExpiryBatchesRun = 20
)

type reservationExpirer interface {
	ExpireDue(ctx context.Context, now time.Time, limit int) (int, error)
}

// ReservationExpiryJobParams configure the reservation expiry sweep.
type ReservationExpiryJobParams struct {
	Logger       *logger.Logger
	Reservations reservationExpirer
	BatchSize    int
}

// NewReservationExpiryJob returns the job that releases held stock of ACTIVE
// reservations past their expiry.
func NewReservationExpiryJob(params ReservationExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reservations == nil {
		return nil, fmt.Errorf("reservation service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &reservationExpiryJob{
		logg:         params.Logger,
		reservations: params.Reservations,
		batch:        batch,
		now:          time.Now,
	}, nil
}

type reservationExpiryJob struct {
	logg         *logger.Logger
	reservations reservationExpirer
	batch        int
	now          func() time.Time
}

func (j *reservationExpiryJob) Name() string { return "reservation-expiry" }

// Run sweeps in batches until a batch comes back short. A batch with
// failures ends the run so the failing rows are retried next cycle.
func (j *reservationExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	total := 0
	batches := 0
	for batches < maxExpiryBatchesRun {
		expired, err := j.reservations.ExpireDue(ctx, now, j.batch)
		total += expired
		batches++
		if err != nil {
			j.logSummary(ctx, now, total, batches)
			return fmt.Errorf("expire reservations: %w", err)
		}
		if expired < j.batch {
			break
		}
	}
	j.logSummary(ctx, now, total, batches)
	return nil
}

func (j *reservationExpiryJob) logSummary(ctx context.Context, now time.Time, total, batches int) {
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"as_of":   now,
		"expired": total,
		"batches": batches,
	})
	j.logg.Info(logCtx, "reservation expiry sweep complete")
}
