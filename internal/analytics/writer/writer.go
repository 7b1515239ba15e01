package writer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/angelmondragon/stockhold-backend/internal/analytics/types"
	pkgbigquery "github.com/angelmondragon/stockhold-backend/pkg/bigquery"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second
)

// Config names the fact table and the retry budget for streaming inserts.
type Config struct {
	InventoryTable string
	RetryPolicy    RetryPolicy
}

// RetryPolicy bounds how often and how fast failed rows are resent.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = defaultInitialBackoff
	}
	if p.MaximumBackoff < p.InitialBackoff {
		p.MaximumBackoff = max(defaultMaximumBackoff, p.InitialBackoff)
	}
	return p
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// BigQueryWriter streams inventory_events rows. Writes are synchronous: a nil
// return means BigQuery accepted every row, so the caller may ack the source
// message. The event ID is the insert ID, which lets BigQuery drop rows that
// a redelivered message sends twice.
type BigQueryWriter struct {
	client tableInserter
	table  string
	retry  RetryPolicy
	sleep  func(context.Context, time.Duration) error
}

// New builds a writer on a shared BigQuery client.
func New(client *pkgbigquery.Client, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table := strings.TrimSpace(cfg.InventoryTable)
	if table == "" {
		return nil, errors.New("inventory events table is required")
	}
	return &BigQueryWriter{
		client: client,
		table:  table,
		retry:  cfg.RetryPolicy.withDefaults(),
		sleep:  sleepCtx,
	}, nil
}

// InsertInventoryEvent writes a single row.
func (w *BigQueryWriter) InsertInventoryEvent(ctx context.Context, row types.InventoryEventRow) error {
	return w.InsertInventoryEvents(ctx, []types.InventoryEventRow{row})
}

// InsertInventoryEvents writes rows, resending only the rows BigQuery failed
// with a transient error. Rows failed permanently are reported in a
// *RejectedRowsError once the retryable ones are settled.
func (w *BigQueryWriter) InsertInventoryEvents(ctx context.Context, rows []types.InventoryEventRow) error {
	pending := make([]int, len(rows))
	for i := range rows {
		pending[i] = i
	}
	rejected := &RejectedRowsError{}
	backoff := w.retry.InitialBackoff

	for attempt := 1; len(pending) > 0; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch := make([]any, len(pending))
		for i, idx := range pending {
			batch[i] = &cbigquery.StructSaver{Struct: &rows[idx], InsertID: rows[idx].EventID}
		}

		err := w.client.InsertRows(ctx, w.table, batch)
		if err == nil {
			break
		}

		retry, failed := classify(err, len(pending))
		next := make([]int, 0, len(retry))
		for _, pos := range retry {
			next = append(next, pending[pos])
		}
		for pos, cause := range failed {
			rejected.add(rows[pending[pos]].EventID, cause)
		}
		if len(next) == 0 {
			break
		}
		if attempt >= w.retry.MaxAttempts {
			return fmt.Errorf("insert %s: %d rows still failing after %d attempts: %w", w.table, len(next), attempt, err)
		}

		if err := w.sleep(ctx, backoff); err != nil {
			return err
		}
		backoff = min(backoff*2, w.retry.MaximumBackoff)
		pending = next
	}

	if len(rejected.Rows) > 0 {
		return rejected
	}
	return nil
}

// RejectedRowsError lists rows BigQuery refused for a non-transient reason,
// typically a schema mismatch.
type RejectedRowsError struct {
	Rows map[string]error
}

func (e *RejectedRowsError) add(eventID string, cause error) {
	if e.Rows == nil {
		e.Rows = map[string]error{}
	}
	e.Rows[eventID] = cause
}

func (e *RejectedRowsError) Error() string {
	ids := make([]string, 0, len(e.Rows))
	for id := range e.Rows {
		ids = append(ids, id)
	}
	return fmt.Sprintf("bigquery rejected %d rows: %s", len(ids), strings.Join(ids, ","))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
