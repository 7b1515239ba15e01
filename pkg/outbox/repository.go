package outbox

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/stockhold-backend/pkg/db/models"
)

// Error text kept on outbox rows and dead letters is capped at this many bytes.
const maxErrorLen = 1024

var errTxRequired = errors.New("transaction required")

// Repository reads and writes outbox_events rows. Every write takes the
// caller's transaction so rows commit with the state change they describe.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// InsertTx stores event. With skipDuplicate set, a row colliding on
// (event_type, aggregate_id, dedupe_key) is dropped and InsertTx reports
// false instead of failing the transaction.
func (r *Repository) InsertTx(tx *gorm.DB, event *models.OutboxEvent, skipDuplicate bool) (bool, error) {
	if tx == nil {
		return false, errTxRequired
	}
	q := tx
	if skipDuplicate {
		q = q.Clauses(clause.OnConflict{DoNothing: true})
	}
	res := q.Create(event)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FetchUnpublishedForPublish returns the oldest pending rows that still have
// attempts left. On Postgres the rows are locked and rows held by another
// publisher are skipped.
func (r *Repository) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errTxRequired
	}
	q := tx.Where("published_at IS NULL")
	if maxAttempts > 0 {
		q = q.Where("attempt_count < ?", maxAttempts)
	}
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	var rows []models.OutboxEvent
	err := q.Order("created_at, id").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublishedTx(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	return r.update(tx, id, map[string]any{"published_at": at, "last_error": nil})
}

// MarkFailedTx records err and spends one attempt.
func (r *Repository) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	return r.update(tx, id, map[string]any{
		"last_error":    clip(err.Error()),
		"attempt_count": gorm.Expr("attempt_count + 1"),
	})
}

// MarkTerminalTx sets the attempt count to terminalAttempts so the row is
// never selected again.
func (r *Repository) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	return r.update(tx, id, map[string]any{"last_error": clip(err.Error()), "attempt_count": terminalAttempts})
}

func (r *Repository) update(tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	if tx == nil {
		return errTxRequired
	}
	return tx.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(fields).Error
}

// DeletePublishedBefore purges up to limit of the oldest rows created before
// cutoff that were either published or, when minAttempts is positive, gave
// up after minAttempts. Those already have a dead letter entry.
func (r *Repository) DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttempts, limit int) (int64, error) {
	if tx == nil {
		return 0, errTxRequired
	}
	done := tx.Where("published_at IS NOT NULL")
	if minAttempts > 0 {
		done = done.Or("attempt_count >= ?", minAttempts)
	}
	batch := tx.WithContext(ctx).Model(&models.OutboxEvent{}).
		Select("id").
		Where("created_at < ?", cutoff).
		Where(done).
		Order("created_at")
	if limit > 0 {
		batch = batch.Limit(limit)
	}
	res := tx.WithContext(ctx).Where("id IN (?)", batch).Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

// clip truncates s to maxErrorLen bytes without splitting a UTF-8 sequence.
func clip(s string) string {
	if len(s) <= maxErrorLen {
		return s
	}
	cut := maxErrorLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
