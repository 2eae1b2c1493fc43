package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
)

// lastErrorLimit bounds what is kept in last_error.
const lastErrorLimit = 1024

// Repository reads and writes outbox_events.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx. A nil tx keeps the current handle.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Insert only runs on the caller's transaction.
func (r *Repository) Insert(tx *gorm.DB, row models.OutboxEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(&row).Error
}

func pending(q *gorm.DB) *gorm.DB {
	return q.Where("published_at IS NULL AND failed_at IS NULL")
}

// skipLocked makes concurrent relays take disjoint batches on Postgres.
// Other dialects run a single relay and get a plain select.
func skipLocked(q *gorm.DB) *gorm.DB {
	if q.Dialector == nil || q.Dialector.Name() != "postgres" {
		return q
	}
	return q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
}

// FetchUnpublished returns up to limit pending rows, oldest first. Call it
// inside a transaction so the row locks hold until the batch is settled.
func (r *Repository) FetchUnpublished(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	var rows []models.OutboxEvent
	err := r.db.WithContext(ctx).
		Scopes(pending, skipLocked).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.update(ctx, id, map[string]any{"published_at": at})
}

// MarkFailed bumps attempt_count and keeps the cause. A terminal failure
// also sets failed_at, which takes the row out of the pending set.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, cause error, terminal bool, at time.Time) error {
	changes := map[string]any{
		"attempt_count": gorm.Expr("attempt_count + ?", 1),
		"last_error":    describe(cause),
	}
	if terminal {
		changes["failed_at"] = at
	}
	return r.update(ctx, id, changes)
}

// DeletePublishedBefore removes delivered rows published before cutoff.
// Parked rows are kept for inspection.
func (r *Repository) DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("published_at < ?", cutoff).
		Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

func (r *Repository) update(ctx context.Context, id uuid.UUID, changes map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.OutboxEvent{ID: id}).
		Updates(changes).Error
}

func describe(cause error) string {
	if cause == nil {
		return "unknown error"
	}
	msg := cause.Error()
	if len(msg) > lastErrorLimit {
		return msg[:lastErrorLimit]
	}
	return msg
}
