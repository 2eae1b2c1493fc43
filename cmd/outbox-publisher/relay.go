package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/events"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
	"github.com/angelmondragon/farmlink-backend/pkg/metrics"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxStore interface {
	FetchUnpublished(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, cause error, terminal bool, at time.Time) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type deliveryGuard interface {
	Claim(ctx context.Context, publisher string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, publisher string, eventID uuid.UUID) error
}

// outcome is the metric label for what happened to one row.
type outcome string

const (
	outcomePublished outcome = "published"
	outcomeRetry     outcome = "retry"
	outcomeTerminal  outcome = "terminal"
)

type RelayParams struct {
	Outbox   config.OutboxConfig
	Logger   *logger.Logger
	DB       txRunner
	Sink     events.Sink
	Registry resolver
	// StoreFor binds the outbox repository to the batch transaction.
	StoreFor func(tx *gorm.DB) outboxStore
	Guard    deliveryGuard
	Metrics  *metrics.DomainMetrics
	Now      func() time.Time
}

// Relay moves committed outbox rows onto the event sink.
type Relay struct {
	logg     *logger.Logger
	db       txRunner
	sink     events.Sink
	registry resolver
	storeFor func(tx *gorm.DB) outboxStore
	guard    deliveryGuard
	metrics  *metrics.DomainMetrics
	now      func() time.Time

	batch       int
	maxAttempts int
	interval    time.Duration
}

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.Sink == nil:
		return nil, errors.New("event sink is required")
	case p.StoreFor == nil:
		return nil, errors.New("outbox repository is required")
	case p.Registry == nil:
		return nil, errors.New("event registry is required")
	}
	r := &Relay{
		logg:        p.Logger,
		db:          p.DB,
		sink:        p.Sink,
		registry:    p.Registry,
		storeFor:    p.StoreFor,
		guard:       p.Guard,
		metrics:     p.Metrics,
		now:         p.Now,
		batch:       orDefault(p.Outbox.BatchSize, defaultBatchSize),
		maxAttempts: orDefault(p.Outbox.MaxAttempts, defaultMaxAttempts),
		interval:    time.Duration(p.Outbox.PollIntervalMS) * time.Millisecond,
	}
	if r.interval <= 0 {
		r.interval = defaultPollInterval
	}
	if r.now == nil {
		r.now = func() time.Time { return time.Now().UTC() }
	}
	return r, nil
}

func orDefault(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// drain publishes one batch while the transaction holds the row locks. It
// reports how many rows it saw. One bad row never stops the rest.
func (r *Relay) drain(ctx context.Context) (int, error) {
	var seen int
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		store := r.storeFor(tx)
		rows, err := store.FetchUnpublished(ctx, r.batch)
		if err != nil {
			return fmt.Errorf("fetch outbox rows: %w", err)
		}
		seen = len(rows)
		for _, row := range rows {
			if err := r.deliver(ctx, store, row); err != nil {
				return err
			}
		}
		return nil
	})
	return seen, err
}

// deliver only fails when the row's state could not be written back.
func (r *Relay) deliver(ctx context.Context, store outboxStore, row models.OutboxEvent) error {
	ctx = r.logg.WithFields(ctx, map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    row.EventType,
		"aggregate_id":  row.AggregateID.String(),
		"attempt_count": row.AttemptCount,
		"sink":          r.sink.Name(),
	})

	resolved, err := r.registry.Resolve(row)
	if err != nil {
		return r.settle(ctx, store, row, outcomeTerminal, err)
	}
	ctx = r.logg.WithFields(ctx, map[string]any{"event_id": resolved.Envelope.EventID, "topic": resolved.Descriptor.Topic})

	if r.alreadyDelivered(ctx, row.ID) {
		r.logg.Info(ctx, "outbox.already_delivered")
		return r.settle(ctx, store, row, outcomePublished, nil)
	}

	err = r.publish(ctx, row, resolved)
	if err == nil {
		return r.settle(ctx, store, row, outcomePublished, nil)
	}
	if r.guard != nil {
		_ = r.guard.Release(ctx, r.sink.Name(), row.ID)
	}
	switch {
	case events.IsPermanent(err):
		return r.settle(ctx, store, row, outcomeTerminal, err)
	case row.AttemptCount+1 >= r.maxAttempts:
		return r.settle(ctx, store, row, outcomeTerminal, fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, err))
	default:
		return r.settle(ctx, store, row, outcomeRetry, err)
	}
}

// alreadyDelivered claims the row for this sink. A guard outage is logged
// and the publish goes ahead; consumers dedupe on event_id.
func (r *Relay) alreadyDelivered(ctx context.Context, id uuid.UUID) bool {
	if r.guard == nil {
		return false
	}
	dup, err := r.guard.Claim(ctx, r.sink.Name(), id)
	if err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "outbox.guard_unavailable")
		return false
	}
	return dup
}

func (r *Relay) settle(ctx context.Context, store outboxStore, row models.OutboxEvent, result outcome, cause error) error {
	var err error
	at := r.now()
	switch result {
	case outcomePublished:
		err = store.MarkPublished(ctx, row.ID, at)
	default:
		err = store.MarkFailed(ctx, row.ID, cause, result == outcomeTerminal, at)
		r.logg.Warn(r.logg.WithFields(ctx, map[string]any{"error": cause.Error(), "outcome": string(result)}), "outbox.publish_failed")
	}
	if err != nil {
		return fmt.Errorf("mark %s %s: %w", result, row.ID, err)
	}
	r.metrics.OutboxDelivery(string(row.EventType), string(result))
	if result == outcomePublished {
		r.logg.Info(ctx, "outbox.published")
	}
	return nil
}

func (r *Relay) publish(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	return r.sink.Publish(ctx, events.Message{
		Topic: resolved.Descriptor.Topic,
		Key:   row.AggregateID.String(),
		Value: row.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"created_at":     row.CreatedAt.Format(time.RFC3339Nano),
		},
	})
}
