package cron

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/farmlink-backend/pkg/logger"
)

const defaultOutboxRetention = 7 * 24 * time.Hour

type publishedPruner interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	Repository publishedPruner
	// Retention is how long published rows are kept. Zero means one week.
	Retention time.Duration
}

type outboxPruneJob struct {
	logg   *logger.Logger
	pruner publishedPruner
	keep   time.Duration
	clock  func() time.Time
}

// NewOutboxRetentionJob prunes outbox rows that were already delivered.
// Pending and dead-lettered rows are never touched.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	keep := params.Retention
	if keep <= 0 {
		keep = defaultOutboxRetention
	}
	return &outboxPruneJob{logg: params.Logger, pruner: params.Repository, keep: keep, clock: time.Now}, nil
}

func (j *outboxPruneJob) Name() string { return "outbox-retention" }

func (j *outboxPruneJob) cutoff() time.Time {
	return j.clock().UTC().Add(-j.keep)
}

func (j *outboxPruneJob) Run(ctx context.Context) error {
	before := j.cutoff()
	n, err := j.pruner.DeletePublishedBefore(ctx, before)
	if err != nil {
		return errors.Join(errors.New("prune published outbox rows"), err)
	}
	if n > 0 {
		ctx = j.logg.WithFields(ctx, map[string]any{"published_before": before, "pruned": n})
		j.logg.Info(ctx, "outbox.pruned")
	}
	return nil
}
