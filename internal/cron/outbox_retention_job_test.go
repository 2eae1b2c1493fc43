package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/farmlink-backend/pkg/logger"
)

type pruneFunc func(ctx context.Context, cutoff time.Time) (int64, error)

func (f pruneFunc) DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return f(ctx, cutoff)
}

func pruneJob(t *testing.T, fn pruneFunc, keep time.Duration) *outboxPruneJob {
	t.Helper()
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: logger.Nop(), Repository: fn, Retention: keep})
	require.NoError(t, err)
	require.IsType(t, &outboxPruneJob{}, job)
	return job.(*outboxPruneJob)
}

func TestOutboxRetentionCutoff(t *testing.T) {
	now := time.Date(2026, 2, 10, 6, 0, 0, 0, time.UTC)
	var seen []time.Time
	job := pruneJob(t, func(_ context.Context, cutoff time.Time) (int64, error) {
		seen = append(seen, cutoff)
		return 3, nil
	}, 48*time.Hour)
	job.clock = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []time.Time{now.Add(-48 * time.Hour)}, seen)
}

func TestOutboxRetentionDefaultsToOneWeek(t *testing.T) {
	job := pruneJob(t, func(context.Context, time.Time) (int64, error) { return 0, nil }, 0)
	assert.Equal(t, 7*24*time.Hour, job.keep)
	assert.Equal(t, "outbox-retention", job.Name())
}

func TestOutboxRetentionReportsFailure(t *testing.T) {
	boom := errors.New("boom")
	job := pruneJob(t, func(context.Context, time.Time) (int64, error) { return 0, boom }, time.Hour)

	err := job.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "prune published outbox rows")
}

func TestOutboxRetentionRequiresDependencies(t *testing.T) {
	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Repository: pruneFunc(nil)})
	assert.EqualError(t, err, "logger required")

	_, err = NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: logger.Nop()})
	assert.EqualError(t, err, "outbox repository required")
}
