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

type fakeExpirer struct {
	batches []int
	err     error
	calls   int
	nows    []time.Time
}

func (f *fakeExpirer) ExpirePending(_ context.Context, now time.Time, limit int) (int, error) {
	f.nows = append(f.nows, now)
	defer func() { f.calls++ }()
	if f.calls < len(f.batches) {
		return f.batches[f.calls], nil
	}
	return 0, f.err
}

func newExpiryJob(t *testing.T, svc pendingExpirer, batch int) *orderExpiryJob {
	t.Helper()
	job, err := NewOrderExpiryJob(OrderExpiryJobParams{Logger: logger.Nop(), Orders: svc, BatchSize: batch})
	require.NoError(t, err)
	return job.(*orderExpiryJob)
}

func TestOrderExpiryJobDrainsFullBatches(t *testing.T) {
	svc := &fakeExpirer{batches: []int{2, 2, 1}}
	job := newExpiryJob(t, svc, 2)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return fixed }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 3, svc.calls)
	for _, n := range svc.nows {
		assert.Equal(t, fixed, n)
	}
}

func TestOrderExpiryJobStopsAtBatchCap(t *testing.T) {
	batches := make([]int, maxExpiryBatches+5)
	for i := range batches {
		batches[i] = 1
	}
	svc := &fakeExpirer{batches: batches}
	job := newExpiryJob(t, svc, 1)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, maxExpiryBatches, svc.calls)
}

func TestOrderExpiryJobReturnsServiceError(t *testing.T) {
	svc := &fakeExpirer{err: errors.New("refund failed")}
	job := newExpiryJob(t, svc, 10)

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refund failed")
}
