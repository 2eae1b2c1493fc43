package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/farmlink-backend/pkg/logger"
)

const (
	defaultExpiryBatch = 100
	maxExpiryBatches   = 20
)

type pendingExpirer interface {
	ExpirePending(ctx context.Context, now time.Time, limit int) (int, error)
}

type OrderExpiryJobParams struct {
	Logger    *logger.Logger
	Orders    pendingExpirer
	BatchSize int
}

// NewOrderExpiryJob cancels PENDING orders the farmer never answered. Refunds
// and restocking happen inside the order service.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &orderExpiryJob{
		logg:  params.Logger,
		svc:   params.Orders,
		batch: batch,
		now:   time.Now,
	}, nil
}

type orderExpiryJob struct {
	logg  *logger.Logger
	svc   pendingExpirer
	batch int
	now   func() time.Time
}

func (j *orderExpiryJob) Name() string { return "order-expiry" }

// Run drains stale orders batch by batch. A short batch means nothing is left;
// the batch cap stops a cycle from spinning on rows that keep failing.
func (j *orderExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	total := 0
	for i := 0; i < maxExpiryBatches; i++ {
		n, err := j.svc.ExpirePending(ctx, now, j.batch)
		total += n
		if err != nil {
			j.logg.Info(j.logg.WithField(ctx, "expired", total), "order expiry stopped on error")
			return fmt.Errorf("expire pending orders: %w", err)
		}
		if n < j.batch {
			break
		}
	}
	j.logg.Info(j.logg.WithField(ctx, "expired", total), "order expiry complete")
	return nil
}
