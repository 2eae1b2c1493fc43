package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/farmlink-backend/pkg/logger"
	"github.com/angelmondragon/farmlink-backend/pkg/metrics"
)

const defaultInterval = 5 * time.Minute

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.JobMetrics
	// Interval between cycle starts. Zero means five minutes.
	Interval time.Duration
}

// Service runs every registered job once per interval. Only the replica
// holding the lock does any work in a given cycle.
type Service struct {
	logg     *logger.Logger
	jobs     *Registry
	lock     Lock
	metrics  *metrics.JobMetrics
	interval time.Duration
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger required")
	case p.Lock == nil:
		return nil, errors.New("lock required")
	}
	s := &Service{logg: p.Logger, jobs: p.Registry, lock: p.Lock, metrics: p.Metrics, interval: p.Interval}
	if s.jobs == nil {
		s.jobs = NewRegistry()
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	return s, nil
}

// Run starts a cycle right away and then on every tick until ctx ends. A
// failed cycle is logged; the next tick tries again.
func (s *Service) Run(ctx context.Context) error {
	tick := time.NewTicker(s.interval)
	defer tick.Stop()
	for {
		if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logg.Error(ctx, "cron.cycle_failed", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}

// RunOnce runs a single cycle. Job failures do not stop later jobs; they are
// combined into the returned error.
func (s *Service) RunOnce(ctx context.Context) error {
	return s.exclusive(ctx, func() error {
		var errs error
		for _, job := range s.jobs.Jobs() {
			if err := ctx.Err(); err != nil {
				return multierr.Append(errs, err)
			}
			errs = multierr.Append(errs, s.run(ctx, job))
		}
		return errs
	})
}

func (s *Service) exclusive(ctx context.Context, fn func() error) error {
	held, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !held {
		s.metrics.CycleSkipped()
		s.logg.Debug(ctx, "cron.cycle_skipped")
		return nil
	}
	defer func() {
		// The cycle context may already be cancelled; release regardless.
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "cron.lock_release_failed", err)
		}
	}()
	return fn()
}

func (s *Service) run(ctx context.Context, job Job) error {
	name := job.Name()
	ctx = s.logg.WithField(ctx, "job", name)

	began := time.Now()
	err := job.Run(ctx)
	took := time.Since(began)
	s.metrics.JobFinished(name, took, err, began.Add(took))

	ctx = s.logg.WithField(ctx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "cron.job_failed", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	s.logg.Info(ctx, "cron.job_done")
	return nil
}
