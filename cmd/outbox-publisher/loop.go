package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	maxBackoff   = 10 * time.Second
	jitterWindow = 250 * time.Millisecond
)

// Run polls until ctx is cancelled. A full batch is followed immediately by
// the next one; errors back off exponentially up to maxBackoff.
func (r *Relay) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{"database": r.db.Ping, r.sink.Name(): r.sink.Ping} {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	idle := retry.WithJitter(jitterWindow, retry.NewConstant(r.interval))
	failing := r.errorBackoff()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		seen, err := r.drain(ctx)
		var wait retry.Backoff
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox.batch_failed", err)
			wait = failing
		case seen >= r.batch:
			failing = r.errorBackoff()
			continue
		default:
			failing = r.errorBackoff()
			wait = idle
		}
		d, _ := wait.Next()
		if err := sleep(ctx, d); err != nil {
			return err
		}
	}
}

func (r *Relay) errorBackoff() retry.Backoff {
	return retry.WithCappedDuration(maxBackoff, retry.WithJitter(jitterWindow, retry.NewExponential(r.interval)))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
