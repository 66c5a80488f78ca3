package worker

import (
	"context"
	"time"
)

// Run polls the queues until ctx is canceled. It steps again immediately while
// work is being claimed, sleeps for the poll interval when idle and backs off
// when the store is failing. Queue depth gauges refresh every StatsInterval.
func (w *Worker) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	interval := w.pollInterval
	backoff := interval
	var nextStats time.Time

	for {
		select {
		case <-ctx.Done():
			w.logg.Info(ctx, "worker context canceled")
			return ctx.Err()
		default:
		}

		if now := w.now(); !now.Before(nextStats) {
			w.RefreshDepth(ctx)
			nextStats = now.Add(w.statsInterval)
		}

		result, err := w.Step(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logg.Error(ctx, "worker step error", err)
			backoff = nextBackoff(backoff, interval, maxPollBackoff)
			if err := sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = interval

		if result.Claimed > 0 {
			continue
		}

		if err := sleep(ctx, withJitter(interval)); err != nil {
			return err
		}
	}
}

// RefreshDepth publishes the current per-queue counts to the depth gauges.
func (w *Worker) RefreshDepth(ctx context.Context) {
	stats, err := w.store.GetQueueStats(ctx, "")
	if err != nil {
		w.logg.Warn(w.logg.WithField(ctx, "error", err.Error()), "queue stats refresh failed")
		return
	}
	for name, s := range stats {
		w.metrics.SetDepth(name, s.Gauges())
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
