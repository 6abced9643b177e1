package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"crosslink/internal/logging"
	"crosslink/internal/metrics"
)

// Options controls chunking and pacing.
type Options struct {
	Concurrency int
	RoundDelay  time.Duration
	// Phase labels logs and metrics, e.g. "titles" or "people".
	Phase   string
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Sleep replaces the inter-round wait; tests use it to observe delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Summary counts item outcomes. Skipped items were never started because
// the context ended first.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Rounds    int `json:"rounds"`
}

// Run processes items with work and returns the outcome counts.
func Run[T any](ctx context.Context, items []T, opts Options, work func(context.Context, T) error) Summary {
	summary := Summary{Total: len(items)}
	if len(items) == 0 {
		return summary
	}
	size := opts.Concurrency
	if size <= 0 {
		size = 1
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	logger := logging.WithContext(ctx, logging.NewComponentLogger(opts.Logger, "batch"))

	var mu sync.Mutex
	for start := 0; start < len(items); start += size {
		if ctx.Err() != nil {
			summary.Skipped = len(items) - start
			break
		}
		end := min(start+size, len(items))
		summary.Rounds++

		var g errgroup.Group
		for i := start; i < end; i++ {
			index, item := i, items[i]
			g.Go(func() error {
				err := runItem(ctx, item, work)
				opts.Metrics.BatchItem(opts.Phase, err == nil)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					summary.Failed++
					logging.WarnWithContext(logger, "batch item failed", "batch_item_failed",
						logging.String("phase", opts.Phase),
						logging.Int("index", index),
						logging.Error(err),
						logging.String(logging.FieldImpact, "item left for the next run"),
					)
					return nil
				}
				summary.Succeeded++
				return nil
			})
		}
		_ = g.Wait()

		if end < len(items) && opts.RoundDelay > 0 {
			if err := sleep(ctx, opts.RoundDelay); err != nil {
				summary.Skipped = len(items) - end
				break
			}
		}
	}

	logger.Info("batch complete",
		logging.String("phase", opts.Phase),
		logging.Int("total", summary.Total),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.Int("skipped", summary.Skipped),
		logging.Int("rounds", summary.Rounds),
	)
	return summary
}

func runItem[T any](ctx context.Context, item T, work func(context.Context, T) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return work(ctx, item)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
