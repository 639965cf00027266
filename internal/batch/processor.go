package batch

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Options configures a batch run.
type Options struct {
	Size            int
	MaxRetries      int
	RetryBackoff    time.Duration
	InterBatchDelay time.Duration
}

// FailedBatch records a batch that exhausted its retries and was skipped.
type FailedBatch struct {
	Index    int
	Size     int
	Attempts int
	Err      error
}

// Result summarizes a batch run. Partial failure does not abort the run;
// the caller decides what skipped batches mean.
type Result struct {
	Batches   int
	Succeeded int
	Failed    []FailedBatch
}

// Process splits items into fixed-size batches and applies fn to each, with
// bounded retries per batch and a mandatory inter-batch wait to respect
// downstream rate limits. A batch that exhausts retries is recorded and
// skipped; sibling batches continue.
func Process[T any](ctx context.Context, items []T, opts Options, logger *zap.Logger, fn func(ctx context.Context, batch []T) error) (*Result, error) {
	if opts.Size <= 0 {
		opts.Size = len(items)
	}
	result := &Result{}

	for start := 0; start < len(items); start += opts.Size {
		end := start + opts.Size
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]
		index := result.Batches
		result.Batches++

		if index > 0 && opts.InterBatchDelay > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(opts.InterBatchDelay):
			}
		}

		var lastErr error
		attempts := 0
		for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
			attempts++
			if attempt > 0 && opts.RetryBackoff > 0 {
				select {
				case <-ctx.Done():
					return result, ctx.Err()
				case <-time.After(opts.RetryBackoff):
				}
			}
			if lastErr = fn(ctx, chunk); lastErr == nil {
				break
			}
			logger.Warn("batch attempt failed",
				zap.Int("batch", index),
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr),
			)
		}

		if lastErr != nil {
			logger.Error("batch skipped after exhausting retries",
				zap.Int("batch", index),
				zap.Int("size", len(chunk)),
				zap.Int("attempts", attempts),
				zap.Error(lastErr),
			)
			result.Failed = append(result.Failed, FailedBatch{
				Index: index, Size: len(chunk), Attempts: attempts, Err: lastErr,
			})
			continue
		}
		result.Succeeded++
	}

	return result, nil
}
