// File: internal/batch/batch.go
package batch

import (
	"context"
	"iter"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultThreads   = 4
	DefaultBatchSize = 100
)

type Options struct {
	Threads   int
	BatchSize int
	Logger    *slog.Logger

	// Called after every item of a batch has been handled, with the 1-based batch number
	OnBatch func(batch, items int)
}

func (o Options) withDefaults() Options {
	if o.Threads < 1 {
		o.Threads = DefaultThreads
	}
	if o.BatchSize < 1 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Run processes items batch by batch. Within a batch a fixed pool of Threads workers drains a bounded queue.
// work must handle its own failures; Run only returns ctx.Err() when the run is cancelled
func Run[T any](ctx context.Context, opts Options, items iter.Seq[T], work func(ctx context.Context, item T)) error {
	opts = opts.withDefaults()

	n := 0
	pending := make([]T, 0, opts.BatchSize)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		n++
		opts.Logger.Debug("Processing batch", "batch", n, "items", len(pending))
		if err := runBatch(ctx, opts.Threads, pending, work); err != nil {
			return err
		}
		if opts.OnBatch != nil {
			opts.OnBatch(n, len(pending))
		}
		pending = pending[:0]
		return nil
	}

	for item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		pending = append(pending, item)
		if len(pending) == opts.BatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	return ctx.Err()
}

func runBatch[T any](ctx context.Context, threads int, items []T, work func(ctx context.Context, item T)) error {
	queue := make(chan T, len(items))
	for _, item := range items {
		queue <- item
	}
	close(queue)

	g, gctx := errgroup.WithContext(ctx)
	for range min(threads, len(items)) {
		g.Go(func() error {
			for item := range queue {
				if err := gctx.Err(); err != nil {
					return err
				}
				work(gctx, item)
			}
			return nil
		})
	}
	return g.Wait()
}
