package uploader

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// RunBatches splits items into consecutive batches of at most width and runs
// work on every item of a batch concurrently. Results reach reduce in
// completion order, and reduce returns before the next batch starts, so an
// error from reduce stops all later batches.
func RunBatches[T, R any](ctx context.Context, items []T, width int, work func(context.Context, T) R, reduce func([]R) error) error {
	if width < 1 {
		width = 1
	}
	for start := 0; start < len(items); start += width {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + width
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		var (
			mu      sync.Mutex
			results = make([]R, 0, len(batch))
		)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(width)
		for _, item := range batch {
			item := item
			g.Go(func() error {
				r := work(gctx, item)
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		if err := reduce(results); err != nil {
			return err
		}
	}
	return nil
}
