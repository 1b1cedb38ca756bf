package concurrency

import (
	"context"

	"github.com/sourcegraph/conc/pool"
)

// NewPool returns a new pool where each task respects context cancellation.
// Wait() will only return the first error seen.
func NewPool(ctx context.Context, maxGoroutines int) *pool.ContextPool {
	p := pool.New().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
	if maxGoroutines > 0 {
		p = p.WithMaxGoroutines(maxGoroutines)
	}
	return p
}

// MapOrdered calls fn for every item on a pool of at most maxGoroutines goroutines and returns
// the results in the order of items, regardless of completion order. The first error cancels
// the remaining calls and is returned.
func MapOrdered[T, R any](ctx context.Context, maxGoroutines int, items []T, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	out := make([]R, len(items))
	p := NewPool(ctx, maxGoroutines)
	for i, item := range items {
		p.Go(func(ctx context.Context) error {
			r, err := fn(ctx, item)
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
