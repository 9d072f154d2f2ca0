package gather

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// pool bounds concurrent file-analysis work to a fixed number of logical
// cores using an errgroup paired with a weighted semaphore.
type pool struct {
	sem *semaphore.Weighted
	cap int64
}

// newPool returns a pool with capacity workers. A non-positive capacity
// defaults to runtime.NumCPU().
func newPool(capacity int) *pool {
	if capacity <= 0 {
		capacity = runtime.NumCPU()
	}
	return &pool{sem: semaphore.NewWeighted(int64(capacity)), cap: int64(capacity)}
}

// run executes fn for every index in [0, n) with at most p.cap concurrent
// invocations and returns the first error encountered. Once an invocation
// fails or ctx is cancelled, no further items are started; run waits for
// the invocations already running before it returns.
func (p *pool) run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		if err := p.sem.Acquire(gctx, 1); err != nil {
			if werr := g.Wait(); werr != nil {
				return werr
			}
			return err
		}
		g.Go(func() error {
			defer p.sem.Release(1)
			return fn(gctx, i)
		})
	}
	return g.Wait()
}
