// Package scheduler runs the handlers of a block concurrently while keeping
// handlers that share a parallelization id strictly in block order.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	log "github.com/sirupsen/logrus"

	"ender/domain"
)

// Options configures the worker pool backing a Scheduler.
type Options struct {
	Workers        int
	ExpiryDuration time.Duration
}

// Scheduler executes handlers on an ants pool.
type Scheduler struct {
	pool *ants.Pool
}

func New(opts Options) (*Scheduler, error) {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	antsOpts := []ants.Option{ants.WithLogger(log.StandardLogger())}
	if opts.ExpiryDuration > 0 {
		antsOpts = append(antsOpts, ants.WithExpiryDuration(opts.ExpiryDuration))
	}
	p, err := ants.NewPool(opts.Workers, antsOpts...)
	if err != nil {
		return nil, fmt.Errorf("worker pool: %w", err)
	}
	return &Scheduler{pool: p}, nil
}

// Close releases the pool. Running handlers are not interrupted.
func (s *Scheduler) Close() {
	s.pool.Release()
}

// Run executes handlers and returns their notifications in handler order.
// Handler i starts only after every earlier handler sharing one of its
// parallelization ids has finished. The first error cancels the remaining
// handlers and is returned without any notifications.
func (s *Scheduler) Run(ctx context.Context, handlers []domain.Handler) ([]domain.Notification, error) {
	if len(handlers) == 0 {
		return nil, nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	deps := dependencies(handlers)
	done := make([]chan struct{}, len(handlers))
	for i := range done {
		done[i] = make(chan struct{})
	}
	results := make([][]domain.Notification, len(handlers))

	for i, h := range handlers {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			defer close(done[i])
			defer func() {
				if r := recover(); r != nil {
					fail(fmt.Errorf("handler %d panicked: %v", i, r))
				}
			}()
			for _, d := range deps[i] {
				select {
				case <-done[d]:
				case <-runCtx.Done():
					return
				}
			}
			if runCtx.Err() != nil {
				return
			}
			ns, err := h.Handle(runCtx)
			if err != nil {
				fail(err)
				return
			}
			results[i] = ns
		}
		if err := s.pool.Submit(task); err != nil {
			close(done[i])
			wg.Done()
			fail(fmt.Errorf("submit handler %d: %w", i, err))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []domain.Notification
	for _, ns := range results {
		out = append(out, ns...)
	}
	return out, nil
}

// dependencies maps each handler to the latest earlier handler per shared id.
// Waiting on the latest one is enough because that handler waits on its own
// predecessors.
func dependencies(handlers []domain.Handler) [][]int {
	last := map[string]int{}
	deps := make([][]int, len(handlers))
	for i, h := range handlers {
		seen := map[int]bool{}
		for _, id := range h.ParallelizationIDs() {
			if j, ok := last[id]; ok && !seen[j] {
				seen[j] = true
				deps[i] = append(deps[i], j)
			}
			last[id] = i
		}
	}
	return deps
}
