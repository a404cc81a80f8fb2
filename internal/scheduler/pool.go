package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// ErrPoolStopped is returned when work is submitted after Stop
var ErrPoolStopped = errors.New("worker pool is stopped")

// PoolStats is a snapshot of pool utilisation
type PoolStats struct {
	Workers   int   `json:"workers"`
	Active    int   `json:"active"`
	Queued    int   `json:"queued"`
	Completed int64 `json:"completed"`
	Panics    int64 `json:"panics"`
}

type task struct {
	name string
	fn   func()
}

// WorkerPool runs submitted tasks on a fixed number of goroutines
type WorkerPool struct {
	numWorkers int
	tasks      chan task

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup

	active    atomic.Int32
	completed atomic.Int64
	panics    atomic.Int64

	log zerolog.Logger
}

// NewWorkerPool creates a pool with the specified number of workers and
// starts them. queueSize bounds pending tasks; Submit blocks while the queue
// is full.
func NewWorkerPool(numWorkers, queueSize int, log zerolog.Logger) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 4
	}
	if queueSize < 0 {
		queueSize = 0
	}

	p := &WorkerPool{
		numWorkers: numWorkers,
		tasks:      make(chan task, queueSize),
		log:        log.With().Str("component", "worker_pool").Logger(),
	}

	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	p.log.Info().Int("workers", numWorkers).Int("queue", queueSize).Msg("Worker pool started")
	return p
}

// Submit queues fn for background execution
func (p *WorkerPool) Submit(name string, fn func()) error {
	return p.submit(context.Background(), name, fn)
}

// submit waits for queue space until ctx is done
func (p *WorkerPool) submit(ctx context.Context, name string, fn func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.tasks <- task{name: name, fn: fn}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn on a worker and waits for it to finish. Cancelling ctx stops
// the wait for queue space or for the result, not a task already running.
func (p *WorkerPool) Do(ctx context.Context, name string, fn func() error) error {
	done := make(chan error, 1)

	err := p.submit(ctx, name, func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("task %s panicked: %v", name, r)
				panic(r)
			}
		}()
		done <- fn()
	})
	if err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current utilisation
func (p *WorkerPool) Stats() PoolStats {
	return PoolStats{
		Workers:   p.numWorkers,
		Active:    int(p.active.Load()),
		Queued:    len(p.tasks),
		Completed: p.completed.Load(),
		Panics:    p.panics.Load(),
	}
}

// Stop rejects new work, lets queued tasks finish and waits for the workers
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Info().Int64("completed", p.completed.Load()).Msg("Worker pool stopped")
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		p.run(t)
	}
}

func (p *WorkerPool) run(t task) {
	p.active.Add(1)
	defer func() {
		p.active.Add(-1)
		p.completed.Add(1)
		if r := recover(); r != nil {
			p.panics.Add(1)
			p.log.Error().
				Interface("panic", r).
				Str("task", t.name).
				Msg("Task panicked")
		}
	}()

	t.fn()
}
