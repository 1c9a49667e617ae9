package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"madspark/internal/logging"
	"madspark/internal/types"
)

// Pool is a bounded worker pool for batch stage execution. Whoever constructs
// the pool owns its shutdown; the process entry point drains and closes it
// before exit.
type Pool struct {
	tasks chan func()
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewPool starts size workers. size <= 0 falls back to 10.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 10
	}
	p := &Pool{tasks: make(chan func())}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				task()
			}
		}()
	}
	logging.Batch("worker pool started with %d workers", size)
	return p
}

// Submit queues a task, blocking until a worker accepts it or ctx is done.
// Returns an error after Shutdown.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("pool is shut down")
	}
	p.mu.Unlock()

	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting tasks and waits for in-flight work to finish.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.tasks)
	p.wg.Wait()
	logging.Batch("worker pool drained and closed")
}

// RunWithTimeout executes fn on the pool, bounded by timeoutSeconds. On
// deadline the caller gets a Timeout error; the function's context is
// cancelled so in-flight provider calls abort.
func (p *Pool) RunWithTimeout(ctx context.Context, name string, timeoutSeconds float64, fn func(ctx context.Context) error) error {
	runCtx := ctx
	var cancel context.CancelFunc
	if timeoutSeconds > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSeconds*float64(time.Second)))
		defer cancel()
	}

	done := make(chan error, 1)
	if err := p.Submit(runCtx, func() {
		done <- fn(runCtx)
	}); err != nil {
		if runCtx.Err() != nil {
			return &types.TimeoutError{Op: name, Seconds: timeoutSeconds}
		}
		return err
	}

	select {
	case err := <-done:
		if err != nil && runCtx.Err() == context.DeadlineExceeded {
			return &types.TimeoutError{Op: name, Seconds: timeoutSeconds}
		}
		return err
	case <-runCtx.Done():
		if runCtx.Err() == context.DeadlineExceeded {
			logging.Batch("%s timed out after %.1fs", name, timeoutSeconds)
			return &types.TimeoutError{Op: name, Seconds: timeoutSeconds}
		}
		return runCtx.Err()
	}
}
