package workers

import (
	"context"
	"errors"
	"sync"
	"time"
)

// TaskFunc is the unit of work executed by the pool. Tasks must observe
// ctx at their suspension points so cancellation takes effect.
type TaskFunc func(ctx context.Context) (map[string]interface{}, error)

// Outcome carries a finished task's result or error
type Outcome struct {
	Result map[string]interface{}
	Err    error
}

// Handle is the cancellable reference to a submitted task
type Handle struct {
	cancel context.CancelFunc
	done   chan Outcome
}

// Cancel requests cooperative cancellation of the task
func (h *Handle) Cancel() {
	h.cancel()
}

// Done returns a channel that receives the task's outcome exactly once
func (h *Handle) Done() <-chan Outcome {
	return h.done
}

// PoolConfig holds configuration for the task pool
type PoolConfig struct {
	// Size is the number of tasks that may run concurrently
	Size int

	// ShutdownTimeout is how long Shutdown waits for in-flight tasks
	ShutdownTimeout time.Duration
}

// DefaultPoolConfig returns a pool configuration with sensible defaults
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Size:            4,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Pool bounds the number of concurrently executing tasks with a fixed
// slot count. Submission never blocks the caller; the spawned goroutine
// waits for a slot and the wait itself is cancellable.
type Pool struct {
	slots chan struct{}
	wg    sync.WaitGroup

	statsMu   sync.Mutex
	submitted int64
	succeeded int64
	failed    int64
	cancelled int64
	active    int
}

// PoolStats represents statistics about the pool
type PoolStats struct {
	Size           int   `json:"size"`
	Active         int   `json:"active"`
	TasksSubmitted int64 `json:"tasks_submitted"`
	TasksSucceeded int64 `json:"tasks_succeeded"`
	TasksFailed    int64 `json:"tasks_failed"`
	TasksCancelled int64 `json:"tasks_cancelled"`
}

// NewPool creates a task pool
func NewPool(config PoolConfig) *Pool {
	if config.Size <= 0 {
		config.Size = 4
	}
	return &Pool{
		slots: make(chan struct{}, config.Size),
	}
}

// Submit schedules a task and returns its handle immediately
func (p *Pool) Submit(ctx context.Context, task TaskFunc) *Handle {
	taskCtx, cancel := context.WithCancel(ctx)
	handle := &Handle{
		cancel: cancel,
		done:   make(chan Outcome, 1),
	}

	p.statsMu.Lock()
	p.submitted++
	p.statsMu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()

		select {
		case p.slots <- struct{}{}:
		case <-taskCtx.Done():
			p.recordOutcome(taskCtx.Err())
			handle.done <- Outcome{Err: taskCtx.Err()}
			return
		}
		defer func() { <-p.slots }()

		p.statsMu.Lock()
		p.active++
		p.statsMu.Unlock()

		result, err := runRecovered(taskCtx, task)

		p.statsMu.Lock()
		p.active--
		p.statsMu.Unlock()

		p.recordOutcome(err)
		handle.done <- Outcome{Result: result, Err: err}
	}()

	return handle
}

// Shutdown waits for in-flight tasks to finish, up to the given context
func (p *Pool) Shutdown(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Size returns the concurrency bound
func (p *Pool) Size() int {
	return cap(p.slots)
}

// Stats returns pool statistics
func (p *Pool) Stats() PoolStats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return PoolStats{
		Size:           cap(p.slots),
		Active:         p.active,
		TasksSubmitted: p.submitted,
		TasksSucceeded: p.succeeded,
		TasksFailed:    p.failed,
		TasksCancelled: p.cancelled,
	}
}

func (p *Pool) recordOutcome(err error) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	switch {
	case err == nil:
		p.succeeded++
	case errors.Is(err, context.Canceled):
		p.cancelled++
	default:
		p.failed++
	}
}

// runRecovered executes a task, converting a panic into an error outcome
func runRecovered(ctx context.Context, task TaskFunc) (result map[string]interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &TaskPanicError{Panic: r}
		}
	}()
	return task(ctx)
}

// TaskPanicError represents a panic that occurred during task execution
type TaskPanicError struct {
	Panic interface{}
}

func (e *TaskPanicError) Error() string {
	return "task panic: " + formatPanicValue(e.Panic)
}

func formatPanicValue(p interface{}) string {
	switch v := p.(type) {
	case string:
		return v
	case error:
		return v.Error()
	default:
		return "unknown panic"
	}
}
