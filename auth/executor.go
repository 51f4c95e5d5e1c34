package auth

import (
	"sync"
	"sync/atomic"
)

// DefaultExecutorWorkers is the worker count used when NewExecutor is given
// a non-positive size.
const DefaultExecutorWorkers = 8

// Executor is a shared worker pool for backend resolution tasks. The pool
// is sized independently of the number of backends and is reused across
// resolution calls. Submission queues without bound while the executor is
// open, so concurrent callers never reject each other's work.
type Executor struct {
	logger Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool

	workers   int
	submitted atomic.Int64
	completed atomic.Int64
}

// ExecutorStats is a point-in-time snapshot of executor activity.
type ExecutorStats struct {
	Workers    int
	QueueDepth int
	Submitted  int64
	Completed  int64
}

// NewExecutor creates an executor with the given number of workers.
func NewExecutor(workers int) *Executor {
	return NewExecutorWithLogger(workers, nil)
}

// NewExecutorWithLogger creates an executor that reports dropped work and
// recovered panics through the supplied logger.
func NewExecutorWithLogger(workers int, logger Logger) *Executor {
	if workers <= 0 {
		workers = DefaultExecutorWorkers
	}

	e := &Executor{
		logger:  orNopLogger(logger),
		workers: workers,
	}
	e.cond = sync.NewCond(&e.mu)

	for i := 0; i < workers; i++ {
		go e.work()
	}

	return e
}

// Submit enqueues a task for execution. It returns ErrExecutorShutdown when
// the executor has been shut down and never blocks on busy workers.
func (e *Executor) Submit(task func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrExecutorShutdown
	}

	e.queue = append(e.queue, task)
	e.submitted.Add(1)
	e.cond.Signal()
	return nil
}

// Shutdown stops the executor. Queued and in-flight tasks are allowed to
// finish; Shutdown itself never waits for them. Calling Shutdown more than
// once is a no-op.
func (e *Executor) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	e.cond.Broadcast()
}

// Stats returns a snapshot of executor activity.
func (e *Executor) Stats() ExecutorStats {
	e.mu.Lock()
	depth := len(e.queue)
	e.mu.Unlock()

	return ExecutorStats{
		Workers:    e.workers,
		QueueDepth: depth,
		Submitted:  e.submitted.Load(),
		Completed:  e.completed.Load(),
	}
}

// work is the worker loop. Workers drain the remaining queue after a
// shutdown before exiting.
func (e *Executor) work() {
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.cond.Wait()
		}
		if len(e.queue) == 0 {
			e.mu.Unlock()
			return
		}
		task := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()

		e.run(task)
		e.completed.Add(1)
	}
}

// run executes one task, keeping the worker alive across panics.
func (e *Executor) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("task panicked", map[string]any{
				"panic": r,
			})
		}
	}()
	task()
}
