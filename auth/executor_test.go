package auth

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestExecutorRunsSubmittedTasks(t *testing.T) {
	e := NewExecutor(4)
	defer e.Shutdown()

	const tasks = 100
	var ran atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < tasks; i++ {
		wg.Add(1)
		err := e.Submit(func() {
			defer wg.Done()
			ran.Add(1)
		})
		if err != nil {
			t.Fatalf("Submit() error: %v", err)
		}
	}

	wg.Wait()
	if got := ran.Load(); got != tasks {
		t.Errorf("ran %d tasks, want %d", got, tasks)
	}

	stats := e.Stats()
	if stats.Submitted != tasks {
		t.Errorf("Submitted = %d, want %d", stats.Submitted, tasks)
	}
	if stats.Workers != 4 {
		t.Errorf("Workers = %d, want 4", stats.Workers)
	}
}

func TestExecutorSubmitAfterShutdown(t *testing.T) {
	e := NewExecutor(1)
	e.Shutdown()

	err := e.Submit(func() {})
	if !errors.Is(err, ErrExecutorShutdown) {
		t.Errorf("Submit() after Shutdown = %v, want ErrExecutorShutdown", err)
	}
}

func TestExecutorShutdownIdempotent(t *testing.T) {
	e := NewExecutor(2)
	e.Shutdown()
	e.Shutdown() // must not panic or block
}

func TestExecutorDrainsQueueOnShutdown(t *testing.T) {
	// One worker, held by a gate, so the remaining tasks are still queued
	// when Shutdown is called. They must complete anyway.
	e := NewExecutor(1)

	gate := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	if err := e.Submit(func() {
		defer wg.Done()
		<-gate
	}); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	const queued = 10
	var ran atomic.Int64
	for i := 0; i < queued; i++ {
		wg.Add(1)
		if err := e.Submit(func() {
			defer wg.Done()
			ran.Add(1)
		}); err != nil {
			t.Fatalf("Submit() error: %v", err)
		}
	}

	e.Shutdown()
	close(gate)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("queued tasks did not drain after shutdown")
	}

	if got := ran.Load(); got != queued {
		t.Errorf("drained %d queued tasks, want %d", got, queued)
	}
}

func TestExecutorSurvivesPanickingTask(t *testing.T) {
	e := NewExecutor(1)
	defer e.Shutdown()

	var wg sync.WaitGroup
	wg.Add(1)
	if err := e.Submit(func() {
		defer wg.Done()
		panic("boom")
	}); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	wg.Wait()

	// The single worker must still be alive to run this.
	ran := make(chan struct{})
	if err := e.Submit(func() { close(ran) }); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not survive a panicking task")
	}
}

func TestNewExecutorDefaultsWorkers(t *testing.T) {
	e := NewExecutor(0)
	defer e.Shutdown()

	if got := e.Stats().Workers; got != DefaultExecutorWorkers {
		t.Errorf("Workers = %d, want %d", got, DefaultExecutorWorkers)
	}
}
