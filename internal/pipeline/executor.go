package pipeline

import (
	"context"
	"runtime"
	"sync"
	"time"

	"leaffliction/internal/logger"
)

// Executor runs tasks on a bounded pool of workers.
type Executor struct {
	workerPool chan struct{}
	logger     logger.Logger
}

// NewExecutor creates a pool of the given size; workers <= 0 means one per
// CPU.
func NewExecutor(workers int, log logger.Logger) *Executor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	pool := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		pool <- struct{}{}
	}

	return &Executor{workerPool: pool, logger: log}
}

func (e *Executor) Workers() int {
	return cap(e.workerPool)
}

// RunAll stops at the first failure: in-flight tasks see a cancelled
// context, pending tasks are never started and the first error is
// returned. A cancelled parent context is reported as its error.
func (e *Executor) RunAll(ctx context.Context, tasks []Task) error {
	ctx, cancel := context.WithCancel(ctx)
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

	for _, task := range tasks {
		if !e.acquire(ctx) {
			break
		}

		wg.Add(1)
		go func(task Task) {
			defer wg.Done()
			defer e.release()

			if ctx.Err() != nil {
				return
			}
			if err := e.run(ctx, task); err != nil {
				fail(err)
			}
		}(task)
	}

	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// RunEach runs every task regardless of sibling failures. errs[i] is the
// outcome of tasks[i]; tasks skipped after cancellation report the context
// error.
func (e *Executor) RunEach(ctx context.Context, tasks []Task) []error {
	errs := make([]error, len(tasks))

	var wg sync.WaitGroup
	for i, task := range tasks {
		if !e.acquire(ctx) {
			for j := i; j < len(tasks); j++ {
				errs[j] = ctx.Err()
			}
			break
		}

		wg.Add(1)
		go func(i int, task Task) {
			defer wg.Done()
			defer e.release()
			errs[i] = e.run(ctx, task)
		}(i, task)
	}

	wg.Wait()
	return errs
}

func (e *Executor) acquire(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	select {
	case <-e.workerPool:
		return true
	case <-ctx.Done():
		return false
	}
}

func (e *Executor) release() {
	e.workerPool <- struct{}{}
}

func (e *Executor) run(ctx context.Context, task Task) error {
	start := time.Now()
	err := task.Run(ctx)

	fields := map[string]interface{}{
		"task":        task.Name,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		e.logger.Error("Executor", err, fields)
		return err
	}

	e.logger.Debug("Executor", "task completed", fields)
	return nil
}
