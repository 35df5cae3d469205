// Package shutdown turns SIGINT/SIGTERM into context cancellation so that
// in-flight batches stop scheduling new images and finish their writes.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"leaffliction/internal/logger"
)

// Hook releases a resource once work has stopped.
type Hook func(ctx context.Context) error

type namedHook struct {
	name string
	fn   Hook
}

type Manager struct {
	hooks   []namedHook
	logger  logger.Logger
	timeout time.Duration
	mu      sync.Mutex
	once    sync.Once
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	stop    func()
}

// NewManager derives a cancellable context from parent. timeout bounds each
// hook; zero means ten seconds.
func NewManager(parent context.Context, log logger.Logger, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(parent)

	return &Manager{
		logger:  log,
		timeout: timeout,
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
		stop:    func() {},
	}
}

func (m *Manager) Register(name string, fn Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hooks = append(m.hooks, namedHook{name: name, fn: fn})
}

// Listen cancels the context on the first SIGINT or SIGTERM.
func (m *Manager) Listen() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	m.mu.Lock()
	m.stop = func() { signal.Stop(sigChan) }
	m.mu.Unlock()

	go func() {
		select {
		case sig := <-sigChan:
			m.Trigger(sig.String())
		case <-m.done:
		}
	}()
}

// Trigger cancels the context. Later calls are ignored.
func (m *Manager) Trigger(reason string) {
	m.once.Do(func() {
		m.logger.Info("ShutdownManager", "stopping", map[string]interface{}{
			"reason": reason,
		})
		close(m.done)
		m.cancel()
	})
}

// Shutdown cancels the context and runs the hooks in reverse registration
// order. Hooks run at most once.
func (m *Manager) Shutdown() error {
	m.Trigger("shutdown")

	m.mu.Lock()
	hooks := m.hooks
	m.hooks = nil
	stop := m.stop
	m.mu.Unlock()

	stop()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := m.runHook(hooks[i]); err != nil {
			errs = append(errs, err)
		}
	}

	m.logger.Debug("ShutdownManager", "hooks completed", map[string]interface{}{
		"hooks":  len(hooks),
		"failed": len(errs),
	})

	return errors.Join(errs...)
}

func (m *Manager) runHook(h namedHook) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		result <- h.fn(ctx)
	}()

	select {
	case err := <-result:
		if err != nil {
			m.logger.Error("ShutdownManager", err, map[string]interface{}{"hook": h.name})
			return fmt.Errorf("%s: %w", h.name, err)
		}
		return nil
	case <-ctx.Done():
		m.logger.Warning("ShutdownManager", "hook timed out", map[string]interface{}{
			"hook":    h.name,
			"timeout": m.timeout.String(),
		})
		return fmt.Errorf("%s: %w", h.name, ctx.Err())
	}
}

func (m *Manager) Context() context.Context {
	return m.ctx
}

func (m *Manager) Done() <-chan struct{} {
	return m.done
}
