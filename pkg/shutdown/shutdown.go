package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/psantana5/callstats/pkg/logging"
)

// Manager runs registered cleanup functions when the process is told to
// stop
type Manager struct {
	funcs   []namedFunc
	mu      sync.Mutex
	timeout time.Duration
	logger  *logging.Logger
	done    chan struct{}
	once    sync.Once
	signals []os.Signal
}

type namedFunc struct {
	name string
	fn   func(context.Context) error
}

// New creates a shutdown manager. Cleanup as a whole is bounded by timeout.
func New(timeout time.Duration, logger *logging.Logger) *Manager {
	return &Manager{
		timeout: timeout,
		logger:  logger,
		done:    make(chan struct{}),
		signals: []os.Signal{syscall.SIGTERM, syscall.SIGINT},
	}
}

// Register adds a cleanup function. Functions run in reverse order (LIFO).
func (m *Manager) Register(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs = append(m.funcs, namedFunc{name: name, fn: fn})
}

// Done returns a channel that is closed once shutdown has been triggered
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Trigger starts shutdown without a signal. Safe to call more than once.
func (m *Manager) Trigger() {
	m.once.Do(func() {
		close(m.done)
	})
}

// Wait blocks until SIGTERM or SIGINT arrives, Trigger is called or ctx
// ends, then runs the cleanup functions.
func (m *Manager) Wait(ctx context.Context) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, m.signals...)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		m.logger.Info("Received signal, shutting down", logging.Fields{"signal": sig.String()})
		m.Trigger()
	case <-m.done:
		m.logger.Info("Shutdown requested")
	case <-ctx.Done():
		m.Trigger()
	}
	return m.Shutdown()
}

// Shutdown runs every registered function. Failures are logged and the
// first one is returned; later functions still run.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var first error
	for i := len(m.funcs) - 1; i >= 0; i-- {
		f := m.funcs[i]
		if err := f.fn(ctx); err != nil {
			m.logger.Error("Shutdown step failed", logging.Fields{"step": f.name, "error": err.Error()})
			if first == nil {
				first = fmt.Errorf("%s: %w", f.name, err)
			}
			continue
		}
		m.logger.Debug("Shutdown step complete", logging.Fields{"step": f.name})
	}
	m.funcs = nil

	m.logger.Info("Graceful shutdown complete")
	return first
}

// StopHTTPServer returns a cleanup function for an http.Server
func StopHTTPServer(server interface{ Shutdown(context.Context) error }) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop HTTP server: %w", err)
		}
		return nil
	}
}

// CloseResource returns a cleanup function for an io.Closer
func CloseResource(closer interface{ Close() error }) func(context.Context) error {
	return func(context.Context) error {
		return closer.Close()
	}
}

// WaitFor returns a cleanup function that blocks until done is closed or
// the shutdown deadline passes.
func WaitFor(done <-chan struct{}) func(context.Context) error {
	return func(ctx context.Context) error {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
