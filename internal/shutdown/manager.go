package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"reference-enhancer/internal/logger"
)

const DefaultComponentTimeout = 10 * time.Second

type Shutdownable interface {
	Shutdown()
}

// Manager cancels its context on SIGINT or SIGTERM and then shuts down the
// registered components in reverse order of registration.
type Manager struct {
	components []Shutdownable
	logger     logger.Logger
	timeout    time.Duration
	mu         sync.Mutex
	done       chan struct{}
	signals    chan os.Signal
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewManager(parent context.Context, log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)

	return &Manager{
		components: make([]Shutdownable, 0),
		logger:     log,
		timeout:    DefaultComponentTimeout,
		done:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (m *Manager) Register(component Shutdownable) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.components = append(m.components, component)
}

// Listen starts watching for termination signals until Shutdown runs. It
// does nothing once Shutdown has started.
func (m *Manager) Listen() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.signals != nil {
		return
	}
	select {
	case <-m.done:
		return
	default:
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	m.signals = signals

	go func() {
		select {
		case sig := <-signals:
			m.logger.Info("ShutdownManager", "shutdown signal received", map[string]interface{}{
				"signal": sig.String(),
			})
			m.Shutdown()
		case <-m.done:
		}
	}()
}

func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-m.done:
		return
	default:
		close(m.done)
	}

	if m.signals != nil {
		signal.Stop(m.signals)
	}

	m.logger.Debug("ShutdownManager", "shutdown sequence initiated", map[string]interface{}{
		"components": len(m.components),
	})

	m.cancel()

	for i := len(m.components) - 1; i >= 0; i-- {
		component := m.components[i]

		finished := make(chan struct{})
		go func() {
			defer close(finished)
			component.Shutdown()
		}()

		select {
		case <-finished:
		case <-time.After(m.timeout):
			m.logger.Warning("ShutdownManager", "component shutdown timeout", map[string]interface{}{
				"component_index": i,
			})
		}
	}

	m.logger.Debug("ShutdownManager", "shutdown sequence completed", nil)
}

// Context is cancelled when shutdown starts.
func (m *Manager) Context() context.Context {
	return m.ctx
}

func (m *Manager) Done() <-chan struct{} {
	return m.done
}
