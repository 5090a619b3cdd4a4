package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// Shutdownable is a component closed at the end of a run
type Shutdownable interface {
	Close() error
}

// ShutdownFunc performs cleanup during shutdown
type ShutdownFunc func(ctx context.Context) error

// Priorities for mppread components; lower runs first
const (
	PriorityProgress = 10 // Stop progress sampling
	PriorityExport   = 20 // Finish exports
	PriorityMetrics  = 30 // Write the metrics textfile
	PriorityStorage  = 80 // Storage backends last
)

// Coordinator closes registered components in priority order when a run ends
// or is interrupted
type Coordinator struct {
	timeout time.Duration
	logger  zerolog.Logger

	mu         sync.Mutex
	components []namedComponent
	hooks      []namedHook

	shutdownOnce sync.Once
	triggerOnce  sync.Once
	shutdownCh   chan struct{}
}

type namedComponent struct {
	name      string
	component Shutdownable
	priority  int
}

type namedHook struct {
	name     string
	hook     ShutdownFunc
	priority int
}

// New creates a new shutdown coordinator
func New(timeout time.Duration, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		timeout:    timeout,
		logger:     logger.With().Str("component", "shutdown").Logger(),
		shutdownCh: make(chan struct{}),
	}
}

// Register registers a component closed during shutdown
func (c *Coordinator) Register(name string, component Shutdownable, priority int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.components = append(c.components, namedComponent{name: name, component: component, priority: priority})
	c.logger.Debug().Str("name", name).Int("priority", priority).Msg("Registered component for shutdown")
}

// RegisterHook registers a function run during shutdown, before components are closed
func (c *Coordinator) RegisterHook(name string, hook ShutdownFunc, priority int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hooks = append(c.hooks, namedHook{name: name, hook: hook, priority: priority})
	c.logger.Debug().Str("name", name).Int("priority", priority).Msg("Registered shutdown hook")
}

// Context returns a context cancelled on SIGINT, SIGTERM or TriggerShutdown.
// The returned stop function releases the signal handler.
func (c *Coordinator) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-quit:
			c.logger.Warn().Str("signal", sig.String()).Msg("Received signal, cancelling run")
			cancel()
		case <-c.shutdownCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(quit)
		cancel()
	}
}

// Done is closed once shutdown has been triggered
func (c *Coordinator) Done() <-chan struct{} {
	return c.shutdownCh
}

// Shutdown runs hooks then closes components, each group in priority order,
// within the coordinator timeout. It returns the first error encountered.
func (c *Coordinator) Shutdown() error {
	var shutdownErr error

	c.shutdownOnce.Do(func() {
		c.triggerOnce.Do(func() {
			close(c.shutdownCh)
		})

		c.mu.Lock()
		components := append([]namedComponent(nil), c.components...)
		hooks := append([]namedHook(nil), c.hooks...)
		c.mu.Unlock()

		sort.SliceStable(components, func(i, j int) bool { return components[i].priority < components[j].priority })
		sort.SliceStable(hooks, func(i, j int) bool { return hooks[i].priority < hooks[j].priority })

		c.logger.Debug().
			Dur("timeout", c.timeout).
			Int("components", len(components)).
			Int("hooks", len(hooks)).
			Msg("Starting shutdown")

		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		start := time.Now()

		for _, h := range hooks {
			if ctx.Err() != nil {
				c.logger.Warn().Str("hook", h.name).Msg("Shutdown timeout reached, skipping remaining hooks")
				shutdownErr = ctx.Err()
				return
			}
			if err := h.hook(ctx); err != nil {
				c.logger.Error().Err(err).Str("hook", h.name).Msg("Shutdown hook failed")
				if shutdownErr == nil {
					shutdownErr = err
				}
			}
		}

		for _, comp := range components {
			if ctx.Err() != nil {
				c.logger.Warn().Str("name", comp.name).Msg("Shutdown timeout reached, skipping remaining components")
				shutdownErr = ctx.Err()
				return
			}
			if err := comp.component.Close(); err != nil {
				c.logger.Error().Err(err).Str("name", comp.name).Msg("Component shutdown failed")
				if shutdownErr == nil {
					shutdownErr = err
				}
			}
		}

		c.logger.Debug().Dur("duration", time.Since(start)).Msg("Shutdown complete")
	})

	return shutdownErr
}

// TriggerShutdown cancels contexts from Context; safe to call concurrently
func (c *Coordinator) TriggerShutdown() {
	c.triggerOnce.Do(func() {
		c.logger.Info().Msg("Programmatic shutdown triggered")
		close(c.shutdownCh)
	})
}
