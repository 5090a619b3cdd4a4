package circuitbreaker

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// State is the breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without calling the guarded function while the
// breaker is open or its half-open probe budget is spent
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config holds circuit breaker configuration
type Config struct {
	Name string

	// MaxFailures consecutive failures open the circuit
	MaxFailures int

	// Timeout is how long the circuit stays open before probing
	Timeout time.Duration

	// HalfOpenMaxRequests probes are let through while half-open, and as
	// many consecutive successes close the circuit again
	HalfOpenMaxRequests int

	// Ignore reports errors that are answers rather than faults, such as a
	// missing object. They are returned but never counted.
	Ignore func(error) bool

	OnStateChange func(name string, from, to State)
}

// DefaultConfig returns default circuit breaker configuration
func DefaultConfig(name string) *Config {
	return &Config{
		Name:                name,
		MaxFailures:         5,
		Timeout:             30 * time.Second,
		HalfOpenMaxRequests: 3,
	}
}

// CircuitBreaker guards calls to a remote store
type CircuitBreaker struct {
	config *Config
	logger zerolog.Logger

	mu              sync.RWMutex
	state           State
	failures        int
	successes       int
	lastFailureTime time.Time
	halfOpenCount   int32
}

// New creates a circuit breaker; a nil cfg uses DefaultConfig
func New(cfg *Config, logger zerolog.Logger) *CircuitBreaker {
	if cfg == nil {
		cfg = DefaultConfig("default")
	}
	return &CircuitBreaker{
		config: cfg,
		logger: logger.With().Str("component", "circuit-breaker").Str("name", cfg.Name).Logger(),
		state:  StateClosed,
	}
}

// Execute runs fn unless the circuit is open and records its outcome
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		cb.logger.Warn().Str("state", cb.State().String()).Msg("Request rejected by circuit breaker")
		return ErrCircuitOpen
	}

	err := fn()
	if err != nil && cb.config.Ignore != nil && cb.config.Ignore(err) {
		cb.record(nil)
		return err
	}
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.RLock()
	state := cb.state
	lastFailure := cb.lastFailureTime
	cb.mu.RUnlock()

	switch state {
	case StateOpen:
		if time.Since(lastFailure) <= cb.config.Timeout {
			return false
		}
		cb.mu.Lock()
		if cb.state == StateOpen {
			cb.setState(StateHalfOpen)
			atomic.StoreInt32(&cb.halfOpenCount, 0)
		}
		cb.mu.Unlock()
		return atomic.AddInt32(&cb.halfOpenCount, 1) <= int32(cb.config.HalfOpenMaxRequests)
	case StateHalfOpen:
		return atomic.AddInt32(&cb.halfOpenCount, 1) <= int32(cb.config.HalfOpenMaxRequests)
	default:
		return true
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.successes = 0
		cb.lastFailureTime = time.Now()
		cb.logger.Debug().Err(err).Int("failures", cb.failures).Str("state", cb.state.String()).Msg("Recorded failure")

		switch cb.state {
		case StateClosed:
			if cb.failures >= cb.config.MaxFailures {
				cb.setState(StateOpen)
			}
		case StateHalfOpen:
			cb.setState(StateOpen)
		}
		return
	}

	cb.successes++
	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		if cb.successes >= cb.config.HalfOpenMaxRequests {
			cb.setState(StateClosed)
		}
	}
}

// setState must be called with mu held
func (cb *CircuitBreaker) setState(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.failures = 0
	cb.successes = 0
	if to == StateOpen {
		cb.lastFailureTime = time.Now()
	}

	cb.logger.Info().Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}

// State returns the current state
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Stats is a snapshot of the breaker counters
type Stats struct {
	Name            string    `json:"name" msgpack:"name"`
	State           string    `json:"state" msgpack:"state"`
	Failures        int       `json:"failures" msgpack:"failures"`
	Successes       int       `json:"successes" msgpack:"successes"`
	LastFailureTime time.Time `json:"last_failure_time,omitempty" msgpack:"last_failure_time,omitempty"`
}

// Stats returns a snapshot of the breaker counters
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return Stats{
		Name:            cb.config.Name,
		State:           cb.state.String(),
		Failures:        cb.failures,
		Successes:       cb.successes,
		LastFailureTime: cb.lastFailureTime,
	}
}

// Reset closes the circuit
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setState(StateClosed)
	cb.failures = 0
	cb.successes = 0
}
