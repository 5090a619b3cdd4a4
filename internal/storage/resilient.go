package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/basekick-labs/mppread/internal/circuitbreaker"
	"github.com/rs/zerolog"
)

// ResilientBackend wraps a remote backend with retries and a circuit breaker
type ResilientBackend struct {
	backend Backend
	cb      *circuitbreaker.CircuitBreaker
	logger  zerolog.Logger

	maxRetries    int
	retryDelay    time.Duration
	retryMaxDelay time.Duration
}

// ResilientConfig holds configuration for the resilient backend
type ResilientConfig struct {
	// Circuit breaker settings
	MaxFailures         int
	Timeout             time.Duration
	HalfOpenMaxRequests int

	// Retry settings
	MaxRetries    int
	RetryDelay    time.Duration
	RetryMaxDelay time.Duration
}

// DefaultResilientConfig returns default resilient backend configuration
func DefaultResilientConfig() *ResilientConfig {
	return &ResilientConfig{
		MaxFailures:         5,
		Timeout:             30 * time.Second,
		HalfOpenMaxRequests: 3,
		MaxRetries:          3,
		RetryDelay:          100 * time.Millisecond,
		RetryMaxDelay:       5 * time.Second,
	}
}

// NewResilientBackend wraps backend; a nil cfg uses DefaultResilientConfig
func NewResilientBackend(backend Backend, cfg *ResilientConfig, logger zerolog.Logger) *ResilientBackend {
	if cfg == nil {
		cfg = DefaultResilientConfig()
	}

	return &ResilientBackend{
		backend: backend,
		cb: circuitbreaker.New(&circuitbreaker.Config{
			Name:                backend.Type(),
			MaxFailures:         cfg.MaxFailures,
			Timeout:             cfg.Timeout,
			HalfOpenMaxRequests: cfg.HalfOpenMaxRequests,
			Ignore:              isPermanent,
		}, logger),
		logger:        logger.With().Str("component", "resilient-storage").Str("backend", backend.Type()).Logger(),
		maxRetries:    cfg.MaxRetries,
		retryDelay:    cfg.RetryDelay,
		retryMaxDelay: cfg.RetryMaxDelay,
	}
}

// isPermanent reports errors that retrying cannot fix
func isPermanent(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// do runs fn through the breaker, retrying transient failures with exponential backoff
func (r *ResilientBackend) do(ctx context.Context, op, path string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		err := r.cb.Execute(fn)
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			r.logger.Warn().Str("op", op).Str("path", path).Msg("Storage request rejected, circuit breaker open")
			return err
		}
		if isPermanent(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == r.maxRetries {
			break
		}

		delay := r.retryDelay * time.Duration(1<<uint(attempt))
		if delay > r.retryMaxDelay {
			delay = r.retryMaxDelay
		}

		r.logger.Warn().
			Err(err).
			Str("op", op).
			Str("path", path).
			Int("attempt", attempt+1).
			Int("max_retries", r.maxRetries).
			Dur("retry_delay", delay).
			Msg("Storage request failed, retrying")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("storage %s failed after %d retries: %w", op, r.maxRetries, lastErr)
}

// Write writes data with retries
func (r *ResilientBackend) Write(ctx context.Context, path string, data []byte) error {
	return r.do(ctx, "write", path, func() error {
		return r.backend.Write(ctx, path, data)
	})
}

// WriteReader retries only when reader can be rewound; other readers get a single attempt
func (r *ResilientBackend) WriteReader(ctx context.Context, path string, reader io.Reader, size int64) error {
	seeker, ok := reader.(io.Seeker)
	if !ok {
		return r.cb.Execute(func() error {
			return r.backend.WriteReader(ctx, path, reader, size)
		})
	}
	return r.do(ctx, "write", path, func() error {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return err
		}
		return r.backend.WriteReader(ctx, path, reader, size)
	})
}

// Read reads data with retries
func (r *ResilientBackend) Read(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := r.do(ctx, "read", path, func() error {
		var readErr error
		data, readErr = r.backend.Read(ctx, path)
		return readErr
	})
	return data, err
}

// ReadTo buffers the object so a failed attempt never leaves partial output in writer
func (r *ResilientBackend) ReadTo(ctx context.Context, path string, writer io.Writer) error {
	var buf bytes.Buffer
	err := r.do(ctx, "read", path, func() error {
		buf.Reset()
		return r.backend.ReadTo(ctx, path, &buf)
	})
	if err != nil {
		return err
	}
	_, err = buf.WriteTo(writer)
	return err
}

// List lists objects with retries
func (r *ResilientBackend) List(ctx context.Context, prefix string) ([]string, error) {
	var paths []string
	err := r.do(ctx, "list", prefix, func() error {
		var listErr error
		paths, listErr = r.backend.List(ctx, prefix)
		return listErr
	})
	return paths, err
}

// ListObjects lists objects with metadata when the wrapped backend supports it
func (r *ResilientBackend) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	lister, ok := r.backend.(ObjectLister)
	if !ok {
		return nil, fmt.Errorf("%s backend cannot list object metadata", r.backend.Type())
	}
	var objects []ObjectInfo
	err := r.do(ctx, "list", prefix, func() error {
		var listErr error
		objects, listErr = lister.ListObjects(ctx, prefix)
		return listErr
	})
	return objects, err
}

// Delete deletes with retries
func (r *ResilientBackend) Delete(ctx context.Context, path string) error {
	return r.do(ctx, "delete", path, func() error {
		return r.backend.Delete(ctx, path)
	})
}

// Exists checks existence with retries
func (r *ResilientBackend) Exists(ctx context.Context, path string) (bool, error) {
	var exists bool
	err := r.do(ctx, "exists", path, func() error {
		var existsErr error
		exists, existsErr = r.backend.Exists(ctx, path)
		return existsErr
	})
	return exists, err
}

// Close closes the wrapped backend
func (r *ResilientBackend) Close() error {
	return r.backend.Close()
}

// Type returns the wrapped backend type
func (r *ResilientBackend) Type() string {
	return r.backend.Type()
}

// URI returns the wrapped backend URI for path
func (r *ResilientBackend) URI(path string) string {
	return r.backend.URI(path)
}

// CircuitBreakerStats returns the breaker counters
func (r *ResilientBackend) CircuitBreakerStats() circuitbreaker.Stats {
	return r.cb.Stats()
}

// Unwrap returns the wrapped backend
func (r *ResilientBackend) Unwrap() Backend {
	return r.backend
}
