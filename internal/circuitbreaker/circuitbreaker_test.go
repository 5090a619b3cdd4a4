package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

var errRemote = errors.New("remote failure")

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.state.String(); got != tt.expected {
				t.Errorf("State.String() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestNew_NilConfig(t *testing.T) {
	cb := New(nil, zerolog.Nop())
	if cb.config.MaxFailures != 5 {
		t.Errorf("MaxFailures = %d, want 5", cb.config.MaxFailures)
	}
	if cb.State() != StateClosed {
		t.Errorf("State = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := New(&Config{Name: "test", MaxFailures: 3, Timeout: time.Minute, HalfOpenMaxRequests: 1}, zerolog.Nop())

	for i := 0; i < 3; i++ {
		if err := cb.Execute(func() error { return errRemote }); !errors.Is(err, errRemote) {
			t.Fatalf("attempt %d: err = %v, want errRemote", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("State = %v, want open", cb.State())
	}

	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("function should not run while open")
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := New(&Config{Name: "test", MaxFailures: 2, Timeout: time.Minute, HalfOpenMaxRequests: 1}, zerolog.Nop())

	cb.Execute(func() error { return errRemote })
	cb.Execute(func() error { return nil })
	cb.Execute(func() error { return errRemote })

	if cb.State() != StateClosed {
		t.Errorf("State = %v, want closed", cb.State())
	}
	if got := cb.Stats().Failures; got != 1 {
		t.Errorf("Failures = %d, want 1", got)
	}
}

func TestCircuitBreaker_IgnoredErrors(t *testing.T) {
	errMissing := errors.New("missing")
	cb := New(&Config{
		Name:                "test",
		MaxFailures:         1,
		Timeout:             time.Minute,
		HalfOpenMaxRequests: 1,
		Ignore:              func(err error) bool { return errors.Is(err, errMissing) },
	}, zerolog.Nop())

	for i := 0; i < 5; i++ {
		if err := cb.Execute(func() error { return errMissing }); !errors.Is(err, errMissing) {
			t.Fatalf("err = %v, want errMissing", err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("State = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_HalfOpen(t *testing.T) {
	var mu sync.Mutex
	var changes []State
	cb := New(&Config{
		Name:                "test",
		MaxFailures:         1,
		Timeout:             20 * time.Millisecond,
		HalfOpenMaxRequests: 2,
		OnStateChange: func(name string, from, to State) {
			mu.Lock()
			changes = append(changes, to)
			mu.Unlock()
		},
	}, zerolog.Nop())

	cb.Execute(func() error { return errRemote })
	time.Sleep(30 * time.Millisecond)

	t.Run("failure reopens", func(t *testing.T) {
		cb.Execute(func() error { return errRemote })
		if cb.State() != StateOpen {
			t.Errorf("State = %v, want open", cb.State())
		}
	})

	time.Sleep(30 * time.Millisecond)

	t.Run("successes close", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			if err := cb.Execute(func() error { return nil }); err != nil {
				t.Fatalf("probe %d: %v", i, err)
			}
		}
		if cb.State() != StateClosed {
			t.Errorf("State = %v, want closed", cb.State())
		}
	})

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateOpen, StateHalfOpen, StateOpen, StateHalfOpen, StateClosed}
	if len(changes) != len(want) {
		t.Fatalf("changes = %v, want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("change %d = %v, want %v", i, changes[i], want[i])
		}
	}
}

func TestCircuitBreaker_HalfOpenRequestLimit(t *testing.T) {
	cb := New(&Config{Name: "test", MaxFailures: 1, Timeout: 10 * time.Millisecond, HalfOpenMaxRequests: 1}, zerolog.Nop())
	cb.Execute(func() error { return errRemote })
	time.Sleep(20 * time.Millisecond)

	release := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- cb.Execute(func() error {
			<-release
			return nil
		})
	}()

	// Wait for the probe to take the only half-open slot
	deadline := time.Now().Add(time.Second)
	for cb.State() != StateHalfOpen && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second probe err = %v, want ErrCircuitOpen", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Errorf("first probe err = %v", err)
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := New(&Config{Name: "test", MaxFailures: 1, Timeout: time.Minute, HalfOpenMaxRequests: 1}, zerolog.Nop())
	cb.Execute(func() error { return errRemote })
	if cb.State() != StateOpen {
		t.Fatalf("State = %v, want open", cb.State())
	}

	cb.Reset()
	stats := cb.Stats()
	if stats.State != "closed" || stats.Failures != 0 {
		t.Errorf("Stats = %+v, want closed with no failures", stats)
	}
	if stats.Name != "test" {
		t.Errorf("Name = %s, want test", stats.Name)
	}
}
