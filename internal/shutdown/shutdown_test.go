package shutdown

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type mockShutdownable struct {
	name     string
	closeErr error
	delay    time.Duration
	order    *[]string
	mu       *sync.Mutex
}

func (m *mockShutdownable) Close() error {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	*m.order = append(*m.order, m.name)
	m.mu.Unlock()
	return m.closeErr
}

func TestShutdownOrder(t *testing.T) {
	c := New(5*time.Second, zerolog.Nop())
	var order []string
	var mu sync.Mutex

	c.Register("storage", &mockShutdownable{name: "storage", order: &order, mu: &mu}, PriorityStorage)
	c.Register("export", &mockShutdownable{name: "export", order: &order, mu: &mu}, PriorityExport)
	c.RegisterHook("metrics", func(ctx context.Context) error {
		mu.Lock()
		order = append(order, "metrics-hook")
		mu.Unlock()
		return nil
	}, PriorityMetrics)
	c.Register("progress", &mockShutdownable{name: "progress", order: &order, mu: &mu}, PriorityProgress)

	if err := c.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	want := []string{"metrics-hook", "progress", "export", "storage"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestShutdownReturnsFirstError(t *testing.T) {
	c := New(5*time.Second, zerolog.Nop())
	var order []string
	var mu sync.Mutex
	first := errors.New("export flush failed")

	c.Register("export", &mockShutdownable{name: "export", closeErr: first, order: &order, mu: &mu}, PriorityExport)
	c.Register("storage", &mockShutdownable{name: "storage", closeErr: errors.New("later"), order: &order, mu: &mu}, PriorityStorage)

	if err := c.Shutdown(); !errors.Is(err, first) {
		t.Errorf("Shutdown err = %v, want %v", err, first)
	}
	if len(order) != 2 {
		t.Errorf("both components should close, got %v", order)
	}

	// Second call is a no-op
	if err := c.Shutdown(); err != nil {
		t.Errorf("second Shutdown err = %v, want nil", err)
	}
	if len(order) != 2 {
		t.Errorf("components closed again: %v", order)
	}
}

func TestShutdownTimeout(t *testing.T) {
	c := New(20*time.Millisecond, zerolog.Nop())
	var order []string
	var mu sync.Mutex

	c.Register("slow", &mockShutdownable{name: "slow", delay: 50 * time.Millisecond, order: &order, mu: &mu}, PriorityExport)
	c.Register("skipped", &mockShutdownable{name: "skipped", order: &order, mu: &mu}, PriorityStorage)

	if err := c.Shutdown(); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Shutdown err = %v, want DeadlineExceeded", err)
	}
	if len(order) != 1 || order[0] != "slow" {
		t.Errorf("order = %v, want [slow]", order)
	}
}

func TestContextCancelledByTrigger(t *testing.T) {
	c := New(time.Second, zerolog.Nop())
	ctx, stop := c.Context(context.Background())
	defer stop()

	c.TriggerShutdown()
	c.TriggerShutdown()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled after TriggerShutdown")
	}
	select {
	case <-c.Done():
	default:
		t.Error("Done should be closed")
	}

	// Shutdown after a trigger must not close the channel twice
	if err := c.Shutdown(); err != nil {
		t.Errorf("Shutdown err = %v", err)
	}
}

func TestContextStop(t *testing.T) {
	c := New(time.Second, zerolog.Nop())
	ctx, stop := c.Context(context.Background())
	stop()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled by stop")
	}
	select {
	case <-c.Done():
		t.Error("stop must not trigger shutdown")
	default:
	}
}
