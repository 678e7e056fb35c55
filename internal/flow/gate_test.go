package flow

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGateAdmitsSequentially(t *testing.T) {
	g := NewGate(2, time.Second)
	ctx := context.Background()

	if err := g.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	g.Release()
	if err := g.Acquire(ctx); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	g.Release()
	if got := g.Depth(); got != 0 {
		t.Fatalf("depth after release = %d, want 0", got)
	}
}

func TestGateRejectsWhenQueueFull(t *testing.T) {
	g := NewGate(1, time.Second)
	ctx := context.Background()

	if err := g.Acquire(ctx); err != nil {
		t.Fatalf("holder acquire: %v", err)
	}

	waiterIn := make(chan error, 1)
	go func() {
		waiterIn <- g.Acquire(ctx)
	}()
	// Let the waiter take the single queue slot.
	for g.Depth() != 2 {
		time.Sleep(time.Millisecond)
	}

	if err := g.Acquire(ctx); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("overflow acquire = %v, want ErrQueueFull", err)
	}

	g.Release()
	if err := <-waiterIn; err != nil {
		t.Fatalf("queued waiter: %v", err)
	}
	g.Release()
}

func TestGateTimesOutWaiting(t *testing.T) {
	g := NewGate(1, 20*time.Millisecond)
	ctx := context.Background()

	if err := g.Acquire(ctx); err != nil {
		t.Fatalf("holder acquire: %v", err)
	}
	if err := g.Acquire(ctx); !errors.Is(err, ErrGateTimeout) {
		t.Fatalf("waiting acquire = %v, want ErrGateTimeout", err)
	}
	g.Release()

	// The timed-out waiter must have given its slot back.
	if err := g.Acquire(ctx); err != nil {
		t.Fatalf("acquire after timeout: %v", err)
	}
	g.Release()
}

func TestGateHonoursContextCancel(t *testing.T) {
	g := NewGate(1, time.Minute)
	if err := g.Acquire(context.Background()); err != nil {
		t.Fatalf("holder acquire: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := g.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled acquire = %v, want context.Canceled", err)
	}
	g.Release()
}
