package flow

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// Gate errors. Both map to a transport-level "try again later"; the notifier
// redelivers rejected batches.
var (
	ErrQueueFull   = errors.New("delta admission queue is full")
	ErrGateTimeout = errors.New("timed out waiting for the delta gate")
)

// Gate serializes batch processing behind a single slot with a bounded
// waiting line. It replaces an unbounded mutex-as-queue: when the line is
// full or a waiter outlives the configured patience, admission is refused
// instead of amplifying upstream latency.
type Gate struct {
	slot     chan struct{}
	waiting  atomic.Int64
	maxInUse int64
	maxWait  time.Duration
}

// NewGate builds a gate admitting one holder plus queueDepth waiters.
func NewGate(queueDepth int, maxWait time.Duration) *Gate {
	if queueDepth < 0 {
		queueDepth = 0
	}
	if maxWait <= 0 {
		maxWait = 30 * time.Second
	}
	return &Gate{
		slot:     make(chan struct{}, 1),
		maxInUse: int64(queueDepth) + 1,
		maxWait:  maxWait,
	}
}

// Acquire claims the processing slot, waiting at most the gate's patience.
func (g *Gate) Acquire(ctx context.Context) error {
	if g.waiting.Add(1) > g.maxInUse {
		g.waiting.Add(-1)
		return ErrQueueFull
	}
	timer := time.NewTimer(g.maxWait)
	defer timer.Stop()
	select {
	case g.slot <- struct{}{}:
		return nil
	case <-timer.C:
		g.waiting.Add(-1)
		return ErrGateTimeout
	case <-ctx.Done():
		g.waiting.Add(-1)
		return ctx.Err()
	}
}

// Release frees the slot for the next waiter.
func (g *Gate) Release() {
	<-g.slot
	g.waiting.Add(-1)
}

// Depth reports holders plus waiters, for the queue gauge.
func (g *Gate) Depth() int64 {
	return g.waiting.Load()
}
