package worker

import (
	"context"
	"sync/atomic"
)

// Gate caps the number of jobs in flight at a fixed limit. It is a counting
// semaphore over a buffered channel: Acquire blocks while the worker is
// saturated, Release frees a slot and nudges the idle sleep awake so the
// poller does not wait out a full idle timeout after a slot frees.
type Gate struct {
	slots     chan struct{}
	running   atomic.Int64
	onRelease func()
}

// NewGate creates a gate admitting at most limit concurrent holders.
// onRelease, if non-nil, is invoked after every Release.
func NewGate(limit int, onRelease func()) *Gate {
	if limit < 1 {
		limit = 1
	}
	return &Gate{
		slots:     make(chan struct{}, limit),
		onRelease: onRelease,
	}
}

// Acquire takes a slot, blocking until one frees or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.slots <- struct{}{}:
		g.running.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot. Every successful Acquire must be paired with exactly
// one Release on every exit path.
func (g *Gate) Release() {
	g.running.Add(-1)
	<-g.slots
	if g.onRelease != nil {
		g.onRelease()
	}
}

// Running returns the number of slots currently held.
func (g *Gate) Running() int {
	return int(g.running.Load())
}

// Limit returns the gate's capacity.
func (g *Gate) Limit() int {
	return cap(g.slots)
}
