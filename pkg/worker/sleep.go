package worker

import (
	"context"
	"time"
)

// Waker is the rendezvous between the idle sleep and whoever wants to cut
// it short. Wake is a one-shot: the first pending signal ends the next (or
// current) Sleep early, after which the signal is spent and later sleeps
// run their full duration again.
type Waker struct {
	ch chan struct{}
}

// NewWaker creates a waker with no pending signal.
func NewWaker() *Waker {
	return &Waker{ch: make(chan struct{}, 1)}
}

// Wake ends the current or next Sleep early. It never blocks; signalling an
// already-signalled waker is a no-op.
func (w *Waker) Wake() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// Sleep blocks for d, ending early if Wake fires or ctx is done. It returns
// ctx.Err() only for the cancellation case so callers can tell shutdown
// apart from an ordinary wake-up.
func (w *Waker) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	case <-w.ch:
		return nil
	}
}
