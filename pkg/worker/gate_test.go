package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_AcquireRelease(t *testing.T) {
	g := NewGate(2, nil)

	require.NoError(t, g.Acquire(context.Background()))
	require.NoError(t, g.Acquire(context.Background()))
	assert.Equal(t, 2, g.Running())

	g.Release()
	assert.Equal(t, 1, g.Running())
	g.Release()
	assert.Equal(t, 0, g.Running())
}

func TestGate_BlocksWhenSaturated(t *testing.T) {
	g := NewGate(1, nil)
	require.NoError(t, g.Acquire(context.Background()))

	acquired := make(chan struct{})
	go func() {
		require.NoError(t, g.Acquire(context.Background()))
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should block while the gate is saturated")
	case <-time.After(50 * time.Millisecond):
	}

	g.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire should proceed after release")
	}
	g.Release()
}

func TestGate_AcquireRespectsCancellation(t *testing.T) {
	g := NewGate(1, nil)
	require.NoError(t, g.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := g.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, g.Running())
	g.Release()
}

func TestGate_ReleaseFiresCallback(t *testing.T) {
	var mu sync.Mutex
	released := 0
	g := NewGate(1, func() {
		mu.Lock()
		released++
		mu.Unlock()
	})

	require.NoError(t, g.Acquire(context.Background()))
	g.Release()
	require.NoError(t, g.Acquire(context.Background()))
	g.Release()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, released)
}

func TestGate_NeverExceedsLimit(t *testing.T) {
	const limit = 3
	g := NewGate(limit, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	maxSeen := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, g.Acquire(context.Background()))
			mu.Lock()
			if r := g.Running(); r > maxSeen {
				maxSeen = r
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			g.Release()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxSeen, limit)
	assert.Equal(t, 0, g.Running())
}

func TestGate_ClampsZeroLimit(t *testing.T) {
	g := NewGate(0, nil)
	assert.Equal(t, 1, g.Limit())
}
