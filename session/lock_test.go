package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlightLockAcquireRelease(t *testing.T) {
	t.Parallel()

	l := NewFlightLock()

	g, err := l.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, l.Held("s1"))

	g.Release()
	assert.False(t, l.Held("s1"))

	g2, err := l.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	g2.Release()
}

func TestFlightLockWaiterTimesOut(t *testing.T) {
	t.Parallel()

	l := NewFlightLock()

	g, err := l.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	defer g.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = l.Acquire(ctx, "s1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFlightLockWaiterProceedsAfterRelease(t *testing.T) {
	t.Parallel()

	l := NewFlightLock()

	g, err := l.Acquire(context.Background(), "s1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		g2, err := l.Acquire(context.Background(), "s1")
		if err == nil {
			close(acquired)
			g2.Release()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("waiter acquired while lock was held")
	case <-time.After(30 * time.Millisecond):
	}

	g.Release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired after release")
	}
}

func TestFlightLockTryAcquire(t *testing.T) {
	t.Parallel()

	l := NewFlightLock()

	g, ok := l.TryAcquire("s1")
	require.True(t, ok)

	_, ok = l.TryAcquire("s1")
	assert.False(t, ok)

	g.Release()

	g2, ok := l.TryAcquire("s1")
	assert.True(t, ok)
	g2.Release()
}

func TestFlightLockKeysAreIndependent(t *testing.T) {
	t.Parallel()

	l := NewFlightLock()

	keys := []string{"a", "b", "c", "d", "e"}
	guards := make([]*Guard, 0, len(keys))
	for _, k := range keys {
		g, err := l.Acquire(context.Background(), k)
		require.NoError(t, err, "key %s", k)
		guards = append(guards, g)
	}
	for _, k := range keys {
		assert.True(t, l.Held(k))
	}
	for _, g := range guards {
		g.Release()
	}
	for _, k := range keys {
		assert.False(t, l.Held(k))
	}
}

func TestFlightLockReleaseIdempotent(t *testing.T) {
	t.Parallel()

	l := NewFlightLock()

	g, err := l.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	g.Release()
	g.Release()

	g2, err := l.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	g2.Release()
}

func TestFlightLockCompetitorsAllEventuallyAcquire(t *testing.T) {
	t.Parallel()

	l := NewFlightLock()

	const competitors = 5
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < competitors; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := l.Acquire(context.Background(), "shared")
			if err != nil {
				return
			}
			mu.Lock()
			successes++
			mu.Unlock()
			time.Sleep(time.Millisecond)
			g.Release()
		}()
	}
	wg.Wait()

	assert.Equal(t, competitors, successes)
	assert.False(t, l.Held("shared"))
}
