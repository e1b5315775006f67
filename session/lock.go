package session

import (
	"context"
	"sync"
)

// FlightLock serializes turns per session: at most one holder per key at any
// time, waiters queue until release or context expiry. Entries are reference
// counted so idle keys leave no residue.
type FlightLock struct {
	mu      sync.Mutex
	entries map[string]*flightEntry
}

type flightEntry struct {
	sem  chan struct{}
	refs int
}

// NewFlightLock constructs an empty lock table.
func NewFlightLock() *FlightLock {
	return &FlightLock{entries: make(map[string]*flightEntry)}
}

// Acquire blocks until the key is free or ctx expires. On success the
// returned guard must be released exactly once; Release is idempotent.
func (l *FlightLock) Acquire(ctx context.Context, key string) (*Guard, error) {
	e := l.retain(key)
	select {
	case e.sem <- struct{}{}:
		return &Guard{lock: l, key: key, entry: e}, nil
	case <-ctx.Done():
		l.unref(key, e)
		return nil, ctx.Err()
	}
}

// TryAcquire takes the key without waiting. It returns false when another
// holder is active.
func (l *FlightLock) TryAcquire(key string) (*Guard, bool) {
	e := l.retain(key)
	select {
	case e.sem <- struct{}{}:
		return &Guard{lock: l, key: key, entry: e}, true
	default:
		l.unref(key, e)
		return nil, false
	}
}

// Held reports whether the key currently has a holder.
func (l *FlightLock) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	return ok && len(e.sem) > 0
}

func (l *FlightLock) retain(key string) *flightEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &flightEntry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *FlightLock) unref(key string, e *flightEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// Guard represents one held key.
type Guard struct {
	lock  *FlightLock
	key   string
	entry *flightEntry
	once  sync.Once
}

// Release frees the key for the next waiter. Safe to call more than once.
func (g *Guard) Release() {
	g.once.Do(func() {
		<-g.entry.sem
		g.lock.unref(g.key, g.entry)
	})
}
