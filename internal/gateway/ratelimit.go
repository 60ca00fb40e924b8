package gateway

import (
	"context"
	"sync"
	"time"
)

// SlidingWindow is a per-key sliding-window admission limiter.
// When a key's window is full, Acquire blocks until the oldest admission
// rolls out of the window; callers observe added latency, never a rejection.
// Admission decisions for keys sharing the limiter are serialized; keys do
// not affect each other's capacity.
type SlidingWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	admits map[string][]time.Time
	now    func() time.Time // override for tests
}

const (
	// DefaultLimit is the default number of requests admitted per window.
	DefaultLimit = 100
	// DefaultWindow is the default sliding-window size.
	DefaultWindow = 60 * time.Second
)

// NewSlidingWindow creates a limiter admitting limit requests per window per key.
// Non-positive arguments fall back to the defaults.
func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &SlidingWindow{
		limit:  limit,
		window: window,
		admits: make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Acquire blocks until the key's window admits one more request, then records
// the admission. It returns early only when ctx is cancelled.
func (l *SlidingWindow) Acquire(ctx context.Context, key string) error {
	for {
		wait, ok := l.tryAdmit(key)
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAdmit attempts one admission. On failure it returns how long until the
// oldest admission expires from the window.
func (l *SlidingWindow) tryAdmit(key string) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	q := l.admits[key]
	// Drop admissions that have rolled out of the window.
	kept := 0
	for _, t := range q {
		if t.After(cutoff) {
			q[kept] = t
			kept++
		}
	}
	q = q[:kept]

	if len(q) < l.limit {
		l.admits[key] = append(q, now)
		return 0, true
	}

	l.admits[key] = q
	wait := q[0].Sub(cutoff)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait, false
}

// Pending returns the number of admissions currently inside the key's window.
func (l *SlidingWindow) Pending(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	n := 0
	for _, t := range l.admits[key] {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}
