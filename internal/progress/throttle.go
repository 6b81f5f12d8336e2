package progress

import (
	"sync"
	"time"
)

// DefaultInterval is the minimum spacing between coalesced progress events,
// a few updates per second at most so consumers are never flooded.
const DefaultInterval = 250 * time.Millisecond

// Throttle gates event emission to at most one per interval. Completion
// events bypass the gate via Force so a 100% report is never swallowed.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

// NewThrottle returns a throttle with the given minimum interval.
// A non-positive interval falls back to DefaultInterval.
func NewThrottle(interval time.Duration) *Throttle {
	return NewThrottleWithNow(interval, time.Now)
}

// NewThrottleWithNow returns a throttle with a custom time source (for tests).
func NewThrottleWithNow(interval time.Duration, now func() time.Time) *Throttle {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if now == nil {
		now = time.Now
	}
	return &Throttle{interval: interval, now: now}
}

// Allow reports whether an event may be emitted now, claiming the slot when
// it returns true.
func (t *Throttle) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}

// Force claims the slot unconditionally, so the next Allow still observes
// the spacing interval.
func (t *Throttle) Force() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = t.now()
}
