package testutil

import (
	"sync"
	"time"
)

// Epoch is the default start time of a FixedClock: 2025-01-01T00:00:00Z.
var Epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// FixedClock is a wall clock for tests that only moves when told to.
//
// It satisfies artifact.Clock and store.Clock, so meta.json timestamps and
// index rows come out byte-identical across runs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock frozen at start. A zero start means Epoch.
func NewFixedClock(start time.Time) *FixedClock {
	if start.IsZero() {
		start = Epoch
	}
	return &FixedClock{now: start.UTC()}
}

// Now returns the current frozen time.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *FixedClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}
