package testutil

import "sync"

// FixedClock is a settable clock for tests. Time only moves when told to.
//
// Implements engine.Clock.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu  sync.Mutex
	now int64
}

// NewFixedClock creates a clock reading start.
func NewFixedClock(start int64) *FixedClock {
	return &FixedClock{now: start}
}

// Now returns the current time in unix seconds.
func (c *FixedClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t. Tests may move it backwards.
func (c *FixedClock) Set(t int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d seconds and returns the new time.
func (c *FixedClock) Advance(d int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
	return c.now
}
