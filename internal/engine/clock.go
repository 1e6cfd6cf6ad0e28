package engine

import (
	"sync/atomic"
	"time"
)

// Clock supplies "now" in unix seconds.
// Implemented by SystemClock (production) and testutil.FixedClock (tests).
type Clock interface {
	Now() int64
}

// SystemClock reads the wall clock but never goes backwards: if the system
// time is stepped back, Now keeps returning the last value it handed out
// until wall time catches up.
//
// Thread-safety: SystemClock is safe for concurrent use (atomic operations).
type SystemClock struct {
	last atomic.Int64
	wall func() time.Time
}

// NewSystemClock creates a clock backed by time.Now.
func NewSystemClock() *SystemClock {
	return &SystemClock{wall: time.Now}
}

// Now returns max(wall clock, previous result).
func (c *SystemClock) Now() int64 {
	wall := c.wall().Unix()
	for {
		last := c.last.Load()
		if wall <= last {
			return last
		}
		if c.last.CompareAndSwap(last, wall) {
			return wall
		}
	}
}
