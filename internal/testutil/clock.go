// Package testutil holds helpers shared by tests across packages: a
// deterministic clock for ledger rows and builders for model text
// fixtures.
package testutil

import (
	"sync"
	"time"
)

// FixedClock is a Clock that returns a caller-controlled instant, so
// ledger timestamps in tests are deterministic.
//
// Thread-safety: all methods are safe for concurrent use.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock pinned to t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{now: t}
}

// Now returns the pinned instant.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
