package clock

import (
	"sync"
	"time"
)

// Monotonic returns UTC wall-clock time that never goes backwards within the
// process, so segment spans computed from two readings are never negative.
type Monotonic struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func New() *Monotonic {
	return &Monotonic{now: time.Now}
}

// NewWithSource is used by tests to drive the clock.
func NewWithSource(now func() time.Time) *Monotonic {
	return &Monotonic{now: now}
}

func (c *Monotonic) Now() time.Time {
	t := c.now().UTC().Round(0)
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.Before(c.last) {
		return c.last
	}
	c.last = t
	return t
}
