package mocks

import (
	"sort"
	"sync"
	"time"

	"github.com/Puci-G/rpsServer/internal/dependencies/clock"
)

// MockClock is a mock implementation of Clock for testing. Timers
// scheduled via AfterFunc fire synchronously from Advance, in deadline
// order, so timer-driven flows can be exercised deterministically.
type MockClock struct {
	mu      sync.Mutex
	current time.Time
	seq     int
	timers  []*mockTimer
}

// Ensure MockClock implements Clock
var _ clock.Clock = (*MockClock)(nil)

// NewMockClock creates a MockClock set to the given time
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{current: t}
}

// Now returns the mocked current time
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// AfterFunc registers f to fire when the clock is advanced past d
func (c *MockClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &mockTimer{
		clock: c,
		due:   c.current.Add(d),
		seq:   c.seq,
		fn:    f,
	}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d, firing every due timer in
// deadline order. Callbacks run synchronously on the calling goroutine
// and may themselves schedule further timers, which also fire if they
// fall within the window.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)
	for {
		t := c.popDueLocked(target)
		if t == nil {
			break
		}
		if t.due.After(c.current) {
			c.current = t.due
		}
		c.mu.Unlock()
		t.fn()
		c.mu.Lock()
	}
	c.current = target
	c.mu.Unlock()
}

// PendingTimers returns the number of timers not yet fired or stopped
func (c *MockClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// popDueLocked removes and returns the earliest timer due at or before
// target, or nil if none remain in the window.
func (c *MockClock) popDueLocked(target time.Time) *mockTimer {
	if len(c.timers) == 0 {
		return nil
	}
	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].due.Equal(c.timers[j].due) {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].due.Before(c.timers[j].due)
	})
	t := c.timers[0]
	if t.due.After(target) {
		return nil
	}
	c.timers = c.timers[1:]
	return t
}

type mockTimer struct {
	clock *MockClock
	due   time.Time
	seq   int
	fn    func()
}

// Stop removes the timer from the pending set. It reports whether the
// timer was still pending; stopping twice is harmless.
func (t *mockTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	for i, pending := range t.clock.timers {
		if pending == t {
			t.clock.timers = append(t.clock.timers[:i], t.clock.timers[i+1:]...)
			return true
		}
	}
	return false
}
