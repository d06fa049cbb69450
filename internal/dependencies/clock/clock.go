package clock

import "time"

// Timer is a handle to a scheduled callback. Stop is idempotent: it
// reports whether the call prevented the callback from firing, and
// stopping an already-fired or already-stopped timer is harmless.
type Timer interface {
	Stop() bool
}

// Clock provides time operations that can be mocked for testing
type Clock interface {
	Now() time.Time

	// AfterFunc schedules f to run after d. The callback runs on its
	// own goroutine for the real clock; mock clocks fire it
	// synchronously from Advance.
	AfterFunc(d time.Duration, f func()) Timer
}

// RealClock implements Clock using the system clock
type RealClock struct{}

// New creates a new RealClock
func New() *RealClock {
	return &RealClock{}
}

// Now returns the current time
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// AfterFunc schedules f on the runtime timer wheel
func (c *RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

var _ Timer = (*time.Timer)(nil)
