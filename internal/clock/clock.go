package clock

import (
	"time"
)

// Clock is the single source of "now" for every timed component of an exam
// session. SpeedFactor scales elapsed time for accelerated test runs.
type Clock interface {
	Now() time.Time
	SpeedFactor() float64
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Real is the production clock backed by the runtime timer wheel.
type Real struct {
	speed float64
}

// NewReal creates a wall clock. A non-positive speed falls back to 1.
func NewReal(speed float64) *Real {
	if speed <= 0 {
		speed = 1
	}
	return &Real{speed: speed}
}

// Now returns the current wall time.
func (c *Real) Now() time.Time { return time.Now() }

// SpeedFactor returns the configured time multiplier.
func (c *Real) SpeedFactor() float64 { return c.speed }

// AfterFunc schedules f on its own goroutine after d.
func (c *Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
