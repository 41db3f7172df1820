package sysviz

import (
	"time"
)

const (
	MinFrameDelta   = 0.001
	MaxFrameDelta   = 0.1
	firstFrameDelta = 1.0 / 60
)

// FrameClock measures per-frame delta time on the monotonic clock. The first
// tick has no predecessor and reports one 60 Hz frame; every delta is
// clamped to [MinFrameDelta, MaxFrameDelta] seconds.
type FrameClock struct {
	Time    time.Time
	Dt      time.Duration
	started bool
	now     func() time.Time
}

func NewFrameClock() *FrameClock {
	return &FrameClock{now: time.Now}
}

// NewFrameClockAt uses now as the time source.
func NewFrameClockAt(now func() time.Time) *FrameClock {
	return &FrameClock{now: now}
}

// Tick advances the clock and returns the clamped delta in seconds.
func (c *FrameClock) Tick() float32 {
	now := c.now()
	dt := float32(firstFrameDelta)
	if c.started {
		c.Dt = now.Sub(c.Time)
		dt = float32(c.Dt.Seconds())
	}
	c.Time = now
	c.started = true

	if dt < MinFrameDelta || dt != dt {
		return MinFrameDelta
	}
	if dt > MaxFrameDelta {
		return MaxFrameDelta
	}
	return dt
}

// First reports whether Tick has not yet been called.
func (c *FrameClock) First() bool { return !c.started }
