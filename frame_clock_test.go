package sysviz

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestFrameClock_FirstTickIsOneFrame(t *testing.T) {
	clock := newFakeClock()
	fc := NewFrameClockAt(clock.now)

	assert.True(t, fc.First())
	assert.InDelta(t, 1.0/60, fc.Tick(), 1e-6)
	assert.False(t, fc.First())
}

func TestFrameClock_Clamp(t *testing.T) {
	tests := []struct {
		name  string
		delta time.Duration
		want  float32
	}{
		{"normal frame", 16 * time.Millisecond, 0.016},
		{"stall is capped", 2 * time.Second, MaxFrameDelta},
		{"zero delta is raised", 0, MinFrameDelta},
		{"tiny delta is raised", 100 * time.Microsecond, MinFrameDelta},
		{"exact upper bound", 100 * time.Millisecond, MaxFrameDelta},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			fc := NewFrameClockAt(clock.now)
			fc.Tick()
			clock.advance(tt.delta)
			assert.InDelta(t, tt.want, fc.Tick(), 1e-6)
			assert.Equal(t, tt.delta, fc.Dt)
		})
	}
}

func TestFrameClock_BackwardsTimeIsClamped(t *testing.T) {
	clock := newFakeClock()
	fc := NewFrameClockAt(clock.now)
	fc.Tick()
	clock.advance(-time.Second)

	dt := fc.Tick()
	assert.Equal(t, float32(MinFrameDelta), dt)
	assert.False(t, math.IsNaN(float64(dt)))
}
