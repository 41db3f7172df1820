package sysviz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfiler_ScopesKeepFirstSeenOrder(t *testing.T) {
	clock := newFakeClock()
	p := NewProfiler()
	p.now = clock.now

	p.BeginScope("update")
	clock.advance(2 * time.Millisecond)
	p.EndScope("update")

	p.Scope("post", func() { clock.advance(500 * time.Microsecond) })

	p.BeginScope("update")
	clock.advance(3 * time.Millisecond)
	p.EndScope("update")

	assert.Equal(t, []string{"update", "post"}, p.Order)
	assert.Equal(t, 3*time.Millisecond, p.Scopes["update"])
	assert.Equal(t, 500*time.Microsecond, p.Scopes["post"])
	assert.Empty(t, p.StartTimes)
}

func TestProfiler_EndWithoutBeginIsIgnored(t *testing.T) {
	p := NewProfiler()
	p.EndScope("missing")
	assert.Empty(t, p.Scopes)
	assert.Empty(t, p.Order)
}

func TestProfiler_Lines(t *testing.T) {
	clock := newFakeClock()
	p := NewProfiler()
	p.now = clock.now

	p.Scope("layers", func() { clock.advance(1250 * time.Microsecond) })
	p.SetCount("particles", 42)
	p.SetCount("layers", 4)

	lines := p.Lines()
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "layers")
	assert.Contains(t, lines[0], "1.25 ms")
	assert.Contains(t, lines[1], "layers")
	assert.Contains(t, lines[1], "4")
	assert.Contains(t, lines[2], "particles")
	assert.Contains(t, lines[2], "42")
	assert.Contains(t, p.GetStatsString(), "particles")
}

func TestProfiler_ResetKeepsOrderAndCounters(t *testing.T) {
	clock := newFakeClock()
	p := NewProfiler()
	p.now = clock.now
	p.Scope("update", func() { clock.advance(time.Millisecond) })
	p.SetCount("particles", 7)

	p.Reset()

	assert.Equal(t, time.Duration(0), p.Scopes["update"])
	assert.Equal(t, []string{"update"}, p.Order)
	assert.Equal(t, 7, p.Counts["particles"])
}
