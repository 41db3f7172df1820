package core

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParticles(capacity int, seed int64) *ParticleSystem {
	return NewParticleSystem(capacity, rand.New(rand.NewSource(seed)))
}

func TestParticleSpawnExactlyFiftyInOneSecond(t *testing.T) {
	ps := newTestParticles(100, 1)
	ps.Rate = SpawnRate{Base: 50}
	// Keep every spawned particle alive past the first update.
	ps.MinLife, ps.MaxLife = 2, 3

	ps.Update(1.0, RawMetrics{})

	assert.Equal(t, 50, ps.Spawned())
	assert.Equal(t, 50, ps.LiveCount())
	assert.Equal(t, 0, ps.Died())
}

func TestParticleLiveCountNeverExceedsCapacity(t *testing.T) {
	ps := newTestParticles(64, 2)
	raw := RawMetrics{CPU: 100, RAM: 80, Disk: 90, NetBytesPerSec: 4 * BytesPerMiB}

	for i := 0; i < 500; i++ {
		ps.Update(0.1, raw)
		require.GreaterOrEqual(t, ps.LiveCount(), 0)
		require.LessOrEqual(t, ps.LiveCount(), ps.Capacity())
	}
	assert.Greater(t, ps.Spawned(), ps.Capacity())
}

func TestParticleSpawnNoOpWhenFull(t *testing.T) {
	ps := newTestParticles(3, 3)
	for i := 0; i < 3; i++ {
		ps.SpawnParticle(SmoothedMetrics{})
	}
	require.Equal(t, 3, ps.LiveCount())

	ps.SpawnParticle(SmoothedMetrics{CPU: 1})
	assert.Equal(t, 3, ps.LiveCount())
	assert.Equal(t, 3, ps.Spawned())
}

func TestParticleZeroCapacity(t *testing.T) {
	ps := newTestParticles(0, 4)
	ps.Update(1, RawMetrics{CPU: 100})
	assert.Equal(t, 0, ps.LiveCount())
	assert.Empty(t, ps.Instances())
}

func TestParticleLiveCountEqualsSpawnedMinusDied(t *testing.T) {
	ps := newTestParticles(256, 5)
	rng := rand.New(rand.NewSource(99))

	for i := 0; i < 400; i++ {
		dt := 0.005 + rng.Float32()*0.09
		raw := RawMetrics{CPU: rng.Float32() * 100, Disk: rng.Float32() * 100, NetBytesPerSec: rng.Float32() * BytesPerMiB}
		ps.Update(dt, raw)
		require.Equal(t, ps.Spawned()-ps.Died(), ps.LiveCount(), "frame %d", i)
	}
	assert.Greater(t, ps.Died(), 0, "lifetimes should expire during the run")
}

func TestParticleLivePrefixInvariant(t *testing.T) {
	ps := newTestParticles(128, 6)
	for i := 0; i < 200; i++ {
		ps.Update(0.05, RawMetrics{CPU: 60, NetBytesPerSec: BytesPerMiB / 2})
		for j := 0; j < ps.LiveCount(); j++ {
			p := ps.At(j)
			require.Greater(t, p.Life, float32(0), "slot %d inside live prefix is dead", j)
			require.GreaterOrEqual(t, p.Color[3], float32(0))
			require.LessOrEqual(t, p.Color[3], float32(1))
		}
	}
}

func TestParticleSpawnCountIndependentOfFrameSplit(t *testing.T) {
	const total = 1.0
	for _, frames := range []int{1, 3, 10, 60, 144} {
		ps := newTestParticles(10000, 7)
		ps.MinLife, ps.MaxLife = 5, 6
		ps.Rate = SpawnRate{Base: 137}
		dt := float32(total) / float32(frames)
		for i := 0; i < frames; i++ {
			ps.Update(dt, RawMetrics{})
		}
		assert.InDelta(t, 137, ps.Spawned(), 1, "frames=%d", frames)
	}
}

func TestParticleUpdateZeroDtSpawnsNothing(t *testing.T) {
	ps := newTestParticles(10, 8)
	ps.Update(0, RawMetrics{CPU: 100})
	assert.Equal(t, 0, ps.Spawned())
}

func TestParticleLiftAcceleratesUpward(t *testing.T) {
	ps := newTestParticles(1, 9)
	ps.MinLife, ps.MaxLife = 10, 10
	ps.SpawnParticle(SmoothedMetrics{})
	ps.Rate = SpawnRate{}

	before := ps.At(0).Velocity.Y()
	ps.Update(0.5, RawMetrics{})
	after := ps.At(0).Velocity.Y()
	assert.InDelta(t, before+DefaultLift*0.5, after, 1e-5)
}

func TestParticleInstancesMatchLivePrefix(t *testing.T) {
	ps := newTestParticles(32, 10)
	ps.Rate = SpawnRate{Base: 20}
	ps.MinLife, ps.MaxLife = 2, 2
	ps.Update(1, RawMetrics{})

	inst := ps.Instances()
	require.Len(t, inst, ps.LiveCount())
	for i, in := range inst {
		p := ps.At(i)
		assert.Equal(t, p.Position.X(), in.Pos[0])
		assert.Equal(t, p.Size, in.Size)
		assert.Equal(t, p.Color, in.Color)
	}
}

func TestParticleReset(t *testing.T) {
	ps := newTestParticles(16, 11)
	ps.Update(0.1, RawMetrics{CPU: 100})
	ps.Reset()
	assert.Equal(t, 0, ps.LiveCount())
	assert.Equal(t, SmoothedMetrics{}, ps.Smoothed())
}
