package core

import (
	"math/rand"
	"time"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	DefaultMinLife = 1.0
	DefaultMaxLife = 3.5
	// DefaultLift is the constant upward acceleration applied to every particle.
	DefaultLift = 0.4
)

// SpawnRate computes particles per second as Base + CPU*cpu + Net*net.
type SpawnRate struct {
	Base float32
	CPU  float32
	Net  float32
}

func DefaultSpawnRate() SpawnRate {
	return SpawnRate{Base: 40, CPU: 200, Net: 80}
}

func (r SpawnRate) At(m SmoothedMetrics) float32 {
	return r.Base + r.CPU*m.CPU + r.Net*m.Net
}

// Particle is a copy of one live slot, used for inspection.
type Particle struct {
	Position mgl32.Vec3
	Velocity mgl32.Vec3
	Color    [4]float32
	Size     float32
	Life     float32
}

// ParticleSystem is a fixed-capacity CPU particle pool (SoA). Live particles
// always occupy [0, LiveCount()); dead ones are swap-removed.
type ParticleSystem struct {
	pos   []mgl32.Vec3
	vel   []mgl32.Vec3
	life  []float32
	size  []float32
	color [][4]float32

	alive    int
	capacity int
	spawnAcc float32 // fractional spawns accumulator

	spawned int
	died    int

	Rate    SpawnRate
	Lift    float32
	MinLife float32
	MaxLife float32

	smoother  *MetricSmoother
	rng       *rand.Rand
	instances []ParticleInstance

	gpuSimulationAvailable bool
}

// NewParticleSystem allocates a pool of the given capacity. A nil rng seeds
// one from the clock.
func NewParticleSystem(capacity int, rng *rand.Rand) *ParticleSystem {
	if capacity < 0 {
		capacity = 0
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &ParticleSystem{
		pos:       make([]mgl32.Vec3, capacity),
		vel:       make([]mgl32.Vec3, capacity),
		life:      make([]float32, capacity),
		size:      make([]float32, capacity),
		color:     make([][4]float32, capacity),
		capacity:  capacity,
		Rate:      DefaultSpawnRate(),
		Lift:      DefaultLift,
		MinLife:   DefaultMinLife,
		MaxLife:   DefaultMaxLife,
		smoother:  NewMetricSmoother(),
		rng:       rng,
		instances: make([]ParticleInstance, 0, capacity),
	}
}

func (p *ParticleSystem) Capacity() int  { return p.capacity }
func (p *ParticleSystem) LiveCount() int { return p.alive }

// Spawned and Died count lifetime spawns and deaths.
func (p *ParticleSystem) Spawned() int { return p.spawned }
func (p *ParticleSystem) Died() int    { return p.died }

func (p *ParticleSystem) Smoothed() SmoothedMetrics { return p.smoother.Value() }
func (p *ParticleSystem) Smoother() *MetricSmoother { return p.smoother }

// SetGPUSimulationAvailable records the capability probe result. The CPU
// path below is used regardless.
func (p *ParticleSystem) SetGPUSimulationAvailable(ok bool) { p.gpuSimulationAvailable = ok }
func (p *ParticleSystem) GPUSimulationAvailable() bool      { return p.gpuSimulationAvailable }

func (p *ParticleSystem) At(i int) Particle {
	return Particle{
		Position: p.pos[i],
		Velocity: p.vel[i],
		Color:    p.color[i],
		Size:     p.size[i],
		Life:     p.life[i],
	}
}

func (p *ParticleSystem) Reset() {
	p.alive = 0
	p.spawnAcc = 0
	p.smoother.Reset()
}

func lerp(a, b, t float32) float32 { return a + (b-a)*t }

func (p *ParticleSystem) randRange(min, max float32) float32 {
	return lerp(min, max, p.rng.Float32())
}

// SpawnParticle places one particle on a sphere shell biased by the metrics.
// It is a no-op when the pool is full.
func (p *ParticleSystem) SpawnParticle(m SmoothedMetrics) {
	if p.alive >= p.capacity {
		return
	}
	idx := p.alive
	p.alive++
	p.spawned++

	theta := p.randRange(0, 2*math32.Pi)
	phi := math32.Acos(1 - 2*p.rng.Float32())
	radius := p.randRange(0.5, 2+m.CPU*1.2)

	p.pos[idx] = mgl32.Vec3{
		math32.Cos(theta) * math32.Sin(phi) * radius,
		math32.Cos(phi) * radius * 0.6,
		math32.Sin(theta) * math32.Sin(phi) * radius,
	}

	speed := 0.5 + m.Disk*3
	verticalBias := 0.5 + m.CPU*0.8
	p.vel[idx] = mgl32.Vec3{
		p.randRange(-1, 1) * speed,
		(p.randRange(0.2, 1) + verticalBias) * speed,
		p.randRange(-1, 1) * speed,
	}

	p.color[idx] = [4]float32{
		0.2 + m.RAM*0.8,
		0.35 + (1-m.RAM)*0.4,
		0.6 + m.CPU*0.4,
		0.2 + m.Net*0.8,
	}
	p.size[idx] = 2 + m.CPU*6 + m.Net*4
	p.life[idx] = p.randRange(p.MinLife, p.MaxLife)
}

// Swap-remove one particle
func (p *ParticleSystem) killAt(i int) {
	last := p.alive - 1
	p.pos[i] = p.pos[last]
	p.vel[i] = p.vel[last]
	p.life[i] = p.life[last]
	p.size[i] = p.size[last]
	p.color[i] = p.color[last]
	p.alive--
	p.died++
}

// Update smooths the raw sample, emits particles from the accumulated spawn
// rate and integrates every live particle.
func (p *ParticleSystem) Update(dt float32, raw RawMetrics) {
	m := p.smoother.Update(raw.CPU, raw.RAM, raw.Disk, raw.NetBytesPerSec, dt)
	if dt <= 0 {
		return
	}

	p.spawnAcc += p.Rate.At(m) * dt
	for p.spawnAcc >= 1 {
		p.SpawnParticle(m)
		p.spawnAcc -= 1
	}

	i := 0
	for i < p.alive {
		p.life[i] -= dt
		if p.life[i] <= 0 {
			p.killAt(i)
			continue
		}

		p.vel[i][1] += p.Lift * dt
		p.pos[i] = p.pos[i].Add(p.vel[i].Mul(dt))
		p.color[i][3] = mgl32.Clamp(p.life[i]/p.MaxLife, 0, 1)
		i++
	}
}

// Instances packs the live prefix for upload. The returned slice is reused
// between calls.
func (p *ParticleSystem) Instances() []ParticleInstance {
	p.instances = p.instances[:0]
	for i := 0; i < p.alive; i++ {
		pos := p.pos[i]
		p.instances = append(p.instances, ParticleInstance{
			Pos:   [3]float32{pos.X(), pos.Y(), pos.Z()},
			Size:  p.size[i],
			Color: p.color[i],
		})
	}
	return p.instances
}
