package core

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Visualizer is the CPU half of a metric visualization. The set of
// implementations is closed: CPUWaveform, RAMPulse, DiskRing, NetworkPulse.
// Drawing is done by the renderer, which switches on the concrete type.
type Visualizer interface {
	Kind() MetricKind
	Init()
	Update(dt float32, raw RawMetrics)
	IsEnabled() bool
	Configure(cfg MetricConfig)
	Config() MetricConfig
	Cleanup()
}

// NewVisualizers builds one visualizer per metric, indexed by MetricKind.
func NewVisualizers(cfgs [MetricCount]MetricConfig) [MetricCount]Visualizer {
	return [MetricCount]Visualizer{
		NewCPUWaveform(cfgs[MetricCPU]),
		NewRAMPulse(cfgs[MetricRAM]),
		NewDiskRing(cfgs[MetricDisk]),
		NewNetworkPulse(cfgs[MetricNetwork]),
	}
}

// softFollow moves current toward target at rate per second, never
// overshooting on long frames.
func softFollow(current, target, dt, rate float32) float32 {
	t := dt * rate
	if t > 1 {
		t = 1
	}
	if t < 0 {
		t = 0
	}
	return current + (target-current)*t
}

const (
	WaveformGridX = 40
	WaveformGridZ = 40
	// waveformInterval is the history push period (20 Hz).
	waveformInterval = 0.05
	// FloatsPerMeshVertex is pos3 + normal3 + uv2.
	FloatsPerMeshVertex = 8
)

// CPUWaveform is a scrolling wireframe height field: X is a wave phase,
// Z is history (newest in front) and Y is CPU load. Disk activity speeds up
// the secondary wave.
type CPUWaveform struct {
	cfg MetricConfig

	history     []float32
	time        float32
	updateTimer float32
	extraSpeed  float32

	vertices []float32
	indices  []uint32
}

func NewCPUWaveform(cfg MetricConfig) *CPUWaveform {
	return &CPUWaveform{
		cfg:     cfg,
		history: make([]float32, WaveformGridZ),
	}
}

func (v *CPUWaveform) Kind() MetricKind           { return MetricCPU }
func (v *CPUWaveform) IsEnabled() bool            { return v.cfg.Enabled }
func (v *CPUWaveform) Configure(cfg MetricConfig) { v.cfg = cfg }
func (v *CPUWaveform) Config() MetricConfig       { return v.cfg }
func (v *CPUWaveform) History() []float32         { return v.history }
func (v *CPUWaveform) Indices() []uint32          { return v.indices }
func (v *CPUWaveform) VertexCount() int           { return WaveformGridX * WaveformGridZ }

// Init builds the line-list index buffer for the grid.
func (v *CPUWaveform) Init() {
	v.indices = v.indices[:0]
	for z := 0; z < WaveformGridZ; z++ {
		for x := 0; x < WaveformGridX-1; x++ {
			v.indices = append(v.indices, uint32(z*WaveformGridX+x), uint32(z*WaveformGridX+x+1))
		}
	}
	for x := 0; x < WaveformGridX; x++ {
		for z := 0; z < WaveformGridZ-1; z++ {
			v.indices = append(v.indices, uint32(z*WaveformGridX+x), uint32((z+1)*WaveformGridX+x))
		}
	}
}

func (v *CPUWaveform) Update(dt float32, raw RawMetrics) {
	v.time += dt
	v.updateTimer += dt

	disk := raw.Disk / 100
	v.extraSpeed = softFollow(v.extraSpeed, disk, dt, 2)

	if v.updateTimer > waveformInterval {
		v.updateTimer = 0
		copy(v.history[1:], v.history[:len(v.history)-1])
		v.history[0] = v.cfg.EffectiveUsage(raw.CPU)
	}
}

// Load is the most recent history sample.
func (v *CPUWaveform) Load() float32 {
	if len(v.history) == 0 {
		return 0
	}
	return v.history[0]
}

// Vertices rebuilds the grid for the current time. The slice is reused.
func (v *CPUWaveform) Vertices() []float32 {
	v.vertices = v.vertices[:0]
	widthStep := float32(1) / (WaveformGridX - 1)
	depthStep := float32(1) / (WaveformGridZ - 1)
	waveSpeed := 5 + v.extraSpeed*20

	for z := 0; z < WaveformGridZ; z++ {
		zPos := float32(z) * depthStep
		load := v.history[z]
		for x := 0; x < WaveformGridX; x++ {
			xPos := float32(x) * widthStep

			base := math32.Sin(xPos*12+v.time*2) * 0.05
			wave := math32.Sin(xPos*20-v.time*waveSpeed) * load
			yPos := load*1.5 + base + wave

			v.vertices = append(v.vertices,
				xPos, yPos, zPos,
				0, 1, 0,
				xPos, zPos,
			)
		}
	}
	return v.vertices
}

func (v *CPUWaveform) Model(scene mgl32.Mat4) mgl32.Mat4 {
	return scene.Mul4(mgl32.Translate3D(-2, -1, 0)).Mul4(mgl32.Scale3D(4, 2, 4))
}

func (v *CPUWaveform) Color() mgl32.Vec3 {
	load := v.Load()
	return mgl32.Vec3{load, 1 - load, 0.2 + math32.Sin(v.time)*0.1}
}

func (v *CPUWaveform) Cleanup() {
	v.vertices = nil
	v.indices = nil
}

// RAMPulse is a pulsing, slowly tumbling mesh scaled by memory usage.
type RAMPulse struct {
	cfg     MetricConfig
	current float32
	pulse   float32
}

func NewRAMPulse(cfg MetricConfig) *RAMPulse {
	return &RAMPulse{cfg: cfg}
}

func (v *RAMPulse) Kind() MetricKind           { return MetricRAM }
func (v *RAMPulse) Init()                      {}
func (v *RAMPulse) Cleanup()                   {}
func (v *RAMPulse) IsEnabled() bool            { return v.cfg.Enabled }
func (v *RAMPulse) Configure(cfg MetricConfig) { v.cfg = cfg }
func (v *RAMPulse) Config() MetricConfig       { return v.cfg }
func (v *RAMPulse) Usage() float32             { return v.current }

func (v *RAMPulse) Update(dt float32, raw RawMetrics) {
	v.current = softFollow(v.current, raw.RAM, dt, 2)
	v.pulse += dt * (1 + v.cfg.EffectiveUsage(v.current)*0.5)
}

func (v *RAMPulse) Scale() float32 {
	u := v.cfg.EffectiveUsage(v.current)
	return 1 + u*1.5 + math32.Sin(v.pulse)*0.1
}

func (v *RAMPulse) Model(scene mgl32.Mat4) mgl32.Mat4 {
	s := v.Scale()
	return scene.Mul4(mgl32.Scale3D(s, s, s)).
		Mul4(mgl32.HomogRotate3DY(v.pulse * 0.5)).
		Mul4(mgl32.HomogRotate3DX(v.pulse * 0.3))
}

func (v *RAMPulse) Color() mgl32.Vec3 {
	u := v.cfg.EffectiveUsage(v.current)
	return mgl32.Vec3{0.1, 0.5 + u*0.5, 1}
}

// DiskRing is a ring lying flat and spinning faster with disk activity.
type DiskRing struct {
	cfg      MetricConfig
	current  float32
	rotation float32 // degrees
}

func NewDiskRing(cfg MetricConfig) *DiskRing {
	return &DiskRing{cfg: cfg}
}

func (v *DiskRing) Kind() MetricKind           { return MetricDisk }
func (v *DiskRing) Init()                      {}
func (v *DiskRing) Cleanup()                   {}
func (v *DiskRing) IsEnabled() bool            { return v.cfg.Enabled }
func (v *DiskRing) Configure(cfg MetricConfig) { v.cfg = cfg }
func (v *DiskRing) Config() MetricConfig       { return v.cfg }
func (v *DiskRing) Rotation() float32          { return v.rotation }

// Update advances the spin by (1 + 50u) degrees per 60 Hz frame.
func (v *DiskRing) Update(dt float32, raw RawMetrics) {
	v.current = raw.Disk
	u := v.cfg.EffectiveUsage(v.current)
	v.rotation = math32.Mod(v.rotation+(1+u*50)*dt*60, 360)
}

func (v *DiskRing) Scale() float32 {
	u := v.cfg.EffectiveUsage(v.current)
	return (2.2 + u*0.5) / 2.2
}

func (v *DiskRing) Model(scene mgl32.Mat4) mgl32.Mat4 {
	s := v.Scale()
	rot := mgl32.HomogRotate3DX(math32.Pi / 2).Mul4(mgl32.HomogRotate3DZ(mgl32.DegToRad(v.rotation)))
	return scene.Mul4(rot.Mul4(mgl32.Scale3D(s, s, s)))
}

func (v *DiskRing) Color() mgl32.Vec3 {
	u := v.cfg.EffectiveUsage(v.current)
	return mgl32.Vec3{0.5 + u*0.5, 0.5 + u*0.5, 0}
}

// NetworkPulse draws nothing with the default MeshNone; the network layer
// is carried by the particle field. With a mesh configured it pulses with
// throughput.
type NetworkPulse struct {
	cfg     MetricConfig
	current float32 // percent of 1 MiB/s
	pulse   float32
}

func NewNetworkPulse(cfg MetricConfig) *NetworkPulse {
	return &NetworkPulse{cfg: cfg}
}

func (v *NetworkPulse) Kind() MetricKind           { return MetricNetwork }
func (v *NetworkPulse) Init()                      {}
func (v *NetworkPulse) Cleanup()                   {}
func (v *NetworkPulse) IsEnabled() bool            { return v.cfg.Enabled }
func (v *NetworkPulse) Configure(cfg MetricConfig) { v.cfg = cfg }
func (v *NetworkPulse) Config() MetricConfig       { return v.cfg }

func (v *NetworkPulse) Update(dt float32, raw RawMetrics) {
	target := math32.Min(raw.NetBytesPerSec/BytesPerMiB, 1) * 100
	v.current = softFollow(v.current, target, dt, 3)
	v.pulse += dt * (2 + v.cfg.EffectiveUsage(v.current)*4)
}

func (v *NetworkPulse) Model(scene mgl32.Mat4) mgl32.Mat4 {
	u := v.cfg.EffectiveUsage(v.current)
	s := 0.6 + u*1.2 + math32.Sin(v.pulse)*0.05
	return scene.Mul4(mgl32.Scale3D(s, s, s)).Mul4(mgl32.HomogRotate3DY(v.pulse * 0.2))
}

func (v *NetworkPulse) Color() mgl32.Vec3 {
	u := v.cfg.EffectiveUsage(v.current)
	return mgl32.Vec3{0.8, 0.2 + u*0.3, 1}
}
