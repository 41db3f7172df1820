package core

// ParticleInstance matches the per-instance attributes in particles.wgsl
// struct Instance { pos: vec3<f32>, size: f32, color: vec4<f32> }
type ParticleInstance struct {
	Pos   [3]float32
	Size  float32
	Color [4]float32
}

// RawMetrics is one telemetry sample as reported by the system monitor:
// percentages in [0,100] and network throughput in bytes per second.
type RawMetrics struct {
	CPU            float32
	RAM            float32
	Disk           float32
	NetBytesPerSec float32
}
