package sysviz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gekko3d/sysviz/vizrt/rt/core"
	"github.com/gekko3d/sysviz/vizrt/rt/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

type Quality int

const (
	QualityLow Quality = iota
	QualityMedium
	QualityHigh
)

var qualityNames = [...]string{"low", "medium", "high"}

func (q Quality) String() string {
	if q >= 0 && int(q) < len(qualityNames) {
		return qualityNames[q]
	}
	return fmt.Sprintf("Quality(%d)", int(q))
}

// ParseQuality returns QualityHigh and ok=false for unknown names.
func ParseQuality(s string) (Quality, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range qualityNames {
		if name == s {
			return Quality(i), true
		}
	}
	return QualityHigh, false
}

func (q Quality) MarshalText() ([]byte, error) { return []byte(q.String()), nil }

func (q *Quality) UnmarshalText(text []byte) error {
	*q, _ = ParseQuality(string(text))
	return nil
}

// MaxParticles caps the particle pool whatever the configuration asks for.
const MaxParticles = 20000

// presetWidthThreshold marks a layer config as unset.
const presetWidthThreshold = 0.01

type MetricsConfig struct {
	CPU     core.MetricConfig `yaml:"cpu" mapstructure:"cpu"`
	RAM     core.MetricConfig `yaml:"ram" mapstructure:"ram"`
	Disk    core.MetricConfig `yaml:"disk" mapstructure:"disk"`
	Network core.MetricConfig `yaml:"network" mapstructure:"network"`
}

// ByKind returns the metric configs indexed by core.MetricKind.
func (m MetricsConfig) ByKind() [core.MetricCount]core.MetricConfig {
	return [core.MetricCount]core.MetricConfig{m.CPU, m.RAM, m.Disk, m.Network}
}

// Config holds the scene settings, one MetricConfig per metric and one
// effects config per layer (indexed by core.MetricKind).
type Config struct {
	Quality Quality `yaml:"quality" mapstructure:"quality"`

	BloomEnabled   bool    `yaml:"bloom_enabled" mapstructure:"bloom_enabled"`
	BloomThreshold float32 `yaml:"bloom_threshold" mapstructure:"bloom_threshold"`
	BloomStrength  float32 `yaml:"bloom_strength" mapstructure:"bloom_strength"`
	Exposure       float32 `yaml:"exposure" mapstructure:"exposure"`
	FXAAEnabled    bool    `yaml:"fxaa_enabled" mapstructure:"fxaa_enabled"`

	FogEnabled bool    `yaml:"fog_enabled" mapstructure:"fog_enabled"`
	FogDensity float32 `yaml:"fog_density" mapstructure:"fog_density"`

	ParticlesEnabled bool `yaml:"particles_enabled" mapstructure:"particles_enabled"`
	ParticleCount    int  `yaml:"particle_count" mapstructure:"particle_count"`

	RotationSpeed  float32 `yaml:"rotation_speed" mapstructure:"rotation_speed"`
	CameraDistance float32 `yaml:"camera_distance" mapstructure:"camera_distance"`
	CameraHeight   float32 `yaml:"camera_height" mapstructure:"camera_height"`
	FieldOfView    float32 `yaml:"field_of_view" mapstructure:"field_of_view"`

	SkyboxEnabled bool   `yaml:"skybox_enabled" mapstructure:"skybox_enabled"`
	Background    [3]int `yaml:"background" mapstructure:"background"`

	// LayerArchitecture renders each metric into its own layer and
	// composites them; off draws one unified scene.
	LayerArchitecture bool `yaml:"layer_architecture" mapstructure:"layer_architecture"`

	Metrics MetricsConfig                            `yaml:"metrics" mapstructure:"metrics"`
	Layers  [core.MetricCount]core.PostProcessConfig `yaml:"layers" mapstructure:"layers"`
}

func DefaultConfig() *Config {
	cfg := &Config{
		Quality:           QualityHigh,
		BloomEnabled:      true,
		BloomThreshold:    0.7,
		BloomStrength:     0.8,
		Exposure:          1,
		FXAAEnabled:       true,
		FogEnabled:        true,
		FogDensity:        0.045,
		ParticlesEnabled:  true,
		ParticleCount:     6000,
		RotationSpeed:     0.2,
		CameraDistance:    12,
		CameraHeight:      5,
		FieldOfView:       45,
		SkyboxEnabled:     true,
		Background:        [3]int{0, 13, 25},
		LayerArchitecture: true,
		Metrics: MetricsConfig{
			CPU:     core.MetricConfig{Enabled: true, Strength: 1, MeshType: core.MeshSphere},
			RAM:     core.MetricConfig{Enabled: true, Strength: 1, MeshType: core.MeshCube},
			Disk:    core.MetricConfig{Enabled: true, Strength: 1, MeshType: core.MeshRing},
			Network: core.MetricConfig{Enabled: true, Strength: 1, MeshType: core.MeshNone},
		},
	}
	for i := range cfg.Layers {
		cfg.Layers[i] = core.PresetFor(core.MetricKind(i))
	}
	return cfg
}

// GetParticleCount is the particle pool capacity: zero when particles are
// off, the explicit count when set, otherwise the quality tier's default.
func GetParticleCount(cfg *Config) int {
	if !cfg.ParticlesEnabled {
		return 0
	}
	n := cfg.ParticleCount
	if n <= 0 {
		switch cfg.Quality {
		case QualityLow:
			n = 1000
		case QualityMedium:
			n = 3000
		case QualityHigh:
			n = 6000
		default:
			n = 3000
		}
	}
	return min(n, MaxParticles)
}

// ApplyLayerPresets replaces every layer config whose transform is
// effectively empty with its metric's preset, writing the preset back.
// It returns the indices that were replaced.
func (c *Config) ApplyLayerPresets() []int {
	var replaced []int
	for i := range c.Layers {
		if c.Layers[i].Transform.Width < presetWidthThreshold {
			c.Layers[i] = core.PresetFor(core.MetricKind(i))
			replaced = append(replaced, i)
		}
	}
	return replaced
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func clampFloat(v, lo, hi float32) float32 {
	return max(lo, min(v, hi))
}

// Validate clamps recoverable values into range and reports the rest.
func (c *Config) Validate() error {
	for i := range c.Background {
		c.Background[i] = clampInt(c.Background[i], 0, 255)
	}
	c.BloomThreshold = clampFloat(c.BloomThreshold, 0, 10)
	c.BloomStrength = clampFloat(c.BloomStrength, 0, 10)
	c.FogDensity = clampFloat(c.FogDensity, 0, 1)
	c.ParticleCount = clampInt(c.ParticleCount, 0, MaxParticles)
	if c.Quality < QualityLow || c.Quality > QualityHigh {
		c.Quality = QualityHigh
	}
	for _, m := range []*core.MetricConfig{&c.Metrics.CPU, &c.Metrics.RAM, &c.Metrics.Disk, &c.Metrics.Network} {
		m.Threshold = clampFloat(m.Threshold, 0, 100)
		m.Strength = clampFloat(m.Strength, 0, 2)
	}
	for i := range c.Layers {
		c.Layers[i] = c.Layers[i].Normalized()
	}

	var errs []error
	if c.Exposure <= 0 {
		errs = append(errs, fmt.Errorf("exposure must be positive, got %g", c.Exposure))
	}
	if c.FieldOfView <= 0 || c.FieldOfView >= 180 {
		errs = append(errs, fmt.Errorf("field_of_view must be in (0,180), got %g", c.FieldOfView))
	}
	if c.CameraDistance <= 0 {
		errs = append(errs, fmt.Errorf("camera_distance must be positive, got %g", c.CameraDistance))
	}
	return errors.Join(errs...)
}

// BackgroundColor is the background in linear [0,1] RGB.
func (c *Config) BackgroundColor() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(c.Background[0]) / 255,
		float32(c.Background[1]) / 255,
		float32(c.Background[2]) / 255,
	}
}

// Fog packs the fog color and density; density is zero when fog is off.
func (c *Config) Fog() mgl32.Vec4 {
	density := float32(0)
	if c.FogEnabled {
		density = c.FogDensity
	}
	return c.BackgroundColor().Vec4(density)
}

// PostProcessSettings maps the global scene settings onto the post chain.
func (c *Config) PostProcessSettings() gpu.PostProcessSettings {
	return gpu.PostProcessSettings{
		BloomEnabled:   c.BloomEnabled,
		BloomThreshold: c.BloomThreshold,
		BloomStrength:  c.BloomStrength,
		Exposure:       c.Exposure,
		FXAAEnabled:    c.FXAAEnabled,
		Background:     c.BackgroundColor(),
		SkyboxEnabled:  c.SkyboxEnabled,
	}
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}
