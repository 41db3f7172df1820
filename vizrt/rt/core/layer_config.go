package core

import (
	"fmt"
	"strings"
)

// BlendMode selects how a layer is blended onto the composite.
type BlendMode int

const (
	BlendAdditive BlendMode = iota
	BlendMultiply
	BlendScreen
	BlendNormal
	// BlendOverlay is accepted for configuration compatibility and composites
	// like BlendNormal.
	BlendOverlay
)

var blendModeNames = map[BlendMode]string{
	BlendAdditive: "additive",
	BlendMultiply: "multiply",
	BlendScreen:   "screen",
	BlendNormal:   "normal",
	BlendOverlay:  "overlay",
}

func (m BlendMode) String() string {
	if s, ok := blendModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("BlendMode(%d)", int(m))
}

// ParseBlendMode is case-insensitive. Unknown names report ok=false and
// return BlendAdditive.
func ParseBlendMode(s string) (BlendMode, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range blendModeNames {
		if name == s {
			return m, true
		}
	}
	return BlendAdditive, false
}

func (m BlendMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *BlendMode) UnmarshalText(text []byte) error {
	*m, _ = ParseBlendMode(string(text))
	return nil
}

// LayerTransform is a normalized screen rectangle in [0,1] plus display flags.
type LayerTransform struct {
	X          float32 `yaml:"x" mapstructure:"x"`
	Y          float32 `yaml:"y" mapstructure:"y"`
	Width      float32 `yaml:"width" mapstructure:"width"`
	Height     float32 `yaml:"height" mapstructure:"height"`
	AnchorX    float32 `yaml:"anchor_x" mapstructure:"anchor_x"`
	AnchorY    float32 `yaml:"anchor_y" mapstructure:"anchor_y"`
	Depth      float32 `yaml:"depth" mapstructure:"depth"`
	Rotation   float32 `yaml:"rotation" mapstructure:"rotation"`
	LockAspect bool    `yaml:"lock_aspect" mapstructure:"lock_aspect"`
	Visible    bool    `yaml:"visible" mapstructure:"visible"`
}

func FullScreen() LayerTransform {
	return LayerTransform{Width: 1, Height: 1, Visible: true}
}

func TopLeft() LayerTransform {
	return LayerTransform{Width: 0.5, Height: 0.5, Visible: true}
}

func TopRight() LayerTransform {
	return LayerTransform{X: 0.5, Width: 0.5, Height: 0.5, Visible: true}
}

func BottomLeft() LayerTransform {
	return LayerTransform{Y: 0.5, Width: 0.5, Height: 0.5, Visible: true}
}

func BottomRight() LayerTransform {
	return LayerTransform{X: 0.5, Y: 0.5, Width: 0.5, Height: 0.5, Visible: true}
}

// Centered returns a w x h rectangle centered on screen.
func Centered(w, h float32) LayerTransform {
	return LayerTransform{X: (1 - w) / 2, Y: (1 - h) / 2, Width: w, Height: h, Visible: true}
}

// QuadLayout maps index%4 to TopLeft, TopRight, BottomLeft, BottomRight.
func QuadLayout(index int) LayerTransform {
	switch ((index % 4) + 4) % 4 {
	case 0:
		return TopLeft()
	case 1:
		return TopRight()
	case 2:
		return BottomLeft()
	default:
		return BottomRight()
	}
}

// Viewport converts the normalized rectangle to pixels for a screen size.
func (t LayerTransform) Viewport(screenW, screenH int) (x, y, w, h int) {
	x = int(t.X * float32(screenW))
	y = int(t.Y * float32(screenH))
	w = int(t.Width * float32(screenW))
	h = int(t.Height * float32(screenH))
	return x, y, w, h
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Clamped returns the transform with its rectangle limited to the unit square.
func (t LayerTransform) Clamped() LayerTransform {
	t.X = clamp01(t.X)
	t.Y = clamp01(t.Y)
	t.Width = clamp01(t.Width)
	t.Height = clamp01(t.Height)
	if t.X+t.Width > 1 {
		t.Width = 1 - t.X
	}
	if t.Y+t.Height > 1 {
		t.Height = 1 - t.Y
	}
	return t
}

// PostProcessConfig is the per-layer effects and compositing configuration.
type PostProcessConfig struct {
	Transform LayerTransform `yaml:"transform" mapstructure:"transform"`

	BloomEnabled   bool    `yaml:"bloom_enabled" mapstructure:"bloom_enabled"`
	BloomThreshold float32 `yaml:"bloom_threshold" mapstructure:"bloom_threshold"`
	BloomIntensity float32 `yaml:"bloom_intensity" mapstructure:"bloom_intensity"`
	BloomRadius    float32 `yaml:"bloom_radius" mapstructure:"bloom_radius"`

	GlowEnabled   bool       `yaml:"glow_enabled" mapstructure:"glow_enabled"`
	GlowColor     [3]float32 `yaml:"glow_color" mapstructure:"glow_color"`
	GlowIntensity float32    `yaml:"glow_intensity" mapstructure:"glow_intensity"`
	GlowSize      float32    `yaml:"glow_size" mapstructure:"glow_size"`

	Brightness   float32    `yaml:"brightness" mapstructure:"brightness"`
	Contrast     float32    `yaml:"contrast" mapstructure:"contrast"`
	Saturation   float32    `yaml:"saturation" mapstructure:"saturation"`
	HueShift     float32    `yaml:"hue_shift" mapstructure:"hue_shift"`
	TintColor    [3]float32 `yaml:"tint_color" mapstructure:"tint_color"`
	TintStrength float32    `yaml:"tint_strength" mapstructure:"tint_strength"`

	DistortionEnabled bool    `yaml:"distortion_enabled" mapstructure:"distortion_enabled"`
	DistortionAmount  float32 `yaml:"distortion_amount" mapstructure:"distortion_amount"`
	DistortionFreq    float32 `yaml:"distortion_freq" mapstructure:"distortion_freq"`
	DistortionSpeed   float32 `yaml:"distortion_speed" mapstructure:"distortion_speed"`

	ChromaticEnabled bool    `yaml:"chromatic_enabled" mapstructure:"chromatic_enabled"`
	ChromaticOffset  float32 `yaml:"chromatic_offset" mapstructure:"chromatic_offset"`
	ChromaticFalloff float32 `yaml:"chromatic_falloff" mapstructure:"chromatic_falloff"`

	VignetteEnabled   bool       `yaml:"vignette_enabled" mapstructure:"vignette_enabled"`
	VignetteIntensity float32    `yaml:"vignette_intensity" mapstructure:"vignette_intensity"`
	VignetteRadius    float32    `yaml:"vignette_radius" mapstructure:"vignette_radius"`
	VignetteColor     [3]float32 `yaml:"vignette_color" mapstructure:"vignette_color"`

	ScanLinesEnabled   bool    `yaml:"scanlines_enabled" mapstructure:"scanlines_enabled"`
	ScanLinesDensity   float32 `yaml:"scanlines_density" mapstructure:"scanlines_density"`
	ScanLinesIntensity float32 `yaml:"scanlines_intensity" mapstructure:"scanlines_intensity"`
	ScanLinesSpeed     float32 `yaml:"scanlines_speed" mapstructure:"scanlines_speed"`

	NoiseEnabled  bool    `yaml:"noise_enabled" mapstructure:"noise_enabled"`
	NoiseAmount   float32 `yaml:"noise_amount" mapstructure:"noise_amount"`
	NoiseAnimated bool    `yaml:"noise_animated" mapstructure:"noise_animated"`

	PixelateEnabled bool    `yaml:"pixelate_enabled" mapstructure:"pixelate_enabled"`
	PixelateSize    float32 `yaml:"pixelate_size" mapstructure:"pixelate_size"`

	EdgeGlowEnabled   bool       `yaml:"edge_glow_enabled" mapstructure:"edge_glow_enabled"`
	EdgeGlowColor     [3]float32 `yaml:"edge_glow_color" mapstructure:"edge_glow_color"`
	EdgeGlowWidth     float32    `yaml:"edge_glow_width" mapstructure:"edge_glow_width"`
	EdgeGlowIntensity float32    `yaml:"edge_glow_intensity" mapstructure:"edge_glow_intensity"`

	MotionBlurEnabled bool    `yaml:"motion_blur_enabled" mapstructure:"motion_blur_enabled"`
	MotionBlurAmount  float32 `yaml:"motion_blur_amount" mapstructure:"motion_blur_amount"`
	MotionBlurSamples int     `yaml:"motion_blur_samples" mapstructure:"motion_blur_samples"`

	TrailsEnabled bool    `yaml:"trails_enabled" mapstructure:"trails_enabled"`
	TrailsFade    float32 `yaml:"trails_fade" mapstructure:"trails_fade"`

	BlendMode   BlendMode `yaml:"blend_mode" mapstructure:"blend_mode"`
	Opacity     float32   `yaml:"opacity" mapstructure:"opacity"`
	RenderOrder int       `yaml:"render_order" mapstructure:"render_order"`
}

// NewPostProcessConfig returns a full-screen additive layer with every
// effect disabled and the effect magnitudes at their defaults.
func NewPostProcessConfig() PostProcessConfig {
	return PostProcessConfig{
		Transform:          FullScreen(),
		BloomThreshold:     0.8,
		BloomIntensity:     1,
		BloomRadius:        5,
		GlowColor:          [3]float32{1, 1, 1},
		GlowIntensity:      0.5,
		GlowSize:           3,
		Brightness:         1,
		Contrast:           1,
		Saturation:         1,
		TintColor:          [3]float32{1, 1, 1},
		DistortionFreq:     10,
		DistortionSpeed:    1,
		ChromaticOffset:    2,
		ChromaticFalloff:   0.5,
		VignetteIntensity:  0.3,
		VignetteRadius:     0.8,
		ScanLinesDensity:   100,
		ScanLinesIntensity: 0.2,
		NoiseAmount:        0.05,
		NoiseAnimated:      true,
		PixelateSize:       4,
		EdgeGlowColor:      [3]float32{1, 1, 1},
		EdgeGlowWidth:      2,
		EdgeGlowIntensity:  1,
		MotionBlurAmount:   0.5,
		MotionBlurSamples:  8,
		TrailsFade:         0.9,
		BlendMode:          BlendAdditive,
		Opacity:            1,
	}
}

// HasTrails reports whether the layer needs a persistence target.
// Motion blur is rendered through the same persistence target.
func (c PostProcessConfig) HasTrails() bool {
	return c.TrailsEnabled || c.MotionBlurEnabled
}

// TrailFade is the per-frame retention factor of the persistence target.
func (c PostProcessConfig) TrailFade() float32 {
	switch {
	case c.TrailsEnabled:
		return clamp01(c.TrailsFade)
	case c.MotionBlurEnabled:
		return clamp01(c.MotionBlurAmount)
	}
	return 0
}

// Normalized clamps opacity and the transform rectangle into range.
func (c PostProcessConfig) Normalized() PostProcessConfig {
	c.Opacity = clamp01(c.Opacity)
	c.TrailsFade = clamp01(c.TrailsFade)
	c.Transform = c.Transform.Clamped()
	if c.MotionBlurSamples < 1 {
		c.MotionBlurSamples = 1
	}
	return c
}

// Per-metric effect presets.

func CPUDefault() PostProcessConfig {
	cfg := NewPostProcessConfig()
	cfg.BloomEnabled = true
	cfg.BloomIntensity = 0.8
	cfg.GlowEnabled = true
	cfg.GlowColor = [3]float32{0.2, 0.5, 1.0}
	cfg.GlowIntensity = 0.6
	cfg.RenderOrder = 0
	return cfg
}

func RAMDefault() PostProcessConfig {
	cfg := NewPostProcessConfig()
	cfg.BloomEnabled = true
	cfg.BloomIntensity = 0.5
	cfg.GlowEnabled = true
	cfg.GlowColor = [3]float32{0.2, 1.0, 0.3}
	cfg.GlowIntensity = 0.5
	cfg.ScanLinesEnabled = true
	cfg.ScanLinesIntensity = 0.1
	cfg.RenderOrder = 1
	return cfg
}

func DiskDefault() PostProcessConfig {
	cfg := NewPostProcessConfig()
	cfg.BloomEnabled = true
	cfg.BloomIntensity = 1.0
	cfg.GlowEnabled = true
	cfg.GlowColor = [3]float32{1.0, 0.8, 0.2}
	cfg.GlowIntensity = 0.7
	cfg.MotionBlurEnabled = true
	cfg.MotionBlurAmount = 0.3
	cfg.RenderOrder = 2
	return cfg
}

func NetworkDefault() PostProcessConfig {
	cfg := NewPostProcessConfig()
	cfg.ChromaticEnabled = true
	cfg.ChromaticOffset = 3.0
	cfg.GlowEnabled = true
	cfg.GlowColor = [3]float32{0.8, 0.2, 1.0}
	cfg.GlowIntensity = 0.6
	cfg.TrailsEnabled = true
	cfg.TrailsFade = 0.85
	cfg.RenderOrder = 3
	return cfg
}

// PresetFor returns the default effects for a metric layer.
func PresetFor(kind MetricKind) PostProcessConfig {
	switch kind {
	case MetricCPU:
		return CPUDefault()
	case MetricRAM:
		return RAMDefault()
	case MetricDisk:
		return DiskDefault()
	default:
		return NetworkDefault()
	}
}
