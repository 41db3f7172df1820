package gpu

import (
	"sort"

	"github.com/gekko3d/sysviz/vizrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// BlendFuncFor returns the blend factor pair a layer is composited with.
func BlendFuncFor(mode core.BlendMode) BlendFunc {
	switch mode {
	case core.BlendAdditive:
		return BlendFunc{Src: BlendSrcAlpha, Dst: BlendOne}
	case core.BlendMultiply:
		return BlendFunc{Src: BlendDstColor, Dst: BlendZero}
	case core.BlendScreen:
		return BlendFunc{Src: BlendOne, Dst: BlendOneMinusSrcColor}
	default:
		return BlendFunc{Src: BlendSrcAlpha, Dst: BlendOneMinusSrcAlpha}
	}
}

// blendModeUniform tells the composite shader how to premultiply its output
// so transparent texels are neutral under the mode's factors.
func blendModeUniform(mode core.BlendMode) float32 {
	switch mode {
	case core.BlendMultiply:
		return 1
	case core.BlendScreen:
		return 2
	}
	return 0
}

// SortLayers returns the layers ordered by ascending render order. Layers
// with equal order keep their relative position.
func SortLayers(layers []*VisualizerLayer) []*VisualizerLayer {
	sorted := make([]*VisualizerLayer, 0, len(layers))
	for _, l := range layers {
		if l != nil {
			sorted = append(sorted, l)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].GetFXConfig().RenderOrder < sorted[j].GetFXConfig().RenderOrder
	})
	return sorted
}

func compositeState(fn BlendFunc) RenderState {
	return RenderState{Blend: true, Func: fn}
}

// LayerCompositor blends layer color textures into an HDR accumulation
// target.
type LayerCompositor struct {
	dev Device
	log Logger

	width  int
	height int

	accum Handle
	quad  Handle

	composite Shader
	fade      Shader
	present   Shader

	time  float32
	valid bool
}

func NewLayerCompositor(dev Device, log Logger) *LayerCompositor {
	return &LayerCompositor{dev: dev, log: orNop(log)}
}

// Initialize compiles the compositor programs and allocates the
// accumulation target. A false return leaves the compositor inert.
func (c *LayerCompositor) Initialize(width, height int) bool {
	if c.composite == nil {
		c.composite = c.dev.CreateShader(CompositeProgram())
		c.fade = c.dev.CreateShader(FadeProgram())
		c.present = c.dev.CreateShader(PresentProgram())
		for _, s := range []Shader{c.composite, c.fade, c.present} {
			if !s.IsValid() {
				c.log.Errorf("compositor: shader %q: %v", s.Label(), ErrShaderInvalid)
			}
		}
	}
	if c.quad.IsZero() {
		quad, err := NewFullscreenQuad(c.dev, "compositor quad")
		if err != nil {
			c.log.Errorf("compositor: %v", err)
			return false
		}
		c.quad = quad
	}
	return c.allocate(width, height)
}

func (c *LayerCompositor) Resize(width, height int) bool {
	if c.valid && width == c.width && height == c.height {
		return true
	}
	return c.allocate(width, height)
}

func (c *LayerCompositor) allocate(width, height int) bool {
	if !c.accum.IsZero() {
		c.dev.DestroyTarget(c.accum)
		c.accum = Handle{}
	}
	c.valid = false
	c.width, c.height = width, height

	accum, err := c.dev.CreateTarget(TargetDescriptor{
		Label:  "compositor accumulation",
		Width:  width,
		Height: height,
		Format: FormatRGBA16F,
	})
	if err != nil {
		c.log.Errorf("compositor: %v", err)
		return false
	}
	c.accum = accum
	c.valid = c.composite != nil && c.composite.IsValid()
	return c.valid
}

// Advance moves the clock animated effects read.
func (c *LayerCompositor) Advance(dt float32) {
	c.time += dt
}

// Composite draws every valid layer, in render order, onto the accumulation
// target. Layer trail targets are faded toward the layer's current color
// first.
func (c *LayerCompositor) Composite(layers []*VisualizerLayer) {
	if !c.valid {
		return
	}
	sorted := SortLayers(layers)

	c.updateTrails(sorted)

	c.dev.BindTarget(c.accum)
	c.dev.Viewport(0, 0, c.width, c.height)
	c.dev.Clear(transparent)

	for _, l := range sorted {
		color := l.GetColorTexture()
		if !l.IsValid() || color.IsZero() {
			continue
		}
		cfg := l.GetFXConfig()
		c.dev.SetState(compositeState(BlendFuncFor(cfg.BlendMode)))

		trail := l.GetTrailTexture()
		c.applyLayerUniforms(cfg, !trail.IsZero())
		c.dev.BindTexture(0, color)
		if trail.IsZero() {
			c.dev.BindTexture(1, color)
		} else {
			c.dev.BindTexture(1, trail)
		}
		c.dev.Draw(c.composite, c.quad)
	}

	c.dev.SetState(DefaultState())
}

func (c *LayerCompositor) updateTrails(layers []*VisualizerLayer) {
	if c.fade == nil || !c.fade.IsValid() {
		return
	}
	for _, l := range layers {
		trail := l.GetTrailTexture()
		if !l.IsValid() || trail.IsZero() {
			continue
		}
		c.dev.BindTarget(trail)
		c.dev.Viewport(0, 0, l.Width(), l.Height())
		c.dev.SetState(compositeState(BlendFunc{Src: BlendSrcAlpha, Dst: BlendOneMinusSrcAlpha}))
		c.fade.SetFloat("fade", l.GetFXConfig().TrailFade())
		c.dev.BindTexture(0, l.GetColorTexture())
		c.dev.Draw(c.fade, c.quad)
	}
}

func enabled(on bool, v float32) float32 {
	if on {
		return v
	}
	return 0
}

func (c *LayerCompositor) applyLayerUniforms(cfg core.PostProcessConfig, hasTrail bool) {
	s := c.composite
	s.SetVec4("tint", mgl32.Vec4{cfg.TintColor[0], cfg.TintColor[1], cfg.TintColor[2], cfg.TintStrength})
	s.SetVec4("glowColor", mgl32.Vec4{cfg.GlowColor[0], cfg.GlowColor[1], cfg.GlowColor[2], enabled(cfg.GlowEnabled, cfg.GlowIntensity)})
	s.SetVec2("resolution", mgl32.Vec2{float32(c.width), float32(c.height)})
	s.SetFloat("opacity", cfg.Opacity)
	s.SetFloat("time", c.time)
	s.SetFloat("pixelate", enabled(cfg.PixelateEnabled, cfg.PixelateSize))
	s.SetFloat("distortion", enabled(cfg.DistortionEnabled, cfg.DistortionAmount))
	s.SetFloat("distortionFreq", cfg.DistortionFreq)
	s.SetFloat("distortionSpeed", cfg.DistortionSpeed)
	s.SetFloat("chromatic", enabled(cfg.ChromaticEnabled, cfg.ChromaticOffset))
	s.SetFloat("scanlines", enabled(cfg.ScanLinesEnabled, cfg.ScanLinesIntensity))
	s.SetFloat("scanlineDensity", cfg.ScanLinesDensity)
	s.SetFloat("noise", enabled(cfg.NoiseEnabled, cfg.NoiseAmount))
	s.SetFloat("vignette", enabled(cfg.VignetteEnabled, cfg.VignetteIntensity))
	s.SetFloat("brightness", cfg.Brightness)
	s.SetFloat("contrast", cfg.Contrast)
	s.SetFloat("saturation", cfg.Saturation)
	s.SetFloat("hueShift", cfg.HueShift)
	if hasTrail {
		s.SetFloat("hasTrail", 1)
	} else {
		s.SetFloat("hasTrail", 0)
	}
	s.SetFloat("bloomThreshold", cfg.BloomThreshold)
	s.SetFloat("bloomIntensity", enabled(cfg.BloomEnabled, cfg.BloomIntensity))
	s.SetFloat("blendMode", blendModeUniform(cfg.BlendMode))
}

// Present copies the accumulated image to the screen without further
// processing.
func (c *LayerCompositor) Present() {
	if !c.valid || !c.present.IsValid() {
		return
	}
	c.dev.BindTarget(Handle{})
	c.dev.Viewport(0, 0, c.width, c.height)
	c.dev.SetState(RenderState{Func: BlendFunc{Src: BlendOne, Dst: BlendZero}})
	c.present.SetFloat("gain", 1)
	c.dev.BindTexture(0, c.accum)
	c.dev.Draw(c.present, c.quad)
	c.dev.SetState(DefaultState())
}

// GetOutputTexture is the accumulation target, zero while invalid.
func (c *LayerCompositor) GetOutputTexture() Handle {
	if !c.valid {
		return Handle{}
	}
	return c.accum
}

func (c *LayerCompositor) Width() int    { return c.width }
func (c *LayerCompositor) Height() int   { return c.height }
func (c *LayerCompositor) IsValid() bool { return c.valid }

func (c *LayerCompositor) Cleanup() {
	if !c.accum.IsZero() {
		c.dev.DestroyTarget(c.accum)
		c.accum = Handle{}
	}
	if !c.quad.IsZero() {
		c.dev.DestroyMesh(c.quad)
		c.quad = Handle{}
	}
	for _, s := range []Shader{c.composite, c.fade, c.present} {
		if s != nil {
			c.dev.DestroyShader(s)
		}
	}
	c.composite, c.fade, c.present = nil, nil, nil
	c.valid = false
}
