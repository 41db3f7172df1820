package gpu

import (
	"fmt"

	"github.com/gekko3d/sysviz/vizrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

var transparent = mgl32.Vec4{0, 0, 0, 0}

// VisualizerLayer owns one metric's offscreen HDR color+depth target and, when
// its effects need persistence, a trail target of the same size.
type VisualizerLayer struct {
	dev Device
	log Logger

	name   string
	width  int
	height int

	color Handle
	trail Handle
	fx    core.PostProcessConfig
	valid bool
}

func NewVisualizerLayer(dev Device, log Logger) *VisualizerLayer {
	return &VisualizerLayer{
		dev: dev,
		log: orNop(log),
		fx:  core.NewPostProcessConfig(),
	}
}

// Initialize allocates the layer's targets. On failure the layer stays
// blank and invalid until the next successful Resize.
func (l *VisualizerLayer) Initialize(width, height int, name string) bool {
	l.name = name
	return l.allocate(width, height)
}

// Resize recreates the targets when the size changes. Same-size calls on a
// valid layer keep every handle.
func (l *VisualizerLayer) Resize(width, height int) bool {
	if l.valid && width == l.width && height == l.height {
		return true
	}
	return l.allocate(width, height)
}

func (l *VisualizerLayer) allocate(width, height int) bool {
	l.release()
	l.width, l.height = width, height

	if width <= 0 || height <= 0 {
		l.log.Warnf("layer %q: refusing %dx%d target", l.name, width, height)
		return false
	}

	color, err := l.dev.CreateTarget(TargetDescriptor{
		Label:  l.name + " color",
		Width:  width,
		Height: height,
		Format: FormatRGBA16F,
		Depth:  true,
	})
	if err != nil {
		l.log.Errorf("layer %q: %v", l.name, err)
		return false
	}
	l.color = color

	if l.fx.HasTrails() {
		if err := l.allocateTrail(); err != nil {
			l.log.Errorf("layer %q: %v", l.name, err)
			l.release()
			return false
		}
	}

	l.valid = true
	return true
}

func (l *VisualizerLayer) allocateTrail() error {
	trail, err := l.dev.CreateTarget(TargetDescriptor{
		Label:  l.name + " trail",
		Width:  l.width,
		Height: l.height,
		Format: FormatRGBA16F,
	})
	if err != nil {
		return fmt.Errorf("trail target: %w", err)
	}
	l.trail = trail

	l.dev.BindTarget(trail)
	l.dev.Viewport(0, 0, l.width, l.height)
	l.dev.Clear(transparent)
	l.dev.BindTarget(Handle{})
	return nil
}

func (l *VisualizerLayer) release() {
	if !l.trail.IsZero() {
		l.dev.DestroyTarget(l.trail)
		l.trail = Handle{}
	}
	if !l.color.IsZero() {
		l.dev.DestroyTarget(l.color)
		l.color = Handle{}
	}
	l.valid = false
}

// BindForRendering makes the layer the current target, sized to its full
// backing texture and cleared to transparent black.
func (l *VisualizerLayer) BindForRendering() bool {
	if !l.valid {
		return false
	}
	l.dev.BindTarget(l.color)
	l.dev.Viewport(0, 0, l.width, l.height)
	l.dev.Clear(transparent)
	return true
}

func (l *VisualizerLayer) Unbind() {
	l.dev.BindTarget(Handle{})
}

// SetFXConfig replaces the effects configuration, creating or dropping the
// trail target when persistence is toggled.
func (l *VisualizerLayer) SetFXConfig(cfg core.PostProcessConfig) {
	cfg = cfg.Normalized()
	wasTrails := l.fx.HasTrails()
	l.fx = cfg
	if !l.valid || wasTrails == cfg.HasTrails() {
		return
	}
	if cfg.HasTrails() {
		if err := l.allocateTrail(); err != nil {
			l.log.Errorf("layer %q: %v", l.name, err)
		}
		return
	}
	if !l.trail.IsZero() {
		l.dev.DestroyTarget(l.trail)
		l.trail = Handle{}
	}
}

func (l *VisualizerLayer) GetFXConfig() core.PostProcessConfig { return l.fx }

// GetColorTexture is zero while the layer is invalid.
func (l *VisualizerLayer) GetColorTexture() Handle { return l.color }
func (l *VisualizerLayer) GetTrailTexture() Handle { return l.trail }

func (l *VisualizerLayer) Name() string  { return l.name }
func (l *VisualizerLayer) Width() int    { return l.width }
func (l *VisualizerLayer) Height() int   { return l.height }
func (l *VisualizerLayer) IsValid() bool { return l.valid }

// Viewport is the pixel rectangle of the layer's transform on its target.
func (l *VisualizerLayer) Viewport() (x, y, w, h int) {
	return l.fx.Transform.Viewport(l.width, l.height)
}

func (l *VisualizerLayer) Cleanup() {
	l.release()
}
