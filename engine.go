package sysviz

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/gekko3d/sysviz/vizrt/rt/core"
	"github.com/gekko3d/sysviz/vizrt/rt/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

var ErrNoDevice = errors.New("engine: no gpu device")

// Profiler scope names.
const (
	scopeUpdate    = "update"
	scopeLayers    = "layers"
	scopeComposite = "composite"
	scopeScene     = "scene"
	scopePost      = "post"
	scopeHUD       = "hud"
)

var layerNames = [core.MetricCount]string{"cpu", "ram", "disk", "network"}

type EngineOption func(*Engine)

func WithLogger(l Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock replaces the monotonic clock the frame delta is measured on.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.clock = NewFrameClockAt(now) }
}

// WithRand seeds the particle system.
func WithRand(rng *rand.Rand) EngineOption {
	return func(e *Engine) { e.rng = rng }
}

// WithDebug turns on the HUD overlay and per-frame statistics.
func WithDebug(on bool) EngineOption {
	return func(e *Engine) { e.debug = on }
}

func WithTextRenderer(tr *core.TextRenderer) EngineOption {
	return func(e *Engine) { e.text = tr }
}

// Engine is the single owner of every render subsystem. It is driven from
// one thread: RenderFrame, SetConfig and Cleanup must not run concurrently.
type Engine struct {
	dev     gpu.Device
	monitor SystemMonitor
	cfg     *Config
	log     Logger
	rng     *rand.Rand
	debug   bool

	clock    *FrameClock
	Profiler *Profiler
	camera   *core.OrbitCamera

	visualizers [core.MetricCount]core.Visualizer
	particles   *core.ParticleSystem

	layers       [core.MetricCount]*gpu.VisualizerLayer
	visible      []*gpu.VisualizerLayer
	compositor   *gpu.LayerCompositor
	post         *gpu.PostProcessPipeline
	scene        *gpu.ScenePass
	particlePass *gpu.ParticlePass
	hud          *gpu.HUDPass
	text         *core.TextRenderer

	width  int
	height int
	time   float32
	raw    core.RawMetrics

	fps       float32
	fpsFrames int
	fpsTimer  float32

	initialized bool
	cleaned     bool
	presentErr  bool
}

// NewEngine wires the subsystems around dev. A nil cfg uses DefaultConfig;
// nothing touches the device until Initialize.
func NewEngine(dev gpu.Device, monitor SystemMonitor, cfg *Config, opts ...EngineOption) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg = cfg.Clone()
	}
	if monitor == nil {
		monitor = &StaticMonitor{}
	}
	e := &Engine{
		dev:      dev,
		monitor:  monitor,
		cfg:      cfg,
		log:      NewNopLogger(),
		clock:    NewFrameClock(),
		Profiler: NewProfiler(),
		camera:   core.NewOrbitCamera(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if replaced := e.cfg.ApplyLayerPresets(); len(replaced) > 0 {
		e.log.Debugf("engine: preset effects for layers %v", replaced)
	}
	e.visualizers = core.NewVisualizers(e.cfg.Metrics.ByKind())
	e.particles = core.NewParticleSystem(GetParticleCount(e.cfg), e.rng)
	e.applyCamera()
	return e
}

// Initialize creates every GPU resource at the given screen size. Only a
// missing device is fatal; components that fail to allocate log the failure
// and stay invalid.
func (e *Engine) Initialize(width, height int) error {
	if e.dev == nil {
		return ErrNoDevice
	}
	if e.cleaned {
		return fmt.Errorf("engine: initialize after cleanup")
	}
	if e.initialized {
		return nil
	}
	e.width, e.height = width, height

	caps := e.dev.Capabilities()
	e.particles.SetGPUSimulationAvailable(caps.ComputeShaders)
	e.log.Infof("engine: %s backend, max texture %d, compute %v", caps.Backend, caps.MaxTextureSize, caps.ComputeShaders)

	for _, v := range e.visualizers {
		v.Init()
	}

	e.scene = gpu.NewScenePass(e.dev, e.log)
	e.particlePass = gpu.NewParticlePass(e.dev, e.particles.Capacity(), e.log)

	for i := range e.layers {
		l := gpu.NewVisualizerLayer(e.dev, e.log)
		l.SetFXConfig(e.cfg.Layers[i])
		if !l.Initialize(width, height, layerNames[i]) {
			e.log.Warnf("engine: layer %s disabled until the next resize", layerNames[i])
		}
		e.layers[i] = l
	}

	e.compositor = gpu.NewLayerCompositor(e.dev, e.log)
	if !e.compositor.Initialize(width, height) {
		e.log.Warnf("engine: compositor disabled until the next resize")
	}
	e.post = gpu.NewPostProcessPipeline(e.dev, e.log)
	if !e.post.Initialize(width, height) {
		e.log.Warnf("engine: post-processing disabled until the next resize")
	}

	if e.debug {
		if e.text == nil {
			e.text = core.NewDefaultTextRenderer()
		}
		e.hud = gpu.NewHUDPass(e.dev, e.text, e.log)
	}

	e.initialized = true
	return nil
}

func (e *Engine) applyCamera() {
	e.camera.RotationSpeed = e.cfg.RotationSpeed
	e.camera.Distance = e.cfg.CameraDistance
	e.camera.Height = e.cfg.CameraHeight
	e.camera.FieldOfView = e.cfg.FieldOfView
}

// resize propagates a new screen size to every sized resource. It runs
// before any draw of the frame.
func (e *Engine) resize(width, height int) {
	e.log.Debugf("engine: resize %dx%d -> %dx%d", e.width, e.height, width, height)
	e.width, e.height = width, height
	e.dev.Resize(width, height)
	for _, l := range e.layers {
		l.Resize(width, height)
	}
	e.compositor.Resize(width, height)
	e.post.Resize(width, height)
}

// RenderFrame runs one frame: clock, telemetry, simulation, layers,
// composite (or unified scene), post-processing, overlay and present.
func (e *Engine) RenderFrame(width, height int) {
	if !e.initialized || e.cleaned {
		return
	}
	first := e.clock.First()
	dt := e.clock.Tick()
	e.time += dt

	if width <= 0 || height <= 0 {
		// Minimized; keep the clock running but draw nothing.
		return
	}
	if width != e.width || height != e.height {
		e.resize(width, height)
	}

	e.monitor.Update()
	e.raw = Sample(e.monitor)

	e.Profiler.BeginScope(scopeUpdate)
	for _, v := range e.visualizers {
		if v.IsEnabled() {
			v.Update(dt, e.raw)
		}
	}
	e.particles.Update(dt, e.raw)
	e.camera.Advance(dt)
	e.Profiler.EndScope(scopeUpdate)

	if first {
		e.logFirstFrame()
	}

	settings := e.cfg.PostProcessSettings()
	settings.Time = e.time

	if e.cfg.LayerArchitecture {
		e.Profiler.BeginScope(scopeLayers)
		e.renderLayers()
		e.Profiler.EndScope(scopeLayers)

		e.Profiler.BeginScope(scopeComposite)
		e.compositor.Advance(dt)
		e.compositor.Composite(e.visible)
		e.Profiler.EndScope(scopeComposite)

		e.Profiler.BeginScope(scopePost)
		if e.post.IsValid() {
			e.post.Process(e.compositor.GetOutputTexture(), settings)
		} else {
			e.compositor.Present()
		}
		e.Profiler.EndScope(scopePost)
	} else {
		e.Profiler.BeginScope(scopeScene)
		e.renderUnified(settings)
		e.Profiler.EndScope(scopeScene)
	}

	e.Profiler.SetCount("particles", e.particles.LiveCount())
	e.Profiler.SetCount("layers", len(e.visible))

	if e.debug {
		e.Profiler.BeginScope(scopeHUD)
		e.updateFPS(dt)
		e.drawHUD()
		e.Profiler.EndScope(scopeHUD)
	}

	if err := e.dev.Present(); err != nil {
		if !e.presentErr {
			e.log.Errorf("engine: present: %v", err)
			e.presentErr = true
		}
	} else {
		e.presentErr = false
	}
}

func (e *Engine) logFirstFrame() {
	if !e.log.DebugEnabled() {
		return
	}
	caps := e.dev.Capabilities()
	e.log.Debugf("engine: first frame %dx%d, capabilities %+v", e.width, e.height, caps)
	e.log.Debugf("engine: eye %v view-proj %v", e.camera.Eye(), e.camera.ViewProj(e.aspect(e.width, e.height)))
	e.log.Debugf("engine: particle capacity %d, gpu simulation %v", e.particles.Capacity(), e.particles.GPUSimulationAvailable())
}

func (e *Engine) aspect(w, h int) float32 {
	if h <= 0 {
		return 1
	}
	return float32(w) / float32(h)
}

func (e *Engine) frame(w, h int) gpu.SceneFrame {
	return gpu.SceneFrame{
		ViewProj: e.camera.ViewProj(e.aspect(w, h)),
		Scene:    mgl32.Ident4(),
		Eye:      e.camera.Eye(),
		Time:     e.time,
		Fog:      e.cfg.Fog(),
	}
}

// renderLayers draws each visible layer's metric into its own target and
// collects the layers the compositor should blend. Particles go to the
// network layer.
func (e *Engine) renderLayers() {
	e.visible = e.visible[:0]
	for i, l := range e.layers {
		fx := l.GetFXConfig()
		if !fx.Transform.Visible {
			continue
		}
		if !l.BindForRendering() {
			continue
		}
		x, y, w, h := fx.Transform.Viewport(e.width, e.height)
		if w > 0 && h > 0 {
			e.dev.Viewport(x, y, w, h)
			e.dev.SetState(gpu.DefaultState())
			f := e.frame(w, h)
			e.scene.Draw(e.visualizers[i], f)
			if core.MetricKind(i) == core.MetricNetwork {
				e.particlePass.Draw(e.particles, f.ViewProj, w, h)
			}
		}
		l.Unbind()
		e.visible = append(e.visible, l)
	}
}

// renderUnified draws every visualizer and the particles into the post
// HDR target, or straight to the screen when post-processing is invalid.
func (e *Engine) renderUnified(settings gpu.PostProcessSettings) {
	e.visible = e.visible[:0]
	usePost := e.post.BeginScene()
	if !usePost {
		e.dev.BindTarget(gpu.Handle{})
		e.dev.Viewport(0, 0, e.width, e.height)
		e.dev.Clear(settings.Background.Vec4(1))
		e.dev.SetState(gpu.DefaultState())
	}
	f := e.frame(e.width, e.height)
	for _, v := range e.visualizers {
		e.scene.Draw(v, f)
	}
	e.particlePass.Draw(e.particles, f.ViewProj, e.width, e.height)
	if !usePost {
		return
	}
	e.post.EndScene()

	e.Profiler.BeginScope(scopePost)
	e.post.Render(settings)
	e.Profiler.EndScope(scopePost)
}

func (e *Engine) updateFPS(dt float32) {
	e.fpsFrames++
	e.fpsTimer += dt
	if e.fpsTimer >= 0.5 {
		e.fps = float32(e.fpsFrames) / e.fpsTimer
		e.fpsFrames = 0
		e.fpsTimer = 0
	}
}

// HUDLines is the debug overlay text for the current frame.
func (e *Engine) HUDLines() []string {
	m := e.particles.Smoothed()
	lines := []string{
		fmt.Sprintf("FPS %.0f", e.fps),
		fmt.Sprintf("CPU %5.1f%%  RAM %5.1f%%", e.raw.CPU, e.raw.RAM),
		fmt.Sprintf("Disk %5.1f%%  Net %.1f KB/s", e.raw.Disk, e.raw.NetBytesPerSec/1024),
		fmt.Sprintf("smoothed %.2f %.2f %.2f %.2f", m.CPU, m.RAM, m.Disk, m.Net),
		fmt.Sprintf("particles %d/%d", e.particles.LiveCount(), e.particles.Capacity()),
	}
	return append(lines, e.Profiler.Lines()...)
}

func (e *Engine) drawHUD() {
	if e.hud == nil {
		return
	}
	const scale = 1.5
	lh := e.text.LineHeight(scale)
	lines := e.HUDLines()
	items := make([]core.TextItem, 0, len(lines))
	for i, line := range lines {
		items = append(items, core.TextItem{
			Text:     line,
			Position: [2]float32{10, 10 + float32(i)*lh},
			Scale:    scale,
			Color:    [4]float32{0.7, 1, 0.8, 1},
		})
	}
	e.dev.BindTarget(gpu.Handle{})
	e.dev.Viewport(0, 0, e.width, e.height)
	e.hud.Draw(items, e.width, e.height)
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() *Config { return e.cfg.Clone() }

// SetConfig swaps the configuration between frames. Empty layer transforms
// are replaced by their presets; an invalid config is rejected and the
// previous one stays active.
func (e *Engine) SetConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("engine: nil config")
	}
	next := cfg.Clone()
	if replaced := next.ApplyLayerPresets(); len(replaced) > 0 {
		e.log.Debugf("engine: preset effects for layers %v", replaced)
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	prevParticles := GetParticleCount(e.cfg)
	e.cfg = next
	e.applyCamera()

	metrics := next.Metrics.ByKind()
	for i, v := range e.visualizers {
		v.Configure(metrics[i])
	}
	for i, l := range e.layers {
		if l != nil {
			l.SetFXConfig(next.Layers[i])
		}
	}

	if n := GetParticleCount(next); n != prevParticles {
		e.particles = core.NewParticleSystem(n, e.rng)
		if e.initialized {
			e.particles.SetGPUSimulationAvailable(e.dev.Capabilities().ComputeShaders)
			e.particlePass.Cleanup()
			e.particlePass = gpu.NewParticlePass(e.dev, n, e.log)
		}
		e.log.Infof("engine: particle pool resized %d -> %d", prevParticles, n)
	}
	return nil
}

// SetLayerFXConfig replaces one layer's effects configuration.
func (e *Engine) SetLayerFXConfig(idx int, fx core.PostProcessConfig) error {
	if idx < 0 || idx >= core.MetricCount {
		return fmt.Errorf("engine: layer index %d out of range", idx)
	}
	fx = fx.Normalized()
	e.cfg.Layers[idx] = fx
	if l := e.layers[idx]; l != nil {
		l.SetFXConfig(fx)
	}
	return nil
}

// Layer returns the layer for idx, nil when out of range or before
// Initialize.
func (e *Engine) Layer(idx int) *gpu.VisualizerLayer {
	if idx < 0 || idx >= core.MetricCount {
		return nil
	}
	return e.layers[idx]
}

func (e *Engine) Visualizer(kind core.MetricKind) core.Visualizer {
	if kind < 0 || int(kind) >= core.MetricCount {
		return nil
	}
	return e.visualizers[kind]
}

func (e *Engine) Particles() *core.ParticleSystem { return e.particles }
func (e *Engine) Camera() *core.OrbitCamera       { return e.camera }
func (e *Engine) Size() (int, int)                { return e.width, e.height }

// Cleanup releases every GPU resource and the device. Later calls do
// nothing.
func (e *Engine) Cleanup() {
	if e.cleaned {
		return
	}
	e.cleaned = true
	for _, v := range e.visualizers {
		v.Cleanup()
	}
	if !e.initialized {
		if e.dev != nil {
			e.dev.Release()
		}
		return
	}
	if e.hud != nil {
		e.hud.Cleanup()
	}
	e.particlePass.Cleanup()
	e.scene.Cleanup()
	e.post.Cleanup()
	e.compositor.Cleanup()
	for _, l := range e.layers {
		l.Cleanup()
	}
	e.dev.Release()
	e.log.Debugf("engine: released")
}
