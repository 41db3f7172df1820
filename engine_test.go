package sysviz

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/gekko3d/sysviz/vizrt/rt/core"
	"github.com/gekko3d/sysviz/vizrt/rt/gpu"
	gputesting "github.com/gekko3d/sysviz/vizrt/rt/gpu/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engineFixture struct {
	rec    *gputesting.Recorder
	clock  *fakeClock
	log    *BufferLogger
	engine *Engine
}

func newEngineFixture(t *testing.T, cfg *Config, opts ...EngineOption) *engineFixture {
	t.Helper()
	f := &engineFixture{
		rec:   gputesting.NewRecorder(320, 240),
		clock: newFakeClock(),
		log:   NewBufferLogger(),
	}
	monitor := &StaticMonitor{Metrics: core.RawMetrics{CPU: 50, RAM: 40, Disk: 20, NetBytesPerSec: 256 * 1024}}
	opts = append([]EngineOption{
		WithLogger(f.log),
		WithClock(f.clock.now),
		WithRand(rand.New(rand.NewSource(1))),
	}, opts...)
	f.engine = NewEngine(f.rec, monitor, cfg, opts...)
	require.NoError(t, f.engine.Initialize(320, 240))
	return f
}

func (f *engineFixture) frame(w, h int) {
	f.clock.advance(16 * time.Millisecond)
	f.engine.RenderFrame(w, h)
}

func indexOf(cmds []gputesting.Command, match func(gputesting.Command) bool) int {
	for i, c := range cmds {
		if match(c) {
			return i
		}
	}
	return -1
}

func lastIndexOf(cmds []gputesting.Command, match func(gputesting.Command) bool) int {
	for i := len(cmds) - 1; i >= 0; i-- {
		if match(cmds[i]) {
			return i
		}
	}
	return -1
}

func withShader(label string) func(gputesting.Command) bool {
	return func(c gputesting.Command) bool {
		return (c.Op == gputesting.OpDraw || c.Op == gputesting.OpDrawInstanced) && c.Shader == label
	}
}

func TestEngine_InitializeWithoutDevice(t *testing.T) {
	e := NewEngine(nil, nil, nil)
	assert.ErrorIs(t, e.Initialize(640, 480), ErrNoDevice)
	assert.NotPanics(t, func() { e.RenderFrame(640, 480) })
}

func TestEngine_LayerFrame(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.rec.Reset()

	f.frame(320, 240)

	cmds := f.rec.Commands
	assert.Equal(t, 1, f.rec.Presents)
	// CPU waveform, RAM cube and Disk ring; the network layer has no mesh.
	assert.Len(t, f.rec.DrawsWith("scene"), 3)
	assert.Len(t, f.rec.DrawsWith("composite"), core.MetricCount)
	assert.Len(t, f.rec.DrawsWith("tonemap"), 1)

	particles := f.rec.DrawsWith("particles")
	require.Len(t, particles, 1)
	assert.Equal(t, f.engine.Layer(int(core.MetricNetwork)).GetColorTexture(), particles[0].Target)
	assert.Equal(t, f.engine.Particles().LiveCount(), particles[0].Count)

	lastLayerDraw := lastIndexOf(cmds, withShader("scene"))
	firstComposite := indexOf(cmds, withShader("composite"))
	firstTonemap := indexOf(cmds, withShader("tonemap"))
	present := indexOf(cmds, func(c gputesting.Command) bool { return c.Op == gputesting.OpPresent })
	require.NotEqual(t, -1, firstComposite)
	assert.Less(t, lastLayerDraw, firstComposite)
	assert.Less(t, firstComposite, firstTonemap)
	assert.Less(t, firstTonemap, present)
	assert.Equal(t, len(cmds)-1, present)
}

func TestEngine_LayerViewportFollowsTransform(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Layers[core.MetricRAM].Transform = core.BottomRight()
	f := newEngineFixture(t, cfg)
	f.rec.Reset()

	f.frame(320, 240)

	ram := f.engine.Layer(int(core.MetricRAM)).GetColorTexture()
	var drawn bool
	for _, d := range f.rec.DrawsWith("scene") {
		if d.Target == ram {
			assert.Equal(t, [4]int{160, 120, 160, 120}, d.Viewport)
			drawn = true
		}
	}
	assert.True(t, drawn)
}

func TestEngine_InvisibleLayersAreNotComposited(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Layers[core.MetricRAM].Transform.Visible = false
	f := newEngineFixture(t, cfg)
	f.rec.Reset()

	f.frame(320, 240)

	composites := f.rec.DrawsWith("composite")
	assert.Len(t, composites, core.MetricCount-1)
	ram := f.engine.Layer(int(core.MetricRAM)).GetColorTexture()
	for _, c := range composites {
		assert.NotContains(t, c.Textures, ram)
	}
	assert.Equal(t, core.MetricCount-1, f.engine.Profiler.Counts["layers"])
}

func TestEngine_ResizePrecedesDraws(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.frame(320, 240)
	f.rec.Reset()

	f.frame(640, 480)

	cmds := f.rec.Commands
	resize := indexOf(cmds, func(c gputesting.Command) bool { return c.Op == gputesting.OpResize })
	firstDraw := indexOf(cmds, func(c gputesting.Command) bool {
		return c.Op == gputesting.OpDraw || c.Op == gputesting.OpDrawInstanced
	})
	require.NotEqual(t, -1, resize)
	assert.Less(t, resize, firstDraw)
	assert.Len(t, f.rec.Ops(gputesting.OpResize), 1)

	for i := 0; i < core.MetricCount; i++ {
		l := f.engine.Layer(i)
		assert.Equal(t, 640, l.Width())
		assert.Equal(t, 480, l.Height())
		w, h, ok := f.rec.ImageSize(l.GetColorTexture())
		require.True(t, ok)
		assert.Equal(t, [2]int{640, 480}, [2]int{w, h})
	}

	f.rec.Reset()
	f.frame(640, 480)
	assert.Empty(t, f.rec.Ops(gputesting.OpResize))
}

func TestEngine_MinimizedFrameDrawsNothing(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.rec.Reset()

	f.frame(0, 0)

	assert.Empty(t, f.rec.Commands)
	assert.Equal(t, 0, f.rec.Presents)
}

func TestEngine_UnifiedFrame(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LayerArchitecture = false
	f := newEngineFixture(t, cfg)
	f.rec.Reset()

	f.frame(320, 240)

	assert.Empty(t, f.rec.DrawsWith("composite"))
	scene := f.rec.DrawsWith("scene")
	require.Len(t, scene, 3)
	particles := f.rec.DrawsWith("particles")
	require.Len(t, particles, 1)
	tonemap := f.rec.DrawsWith("tonemap")
	require.Len(t, tonemap, 1)

	hdr := scene[0].Target
	assert.False(t, hdr.IsZero())
	for _, d := range scene {
		assert.Equal(t, hdr, d.Target)
	}
	assert.Equal(t, hdr, particles[0].Target)
	assert.Contains(t, tonemap[0].Textures, hdr)
	assert.Equal(t, 1, f.rec.Presents)
}

func TestEngine_ComponentFailureDegrades(t *testing.T) {
	rec := gputesting.NewRecorder(320, 240)
	rec.FailTarget = func(desc gpu.TargetDescriptor) bool {
		return strings.HasPrefix(desc.Label, "cpu")
	}
	log := NewBufferLogger()
	clock := newFakeClock()
	e := NewEngine(rec, &StaticMonitor{}, nil, WithLogger(log), WithClock(clock.now))
	require.NoError(t, e.Initialize(320, 240))
	rec.Reset()

	clock.advance(16 * time.Millisecond)
	e.RenderFrame(320, 240)

	assert.False(t, e.Layer(int(core.MetricCPU)).IsValid())
	assert.Len(t, rec.DrawsWith("composite"), core.MetricCount-1)
	assert.Len(t, rec.DrawsWith("tonemap"), 1)
	assert.Equal(t, 1, rec.Presents)
	assert.NotEmpty(t, log.Level("ERROR"))
}

func TestEngine_PostFailureFallsBackToCompositorPresent(t *testing.T) {
	rec := gputesting.NewRecorder(320, 240)
	rec.FailShader = func(label string) bool { return label == "tonemap" }
	clock := newFakeClock()
	e := NewEngine(rec, &StaticMonitor{}, nil, WithClock(clock.now))
	require.NoError(t, e.Initialize(320, 240))
	rec.Reset()

	clock.advance(16 * time.Millisecond)
	e.RenderFrame(320, 240)

	assert.Empty(t, rec.DrawsWith("tonemap"))
	present := rec.DrawsWith("present")
	require.Len(t, present, 1)
	assert.True(t, present[0].Target.IsZero())
	assert.Equal(t, 1, rec.Presents)
}

func TestEngine_FirstFrameLoggedOnce(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.frame(320, 240)
	f.frame(320, 240)
	f.frame(320, 240)

	var firsts int
	for _, msg := range f.log.Level("DEBUG") {
		if strings.Contains(msg, "first frame") {
			firsts++
		}
	}
	assert.Equal(t, 1, firsts)
}

func TestEngine_DebugHUD(t *testing.T) {
	f := newEngineFixture(t, nil, WithDebug(true))
	f.rec.Reset()

	f.frame(320, 240)

	text := f.rec.DrawsWith("text")
	require.Len(t, text, 1)
	assert.True(t, text[0].Target.IsZero())
	cmds := f.rec.Commands
	assert.Less(t, lastIndexOf(cmds, withShader("tonemap")), indexOf(cmds, withShader("text")))

	lines := f.engine.HUDLines()
	assert.Contains(t, lines[0], "FPS")
	assert.Contains(t, strings.Join(lines, "\n"), "particles")
	assert.Contains(t, strings.Join(lines, "\n"), "update")
}

func TestEngine_CameraAdvances(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RotationSpeed = 10
	f := newEngineFixture(t, cfg)

	f.frame(320, 240)
	before := f.engine.Camera().Angle
	f.clock.advance(50 * time.Millisecond)
	f.engine.RenderFrame(320, 240)

	assert.InDelta(t, 0.5, f.engine.Camera().Angle-before, 1e-4)
	assert.Equal(t, float32(12), f.engine.Camera().Distance)
}

func TestEngine_SetConfig(t *testing.T) {
	f := newEngineFixture(t, nil)

	cfg := DefaultConfig()
	cfg.Layers[core.MetricDisk] = core.PostProcessConfig{}
	cfg.Layers[core.MetricCPU].BlendMode = core.BlendScreen
	cfg.Metrics.RAM.Enabled = false
	cfg.CameraDistance = 20
	require.NoError(t, f.engine.SetConfig(cfg))

	got := f.engine.Config()
	assert.Equal(t, core.DiskDefault(), got.Layers[core.MetricDisk])
	assert.Equal(t, core.BlendScreen, f.engine.Layer(int(core.MetricCPU)).GetFXConfig().BlendMode)
	assert.False(t, f.engine.Visualizer(core.MetricRAM).IsEnabled())
	assert.Equal(t, float32(20), f.engine.Camera().Distance)
	// the caller's copy is not modified
	assert.Equal(t, core.PostProcessConfig{}, cfg.Layers[core.MetricDisk])

	f.rec.Reset()
	f.frame(320, 240)
	assert.Len(t, f.rec.DrawsWith("scene"), 2)
}

func TestEngine_SetConfigRejectsInvalid(t *testing.T) {
	f := newEngineFixture(t, nil)
	cfg := DefaultConfig()
	cfg.Exposure = -2

	assert.Error(t, f.engine.SetConfig(cfg))
	assert.Equal(t, float32(1), f.engine.Config().Exposure)
	assert.Error(t, f.engine.SetConfig(nil))
}

func TestEngine_SetConfigResizesParticlePool(t *testing.T) {
	f := newEngineFixture(t, nil)
	require.Equal(t, 6000, f.engine.Particles().Capacity())

	cfg := DefaultConfig()
	cfg.ParticleCount = 0
	cfg.Quality = QualityLow
	require.NoError(t, f.engine.SetConfig(cfg))
	assert.Equal(t, 1000, f.engine.Particles().Capacity())

	cfg.ParticlesEnabled = false
	require.NoError(t, f.engine.SetConfig(cfg))
	assert.Equal(t, 0, f.engine.Particles().Capacity())

	f.rec.Reset()
	f.frame(320, 240)
	assert.Empty(t, f.rec.DrawsWith("particles"))
	assert.Equal(t, 1, f.rec.Presents)
}

func TestEngine_SetLayerFXConfig(t *testing.T) {
	f := newEngineFixture(t, nil)
	fx := core.NewPostProcessConfig()
	fx.Opacity = 3
	fx.TrailsEnabled = true

	require.NoError(t, f.engine.SetLayerFXConfig(1, fx))
	l := f.engine.Layer(1)
	assert.Equal(t, float32(1), l.GetFXConfig().Opacity)
	assert.False(t, l.GetTrailTexture().IsZero())
	assert.Equal(t, float32(1), f.engine.Config().Layers[1].Opacity)

	assert.Error(t, f.engine.SetLayerFXConfig(4, fx))
	assert.Error(t, f.engine.SetLayerFXConfig(-1, fx))
	assert.Nil(t, f.engine.Layer(4))
}

func TestEngine_CleanupReleasesEverythingOnce(t *testing.T) {
	f := newEngineFixture(t, nil, WithDebug(true))
	f.frame(320, 240)

	f.engine.Cleanup()

	assert.True(t, f.rec.Released)
	assert.Equal(t, 0, f.rec.LiveTargets())
	assert.Equal(t, 0, f.rec.LiveShaders())
	assert.Equal(t, 0, f.rec.LiveBuffers())

	assert.NotPanics(t, f.engine.Cleanup)
	presents := f.rec.Presents
	f.frame(320, 240)
	assert.Equal(t, presents, f.rec.Presents)
	assert.Error(t, f.engine.Initialize(320, 240))
}
