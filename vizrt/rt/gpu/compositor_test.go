package gpu_test

import (
	"testing"

	"github.com/gekko3d/sysviz/vizrt/rt/core"
	"github.com/gekko3d/sysviz/vizrt/rt/gpu"
	gputesting "github.com/gekko3d/sysviz/vizrt/rt/gpu/testing"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// compositeFragment models composite.wgsl with every effect off: the layer
// color with its alpha scaled by opacity.
func compositeFragment(u *gpu.UniformBlock, tex []mgl32.Vec4) mgl32.Vec4 {
	c := tex[0]
	return mgl32.Vec4{c[0], c[1], c[2], c[3] * u.Float("opacity")}
}

func fadeFragment(u *gpu.UniformBlock, tex []mgl32.Vec4) mgl32.Vec4 {
	c := tex[0]
	return mgl32.Vec4{c[0], c[1], c[2], 1 - u.Float("fade")}
}

func newTestLayer(t *testing.T, rec *gputesting.Recorder, name string, order int, mode core.BlendMode, opacity float32) *gpu.VisualizerLayer {
	t.Helper()
	l := gpu.NewVisualizerLayer(rec, nil)
	require.True(t, l.Initialize(64, 64, name))
	cfg := core.NewPostProcessConfig()
	cfg.RenderOrder = order
	cfg.BlendMode = mode
	cfg.Opacity = opacity
	l.SetFXConfig(cfg)
	return l
}

func newTestCompositor(t *testing.T, rec *gputesting.Recorder) *gpu.LayerCompositor {
	t.Helper()
	c := gpu.NewLayerCompositor(rec, nil)
	require.True(t, c.Initialize(64, 64))
	return c
}

func TestBlendFuncFor(t *testing.T) {
	tests := []struct {
		mode core.BlendMode
		want gpu.BlendFunc
	}{
		{core.BlendAdditive, gpu.BlendFunc{Src: gpu.BlendSrcAlpha, Dst: gpu.BlendOne}},
		{core.BlendMultiply, gpu.BlendFunc{Src: gpu.BlendDstColor, Dst: gpu.BlendZero}},
		{core.BlendScreen, gpu.BlendFunc{Src: gpu.BlendOne, Dst: gpu.BlendOneMinusSrcColor}},
		{core.BlendNormal, gpu.BlendFunc{Src: gpu.BlendSrcAlpha, Dst: gpu.BlendOneMinusSrcAlpha}},
		{core.BlendOverlay, gpu.BlendFunc{Src: gpu.BlendSrcAlpha, Dst: gpu.BlendOneMinusSrcAlpha}},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, gpu.BlendFuncFor(tt.mode))
		})
	}
}

func TestLayerCompositor_RecordsBlendPerLayer(t *testing.T) {
	rec := gputesting.NewRecorder(64, 64)
	modes := []core.BlendMode{core.BlendAdditive, core.BlendMultiply, core.BlendScreen, core.BlendNormal}
	var layers []*gpu.VisualizerLayer
	for i, m := range modes {
		layers = append(layers, newTestLayer(t, rec, m.String(), i, m, 1))
	}
	c := newTestCompositor(t, rec)
	rec.Reset()

	c.Composite(layers)

	draws := rec.DrawsWith("composite")
	require.Len(t, draws, len(modes))
	for i, d := range draws {
		assert.Equal(t, gpu.BlendFuncFor(modes[i]), d.State.Func, modes[i].String())
		assert.True(t, d.State.Blend)
		assert.False(t, d.State.DepthTest)
		assert.False(t, d.State.DepthWrite)
		assert.Equal(t, c.GetOutputTexture(), d.Target)
		assert.Equal(t, layers[i].GetColorTexture(), d.Textures[0])
	}
	assert.Equal(t, float32(1), draws[1].Uniforms.Float("blendMode"))
	assert.Equal(t, float32(2), draws[2].Uniforms.Float("blendMode"))
	assert.Equal(t, float32(0), draws[3].Uniforms.Float("blendMode"))

	assert.Equal(t, gpu.DefaultState(), rec.State())
}

func TestLayerCompositor_ClearsAccumulationFirst(t *testing.T) {
	rec := gputesting.NewRecorder(64, 64)
	layer := newTestLayer(t, rec, "CPU", 0, core.BlendNormal, 1)
	c := newTestCompositor(t, rec)
	rec.Reset()

	c.Composite([]*gpu.VisualizerLayer{layer})

	var firstClear, firstDraw = -1, -1
	for i, cmd := range rec.Commands {
		if cmd.Op == gputesting.OpClear && cmd.Target == c.GetOutputTexture() && firstClear < 0 {
			firstClear = i
		}
		if cmd.Op == gputesting.OpDraw && firstDraw < 0 {
			firstDraw = i
		}
	}
	require.GreaterOrEqual(t, firstClear, 0)
	assert.Less(t, firstClear, firstDraw)
	assert.Equal(t, mgl32.Vec4{}, rec.Commands[firstClear].Color)
}

func TestSortLayers_Stable(t *testing.T) {
	rec := gputesting.NewRecorder(64, 64)
	orders := []int{3, 1, 2, 1}
	names := []string{"a", "b", "c", "d"}
	var layers []*gpu.VisualizerLayer
	for i, o := range orders {
		layers = append(layers, newTestLayer(t, rec, names[i], o, core.BlendAdditive, 1))
	}

	sorted := gpu.SortLayers(layers)

	var gotOrders []int
	var gotNames []string
	for _, l := range sorted {
		gotOrders = append(gotOrders, l.GetFXConfig().RenderOrder)
		gotNames = append(gotNames, l.Name())
	}
	assert.Equal(t, []int{1, 1, 2, 3}, gotOrders)
	assert.Equal(t, []string{"b", "d", "c", "a"}, gotNames)
	assert.Equal(t, "a", layers[0].Name(), "input slice is not reordered")
}

func TestLayerCompositor_DrawOrderFollowsRenderOrder(t *testing.T) {
	rec := gputesting.NewRecorder(64, 64)
	orders := []int{3, 1, 2, 1}
	var layers []*gpu.VisualizerLayer
	for i, o := range orders {
		layers = append(layers, newTestLayer(t, rec, string(rune('a'+i)), o, core.BlendAdditive, 1))
	}
	c := newTestCompositor(t, rec)
	rec.Reset()

	c.Composite(layers)

	var got []gpu.Handle
	for _, d := range rec.DrawsWith("composite") {
		got = append(got, d.Textures[0])
	}
	want := []gpu.Handle{
		layers[1].GetColorTexture(),
		layers[3].GetColorTexture(),
		layers[2].GetColorTexture(),
		layers[0].GetColorTexture(),
	}
	assert.Equal(t, want, got)
}

func TestLayerCompositor_AlphaOver(t *testing.T) {
	rec := gputesting.NewRecorder(64, 64)
	rec.Fragment["composite"] = compositeFragment

	cpu := newTestLayer(t, rec, "CPU", 0, core.BlendNormal, 1.0)
	ram := newTestLayer(t, rec, "RAM", 1, core.BlendNormal, 0.5)
	disk := newTestLayer(t, rec, "Disk", 2, core.BlendNormal, 0.5)
	c := newTestCompositor(t, rec)

	// A pixel covered by RAM and Disk only.
	ramColor := mgl32.Vec4{1, 0.2, 0, 1}
	diskColor := mgl32.Vec4{0, 0.4, 1, 1}
	rec.SetPixel(cpu.GetColorTexture(), mgl32.Vec4{})
	rec.SetPixel(ram.GetColorTexture(), ramColor)
	rec.SetPixel(disk.GetColorTexture(), diskColor)

	// Passed out of order on purpose.
	c.Composite([]*gpu.VisualizerLayer{disk, cpu, ram})

	over := func(dst, src mgl32.Vec4, opacity float32) mgl32.Vec4 {
		a := src[3] * opacity
		var out mgl32.Vec4
		for i := 0; i < 3; i++ {
			out[i] = src[i]*a + dst[i]*(1-a)
		}
		out[3] = a*a + dst[3]*(1-a)
		return out
	}
	want := over(over(mgl32.Vec4{}, ramColor, 0.5), diskColor, 0.5)

	got := rec.Pixel(c.GetOutputTexture())
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-5, "channel %d", i)
	}
	assert.InDelta(t, 0.25, got[0], 1e-5)
	assert.InDelta(t, 0.5, got[2], 1e-5)
}

func TestLayerCompositor_SkipsInvalidLayers(t *testing.T) {
	rec := gputesting.NewRecorder(64, 64)
	rec.FailTarget = func(desc gpu.TargetDescriptor) bool { return desc.Label == "broken color" }

	good := newTestLayer(t, rec, "good", 0, core.BlendAdditive, 1)
	broken := gpu.NewVisualizerLayer(rec, nil)
	assert.False(t, broken.Initialize(64, 64, "broken"))
	c := newTestCompositor(t, rec)
	rec.Reset()

	c.Composite([]*gpu.VisualizerLayer{broken, good, nil})

	draws := rec.DrawsWith("composite")
	require.Len(t, draws, 1)
	assert.Equal(t, good.GetColorTexture(), draws[0].Textures[0])
}

func TestLayerCompositor_TrailFade(t *testing.T) {
	rec := gputesting.NewRecorder(64, 64)
	rec.Fragment["fade"] = fadeFragment

	layer := newTestLayer(t, rec, "Network", 0, core.BlendAdditive, 1)
	cfg := layer.GetFXConfig()
	cfg.TrailsEnabled = true
	cfg.TrailsFade = 0.9
	layer.SetFXConfig(cfg)
	c := newTestCompositor(t, rec)

	rec.SetPixel(layer.GetColorTexture(), mgl32.Vec4{1, 1, 1, 1})
	c.Composite([]*gpu.VisualizerLayer{layer})
	assert.InDelta(t, 0.1, rec.Pixel(layer.GetTrailTexture())[0], 1e-5)

	c.Composite([]*gpu.VisualizerLayer{layer})
	assert.InDelta(t, 0.19, rec.Pixel(layer.GetTrailTexture())[0], 1e-5)

	draws := rec.DrawsWith("composite")
	require.NotEmpty(t, draws)
	last := draws[len(draws)-1]
	assert.Equal(t, float32(1), last.Uniforms.Float("hasTrail"))
	assert.Equal(t, layer.GetTrailTexture(), last.Textures[1])
}

func TestLayerCompositor_Present(t *testing.T) {
	rec := gputesting.NewRecorder(64, 64)
	rec.Fragment["present"] = func(_ *gpu.UniformBlock, tex []mgl32.Vec4) mgl32.Vec4 { return tex[0] }
	c := newTestCompositor(t, rec)
	rec.SetPixel(c.GetOutputTexture(), mgl32.Vec4{0.3, 0.2, 0.1, 1})

	c.Present()

	draws := rec.DrawsWith("present")
	require.Len(t, draws, 1)
	assert.True(t, draws[0].Target.IsZero())
	assert.Equal(t, mgl32.Vec4{0.3, 0.2, 0.1, 1}, rec.Pixel(gpu.Handle{}))
}

func TestLayerCompositor_ShaderFailure(t *testing.T) {
	rec := gputesting.NewRecorder(64, 64)
	rec.FailShader = func(label string) bool { return label == "composite" }
	layer := newTestLayer(t, rec, "CPU", 0, core.BlendAdditive, 1)

	c := gpu.NewLayerCompositor(rec, nil)
	assert.False(t, c.Initialize(64, 64))
	assert.True(t, c.GetOutputTexture().IsZero())

	rec.Reset()
	c.Composite([]*gpu.VisualizerLayer{layer})
	assert.Empty(t, rec.Draws())
}

func TestLayerCompositor_ResizeAndCleanup(t *testing.T) {
	rec := gputesting.NewRecorder(64, 64)
	c := newTestCompositor(t, rec)
	first := c.GetOutputTexture()

	require.True(t, c.Resize(64, 64))
	assert.Equal(t, first, c.GetOutputTexture())

	require.True(t, c.Resize(128, 32))
	w, h, ok := rec.ImageSize(c.GetOutputTexture())
	require.True(t, ok)
	assert.Equal(t, [2]int{128, 32}, [2]int{w, h})

	c.Cleanup()
	assert.Equal(t, 0, rec.LiveTargets())
	assert.Equal(t, 0, rec.LiveMeshes())
	assert.Equal(t, 0, rec.LiveShaders())
}
