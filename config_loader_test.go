package sysviz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gekko3d/sysviz/vizrt/rt/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
quality: low
exposure: 1.5
fog_enabled: false
background: [10, 20, 30]
metrics:
  disk:
    enabled: false
    mesh_type: cube
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, QualityLow, cfg.Quality)
	assert.Equal(t, float32(1.5), cfg.Exposure)
	assert.False(t, cfg.FogEnabled)
	assert.Equal(t, [3]int{10, 20, 30}, cfg.Background)
	assert.False(t, cfg.Metrics.Disk.Enabled)
	assert.Equal(t, core.MeshCube, cfg.Metrics.Disk.MeshType)

	// untouched keys keep their defaults
	assert.Equal(t, float32(0.7), cfg.BloomThreshold)
	assert.True(t, cfg.Metrics.CPU.Enabled)
	assert.Equal(t, core.MeshRing, DefaultConfig().Metrics.Disk.MeshType)
	assert.Equal(t, core.PresetFor(core.MetricCPU), cfg.Layers[0])
}

func TestLoadConfig_EmptyLayersFallBackToPresets(t *testing.T) {
	path := writeConfig(t, `
layers:
  - transform: {x: 0, y: 0, width: 0.5, height: 0.5, visible: true}
    blend_mode: screen
    opacity: 0.5
    render_order: 2
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, core.BlendScreen, cfg.Layers[0].BlendMode)
	assert.Equal(t, float32(0.5), cfg.Layers[0].Opacity)
	assert.Equal(t, 2, cfg.Layers[0].RenderOrder)
	assert.Equal(t, core.RAMDefault(), cfg.Layers[1])
	assert.Equal(t, core.DiskDefault(), cfg.Layers[2])
	assert.Equal(t, core.NetworkDefault(), cfg.Layers[3])
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SYSVIZ_EXPOSURE", "2.5")
	t.Setenv("SYSVIZ_QUALITY", "medium")
	t.Setenv("SYSVIZ_METRICS_CPU_THRESHOLD", "20")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, float32(2.5), cfg.Exposure)
	assert.Equal(t, QualityMedium, cfg.Quality)
	assert.Equal(t, float32(20), cfg.Metrics.CPU.Threshold)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := writeConfig(t, "exposure: -1\n")
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "exposure")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	cfg, err := LoadConfigOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Quality = QualityLow
	cfg.Exposure = 1.25
	cfg.LayerArchitecture = false
	cfg.Metrics.RAM.MeshType = core.MeshSphere
	cfg.Layers[1].BlendMode = core.BlendMultiply
	cfg.Layers[1].Transform = core.BottomRight()

	require.NoError(t, SaveConfig(cfg, path))
	loaded, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, cfg.Quality, loaded.Quality)
	assert.Equal(t, cfg.Exposure, loaded.Exposure)
	assert.False(t, loaded.LayerArchitecture)
	assert.Equal(t, core.MeshSphere, loaded.Metrics.RAM.MeshType)
	assert.Equal(t, core.BlendMultiply, loaded.Layers[1].BlendMode)
	assert.Equal(t, core.BottomRight(), loaded.Layers[1].Transform)
	assert.Equal(t, cfg.Layers[3], loaded.Layers[3])
}
