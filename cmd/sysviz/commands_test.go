package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/gekko3d/sysviz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sysviz", "config.yaml")

	out, err := execute(t, "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	cfg, err := sysviz.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, sysviz.DefaultConfig(), cfg)

	_, err = execute(t, "--config", path, "config", "init")
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "--config", path, "config", "init", "--force")
	assert.NoError(t, err)
}

func TestConfigShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("exposure: 1.75\nquality: medium\n"), 0o644))

	out, err := execute(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "exposure: 1.75")
	assert.Contains(t, out, "quality: medium")
	assert.Contains(t, out, "blend_mode: additive")
}

func TestConfigShowMissingFileUsesDefaults(t *testing.T) {
	out, err := execute(t, "--config", filepath.Join(t.TempDir(), "none.yaml"), "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "quality: high")
	assert.Contains(t, out, "particle_count: 6000")
}

func TestConfigPath(t *testing.T) {
	out, err := execute(t, "--config", "/tmp/x.yaml", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.yaml\n", out)
}

func TestRunFlags(t *testing.T) {
	cmd := newRunCmd(new(string))
	for _, name := range []string{"debug", "width", "height", "windowed", "unified", "demo"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "1280", cmd.Flags().Lookup("width").DefValue)
}
