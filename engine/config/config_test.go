package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliosrt/helios/engine/core"
)

func TestMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, BackendSim, cfg.Device.Backend)
	assert.Equal(t, uint32(800), cfg.Window.Width)
	assert.Equal(t, float32(0.2), cfg.Camera.FovY)
	assert.Equal(t, core.InfoLevel, cfg.CoreLogLevel())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "helios.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"

[window]
title = "Trace"
width = 1280
height = 720

[device]
backend = "sim"
headless = true
frame_limit = 10

[camera]
position = [0.0, 1.0, -8.0]
fov_y = 0.5
depth = 250.0
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Trace", cfg.Window.Title)
	assert.Equal(t, uint32(1280), cfg.Window.Width)
	assert.Equal(t, uint32(10), cfg.Device.FrameLimit)
	assert.Equal(t, [3]float32{0, 1, -8}, cfg.Camera.Position)
	assert.Equal(t, float32(250), cfg.Camera.Depth)
	assert.Equal(t, core.DebugLevel, cfg.CoreLogLevel())

	// Sections left out keep their defaults.
	assert.Equal(t, "assets/shaders/raytrace.wgsl", cfg.Shader.Path)
}

func TestRejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "helios.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[device]
backend = "metal"
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown device backend")
}

func TestRejectsEmptyExtent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "helios.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[window]
width = 0
`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
