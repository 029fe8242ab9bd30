package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliosrt/helios/engine/config"
	"github.com/heliosrt/helios/engine/math"
	"github.com/heliosrt/helios/engine/renderer"
)

const smokeShader = `
struct Parameters {
    cam_position: vec3<f32>,
    depth: f32,
    cam_orientation: vec4<f32>,
    fov: vec2<f32>,
    pad: vec2<f32>,
};

@group(0) @binding(0) var<uniform> parameters: Parameters;
@group(0) @binding(1) var acc_struct: acceleration_structure;
@group(0) @binding(2) var output: texture_storage_2d<rgba16float, write>;

@compute @workgroup_size(8, 4)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
}

@group(1) @binding(0) var input: texture_2d<f32>;

@vertex
fn draw_vs(@builtin(vertex_index) vi: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(0.0);
}

@fragment
fn draw_fs(@builtin(position) frag_coord: vec4<f32>) -> @location(0) vec4<f32> {
    return vec4<f32>(0.0);
}
`

func smokeScene() *renderer.Scene {
	return &renderer.Scene{
		Mesh: renderer.TriangleMesh{
			Vertices: []math.Vec3{
				math.NewVec3(-0.5, -0.5, 0),
				math.NewVec3(0, 0.5, 0),
				math.NewVec3(0.5, -0.5, 0),
			},
			Indices: []uint16{0, 1, 2},
		},
		Placements: []renderer.Placement{{
			Transform: math.NewMat3x4Identity(),
			Mask:      0xFF,
		}},
	}
}

func smokeConfig(t *testing.T) *config.Config {
	t.Helper()
	shaderPath := filepath.Join(t.TempDir(), "raytrace.wgsl")
	require.NoError(t, os.WriteFile(shaderPath, []byte(smokeShader), 0o644))

	cfg := config.Default()
	cfg.Device.Headless = true
	cfg.Device.FrameLimit = 2
	cfg.Shader.Path = shaderPath
	cfg.Shader.Watch = false
	return cfg
}

func TestHeadlessRunRendersFrameLimit(t *testing.T) {
	eng, err := New(smokeConfig(t), smokeScene())
	require.NoError(t, err)
	require.NoError(t, eng.Initialize())
	assert.Equal(t, EngineStageInitialized, eng.Stage())

	require.NoError(t, eng.Run())
	assert.Equal(t, EngineStageShuttingDown, eng.Stage())
}

func TestEngineRefusesNilScene(t *testing.T) {
	_, err := New(config.Default(), nil)
	assert.Error(t, err)
}

func TestRunBeforeInitializeFails(t *testing.T) {
	eng, err := New(smokeConfig(t), smokeScene())
	require.NoError(t, err)
	assert.Error(t, eng.Run())
}
