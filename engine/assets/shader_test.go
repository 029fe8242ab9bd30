package assets

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testShader = `
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

@compute @workgroup_size(8, 8)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
}

@group(0) @binding(0) var input: texture_2d<f32>;

@vertex
fn draw_vs(@builtin(vertex_index) vi: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(0.0);
}

@fragment
fn draw_fs(@builtin(position) frag_coord: vec4<f32>) -> @location(0) vec4<f32> {
    return vec4<f32>(0.0);
}
`

func TestScanShaderEntryPoints(t *testing.T) {
	s, err := ScanShader("test.wgsl", testShader)
	require.NoError(t, err)
	require.Len(t, s.Entries, 3)

	main, ok := s.Entry("main")
	require.True(t, ok)
	assert.Equal(t, StageCompute, main.Stage)
	assert.Equal(t, [3]uint32{8, 8, 1}, main.Workgroup)

	vs, ok := s.Entry("draw_vs")
	require.True(t, ok)
	assert.Equal(t, StageVertex, vs.Stage)

	fs, ok := s.Entry("draw_fs")
	require.True(t, ok)
	assert.Equal(t, StageFragment, fs.Stage)

	_, ok = s.Entry("missing")
	assert.False(t, ok)
}

func TestScanShaderBindings(t *testing.T) {
	s, err := ScanShader("test.wgsl", testShader)
	require.NoError(t, err)

	decls := s.GroupBindings(0)
	require.Len(t, decls, 4)
	assert.Equal(t, BindingDecl{Group: 0, Index: 0, Name: "parameters", Class: ClassUniform}, decls[0])
	assert.Equal(t, BindingDecl{Group: 0, Index: 1, Name: "acc_struct", Class: ClassAccelerationStructure}, decls[1])
	assert.Equal(t, BindingDecl{Group: 0, Index: 2, Name: "output", Class: ClassStorageTexture}, decls[2])
	assert.Equal(t, BindingDecl{Group: 0, Index: 0, Name: "input", Class: ClassSampledTexture}, decls[3])
}

func TestScanShaderRejectsEmpty(t *testing.T) {
	_, err := ScanShader("empty.wgsl", "// nothing here")
	assert.Error(t, err)
}

func TestLoadShaderMissingFile(t *testing.T) {
	_, err := LoadShader(filepath.Join(t.TempDir(), "nope.wgsl"))
	assert.Error(t, err)
}

func TestShaderWatcherReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.wgsl")
	require.NoError(t, os.WriteFile(path, []byte("@compute fn main() {}"), 0o644))

	w, err := NewShaderWatcher(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("@compute fn main() { }"), 0o644))

	select {
	case got := <-w.Changed():
		assert.Equal(t, path, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no change event delivered")
	}
}

func TestShaderWatcherIgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.wgsl")
	require.NoError(t, os.WriteFile(path, []byte("@compute fn main() {}"), 0o644))

	w, err := NewShaderWatcher(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))

	select {
	case got := <-w.Changed():
		t.Fatalf("unexpected change event for %s", got)
	case <-time.After(300 * time.Millisecond):
	}
}
