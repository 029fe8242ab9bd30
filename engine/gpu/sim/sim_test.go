package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliosrt/helios/engine/gpu"
)

const traceWGSL = `
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

func computeLayout() gpu.BindGroupLayout {
	return gpu.BindGroupLayout{Bindings: []gpu.Binding{
		{Name: "parameters", Kind: gpu.BindingUniform, Index: 0},
		{Name: "acc_struct", Kind: gpu.BindingAccelerationStructure, Index: 1},
		{Name: "output", Kind: gpu.BindingStorageTexture, Index: 2},
	}}
}

func TestDestroyWhileInFlightIsViolation(t *testing.T) {
	d := New()
	buf, err := d.CreateBuffer(gpu.BufferDesc{Name: "scratch", Size: 1024, Memory: gpu.MemoryDevice})
	require.NoError(t, err)

	enc, err := d.CreateCommandEncoder(gpu.CommandEncoderDesc{Name: "test", BufferCount: 2})
	require.NoError(t, err)
	enc.Begin()
	blasBuf, err := d.CreateBuffer(gpu.BufferDesc{Name: "blas", Size: 4096, Memory: gpu.MemoryDevice})
	require.NoError(t, err)
	blas, err := d.CreateAccelerationStructure(gpu.AccelerationStructureDesc{
		Name: "triangle", Kind: gpu.StructureBottomLevel, Buffer: blasBuf, Size: 4096,
	})
	require.NoError(t, err)
	vtx, err := d.CreateBuffer(gpu.BufferDesc{Name: "vertices", Size: 36, Memory: gpu.MemoryShared})
	require.NoError(t, err)

	pass := enc.Compute()
	pass.BuildBottomLevel(blas, []gpu.Mesh{{
		VertexData: gpu.BufferRange{Buffer: vtx}, VertexCount: 3, VertexStride: 12, TriangleCount: 1,
	}}, gpu.BufferRange{Buffer: buf})
	pass.End()

	sp, err := d.Submit(enc)
	require.NoError(t, err)
	require.NotZero(t, sp)

	// Too early: the submission has not been waited on.
	d.DestroyBuffer(buf)
	require.NotEmpty(t, d.Violations())
	assert.Contains(t, d.Violations()[0], "in flight")

	ok, err := d.Wait(sp, gpu.WaitForever)
	require.NoError(t, err)
	require.True(t, ok)

	// After the wait, destruction is clean.
	before := len(d.Violations())
	d.DestroyBuffer(vtx)
	d.DestroyAccelerationStructure(blas)
	d.DestroyBuffer(blasBuf)
	assert.Len(t, d.Violations(), before)
}

func TestManualCompletionStallsFiniteWaits(t *testing.T) {
	d := New()
	d.SetManualCompletion(true)

	enc, err := d.CreateCommandEncoder(gpu.CommandEncoderDesc{Name: "test", BufferCount: 2})
	require.NoError(t, err)
	enc.Begin()
	sp, err := d.Submit(enc)
	require.NoError(t, err)

	done, err := d.Wait(sp, 1000)
	require.NoError(t, err)
	assert.False(t, done, "finite wait should stall until Complete")

	d.Complete(sp)
	done, err = d.Wait(sp, 1000)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestWaitOnZeroSyncPoint(t *testing.T) {
	d := New()
	done, err := d.Wait(0, gpu.WaitForever)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestWaitOnUnknownSyncPointFails(t *testing.T) {
	d := New()
	_, err := d.Wait(gpu.SyncPoint(42), gpu.WaitForever)
	assert.Error(t, err)
}

func TestLeakReport(t *testing.T) {
	d := New()
	_, err := d.CreateBuffer(gpu.BufferDesc{Name: "forgotten", Size: 64, Memory: gpu.MemoryDevice})
	require.NoError(t, err)

	report := d.LeakReport()
	require.Len(t, report, 1)
	assert.Contains(t, report[0], `buffer "forgotten"`)
}

func TestSwapchainImagesAreNotLeaks(t *testing.T) {
	d := New()
	_, err := d.Resize(gpu.SurfaceConfig{
		Size: gpu.Extent{Width: 64, Height: 64}, Usage: gpu.TextureUsageTarget, FrameCount: 3,
	})
	require.NoError(t, err)
	assert.Empty(t, d.LeakReport())
}

func TestPipelineLayoutMismatchFailsCreation(t *testing.T) {
	d := New()
	shader, err := d.CreateShader(gpu.ShaderDesc{Name: "trace", Source: traceWGSL})
	require.NoError(t, err)

	// Missing the storage-image binding the shader declares.
	badLayout := gpu.BindGroupLayout{Bindings: []gpu.Binding{
		{Name: "parameters", Kind: gpu.BindingUniform, Index: 0},
		{Name: "acc_struct", Kind: gpu.BindingAccelerationStructure, Index: 1},
	}}
	_, err = d.CreateComputePipeline(gpu.ComputePipelineDesc{
		Name: "ray-trace", Group: 0, Layout: badLayout, Shader: shader, Entry: "main",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "layout declares 2 bindings")

	// The matching layout succeeds and reports the shader's workgroup size.
	p, err := d.CreateComputePipeline(gpu.ComputePipelineDesc{
		Name: "ray-trace", Group: 0, Layout: computeLayout(), Shader: shader, Entry: "main",
	})
	require.NoError(t, err)
	assert.Equal(t, [3]uint32{8, 4, 1}, d.WorkgroupSize(p))
}

func TestMissingEntryPointFailsCreation(t *testing.T) {
	d := New()
	shader, err := d.CreateShader(gpu.ShaderDesc{Name: "trace", Source: traceWGSL})
	require.NoError(t, err)

	_, err = d.CreateComputePipeline(gpu.ComputePipelineDesc{
		Name: "ray-trace", Group: 0, Layout: computeLayout(), Shader: shader, Entry: "missing",
	})
	assert.Error(t, err)
}

func TestSamePassTopAndBottomBuildIsViolation(t *testing.T) {
	d := New()

	blasBuf, _ := d.CreateBuffer(gpu.BufferDesc{Name: "blas", Size: 4096, Memory: gpu.MemoryDevice})
	blas, err := d.CreateAccelerationStructure(gpu.AccelerationStructureDesc{
		Name: "triangle", Kind: gpu.StructureBottomLevel, Buffer: blasBuf, Size: 4096,
	})
	require.NoError(t, err)
	tlasBuf, _ := d.CreateBuffer(gpu.BufferDesc{Name: "tlas", Size: 4096, Memory: gpu.MemoryDevice})
	tlas, err := d.CreateAccelerationStructure(gpu.AccelerationStructureDesc{
		Name: "scene", Kind: gpu.StructureTopLevel, Buffer: tlasBuf, Size: 4096,
	})
	require.NoError(t, err)
	vtx, _ := d.CreateBuffer(gpu.BufferDesc{Name: "vertices", Size: 36, Memory: gpu.MemoryShared})
	instances, err := d.CreateInstanceBuffer([]gpu.Instance{{Structure: blas, Mask: 0xFF}})
	require.NoError(t, err)
	scratch, _ := d.CreateBuffer(gpu.BufferDesc{Name: "scratch", Size: 8192, Memory: gpu.MemoryDevice})

	enc, err := d.CreateCommandEncoder(gpu.CommandEncoderDesc{Name: "test", BufferCount: 2})
	require.NoError(t, err)
	enc.Begin()
	pass := enc.Compute()
	pass.BuildBottomLevel(blas, []gpu.Mesh{{
		VertexData: gpu.BufferRange{Buffer: vtx}, VertexCount: 3, VertexStride: 12, TriangleCount: 1,
	}}, gpu.BufferRange{Buffer: scratch})
	pass.BuildTopLevel(tlas, 1, gpu.BufferRange{Buffer: instances}, gpu.BufferRange{Buffer: scratch, Offset: 512})
	pass.End()

	require.NotEmpty(t, d.Violations())
	assert.Contains(t, d.Violations()[0], "same pass")
}

func TestInstanceBufferRejectsTopLevelReference(t *testing.T) {
	d := New()
	tlasBuf, _ := d.CreateBuffer(gpu.BufferDesc{Name: "tlas", Size: 4096, Memory: gpu.MemoryDevice})
	tlas, err := d.CreateAccelerationStructure(gpu.AccelerationStructureDesc{
		Name: "scene", Kind: gpu.StructureTopLevel, Buffer: tlasBuf, Size: 4096,
	})
	require.NoError(t, err)

	_, err = d.CreateInstanceBuffer([]gpu.Instance{{Structure: tlas}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not bottom-level")
}

func TestPassOnIdleEncoderIsViolation(t *testing.T) {
	d := New()
	tex, err := d.CreateTexture(gpu.TextureDesc{
		Name: "target", Format: gpu.FormatRGBA16Float, Width: 8, Height: 8,
		Usage: gpu.TextureUsageResource,
	})
	require.NoError(t, err)
	view, err := d.CreateTextureView(gpu.TextureViewDesc{Name: "target", Texture: tex, Format: gpu.FormatRGBA16Float})
	require.NoError(t, err)

	enc, err := d.CreateCommandEncoder(gpu.CommandEncoderDesc{Name: "test", BufferCount: 2})
	require.NoError(t, err)

	// No Begin: the misuse must surface through the journal, not a crash.
	pass := enc.Render(gpu.RenderTargetSet{Colors: []gpu.RenderTarget{{View: view}}})
	pass.End()

	require.NotEmpty(t, d.Violations())
	assert.Contains(t, d.Violations()[0], "outside Begin")
}
