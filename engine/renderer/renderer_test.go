package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliosrt/helios/engine/core"
	"github.com/heliosrt/helios/engine/gpu"
	"github.com/heliosrt/helios/engine/gpu/sim"
	"github.com/heliosrt/helios/engine/math"
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

func testScene() *Scene {
	return &Scene{
		Mesh: TriangleMesh{
			Vertices: []math.Vec3{
				math.NewVec3(-0.5, -0.5, 0),
				math.NewVec3(0, 0.5, 0),
				math.NewVec3(0.5, -0.5, 0),
			},
			Indices: []uint16{0, 1, 2},
		},
		Placements: []Placement{{
			Transform: math.NewMat3x4Identity(),
			Mask:      0xFF,
		}},
	}
}

func testCamera() *Camera {
	camera := NewCamera()
	camera.SetPosition(math.NewVec3(0, 0, -5))
	camera.SetFovY(0.2)
	camera.SetDepth(100)
	return camera
}

func newTestRenderer(t *testing.T, d *sim.Device) *FrameRenderer {
	t.Helper()
	r, err := NewFrameRenderer(d, testScene(), testCamera(),
		gpu.Extent{Width: 800, Height: 600}, testShader)
	require.NoError(t, err)
	return r
}

// opIndex finds the journal position of the first op matching pred, or -1.
func opIndex(ops []sim.Op, pred func(sim.Op) bool) int {
	for i, op := range ops {
		if pred(op) {
			return i
		}
	}
	return -1
}

func TestRendererRefusesWithoutRayQuery(t *testing.T) {
	d := sim.New()
	d.SetRayQuery(false)

	_, err := NewFrameRenderer(d, testScene(), testCamera(),
		gpu.Extent{Width: 800, Height: 600}, testShader)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrCapability)
}

func TestScratchLayoutAlignsTopLevelRegion(t *testing.T) {
	d := sim.New()
	d.SetStructureSizes(
		gpu.StructureSizes{Data: 1024, Scratch: 300},
		gpu.StructureSizes{Data: 512, Scratch: 128},
	)

	r := newTestRenderer(t, d)
	defer r.Destroy()

	bottom := d.OpsOfKind(sim.OpBuildBottomLevel)
	top := d.OpsOfKind(sim.OpBuildTopLevel)
	require.Len(t, bottom, 1)
	require.Len(t, top, 1)

	assert.Equal(t, uint64(0), bottom[0].ScratchStart)
	assert.Equal(t, uint64(300), bottom[0].ScratchEnd)
	assert.Equal(t, uint64(512), top[0].ScratchStart, "top-level scratch starts at the 256-aligned offset")
	assert.Empty(t, d.Violations())
}

func TestBuildOrdersBottomBeforeTopInSeparatePasses(t *testing.T) {
	d := sim.New()
	r := newTestRenderer(t, d)
	defer r.Destroy()

	bottom := d.OpsOfKind(sim.OpBuildBottomLevel)
	top := d.OpsOfKind(sim.OpBuildTopLevel)
	require.Len(t, bottom, 1)
	require.Len(t, top, 1)

	assert.Equal(t, bottom[0].Submission, top[0].Submission, "both builds ride one submission")
	assert.Less(t, bottom[0].Pass, top[0].Pass, "top-level build sits in a later pass")
	assert.LessOrEqual(t, bottom[0].ScratchEnd, top[0].ScratchStart, "scratch regions never overlap")
	assert.Empty(t, d.Violations())
}

func TestBuildInputsReleasedOnlyAfterWait(t *testing.T) {
	d := sim.New()
	r := newTestRenderer(t, d)
	defer r.Destroy()

	ops := d.Ops()
	build := d.OpsOfKind(sim.OpBuildBottomLevel)
	require.Len(t, build, 1)

	waitAt := opIndex(ops, func(op sim.Op) bool {
		return op.Kind == sim.OpWait && op.Sync == build[0].Submission
	})
	require.GreaterOrEqual(t, waitAt, 0, "build submission is waited on")

	for _, name := range []string{"vertices", "indices", "scratch", "instances"} {
		at := opIndex(ops, func(op sim.Op) bool {
			return op.Kind == sim.OpDestroyBuffer && op.Name == name
		})
		require.GreaterOrEqual(t, at, 0, "build input %q is released", name)
		assert.Greater(t, at, waitAt, "build input %q released only after the wait", name)
	}
	assert.Empty(t, d.Violations())
}

func TestSingleFrameDispatchThenDraw(t *testing.T) {
	d := sim.New()
	r := newTestRenderer(t, d)
	defer r.Destroy()

	require.NoError(t, r.Render())

	dispatches := d.OpsOfKind(sim.OpDispatch)
	draws := d.OpsOfKind(sim.OpDraw)
	require.Len(t, dispatches, 1)
	require.Len(t, draws, 1)

	// 800x600 over an 8x4 workgroup.
	assert.Equal(t, [3]uint32{100, 150, 1}, dispatches[0].Groups)
	assert.Equal(t, uint32(3), draws[0].VertexCount)
	assert.Equal(t, uint32(1), draws[0].InstanceCount)

	assert.Equal(t, dispatches[0].Submission, draws[0].Submission, "both passes in one submission")
	assert.Less(t, dispatches[0].Pass, draws[0].Pass, "compute precedes the draw")

	presents := d.OpsOfKind(sim.OpPresent)
	require.Len(t, presents, 1)
	assert.Equal(t, FrameIdle, r.State())
	assert.Empty(t, d.Violations())
}

func TestDispatchCoversOddExtents(t *testing.T) {
	d := sim.New()
	r, err := NewFrameRenderer(d, testScene(), testCamera(),
		gpu.Extent{Width: 801, Height: 601}, testShader)
	require.NoError(t, err)
	defer r.Destroy()

	require.NoError(t, r.Render())

	dispatches := d.OpsOfKind(sim.OpDispatch)
	require.Len(t, dispatches, 1)
	assert.Equal(t, [3]uint32{101, 151, 1}, dispatches[0].Groups,
		"ceiling division leaves no pixel undispatched")
}

func TestSyncPointDiscipline(t *testing.T) {
	d := sim.New()
	r := newTestRenderer(t, d)
	defer r.Destroy()

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Render())
	}

	var frameSubmits []gpu.SyncPoint
	build := d.OpsOfKind(sim.OpBuildBottomLevel)
	require.Len(t, build, 1)
	for _, op := range d.OpsOfKind(sim.OpSubmit) {
		if op.Sync != build[0].Submission {
			frameSubmits = append(frameSubmits, op.Sync)
		}
	}
	require.Len(t, frameSubmits, 3)

	var frameWaits []gpu.SyncPoint
	for _, op := range d.OpsOfKind(sim.OpWait) {
		if op.Sync != build[0].Submission {
			frameWaits = append(frameWaits, op.Sync)
		}
	}

	// The first frame has nothing pending; each later frame waits on the
	// immediately prior frame's point, never an older one.
	require.Len(t, frameWaits, 2)
	assert.Equal(t, frameSubmits[0], frameWaits[0])
	assert.Equal(t, frameSubmits[1], frameWaits[1])
	assert.Empty(t, d.Violations())
}

func TestTeardownWaitsThenDestroysEverything(t *testing.T) {
	d := sim.New()
	r := newTestRenderer(t, d)

	require.NoError(t, r.Render())
	r.Destroy()

	ops := d.Ops()
	submits := d.OpsOfKind(sim.OpSubmit)
	frameSync := submits[len(submits)-1].Sync

	waitAt := opIndex(ops, func(op sim.Op) bool {
		return op.Kind == sim.OpWait && op.Sync == frameSync
	})
	require.GreaterOrEqual(t, waitAt, 0, "shutdown waits on the pending frame")

	for _, kind := range []sim.OpKind{
		sim.OpDestroyTextureView, sim.OpDestroyTexture, sim.OpDestroyStructure, sim.OpDestroyBuffer,
	} {
		for i, op := range ops {
			if op.Kind == kind && op.Name == "target" || op.Kind == kind && op.Name == "TLAS" {
				assert.Greater(t, i, waitAt, "%s of %q strictly after the wait", kind, op.Name)
			}
		}
	}

	// Both structure handles go; the top level is not left dangling.
	destroyed := d.OpsOfKind(sim.OpDestroyStructure)
	require.Len(t, destroyed, 2)

	assert.Empty(t, d.LeakReport())
	assert.Empty(t, d.Violations())

	// A second Destroy is a no-op.
	r.Destroy()
	assert.Empty(t, d.Violations())
}

func TestDestroyWithoutRenderLeaksNothing(t *testing.T) {
	d := sim.New()
	r := newTestRenderer(t, d)
	r.Destroy()

	assert.Empty(t, d.LeakReport())
	assert.Empty(t, d.Violations())
}

func TestShaderReload(t *testing.T) {
	d := sim.New()
	r := newTestRenderer(t, d)
	defer r.Destroy()

	require.NoError(t, r.Render())
	require.NoError(t, r.ReloadShader(testShader))
	require.NoError(t, r.Render())
	assert.Empty(t, d.Violations())
}

func TestShaderReloadKeepsOldPipelinesOnFailure(t *testing.T) {
	d := sim.New()
	r := newTestRenderer(t, d)
	defer r.Destroy()

	require.NoError(t, r.Render())
	require.Error(t, r.ReloadShader(`@vertex fn draw_vs() {}`))

	// The running pipelines survived the broken edit.
	require.NoError(t, r.Render())
	assert.Len(t, d.OpsOfKind(sim.OpDispatch), 2)
	assert.Empty(t, d.Violations())
}
