package renderer

import (
	"github.com/heliosrt/helios/engine/core"
	"github.com/heliosrt/helios/engine/gpu"
)

// ResourceSet is the scene's GPU-resident data. The build inputs
// (vertex, index, scratch, instance buffers) live only until the startup
// build's sync point is observed; everything else spans the renderer's
// lifetime.
type ResourceSet struct {
	// Build inputs, released by ReleaseBuildInputs once the build wait
	// returns. Zero afterwards.
	VertexBuffer   gpu.Buffer
	IndexBuffer    gpu.Buffer
	InstanceBuffer gpu.Buffer
	ScratchBuffer  gpu.Buffer

	// Retained for the renderer's lifetime.
	BLAS       gpu.AccelerationStructure
	BLASBuffer gpu.Buffer
	TLAS       gpu.AccelerationStructure
	TLASBuffer gpu.Buffer

	// Offscreen HDR target, written by the trace kernel and sampled by
	// the composite draw.
	Target     gpu.Texture
	TargetView gpu.TextureView

	released  bool
	destroyed bool
}

// ReleaseBuildInputs destroys the buffers that exist only to feed the
// acceleration-structure build. The caller must have observed the
// build submission's sync point first; the structures keep their own
// device-local copy of the geometry.
func (r *ResourceSet) ReleaseBuildInputs(device gpu.Device) {
	if r.released {
		core.LogWarn("build inputs released twice")
		return
	}
	r.released = true

	device.DestroyBuffer(r.VertexBuffer)
	device.DestroyBuffer(r.IndexBuffer)
	device.DestroyBuffer(r.ScratchBuffer)
	device.DestroyBuffer(r.InstanceBuffer)
	r.VertexBuffer = gpu.InvalidID
	r.IndexBuffer = gpu.InvalidID
	r.ScratchBuffer = gpu.InvalidID
	r.InstanceBuffer = gpu.InvalidID
}

// Destroy tears down the retained resources in dependency order: view
// before texture, structure handles before their backing buffers. Runs
// exactly once; the caller must already have waited on any sync point
// still gating them. Both structure handles are destroyed, the top
// level included, so a full teardown leaves no handle behind.
func (r *ResourceSet) Destroy(device gpu.Device) {
	if r.destroyed {
		core.LogWarn("resource set destroyed twice")
		return
	}
	r.destroyed = true

	if !r.released {
		r.ReleaseBuildInputs(device)
	}

	device.DestroyTextureView(r.TargetView)
	device.DestroyTexture(r.Target)
	device.DestroyAccelerationStructure(r.TLAS)
	device.DestroyAccelerationStructure(r.BLAS)
	device.DestroyBuffer(r.BLASBuffer)
	device.DestroyBuffer(r.TLASBuffer)
}
