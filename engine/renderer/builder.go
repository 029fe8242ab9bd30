package renderer

import (
	"fmt"

	"github.com/heliosrt/helios/engine/core"
	"github.com/heliosrt/helios/engine/gpu"
	"github.com/heliosrt/helios/engine/math"
)

// Builder runs the one-shot startup sequence that turns a Scene into a
// queryable top-level acceleration structure.
//
// The bottom-level build and the top-level build are recorded as two
// separate compute passes: the top-level build reads structure addresses
// that only become valid once the bottom-level build has executed, so
// collapsing them into one pass would leave the two unordered on the
// GPU. The pass split is not left to call discipline: recording the
// bottom level yields a BottomLevelToken, and recording the top level
// requires one.
type Builder struct {
	device gpu.Device
}

// BottomLevelToken proves a bottom-level build pass has been recorded.
// It carries the scratch region that build claimed, so the top-level
// stage can lay its own region out disjointly after it.
type BottomLevelToken struct {
	blas       gpu.AccelerationStructure
	scratchEnd uint64
}

// NewBuilder refuses devices that cannot trace rays; this is checked
// before any resource is allocated.
func NewBuilder(device gpu.Device) (*Builder, error) {
	if !device.Capabilities().RayQuery {
		return nil, core.CapabilityError("ray query", device.Name())
	}
	return &Builder{device: device}, nil
}

// Build sizes, allocates and builds the bottom- then top-level
// structures for the scene, synchronously: it submits the recorded
// passes, blocks until the device signals completion, then releases the
// pure build inputs. The startup build is not on any frame-latency path.
func (b *Builder) Build(scene *Scene, resources *ResourceSet) error {
	if err := scene.Validate(); err != nil {
		return err
	}

	meshes, err := b.uploadGeometry(scene, resources)
	if err != nil {
		return err
	}

	blasSizes, err := b.device.BottomLevelSizes(meshes)
	if err != nil {
		return err
	}
	if blasSizes.Data == 0 || blasSizes.Scratch == 0 {
		return core.SizingError("bottom-level structure", blasSizes.Data)
	}
	resources.BLASBuffer, err = b.device.CreateBuffer(gpu.BufferDesc{
		Name:   "BLAS",
		Size:   blasSizes.Data,
		Memory: gpu.MemoryDevice,
	})
	if err != nil {
		return err
	}
	resources.BLAS, err = b.device.CreateAccelerationStructure(gpu.AccelerationStructureDesc{
		Name:   "triangle",
		Kind:   gpu.StructureBottomLevel,
		Buffer: resources.BLASBuffer,
		Offset: 0,
		Size:   blasSizes.Data,
	})
	if err != nil {
		return err
	}

	instances := make([]gpu.Instance, len(scene.Placements))
	for i, p := range scene.Placements {
		instances[i] = gpu.Instance{
			Structure:   resources.BLAS,
			Transform:   p.Transform,
			Mask:        p.Mask,
			CustomIndex: p.CustomIndex,
		}
	}
	tlasSizes, err := b.device.TopLevelSizes(uint32(len(instances)))
	if err != nil {
		return err
	}
	if tlasSizes.Data == 0 || tlasSizes.Scratch == 0 {
		return core.SizingError("top-level structure", tlasSizes.Data)
	}
	resources.InstanceBuffer, err = b.device.CreateInstanceBuffer(instances)
	if err != nil {
		return err
	}
	resources.TLASBuffer, err = b.device.CreateBuffer(gpu.BufferDesc{
		Name:   "TLAS",
		Size:   tlasSizes.Data,
		Memory: gpu.MemoryDevice,
	})
	if err != nil {
		return err
	}
	resources.TLAS, err = b.device.CreateAccelerationStructure(gpu.AccelerationStructureDesc{
		Name:   "TLAS",
		Kind:   gpu.StructureTopLevel,
		Buffer: resources.TLASBuffer,
		Offset: 0,
		Size:   tlasSizes.Data,
	})
	if err != nil {
		return err
	}

	// One scratch buffer serves both builds through disjoint regions:
	// the bottom level at offset zero, the top level after it, rounded
	// up to the build alignment requirement.
	tlasScratchOffset := math.AlignUp(blasSizes.Scratch, gpu.ScratchAlignment)
	resources.ScratchBuffer, err = b.device.CreateBuffer(gpu.BufferDesc{
		Name:   "scratch",
		Size:   tlasScratchOffset + tlasSizes.Scratch,
		Memory: gpu.MemoryDevice,
	})
	if err != nil {
		return err
	}

	encoder, err := b.device.CreateCommandEncoder(gpu.CommandEncoderDesc{
		Name:        "build",
		BufferCount: 1,
	})
	if err != nil {
		return err
	}
	encoder.Begin()

	token := b.recordBottomLevel(encoder, resources, meshes, blasSizes)
	b.recordTopLevel(encoder, token, resources, uint32(len(instances)), tlasScratchOffset)

	syncPoint, err := b.device.Submit(encoder)
	if err != nil {
		return err
	}
	done, err := b.device.Wait(syncPoint, gpu.WaitForever)
	if err != nil {
		return err
	}
	if !done {
		return fmt.Errorf("build wait: %w", core.ErrStall)
	}

	// The structures hold their own device-local copy of the geometry
	// now; the inputs have no further use.
	resources.ReleaseBuildInputs(b.device)

	core.LogInfo("acceleration structures built: blas %d bytes, tlas %d bytes, scratch %d bytes",
		blasSizes.Data, tlasSizes.Data, tlasScratchOffset+tlasSizes.Scratch)
	return nil
}

// uploadGeometry creates the CPU-writable vertex and index buffers and
// returns the mesh description feeding the bottom-level size query and
// build.
func (b *Builder) uploadGeometry(scene *Scene, resources *ResourceSet) ([]gpu.Mesh, error) {
	vertexBytes := scene.Mesh.VertexBytes()
	indexBytes := scene.Mesh.IndexBytes()

	var err error
	resources.VertexBuffer, err = b.device.CreateBuffer(gpu.BufferDesc{
		Name:   "vertices",
		Size:   uint64(len(vertexBytes)),
		Memory: gpu.MemoryShared,
	})
	if err != nil {
		return nil, err
	}
	if err := b.device.WriteBuffer(resources.VertexBuffer, 0, vertexBytes); err != nil {
		return nil, err
	}

	resources.IndexBuffer, err = b.device.CreateBuffer(gpu.BufferDesc{
		Name:   "indices",
		Size:   uint64(len(indexBytes)),
		Memory: gpu.MemoryShared,
	})
	if err != nil {
		return nil, err
	}
	if err := b.device.WriteBuffer(resources.IndexBuffer, 0, indexBytes); err != nil {
		return nil, err
	}

	return []gpu.Mesh{{
		VertexData:    gpu.BufferRange{Buffer: resources.VertexBuffer},
		VertexStride:  VertexStride,
		VertexCount:   uint32(len(scene.Mesh.Vertices)),
		IndexData:     gpu.BufferRange{Buffer: resources.IndexBuffer},
		IndexType:     gpu.IndexTypeU16,
		TriangleCount: scene.Mesh.TriangleCount(),
		Opaque:        true,
	}}, nil
}

// recordBottomLevel records the first build pass, using the scratch
// region at offset zero.
func (b *Builder) recordBottomLevel(encoder gpu.CommandEncoder, resources *ResourceSet, meshes []gpu.Mesh, sizes gpu.StructureSizes) BottomLevelToken {
	pass := encoder.Compute()
	pass.BuildBottomLevel(resources.BLAS, meshes, gpu.BufferRange{
		Buffer: resources.ScratchBuffer,
		Offset: 0,
	})
	pass.End()
	return BottomLevelToken{blas: resources.BLAS, scratchEnd: sizes.Scratch}
}

// recordTopLevel records the second build pass. The token is the proof
// the bottom-level pass precedes it; the pass boundary between them is
// the barrier the top-level read of structure addresses depends on.
func (b *Builder) recordTopLevel(encoder gpu.CommandEncoder, token BottomLevelToken, resources *ResourceSet, instanceCount uint32, scratchOffset uint64) {
	pass := encoder.Compute()
	pass.BuildTopLevel(resources.TLAS, instanceCount,
		gpu.BufferRange{Buffer: resources.InstanceBuffer},
		gpu.BufferRange{Buffer: resources.ScratchBuffer, Offset: scratchOffset})
	pass.End()
}
