package gpu

import (
	"github.com/heliosrt/helios/engine/math"
)

// Resource handles
//
// These opaque IDs represent GPU resources. Each backend maintains a
// mapping between IDs and actual API objects. The zero value is always
// invalid.

// Buffer is an opaque handle to a GPU buffer.
type Buffer uint64

// Texture is an opaque handle to a GPU texture.
type Texture uint64

// TextureView is an opaque handle to a view over a texture.
type TextureView uint64

// AccelerationStructure is an opaque handle to a BLAS or TLAS.
type AccelerationStructure uint64

// Shader is an opaque handle to a compiled shader module.
type Shader uint64

// ComputePipeline is an opaque handle to a compute pipeline.
type ComputePipeline uint64

// RenderPipeline is an opaque handle to a render pipeline.
type RenderPipeline uint64

// SyncPoint marks a batch of submitted GPU work. Each submission returns
// a fresh, strictly increasing value; a SyncPoint is never reused once
// retired. The zero value means "no work outstanding".
type SyncPoint uint64

// InvalidID is the zero value of every handle type.
const InvalidID = 0

// WaitForever is the timeout that never elapses.
const WaitForever = ^uint64(0)

// ScratchAlignment is the required alignment of acceleration-structure
// build scratch regions sharing one buffer.
const ScratchAlignment uint64 = 256

// BufferRange is an offset into a buffer, the unit build and bind
// operations address memory in.
type BufferRange struct {
	Buffer Buffer
	Offset uint64
}

// Memory selects where a buffer lives.
type Memory int

const (
	// MemoryDevice is GPU-local memory, not visible to the CPU.
	MemoryDevice Memory = iota
	// MemoryShared is CPU-writable memory the GPU can read.
	MemoryShared
)

type BufferDesc struct {
	Name   string
	Size   uint64
	Memory Memory
}

// Format specifies texture texel layout.
type Format int

const (
	FormatUnknown Format = iota
	// FormatRGBA16Float holds HDR-range color, the offscreen target format.
	FormatRGBA16Float
	FormatRGBA8Unorm
	FormatBGRA8Unorm
)

// TextureUsage is a bitmask of the ways a texture may be used.
type TextureUsage uint32

const (
	// TextureUsageResource allows sampling in a shader.
	TextureUsageResource TextureUsage = 1 << 0
	// TextureUsageStorage allows storage-image writes from compute.
	TextureUsageStorage TextureUsage = 1 << 1
	// TextureUsageTarget allows use as a render-pass color target.
	TextureUsageTarget TextureUsage = 1 << 2
)

type TextureDesc struct {
	Name   string
	Format Format
	Width  uint32
	Height uint32
	Usage  TextureUsage
}

type TextureViewDesc struct {
	Name    string
	Texture Texture
	Format  Format
}

// Extent is a drawable size in pixels.
type Extent struct {
	Width  uint32
	Height uint32
}

// SurfaceConfig configures the presentable swapchain.
type SurfaceConfig struct {
	Size       Extent
	Usage      TextureUsage
	FrameCount uint32
}

// Frame is one acquired presentable swapchain image.
type Frame struct {
	Texture Texture
	View    TextureView
	Index   uint32
}

// Capabilities reports optional device features the renderer depends on.
type Capabilities struct {
	// RayQuery is true when the device can build acceleration structures
	// and trace rays from compute shaders. The renderer refuses to start
	// without it.
	RayQuery bool
}

// IndexType selects the width of mesh indices.
type IndexType int

const (
	IndexTypeNone IndexType = iota
	IndexTypeU16
	IndexTypeU32
)

// Mesh describes one piece of triangle geometry feeding a BLAS build.
type Mesh struct {
	VertexData    BufferRange
	VertexStride  uint32
	VertexCount   uint32
	IndexData     BufferRange
	IndexType     IndexType
	TriangleCount uint32
	Opaque        bool
}

// Instance places one BLAS in a TLAS.
type Instance struct {
	Structure   AccelerationStructure
	Transform   math.Mat3x4
	Mask        uint32
	CustomIndex uint32
}

// StructureSizes is the device's answer to a size query: how big the
// structure's backing buffer and its transient build scratch must be.
// Both are queried before any allocation.
type StructureSizes struct {
	Data    uint64
	Scratch uint64
}

// StructureKind distinguishes the two acceleration structure levels.
type StructureKind int

const (
	StructureBottomLevel StructureKind = iota
	StructureTopLevel
)

type AccelerationStructureDesc struct {
	Name   string
	Kind   StructureKind
	Buffer Buffer
	Offset uint64
	Size   uint64
}

type ShaderDesc struct {
	Name   string
	Source string
}

// Topology selects primitive assembly for a render pipeline.
type Topology int

const (
	TopologyTriangleList Topology = iota
	TopologyTriangleStrip
)

type ComputePipelineDesc struct {
	Name string
	// Group is the bind-group index Layout occupies in the shader.
	Group  uint32
	Layout BindGroupLayout
	Shader Shader
	Entry  string
}

type RenderPipelineDesc struct {
	Name        string
	Group       uint32
	Layout      BindGroupLayout
	Shader      Shader
	VertexEntry string
	FragEntry   string
	Topology    Topology
	ColorFormat Format
}

type CommandEncoderDesc struct {
	Name string
	// BufferCount is how many frames of recorded commands may be in
	// flight at once.
	BufferCount uint32
}

// LoadOp selects what happens to a color target when a render pass begins.
type LoadOp int

const (
	// LoadOpClearTransparentBlack clears to (0, 0, 0, 0).
	LoadOpClearTransparentBlack LoadOp = iota
	LoadOpLoad
)

// StoreOp selects what happens to a color target when a render pass ends.
type StoreOp int

const (
	StoreOpStore StoreOp = iota
	StoreOpDiscard
)

type RenderTarget struct {
	View  TextureView
	Load  LoadOp
	Store StoreOp
}

type RenderTargetSet struct {
	Colors []RenderTarget
}
