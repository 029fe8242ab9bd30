package renderer

import (
	"encoding/binary"
	gomath "math"

	"github.com/heliosrt/helios/engine/gpu"
	"github.com/heliosrt/helios/engine/math"
)

// Bind group indices. The trace kernel and the composite draw each
// consume one fixed group; the indices here must match the @group/@binding
// attributes in the shader source exactly. A mismatch is refused at
// pipeline creation, never discovered per frame.
const (
	TraceBindGroup     uint32 = 0
	CompositeBindGroup uint32 = 1
)

// Trace group slots.
const (
	BindingParameters uint32 = 0
	BindingAccStruct  uint32 = 1
	BindingOutput     uint32 = 2
)

// Composite group slots.
const (
	BindingInput uint32 = 0
)

// TraceBindGroupLayout declares the compute stage's bindings: the
// per-frame uniform record, the TLAS and the storage view of the
// offscreen target.
func TraceBindGroupLayout() gpu.BindGroupLayout {
	return gpu.BindGroupLayout{Bindings: []gpu.Binding{
		{Name: "parameters", Kind: gpu.BindingUniform, Index: BindingParameters},
		{Name: "acc_struct", Kind: gpu.BindingAccelerationStructure, Index: BindingAccStruct},
		{Name: "output", Kind: gpu.BindingStorageTexture, Index: BindingOutput},
	}}
}

// CompositeBindGroupLayout declares the draw stage's single binding: the
// offscreen target sampled as input.
func CompositeBindGroupLayout() gpu.BindGroupLayout {
	return gpu.BindGroupLayout{Bindings: []gpu.Binding{
		{Name: "input", Kind: gpu.BindingSampledTexture, Index: BindingInput},
	}}
}

// ParametersSize is the byte size of the uniform record, padded to
// 16-byte alignment as the shader-side struct rules require.
const ParametersSize = 48

// Parameters is the per-frame uniform record the trace kernel consumes.
// Recomputed from camera state every frame. Matches the WGSL Parameters
// struct layout exactly.
type Parameters struct {
	CamPosition    math.Vec3       // offset 0
	Depth          float32         // offset 12: ray-march depth limit
	CamOrientation math.Quaternion // offset 16
	Fov            math.Vec2       // offset 32: horizontal, vertical
	// 8 bytes of trailing padding keep the struct a multiple of 16.
}

// Marshal serializes the record into the little-endian buffer uploaded
// as the uniform block.
func (p *Parameters) Marshal() []byte {
	buf := make([]byte, ParametersSize)
	putF32 := func(off int, v float32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], gomath.Float32bits(v))
	}
	putF32(0, p.CamPosition.X)
	putF32(4, p.CamPosition.Y)
	putF32(8, p.CamPosition.Z)
	putF32(12, p.Depth)
	putF32(16, p.CamOrientation.X)
	putF32(20, p.CamOrientation.Y)
	putF32(24, p.CamOrientation.Z)
	putF32(28, p.CamOrientation.W)
	putF32(32, p.Fov.X)
	putF32(36, p.Fov.Y)
	return buf
}
