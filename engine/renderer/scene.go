package renderer

import (
	"encoding/binary"
	"fmt"
	gomath "math"

	"github.com/heliosrt/helios/engine/math"
)

// TriangleMesh is one piece of static scene geometry: tightly packed
// 3-float vertex positions and 16-bit indices. Both are uploaded once,
// consumed by the bottom-level build and released; the built structure
// keeps its own device-local copy.
type TriangleMesh struct {
	Vertices []math.Vec3
	Indices  []uint16
}

// VertexStride is the byte stride of one packed vertex position.
const VertexStride = 12

// TriangleCount returns the number of triangles the index list encodes.
func (m *TriangleMesh) TriangleCount() uint32 {
	return uint32(len(m.Indices) / 3)
}

// VertexBytes packs the positions for upload.
func (m *TriangleMesh) VertexBytes() []byte {
	buf := make([]byte, len(m.Vertices)*VertexStride)
	for i, v := range m.Vertices {
		off := i * VertexStride
		binary.LittleEndian.PutUint32(buf[off:], gomath.Float32bits(v.X))
		binary.LittleEndian.PutUint32(buf[off+4:], gomath.Float32bits(v.Y))
		binary.LittleEndian.PutUint32(buf[off+8:], gomath.Float32bits(v.Z))
	}
	return buf
}

// IndexBytes packs the indices for upload.
func (m *TriangleMesh) IndexBytes() []byte {
	buf := make([]byte, len(m.Indices)*2)
	for i, idx := range m.Indices {
		binary.LittleEndian.PutUint16(buf[i*2:], idx)
	}
	return buf
}

// Placement instantiates the scene mesh in the top-level structure.
type Placement struct {
	Transform   math.Mat3x4
	Mask        uint32
	CustomIndex uint32
}

// Scene is the static geometry the renderer traces: one mesh and its
// placements. Built once at startup; never mutated afterwards.
type Scene struct {
	Mesh       TriangleMesh
	Placements []Placement
}

// Validate rejects scenes the build sequence cannot express.
func (s *Scene) Validate() error {
	if len(s.Mesh.Vertices) == 0 {
		return fmt.Errorf("scene mesh has no vertices")
	}
	if len(s.Mesh.Indices) == 0 || len(s.Mesh.Indices)%3 != 0 {
		return fmt.Errorf("scene mesh index count %d is not a multiple of 3", len(s.Mesh.Indices))
	}
	if len(s.Placements) == 0 {
		return fmt.Errorf("scene has no placements")
	}
	for i, idx := range s.Mesh.Indices {
		if int(idx) >= len(s.Mesh.Vertices) {
			return fmt.Errorf("scene index %d references vertex %d of %d", i, idx, len(s.Mesh.Vertices))
		}
	}
	return nil
}
