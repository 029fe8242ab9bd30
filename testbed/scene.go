// Package testbed carries the demo content the engine renders when run
// directly: a single triangle instanced once at the origin.
package testbed

import (
	"github.com/heliosrt/helios/engine/math"
	"github.com/heliosrt/helios/engine/renderer"
)

// DemoScene builds the one-triangle scene. The camera configured in
// helios.toml sits at (0, 0, -5) looking down +Z, so the triangle spans
// the middle of the frame.
func DemoScene() *renderer.Scene {
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
