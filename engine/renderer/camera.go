package renderer

import (
	"github.com/heliosrt/helios/engine/gpu"
	"github.com/heliosrt/helios/engine/math"
)

/**
 * @brief Represents the viewpoint rays are traced from. Static in the
 * demo scene, but parameters are rebuilt from it every frame.
 */
type Camera struct {
	/** @brief The position of this camera. */
	Position math.Vec3
	/** @brief The orientation of this camera as a quaternion. */
	Orientation math.Quaternion
	/** @brief The vertical field of view in radians. The horizontal
	 * field follows from the screen aspect ratio. */
	FovY float32
	/** @brief The ray-march depth limit. */
	Depth float32
}

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.Position = math.NewVec3Zero()
	c.Orientation = math.NewQuatIdentity()
	c.FovY = 1.0
	c.Depth = 100.0
}

func (c *Camera) SetPosition(position math.Vec3) {
	c.Position = position
}

func (c *Camera) SetOrientation(orientation math.Quaternion) {
	c.Orientation = orientation
}

func (c *Camera) SetFovY(fovY float32) {
	c.FovY = fovY
}

func (c *Camera) SetDepth(depth float32) {
	c.Depth = depth
}

// BuildParameters produces the per-frame uniform record for the given
// screen extent. The horizontal field of view scales with the aspect
// ratio so traced pixels stay square.
func (c *Camera) BuildParameters(extent gpu.Extent) Parameters {
	fovX := c.FovY * float32(extent.Width) / float32(extent.Height)
	return Parameters{
		CamPosition:    c.Position,
		Depth:          c.Depth,
		CamOrientation: c.Orientation,
		Fov:            math.NewVec2(fovX, c.FovY),
	}
}
