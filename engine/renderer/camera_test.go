package renderer

import (
	"encoding/binary"
	gomath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliosrt/helios/engine/gpu"
	"github.com/heliosrt/helios/engine/math"
)

func TestParametersFollowAspectRatio(t *testing.T) {
	camera := testCamera()

	p := camera.BuildParameters(gpu.Extent{Width: 800, Height: 600})
	assert.InDelta(t, 0.2*800.0/600.0, p.Fov.X, 1e-6)
	assert.InDelta(t, 0.2, p.Fov.Y, 1e-6)
	assert.Equal(t, float32(-5), p.CamPosition.Z)
	assert.Equal(t, float32(100), p.Depth)

	// A taller viewport narrows the horizontal field instead.
	p = camera.BuildParameters(gpu.Extent{Width: 600, Height: 800})
	assert.InDelta(t, 0.2*600.0/800.0, p.Fov.X, 1e-6)
}

func TestParametersMarshalLayout(t *testing.T) {
	p := Parameters{
		CamPosition:    math.NewVec3(1, 2, -5),
		Depth:          100,
		CamOrientation: math.Quaternion{X: 0.1, Y: 0.2, Z: 0.3, W: 0.9},
		Fov:            math.NewVec2(0.25, 0.2),
	}
	buf := p.Marshal()
	require.Len(t, buf, ParametersSize)

	f32 := func(off int) float32 {
		return gomath.Float32frombits(binary.LittleEndian.Uint32(buf[off : off+4]))
	}
	assert.Equal(t, float32(1), f32(0))
	assert.Equal(t, float32(2), f32(4))
	assert.Equal(t, float32(-5), f32(8))
	assert.Equal(t, float32(100), f32(12))
	assert.Equal(t, float32(0.1), f32(16))
	assert.Equal(t, float32(0.2), f32(20))
	assert.Equal(t, float32(0.3), f32(24))
	assert.Equal(t, float32(0.9), f32(28))
	assert.Equal(t, float32(0.25), f32(32))
	assert.Equal(t, float32(0.2), f32(36))

	// The trailing pad that rounds the record up to 16 bytes stays zero.
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(buf[40:44]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(buf[44:48]))
}
