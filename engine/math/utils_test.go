package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 5, Clamp(3, 5, 10))
	assert.Equal(t, 10, Clamp(12, 5, 10))
	assert.Equal(t, 7, Clamp(7, 5, 10))
	assert.Equal(t, float32(0.5), Clamp(float32(0.5), 0.0, 1.0))
}

func TestAlignUp(t *testing.T) {
	assert.Equal(t, uint64(0), AlignUp(uint64(0), 256))
	assert.Equal(t, uint64(256), AlignUp(uint64(1), 256))
	assert.Equal(t, uint64(256), AlignUp(uint64(256), 256))
	assert.Equal(t, uint64(512), AlignUp(uint64(300), 256))
	assert.Equal(t, uint64(512), AlignUp(uint64(257), 256))
}

func TestCeilDiv(t *testing.T) {
	assert.Equal(t, uint32(0), CeilDiv(uint32(0), 8))
	assert.Equal(t, uint32(1), CeilDiv(uint32(1), 8))
	assert.Equal(t, uint32(1), CeilDiv(uint32(8), 8))
	assert.Equal(t, uint32(2), CeilDiv(uint32(9), 8))

	// A grid of CeilDiv(w, wx) groups of wx threads reaches every pixel.
	for _, w := range []uint32{1, 7, 8, 9, 63, 64, 65, 1280, 1283} {
		for _, wx := range []uint32{1, 4, 8, 16, 64} {
			groups := CeilDiv(w, wx)
			assert.GreaterOrEqual(t, groups*wx, w, "w=%d wx=%d", w, wx)
			assert.Less(t, (groups-1)*wx, w, "w=%d wx=%d", w, wx)
		}
	}
}
