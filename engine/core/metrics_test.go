package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsTracksFrameTimeAndFPS(t *testing.T) {
	require.NoError(t, MetricsInitialize())

	// The rolling average covers the last 30 frames.
	for i := 0; i < 30; i++ {
		MetricsUpdate(0.016)
	}
	assert.InDelta(t, 16.0, MetricsFrameTime(), 1e-6)

	// 480ms accumulated so far; two half-second frames tip past one
	// second and publish the frame count as the FPS figure.
	MetricsUpdate(0.5)
	MetricsUpdate(0.5)
	fps, frameMS := MetricsFrame()
	assert.Equal(t, 31.0, fps)
	assert.Equal(t, fps, MetricsFPS())
	assert.Greater(t, frameMS, 0.0)
}
