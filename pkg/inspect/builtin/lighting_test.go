package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veracity-labs/veracity/pkg/models"
)

func TestLightingDetectsAbruptShift(t *testing.T) {
	frames := make([]models.Frame, 24)
	for i := range frames {
		v := byte(100)
		if i >= 10 {
			v = 200
		}
		frames[i] = grayFrame(32, 32, v, float64(i)/8)
	}

	rep, err := lighting(context.Background(), videoBundle(frames, 8))
	require.NoError(t, err)

	require.Len(t, rep.Events, 1)
	ev := rep.Events[0]
	assert.Equal(t, tagLightChange, ev.EventTag)
	assert.Equal(t, 1.25, ev.TimestampSec)
	assert.InDelta(t, 100.0, ev.Metadata["delta"].(float64), 0.1)
	assert.Equal(t, 0.3, rep.Score)
}

func TestLightingStableSceneIsQuiet(t *testing.T) {
	frames := make([]models.Frame, 24)
	for i := range frames {
		frames[i] = grayFrame(32, 32, 120, float64(i)/8)
	}

	rep, err := lighting(context.Background(), videoBundle(frames, 8))
	require.NoError(t, err)

	assert.Empty(t, rep.Events)
	assert.Equal(t, 0.05, rep.Score)
}

func TestLightingThrottlesToOnePerSecond(t *testing.T) {
	// Strobe: alternate dark/bright every frame at 8fps for 3s.
	frames := make([]models.Frame, 24)
	for i := range frames {
		v := byte(40)
		if i%2 == 1 {
			v = 220
		}
		frames[i] = grayFrame(32, 32, v, float64(i)/8)
	}

	rep, err := lighting(context.Background(), videoBundle(frames, 8))
	require.NoError(t, err)

	require.Len(t, rep.Events, 3, "23 raw jumps collapse to one event per second")
	assert.Equal(t, 0.13, rep.Events[0].TimestampSec, "0.125 rounds half away from zero")
	assert.Equal(t, 1.13, rep.Events[1].TimestampSec)
	assert.Equal(t, 2.13, rep.Events[2].TimestampSec)
	assert.InDelta(t, 0.6, rep.Score, 1e-9)
}
