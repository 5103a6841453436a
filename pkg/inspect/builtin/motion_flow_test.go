package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veracity-labs/veracity/pkg/models"
)

func TestMotionFlowSpliceSpike(t *testing.T) {
	// Two static halves glued together: one sharp jump at the seam.
	frames := make([]models.Frame, 40)
	for i := range frames {
		v := byte(100)
		if i >= 20 {
			v = 180
		}
		frames[i] = grayFrame(32, 32, v, float64(i)/8)
	}

	rep, err := motionFlow(context.Background(), videoBundle(frames, 8))
	require.NoError(t, err)

	require.Len(t, rep.Events, 1)
	ev := rep.Events[0]
	assert.Equal(t, tagFlowSpike, ev.EventTag)
	assert.Equal(t, 2.44, ev.TimestampSec, "seam between frames 19 and 20")
	assert.Greater(t, ev.Metadata["z"].(float64), 2.0)
	assert.Equal(t, 0.2, rep.Score)
}

func TestMotionFlowStaticSceneScoresZero(t *testing.T) {
	frames := make([]models.Frame, 20)
	for i := range frames {
		frames[i] = grayFrame(32, 32, 140, float64(i)/8)
	}

	rep, err := motionFlow(context.Background(), videoBundle(frames, 8))
	require.NoError(t, err)

	assert.Empty(t, rep.Events)
	assert.Zero(t, rep.Score)
}

func TestMotionFlowNeedsBaseline(t *testing.T) {
	// Four frames give only three magnitudes: below the baseline minimum.
	frames := []models.Frame{
		grayFrame(32, 32, 100, 0),
		grayFrame(32, 32, 250, 0.125),
		grayFrame(32, 32, 100, 0.25),
		grayFrame(32, 32, 250, 0.375),
	}

	rep, err := motionFlow(context.Background(), videoBundle(frames, 8))
	require.NoError(t, err)

	assert.Empty(t, rep.Events)
	assert.Zero(t, rep.Score)
}

func TestMotionFlowThrottleAndScoreGrowth(t *testing.T) {
	// Jumps at 1s intervals: frames 8, 16, 24 switch level and stay.
	frames := make([]models.Frame, 40)
	level := byte(60)
	for i := range frames {
		switch i {
		case 8:
			level = 180
		case 16:
			level = 60
		case 24:
			level = 180
		}
		frames[i] = grayFrame(32, 32, level, float64(i)/8)
	}

	rep, err := motionFlow(context.Background(), videoBundle(frames, 8))
	require.NoError(t, err)

	require.Len(t, rep.Events, 3)
	assert.InDelta(t, 0.4, rep.Score, 1e-9, "score grows with spike count")
}
