package builtin

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veracity-labs/veracity/pkg/inspect"
)

func loopBundle(audio []float64, sampleRate int) *inspect.Bundle {
	return &inspect.Bundle{Audio: audio, SampleRate: sampleRate}
}

func TestAudioLoopDetectsRepeatingTrack(t *testing.T) {
	// 1s loud / 1s quiet, repeated 8 times: a 2s loop.
	const sampleRate = 1000
	var audio []float64
	for i := 0; i < 8; i++ {
		audio = constBlock(audio, sampleRate, 0.5)
		audio = constBlock(audio, sampleRate, 0.01)
	}

	rep, err := audioLoop(context.Background(), loopBundle(audio, sampleRate))
	require.NoError(t, err)

	assert.Equal(t, 0.6, rep.Score)
	require.Len(t, rep.Events, 1)
	ev := rep.Events[0]
	assert.Equal(t, tagAudioLoop, ev.EventTag)
	assert.Zero(t, ev.TimestampSec)
	assert.InDelta(t, 2.0, ev.DurationSec, 0.1)
	assert.Equal(t, ev.DurationSec, ev.Metadata["period_s"].(float64))
}

func TestAudioLoopIgnoresAperiodicTrack(t *testing.T) {
	// Deterministic per-hop noise amplitudes: no repeat structure.
	const sampleRate = 1000
	var audio []float64
	for j := 0; j < 320; j++ {
		_, frac := math.Modf(math.Abs(math.Sin(float64(j)*12.9898) * 43758.5453))
		audio = constBlock(audio, 50, 0.05+0.4*frac)
	}

	rep, err := audioLoop(context.Background(), loopBundle(audio, sampleRate))
	require.NoError(t, err)

	assert.Equal(t, 0.05, rep.Score)
	assert.Empty(t, rep.Events)
}

func TestAudioLoopSilenceAndShortTracks(t *testing.T) {
	rep, err := audioLoop(context.Background(), loopBundle(constBlock(nil, 8000, 0.0), 1000))
	require.NoError(t, err)
	assert.Equal(t, 0.05, rep.Score, "silence never loops")

	rep, err = audioLoop(context.Background(), loopBundle(constBlock(nil, 500, 0.3), 1000))
	require.NoError(t, err)
	assert.Equal(t, 0.05, rep.Score, "sub-2s track has no lag room")
}
