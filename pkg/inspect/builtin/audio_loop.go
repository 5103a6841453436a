package builtin

import (
	"context"

	"github.com/veracity-labs/veracity/pkg/inspect"
	"github.com/veracity-labs/veracity/pkg/models"
)

const tagAudioLoop = "audio_loop"

const (
	// Envelope hop; 50ms gives a 20 Hz energy series.
	loopHopSec = 0.05

	// Lags shorter than this are dominated by envelope smoothness, not
	// looping. One second is the shortest repeat worth reporting.
	loopMinLagSec = 1.0

	// Normalized autocorrelation above this marks a repeating track.
	loopPeakCorr = 0.8
)

// audioLoop autocorrelates the audio energy envelope: a synthetic track
// glued from a repeated clip correlates strongly with itself at the repeat
// offset. The first lag past one second whose normalized autocorrelation
// clears the peak threshold is reported as the loop period.
func audioLoop(ctx context.Context, b *inspect.Bundle) (*inspect.Report, error) {
	env := rmsEnvelope(b.Audio, b.SampleRate, loopHopSec)

	minLag := int(loopMinLagSec / loopHopSec)
	if len(env) < 2*minLag {
		return &inspect.Report{Score: 0.05}, nil
	}

	mean, _ := meanStd(env)
	x := make([]float64, len(env))
	var energy float64
	for i, v := range env {
		x[i] = v - mean
		energy += x[i] * x[i]
	}
	if energy < 1e-12 {
		// Silence never loops.
		return &inspect.Report{Score: 0.05}, nil
	}

	for lag := minLag; lag <= len(x)/2; lag++ {
		if lag%ctxCheckStride == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var acf float64
		for i := 0; i+lag < len(x); i++ {
			acf += x[i] * x[i+lag]
		}
		if acf/energy >= loopPeakCorr {
			period := round2(float64(lag) * loopHopSec)
			return &inspect.Report{
				Score: 0.6,
				Events: []models.AnomalyEvent{{
					EventTag:    tagAudioLoop,
					DurationSec: period,
					Metadata:    map[string]any{"period_s": period},
				}},
			}, nil
		}
	}
	return &inspect.Report{Score: 0.05}, nil
}
