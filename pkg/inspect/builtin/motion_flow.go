package builtin

import (
	"context"
	"math"

	"github.com/veracity-labs/veracity/pkg/inspect"
	"github.com/veracity-labs/veracity/pkg/models"
)

const tagFlowSpike = "flow_spike"

const (
	flowGridW = 16
	flowGridH = 16

	// Spike threshold in standard deviations over the clip's own motion
	// baseline.
	flowSpikeZ = 2.0

	// Fewer magnitudes than this give no usable baseline.
	flowMinSamples = 5
)

// motionFlow builds a mean absolute frame-difference series and flags
// spikes beyond the clip's own μ+2σ baseline: cuts are gradual in real
// footage, while splices and morph seams jump. Events are throttled to one
// per second; more spikes mean more erratic flow and a higher score.
func motionFlow(ctx context.Context, b *inspect.Bundle) (*inspect.Report, error) {
	frames := b.Media.Frames
	fps := float64(b.Media.TargetFPS)
	if len(frames) < 2 || fps <= 0 {
		return &inspect.Report{Score: 0}, nil
	}

	mags := make([]float64, 0, len(frames)-1)
	prev := lumaGrid(&frames[0], flowGridW, flowGridH)
	for i := 1; i < len(frames); i++ {
		if i%ctxCheckStride == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		grid := lumaGrid(&frames[i], flowGridW, flowGridH)
		mags = append(mags, meanAbsDiff(grid, prev))
		prev = grid
	}
	if len(mags) < flowMinSamples {
		return &inspect.Report{Score: 0}, nil
	}

	mean, std := meanStd(mags)
	std += 1e-6

	var events []models.AnomalyEvent
	lastEventTS := -1.0
	for i, mag := range mags {
		ts := round2((float64(i) + 0.5) / fps)
		if ts < lastEventTS+1.0 {
			continue
		}
		if z := (mag - mean) / std; z > flowSpikeZ {
			events = append(events, models.AnomalyEvent{
				EventTag:     tagFlowSpike,
				TimestampSec: ts,
				Metadata:     map[string]any{"z": round2(z)},
			})
			lastEventTS = ts
		}
	}

	if len(events) == 0 {
		return &inspect.Report{Score: 0}, nil
	}
	score := math.Min(0.2+0.1*float64(len(events)-1), 0.6)
	return &inspect.Report{Score: score, Events: events}, nil
}
