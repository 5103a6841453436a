package builtin

import (
	"context"
	"math"

	"github.com/veracity-labs/veracity/pkg/inspect"
	"github.com/veracity-labs/veracity/pkg/models"
)

const tagLightChange = "light_change"

// lightJumpDelta is the global mean-luma jump between consecutive frames
// that counts as an abrupt lighting shift. Scene cuts and flash events in
// real footage clear it too, which is why the per-event score increment
// stays small.
const lightJumpDelta = 24.0

// lighting tracks global mean luma between consecutive frames. Spliced or
// regenerated segments tend to land at a different exposure than their
// neighbors, showing up as abrupt jumps.
func lighting(ctx context.Context, b *inspect.Bundle) (*inspect.Report, error) {
	frames := b.Media.Frames

	lumas := make([]float64, len(frames))
	for i := range frames {
		if i%ctxCheckStride == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lumas[i] = meanLuma(&frames[i])
	}

	var events []models.AnomalyEvent
	lastEventTS := -1.0
	for i := 1; i < len(lumas); i++ {
		ts := frames[i].TimestampSec
		if ts < lastEventTS+1.0 {
			continue
		}
		if delta := math.Abs(lumas[i] - lumas[i-1]); delta > lightJumpDelta {
			events = append(events, models.AnomalyEvent{
				EventTag:     tagLightChange,
				TimestampSec: round2(ts),
				Metadata:     map[string]any{"delta": round2(delta)},
			})
			lastEventTS = ts
		}
	}

	if len(events) == 0 {
		return &inspect.Report{Score: 0.05}, nil
	}
	score := math.Min(0.3+0.15*float64(len(events)-1), 0.8)
	return &inspect.Report{Score: score, Events: events}, nil
}
