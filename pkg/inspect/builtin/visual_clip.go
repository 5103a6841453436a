package builtin

import (
	"context"
	"math"

	"github.com/veracity-labs/veracity/pkg/inspect"
	"github.com/veracity-labs/veracity/pkg/models"
)

const (
	clipGridW = 16
	clipGridH = 16

	// naturalSaturation is the mid-band mean saturation of ordinary
	// footage; fakeness grows with distance from it in either direction.
	naturalSaturation = 0.32

	// stillFloorDelta is the inter-frame grid delta (luma units) below
	// which footage counts as fully static. Generated clips and frozen
	// loops sit near zero; handheld or talking-head video does not.
	stillFloorDelta = 8.0
)

// visualClip scores overall frame realism from two cheap global statistics:
// how far the color saturation sits from the natural mid-band, and how
// static the footage is. Score only, no events.
func visualClip(ctx context.Context, b *inspect.Bundle) (*inspect.Report, error) {
	frames := b.Media.Frames

	var satSum float64
	var prev []float64
	var deltaSum float64
	var deltaN int
	for i := range frames {
		if i%ctxCheckStride == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f := &frames[i]
		satSum += frameMeanSaturation(f)
		grid := lumaGrid(f, clipGridW, clipGridH)
		if prev != nil {
			deltaSum += meanAbsDiff(grid, prev)
			deltaN++
		}
		prev = grid
	}

	meanSat := satSum / float64(len(frames))
	satTerm := math.Min(1, math.Abs(meanSat-naturalSaturation)/naturalSaturation)

	// A single frame cannot witness motion; only saturation counts then.
	var still float64
	if deltaN > 0 {
		still = 1 - math.Min(1, deltaSum/float64(deltaN)/stillFloorDelta)
	}

	score := clamp01(0.15 + 0.55*satTerm + 0.30*still*still)
	return &inspect.Report{Score: score}, nil
}

func frameMeanSaturation(f *models.Frame) float64 {
	sx := max(1, f.Width/64)
	sy := max(1, f.Height/64)
	var sum float64
	var n int
	for y := 0; y < f.Height; y += sy {
		for x := 0; x < f.Width; x += sx {
			sum += saturation(f.RGBAt(x, y))
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
