package builtin

import (
	"context"
	"math"

	"github.com/veracity-labs/veracity/pkg/inspect"
	"github.com/veracity-labs/veracity/pkg/models"
)

const tagVisualArtifact = "visual_artifact"

// blockSpikeRatio is the minimum boundary/interior gradient ratio for a
// frame to qualify as a blockiness spike at all, on top of the rolling
// μ+2σ test.
const blockSpikeRatio = 1.2

// visualArtifacts measures 8×8 block-boundary gradient energy, the
// signature compression and GAN upsamplers leave behind. Frames whose
// boundary/interior ratio spikes emit visual_artifact events; the score
// follows the mean ratio across the clip.
func visualArtifacts(ctx context.Context, b *inspect.Bundle) (*inspect.Report, error) {
	frames := b.Media.Frames

	ratios := make([]float64, 0, len(frames))
	for i := range frames {
		if i%ctxCheckStride == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		ratios = append(ratios, blockiness(&frames[i]))
	}

	mean, std := meanStd(ratios)

	var events []models.AnomalyEvent
	lastEventTS := -1.0
	for i, ratio := range ratios {
		ts := frames[i].TimestampSec
		if ts < lastEventTS+1.0 {
			continue
		}
		if ratio > mean+2*std && ratio > blockSpikeRatio {
			events = append(events, models.AnomalyEvent{
				EventTag:     tagVisualArtifact,
				TimestampSec: round2(ts),
				Metadata:     map[string]any{"ratio": round2(ratio)},
			})
			lastEventTS = ts
		}
	}

	// Ratio 1.0 is structureless footage; ~2.5 is severe blocking.
	score := clamp01((mean - 1) / 1.5)
	return &inspect.Report{Score: score, Events: events}, nil
}

// blockiness is the ratio of the mean luma gradient across 8px block
// boundaries to the mean gradient inside blocks, sampled on a row/column
// stride. Values near 1 mean no block structure.
func blockiness(f *models.Frame) float64 {
	if f.Width < 17 || f.Height < 17 {
		return 1
	}

	var boundarySum, interiorSum float64
	var boundaryN, interiorN int

	sy := max(1, f.Height/64)
	for y := 0; y < f.Height; y += sy {
		for x := 1; x < f.Width; x++ {
			d := math.Abs(lumaAt(f, x, y) - lumaAt(f, x-1, y))
			if x%8 == 0 {
				boundarySum += d
				boundaryN++
			} else {
				interiorSum += d
				interiorN++
			}
		}
	}
	sx := max(1, f.Width/64)
	for x := 0; x < f.Width; x += sx {
		for y := 1; y < f.Height; y++ {
			d := math.Abs(lumaAt(f, x, y) - lumaAt(f, x, y-1))
			if y%8 == 0 {
				boundarySum += d
				boundaryN++
			} else {
				interiorSum += d
				interiorN++
			}
		}
	}

	if boundaryN == 0 || interiorN == 0 {
		return 1
	}
	interiorMean := interiorSum / float64(interiorN)
	if interiorMean < 1e-9 {
		return 1
	}
	return boundarySum / float64(boundaryN) / interiorMean
}
