package builtin

import (
	"context"

	"github.com/veracity-labs/veracity/pkg/inspect"
	"github.com/veracity-labs/veracity/pkg/models"
)

const tagGibberishText = "gibberish_text"

const (
	ocrGridW = 16
	ocrGridH = 12

	// Cells whose luma std exceeds this look text-like (sharp strokes on
	// a flat background).
	ocrTextContrast = 18.0

	// Cells that flip text↔not this many times are flickering glyphs.
	// Real captions appear once and stay.
	ocrFlickerToggles = 4

	// Per-transition toggle count must exceed μ+2σ and this floor to emit
	// a gibberish_text event.
	ocrSpikeMinCells = 4
)

// ocrGibberish looks for text-like high-contrast cells that flicker from
// frame to frame. Generated video renders unstable glyph shapes where real
// footage shows steady captions or signage; heavy flicker across the
// text-bearing cells raises the score.
func ocrGibberish(ctx context.Context, b *inspect.Bundle) (*inspect.Report, error) {
	frames := b.Media.Frames

	cells := ocrGridW * ocrGridH
	textlike := make([][]bool, len(frames))
	for i := range frames {
		if i%ctxCheckStride == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		std := gridStd(&frames[i], ocrGridW, ocrGridH)
		row := make([]bool, cells)
		for c, v := range std {
			row[c] = v > ocrTextContrast
		}
		textlike[i] = row
	}

	// Per-cell toggle counts plus the per-transition totals for spikes.
	toggles := make([]int, cells)
	transitions := make([]float64, 0, len(frames))
	everText := make([]bool, cells)
	for c := 0; c < cells; c++ {
		everText[c] = textlike[0][c]
	}
	for i := 1; i < len(frames); i++ {
		var flipped int
		for c := 0; c < cells; c++ {
			if textlike[i][c] {
				everText[c] = true
			}
			if textlike[i][c] != textlike[i-1][c] {
				toggles[c]++
				flipped++
			}
		}
		transitions = append(transitions, float64(flipped))
	}

	var everN, flickerN int
	for c := 0; c < cells; c++ {
		if everText[c] {
			everN++
			if toggles[c] >= ocrFlickerToggles {
				flickerN++
			}
		}
	}
	if everN == 0 {
		return &inspect.Report{Score: 0.05}, nil
	}

	var events []models.AnomalyEvent
	mean, std := meanStd(transitions)
	lastEventTS := -1.0
	for i, flipped := range transitions {
		ts := frames[i+1].TimestampSec
		if ts < lastEventTS+1.0 {
			continue
		}
		if flipped > mean+2*std && flipped >= ocrSpikeMinCells {
			events = append(events, models.AnomalyEvent{
				EventTag:     tagGibberishText,
				TimestampSec: round2(ts),
				Metadata:     map[string]any{"cells": int(flipped)},
			})
			lastEventTS = ts
		}
	}

	score := clamp01(0.05 + 0.85*float64(flickerN)/float64(everN))
	return &inspect.Report{Score: score, Events: events}, nil
}
