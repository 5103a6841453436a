package builtin

import (
	"context"

	"github.com/veracity-labs/veracity/pkg/inspect"
	"github.com/veracity-labs/veracity/pkg/models"
)

const tagAbnormalBlink = "abnormal_blink"

const (
	// Eye band of a roughly centered face, as frame fractions.
	eyeX0, eyeX1 = 0.30, 0.70
	eyeY0, eyeY1 = 0.22, 0.45

	// A blink shows as a luma dip this many standard deviations below the
	// band's mean (eyelids darken the band).
	blinkDipSigma = 1.5

	// Band activity below this std means no visible facial activity at
	// all, so blink rate cannot be judged.
	blinkMinSigma = 1.0

	// Inter-blink gaps longer than this are reported. Humans rarely hold
	// eyes open this long on camera.
	blinkMaxGapSec = 10.0
)

// blink estimates blink rate from luminance dips in the eye band and
// scores its distance from the human range. Early face-swap pipelines are
// notorious for subjects that never blink; crude loops blink far too often.
// Gaps with no blink at all are reported as abnormal_blink events.
func blink(ctx context.Context, b *inspect.Bundle) (*inspect.Report, error) {
	frames := b.Media.Frames
	eff := b.Media.EffectiveDurationSec
	if len(frames) < 10 || eff < 5 {
		return &inspect.Report{Score: inspect.NeutralScore}, nil
	}

	band := make([]float64, len(frames))
	for i := range frames {
		if i%ctxCheckStride == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		band[i] = regionMeanLuma(&frames[i], eyeX0, eyeY0, eyeX1, eyeY1)
	}

	mean, std := meanStd(band)
	if std <= blinkMinSigma {
		return &inspect.Report{Score: inspect.NeutralScore}, nil
	}

	// A maximal run of dip frames is one blink, stamped at its first frame.
	var blinkTimes []float64
	inDip := false
	for i, v := range band {
		if v < mean-blinkDipSigma*std {
			if !inDip {
				blinkTimes = append(blinkTimes, frames[i].TimestampSec)
				inDip = true
			}
		} else {
			inDip = false
		}
	}

	var events []models.AnomalyEvent
	bounds := append([]float64{0}, blinkTimes...)
	bounds = append(bounds, eff)
	for i := 1; i < len(bounds); i++ {
		gap := bounds[i] - bounds[i-1]
		if gap > blinkMaxGapSec {
			events = append(events, models.AnomalyEvent{
				EventTag:     tagAbnormalBlink,
				TimestampSec: round2(bounds[i-1]),
				DurationSec:  round2(gap),
				Metadata:     map[string]any{"gap_s": round2(gap)},
			})
		}
	}

	bpm := float64(len(blinkTimes)) / eff * 60

	// Human on-camera blink rate sits around 8–25 per minute.
	var score float64
	switch {
	case bpm >= 8 && bpm <= 25:
		score = 0.1
	case (bpm >= 5 && bpm < 8) || (bpm > 25 && bpm <= 35):
		score = 0.5
	default:
		score = 0.9
	}
	return &inspect.Report{Score: score, Events: events}, nil
}
