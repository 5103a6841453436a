package builtin

import (
	"context"

	"github.com/veracity-labs/veracity/pkg/inspect"
	"github.com/veracity-labs/veracity/pkg/models"
)

const tagLipsyncMismatch = "lipsync_mismatch"

const (
	// Mouth region of a roughly centered talking head, as frame fractions.
	mouthX0, mouthX1 = 0.35, 0.65
	mouthY0, mouthY1 = 0.62, 0.85

	// lipsyncWindowSec / lipsyncStepSec define the sliding correlation
	// windows. The step keeps mismatch events at most one per second.
	lipsyncWindowSec = 2
	lipsyncStepSec   = 1

	// Windows quieter than this RMS carry no speech energy to correlate.
	lipsyncActiveRMS = 0.02

	// Correlation below this in an active window counts as a mismatch.
	lipsyncMismatchCorr = 0.15
)

// lipsync correlates mouth-region motion with the audio energy envelope
// over sliding windows. Dubbed or generated faces move out of step with the
// track, dragging the correlation toward zero in windows where speech is
// present. An empty transcript artifact means no speech was found at all,
// which this inspector cannot judge: it self-neutralizes.
func lipsync(ctx context.Context, b *inspect.Bundle) (*inspect.Report, error) {
	if b.Transcript == "" {
		return &inspect.Report{Score: inspect.NeutralScore}, nil
	}

	frames := b.Media.Frames
	fps := b.Media.TargetFPS
	window := lipsyncWindowSec * fps
	step := lipsyncStepSec * fps
	if fps <= 0 || len(frames) < window+1 {
		return &inspect.Report{Score: inspect.NeutralScore}, nil
	}

	// Mouth movement proxy: per-frame-pair change in mouth-region luma.
	mouth := make([]float64, len(frames))
	for i := range frames {
		if i%ctxCheckStride == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		mouth[i] = regionMeanLuma(&frames[i], mouthX0, mouthY0, mouthX1, mouthY1)
	}
	motion := make([]float64, len(frames)-1)
	for i := range motion {
		d := mouth[i+1] - mouth[i]
		if d < 0 {
			d = -d
		}
		motion[i] = d
	}

	// Audio energy at frame cadence, trimmed to the motion series.
	env := rmsEnvelope(b.Audio, b.SampleRate, 1/float64(fps))
	n := min(len(motion), len(env))
	if n < window {
		return &inspect.Report{Score: inspect.NeutralScore}, nil
	}
	motion, env = motion[:n], env[:n]

	var events []models.AnomalyEvent
	var active, mismatched int
	for start := 0; start+window <= n; start += step {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		envWin := env[start : start+window]
		envMean, _ := meanStd(envWin)
		if envMean <= lipsyncActiveRMS {
			continue
		}
		active++
		corr := pearson(motion[start:start+window], envWin)
		if corr < lipsyncMismatchCorr {
			mismatched++
			events = append(events, models.AnomalyEvent{
				EventTag:     tagLipsyncMismatch,
				TimestampSec: round2(float64(start) / float64(fps)),
				DurationSec:  lipsyncWindowSec,
				Metadata:     map[string]any{"corr": round2(corr)},
			})
		}
	}

	if active == 0 {
		return &inspect.Report{Score: inspect.NeutralScore}, nil
	}
	score := clamp01(0.15 + 0.85*float64(mismatched)/float64(active))
	return &inspect.Report{Score: score, Events: events}, nil
}
