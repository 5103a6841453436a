// Package media turns an input video file into the canonical SampledMedia
// bundle every inspector consumes: uniformly sampled RGB24 frames plus a
// mono 16 kHz PCM track, decoded through ffmpeg/ffprobe subprocesses.
package media

import (
	"context"
	"log/slog"
	"math"
	"path/filepath"

	"github.com/veracity-labs/veracity/pkg/config"
	"github.com/veracity-labs/veracity/pkg/models"
	"github.com/veracity-labs/veracity/pkg/workspace"
)

// Sampler decodes media files according to a fixed sampling configuration.
type Sampler struct {
	cfg *config.SamplerConfig
}

// NewSampler returns a sampler using the given configuration.
func NewSampler(cfg *config.SamplerConfig) *Sampler {
	return &Sampler{cfg: cfg}
}

// Sample probes the input, decodes frames at the target fps for at most
// MaxDurationSec seconds, and extracts the audio track into the workspace.
//
// The caller owns the stage budget through ctx; when it fires, subprocesses
// are killed and the context error is returned.
func (s *Sampler) Sample(ctx context.Context, inputPath string, ws *workspace.Workspace) (*models.SampledMedia, error) {
	info, err := s.probe(ctx, inputPath)
	if err != nil {
		return nil, err
	}

	effective := math.Min(info.DurationSec, float64(s.cfg.MaxDurationSec))

	frames, err := s.decodeFrames(ctx, inputPath, info.Width, info.Height, effective)
	if err != nil {
		return nil, err
	}

	audioPath, hasAudio, err := s.extractAudio(ctx, inputPath, ws, effective, info.HasAudio)
	if err != nil {
		return nil, err
	}

	sm := &models.SampledMedia{
		Frames:               frames,
		AudioPath:            audioPath,
		HasAudio:             hasAudio,
		OriginalDurationSec:  info.DurationSec,
		EffectiveDurationSec: effective,
		TargetFPS:            s.cfg.TargetFPS,
		Width:                frames[0].Width,
		Height:               frames[0].Height,
	}

	slog.Info("Media sampled",
		"file", filepath.Base(inputPath),
		"frames", len(frames),
		"width", sm.Width,
		"height", sm.Height,
		"original_sec", info.DurationSec,
		"effective_sec", effective,
		"has_audio", hasAudio)
	return sm, nil
}
