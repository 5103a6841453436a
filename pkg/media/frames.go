package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os/exec"
	"strconv"

	"github.com/veracity-labs/veracity/pkg/metrics"
	"github.com/veracity-labs/veracity/pkg/models"
)

// scaledDims shrinks (w, h) aspect-preserving so the longest side does not
// exceed maxEdge. A zero maxEdge (or already-small input) returns the
// original dimensions.
func scaledDims(w, h, maxEdge int) (int, int) {
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return w, h
	}
	if w >= h {
		nh := int(math.Round(float64(h) * float64(maxEdge) / float64(w)))
		return maxEdge, max(nh, 1)
	}
	nw := int(math.Round(float64(w) * float64(maxEdge) / float64(h)))
	return max(nw, 1), maxEdge
}

func (s *Sampler) frameArgs(input string, effective float64, outW, outH int, scaled bool) []string {
	filter := "fps=" + strconv.Itoa(s.cfg.TargetFPS)
	if scaled {
		filter += fmt.Sprintf(",scale=%d:%d", outW, outH)
	}
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", input,
		"-vf", filter,
		"-t", formatSeconds(effective),
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// decodeFrames streams raw RGB24 frames out of ffmpeg at the target fps.
// Frame i carries timestamp i/fps. The count is capped at ⌈effective×fps⌉;
// zero decoded frames is an error since nothing downstream can run.
func (s *Sampler) decodeFrames(ctx context.Context, input string, srcW, srcH int, effective float64) ([]models.Frame, error) {
	outW, outH := scaledDims(srcW, srcH, s.cfg.MaxFrameEdge)
	args := s.frameArgs(input, effective, outW, outH, outW != srcW || outH != srcH)

	cmd := exec.CommandContext(ctx, s.cfg.FFmpegPath, args...)
	stderr := &tailBuffer{max: 4096}
	cmd.Stderr = stderr
	cmd.WaitDelay = killDelay

	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		metrics.FFmpegRunsTotal.WithLabelValues("ffmpeg", "error").Inc()
		return nil, &ToolError{Tool: "ffmpeg", Err: err, Stderr: stderr.String()}
	}

	maxFrames := int(math.Ceil(effective * float64(s.cfg.TargetFPS)))
	frames, readErr := readFrames(pipe, outW, outH, s.cfg.TargetFPS, maxFrames)

	// Drain anything past the cap so ffmpeg is never blocked on the pipe.
	_, _ = io.Copy(io.Discard, pipe)
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		metrics.FFmpegRunsTotal.WithLabelValues("ffmpeg", "error").Inc()
		return nil, ctx.Err()
	}
	if readErr != nil {
		metrics.FFmpegRunsTotal.WithLabelValues("ffmpeg", "error").Inc()
		return nil, fmt.Errorf("read frame stream: %w", readErr)
	}
	if waitErr != nil {
		metrics.FFmpegRunsTotal.WithLabelValues("ffmpeg", "error").Inc()
		if len(frames) == 0 {
			return nil, &ToolError{Tool: "ffmpeg", Err: waitErr, Stderr: stderr.String()}
		}
		// Partial decode of a truncated file is still usable input.
		slog.Warn("ffmpeg exited nonzero after partial decode",
			"frames", len(frames), "error", waitErr, "stderr", stderr.String())
	} else {
		metrics.FFmpegRunsTotal.WithLabelValues("ffmpeg", "ok").Inc()
	}

	if len(frames) == 0 {
		if tail := stderr.String(); tail != "" {
			return nil, fmt.Errorf("%w: %s", ErrNoFrames, tail)
		}
		return nil, ErrNoFrames
	}
	return frames, nil
}

// readFrames slices the raw byte stream into w×h×3 frames, up to maxFrames.
// A trailing partial frame is discarded.
func readFrames(r io.Reader, w, h, fps, maxFrames int) ([]models.Frame, error) {
	frameSize := w * h * 3
	frames := make([]models.Frame, 0, maxFrames)
	for len(frames) < maxFrames {
		buf := make([]byte, frameSize)
		if _, err := io.ReadFull(r, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return frames, nil
			}
			return frames, err
		}
		frames = append(frames, models.Frame{
			TimestampSec: float64(len(frames)) / float64(fps),
			Width:        w,
			Height:       h,
			Pixels:       buf,
		})
	}
	return frames, nil
}
