package media

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/veracity-labs/veracity/pkg/workspace"
)

// audioFileName is the extracted track's name inside the job workspace.
const audioFileName = "audio.wav"

// extractAudio writes the first effective seconds of audio as mono 16 kHz
// 16-bit PCM into the workspace. Media without an audio stream (or with one
// ffmpeg cannot decode) yields an empty file and hasAudio=false; audio
// inspectors neutralize themselves, the job carries on.
func (s *Sampler) extractAudio(ctx context.Context, input string, ws *workspace.Workspace, effective float64, hasAudioStream bool) (string, bool, error) {
	out := ws.Path(audioFileName)

	if !hasAudioStream {
		if err := writeEmpty(out); err != nil {
			return "", false, err
		}
		return out, false, nil
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", input,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-acodec", "pcm_s16le",
		"-t", formatSeconds(effective),
		"-y", out,
	}
	if err := runTool(ctx, "ffmpeg", s.cfg.FFmpegPath, args, io.Discard); err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		slog.Warn("Audio extraction failed; continuing without audio", "error", err)
		if werr := writeEmpty(out); werr != nil {
			return "", false, werr
		}
		return out, false, nil
	}

	// A header-only file means the track decoded to nothing.
	if info, err := os.Stat(out); err != nil || info.Size() <= wavHeaderSize {
		return out, false, nil
	}
	return out, true, nil
}

func writeEmpty(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	return f.Close()
}
