package media

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoVideoStream is returned when the probed file has no video track.
	ErrNoVideoStream = errors.New("no video stream in media")

	// ErrUnknownDuration is returned when neither the container nor any
	// stream reports a usable duration.
	ErrUnknownDuration = errors.New("media duration unknown or zero")

	// ErrNoFrames is returned when decoding produced zero frames.
	ErrNoFrames = errors.New("no frames decoded")
)

// ToolError carries the diagnostics of a failed ffmpeg/ffprobe run.
type ToolError struct {
	Tool   string
	Err    error
	Stderr string
}

func (e *ToolError) Error() string {
	tail := strings.TrimSpace(e.Stderr)
	if tail == "" {
		return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("%s failed: %v: %s", e.Tool, e.Err, tail)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}
