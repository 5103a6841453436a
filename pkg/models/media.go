package models

// Frame is a single decoded video frame in packed RGB24 layout.
// Pixels holds Width*Height*3 bytes, rows top to bottom.
type Frame struct {
	TimestampSec float64
	Width        int
	Height       int
	Pixels       []byte
}

// RGBAt returns the red, green, blue components of the pixel at (x, y).
// Callers must stay within [0,Width)×[0,Height).
func (f *Frame) RGBAt(x, y int) (r, g, b byte) {
	i := (y*f.Width + x) * 3
	return f.Pixels[i], f.Pixels[i+1], f.Pixels[i+2]
}

// SampledMedia is the canonical intermediate form every inspector consumes:
// uniformly sampled frames plus the extracted mono 16 kHz PCM track.
//
// Invariants: frame timestamps are strictly increasing at 1/TargetFPS steps
// starting from 0; EffectiveDurationSec ≤ OriginalDurationSec; AudioPath
// points inside the owning job's workspace.
type SampledMedia struct {
	Frames []Frame

	AudioPath string
	HasAudio  bool

	OriginalDurationSec  float64
	EffectiveDurationSec float64
	TargetFPS            int

	Width  int
	Height int
}

// FrameCount returns the number of sampled frames.
func (m *SampledMedia) FrameCount() int {
	return len(m.Frames)
}
