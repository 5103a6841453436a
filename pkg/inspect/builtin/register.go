// Package builtin holds the nine stock inspectors: self-contained signal
// heuristics over sampled RGB frames and mono PCM. Every inspector returns
// a score in [0,1] where higher means more likely synthetic, emits only its
// declared event tags, and is deterministic for a fixed bundle.
package builtin

import (
	"time"

	"github.com/veracity-labs/veracity/pkg/inspect"
)

// RegisterAll installs the stock inspectors. Descriptor weights mirror the
// frozen v1 fusion table.
func RegisterAll(r *inspect.Registry) error {
	builtins := []struct {
		desc inspect.Descriptor
		fn   inspect.Func
	}{
		{
			desc: inspect.Descriptor{
				Name:     "visual_clip",
				Requires: []inspect.Requirement{inspect.RequireFrames},
				Weight:   0.20,
				Timeout:  60 * time.Second,
			},
			fn: visualClip,
		},
		{
			desc: inspect.Descriptor{
				Name:     "visual_artifacts",
				Requires: []inspect.Requirement{inspect.RequireFrames},
				Weight:   0.15,
				Timeout:  120 * time.Second,
				MayEmit:  []string{tagVisualArtifact},
			},
			fn: visualArtifacts,
		},
		{
			desc: inspect.Descriptor{
				Name: "lipsync",
				Requires: []inspect.Requirement{
					inspect.RequireFrames, inspect.RequireAudio, inspect.RequireTranscript,
				},
				Weight:  0.15,
				Timeout: 120 * time.Second,
				MayEmit: []string{tagLipsyncMismatch},
			},
			fn: lipsync,
		},
		{
			desc: inspect.Descriptor{
				Name:     "blink",
				Requires: []inspect.Requirement{inspect.RequireFrames},
				Weight:   0.10,
				Timeout:  90 * time.Second,
				MayEmit:  []string{tagAbnormalBlink},
			},
			fn: blink,
		},
		{
			desc: inspect.Descriptor{
				Name:     "ocr_gibberish",
				Requires: []inspect.Requirement{inspect.RequireFrames},
				Weight:   0.05,
				Timeout:  60 * time.Second,
				MayEmit:  []string{tagGibberishText},
			},
			fn: ocrGibberish,
		},
		{
			desc: inspect.Descriptor{
				Name:     "motion_flow",
				Requires: []inspect.Requirement{inspect.RequireFrames},
				Weight:   0.10,
				Timeout:  60 * time.Second,
				MayEmit:  []string{tagFlowSpike},
			},
			fn: motionFlow,
		},
		{
			desc: inspect.Descriptor{
				Name:     "audio_loop",
				Requires: []inspect.Requirement{inspect.RequireAudio},
				Weight:   0.05,
				Timeout:  30 * time.Second,
				MayEmit:  []string{tagAudioLoop},
			},
			fn: audioLoop,
		},
		{
			desc: inspect.Descriptor{
				Name:     "lighting",
				Requires: []inspect.Requirement{inspect.RequireFrames},
				Weight:   0.05,
				Timeout:  30 * time.Second,
				MayEmit:  []string{tagLightChange},
			},
			fn: lighting,
		},
		{
			desc: inspect.Descriptor{
				Name:     "transcript",
				Requires: []inspect.Requirement{inspect.RequireAudio},
				Provides: []inspect.Requirement{inspect.RequireTranscript},
				Weight:   0,
				Timeout:  60 * time.Second,
			},
			fn: transcribe,
		},
	}

	for _, b := range builtins {
		if err := r.Register(b.desc, b.fn); err != nil {
			return err
		}
	}
	return nil
}
