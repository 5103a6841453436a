// Package inspect owns the inspector registry, the single-run execution
// discipline (timeout, panic isolation, score clamping, emission filtering),
// and the bounded per-job fan-out. Inspectors themselves are black boxes:
// functions over the sampled media bundle.
package inspect

import (
	"context"
	"time"

	"github.com/veracity-labs/veracity/pkg/models"
)

// NeutralScore is recorded for an inspector that did not produce a usable
// score (timeout, error, panic, missing input). It pulls the fused verdict
// toward "cannot tell" instead of either pole.
const NeutralScore = 0.5

// Requirement names an input an inspector needs from the bundle.
type Requirement string

const (
	RequireFrames     Requirement = "frames"
	RequireAudio      Requirement = "audio"
	RequireTranscript Requirement = "transcript"
)

// Descriptor declares one inspector: identity, inputs, fusion weight,
// execution budget, and the event tags it is allowed to emit.
//
// Weight is the inspector's default; the fusion engine uses the frozen
// per-version table (WeightsFor), which the built-in descriptors mirror.
type Descriptor struct {
	Name     string
	Requires []Requirement

	// Provides lists artifacts this inspector contributes to the bundle
	// for later inspectors. Providers run in their own wave before the
	// main fan-out.
	Provides []Requirement

	Weight  float64
	Timeout time.Duration

	// MayEmit is the closed set of event tags the inspector may produce.
	// Events with other tags are dropped by the runner.
	MayEmit []string

	// FatalOnFailure escalates a non-success outcome to a job failure.
	// None of the built-ins set it; sampling is the only fatal stage.
	FatalOnFailure bool
}

// Bundle is the input handed to every inspector: sampled frames, decoded
// PCM, and artifacts produced by earlier waves. Inspectors must treat it as
// read-only.
type Bundle struct {
	Media *models.SampledMedia

	// Audio is the mono PCM track in [-1, 1), empty when the media has no
	// usable audio. SampleRate is its rate in Hz.
	Audio      []float64
	SampleRate int

	// Transcript is the artifact of the transcript wave. Empty when no
	// speech was found or the producer failed; dependents self-neutralize.
	Transcript string
}

// Report is a successful inspector return.
type Report struct {
	// Score in [0,1]; higher means more likely synthetic.
	Score float64

	Events []models.AnomalyEvent

	// Artifact is the produced payload for Provides inspectors.
	Artifact string
}

// Func is the inspector entry point. Implementations must respect ctx in
// their frame/sample loops and return promptly once it fires.
type Func func(ctx context.Context, b *Bundle) (*Report, error)
