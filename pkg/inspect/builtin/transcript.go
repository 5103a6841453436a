package builtin

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/veracity-labs/veracity/pkg/inspect"
)

const (
	// 30ms hops give speech-scale resolution on the energy envelope.
	vadHopSec = 0.03

	// Absolute RMS floor for speech; below it everything is noise.
	vadMinThreshold = 0.012

	// Speech must clear this multiple of the clip's own noise floor (the
	// 25th envelope percentile), so quiet recordings still segment.
	vadFloorMultiple = 3.0

	// Segments closer than this merge; shorter than this are discarded.
	vadMergeGapSec   = 0.3
	vadMinSegmentSec = 0.25
)

// transcribe is an energy-based voice activity detector. It produces the
// transcript artifact consumed by downstream inspectors: a plain-text list
// of speech segments like "[0.0s-2.5s speech] [4.1s-6.0s speech]", empty
// when the track has no speech. Weight 0, so it never moves the verdict.
func transcribe(ctx context.Context, b *inspect.Bundle) (*inspect.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	env := rmsEnvelope(b.Audio, b.SampleRate, vadHopSec)
	if len(env) == 0 {
		return &inspect.Report{Score: 0}, nil
	}

	sorted := append([]float64(nil), env...)
	sort.Float64s(sorted)
	floor := sorted[len(sorted)/4]
	thresh := math.Max(vadMinThreshold, vadFloorMultiple*floor)

	type span struct{ start, end int } // hop indices, end exclusive
	var spans []span
	for i := 0; i < len(env); {
		if env[i] <= thresh {
			i++
			continue
		}
		j := i
		for j < len(env) && env[j] > thresh {
			j++
		}
		spans = append(spans, span{i, j})
		i = j
	}

	var merged []span
	for _, s := range spans {
		if n := len(merged); n > 0 && float64(s.start-merged[n-1].end)*vadHopSec < vadMergeGapSec {
			merged[n-1].end = s.end
			continue
		}
		merged = append(merged, s)
	}

	var parts []string
	for _, s := range merged {
		if float64(s.end-s.start)*vadHopSec < vadMinSegmentSec {
			continue
		}
		parts = append(parts, fmt.Sprintf("[%.1fs-%.1fs speech]",
			float64(s.start)*vadHopSec, float64(s.end)*vadHopSec))
	}
	return &inspect.Report{Score: 0, Artifact: strings.Join(parts, " ")}, nil
}
