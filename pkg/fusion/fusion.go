// Package fusion combines per-inspector scores into the final verdict.
// It is pure: no I/O, no clock, and identical inputs produce identical
// outputs down to the last bit.
package fusion

import (
	"math"
	"sort"

	"github.com/veracity-labs/veracity/pkg/models"
)

// Label thresholds on confidence, inclusive on the lower bound: edge values
// belong to the higher-confidence bucket.
const (
	ThresholdLikelyReal = 0.70
	ThresholdUncertain  = 0.40
)

// NeutralConfidence is the verdict when no inspector contributed a score.
const NeutralConfidence = 0.50

// Verdict is the fusion output.
type Verdict struct {
	Label      string
	Confidence float64
	FakeScore  float64
}

// Fuse computes the weighted mean of scores (convention: higher = more
// likely synthetic) over inspectors with a positive weight, then maps it to
// a confidence (higher = more likely real) and a label.
//
// Inspectors present in scores but absent from weights (or weighted zero)
// are ignored. An empty contribution set yields the neutral verdict.
//
// Summation runs in sorted name order so the float result is reproducible
// regardless of map iteration order.
func Fuse(scores map[string]float64, weights map[string]float64) Verdict {
	names := make([]string, 0, len(scores))
	for name := range scores {
		if weights[name] > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var weightedSum, weightTotal float64
	for _, name := range names {
		w := weights[name]
		weightedSum += w * clamp01(scores[name])
		weightTotal += w
	}

	if weightTotal == 0 {
		return Verdict{
			Label:      models.LabelUncertain,
			Confidence: NeutralConfidence,
			FakeScore:  NeutralConfidence,
		}
	}

	fake := weightedSum / weightTotal
	confidence := clamp01(1 - fake)
	return Verdict{
		Label:      LabelFor(confidence),
		Confidence: confidence,
		FakeScore:  fake,
	}
}

// LabelFor maps a confidence to its categorical label.
func LabelFor(confidence float64) string {
	switch {
	case confidence >= ThresholdLikelyReal:
		return models.LabelLikelyReal
	case confidence >= ThresholdUncertain:
		return models.LabelUncertain
	default:
		return models.LabelLikelyFake
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}
