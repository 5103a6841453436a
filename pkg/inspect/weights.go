package inspect

import "fmt"

// Version1 is the first frozen pipeline version.
const Version1 = "v1"

// versionWeights freezes the fusion weight table per pipeline version.
// Published verdicts must stay reproducible, so entries here are
// append-only: behavior changes get a new version, never an edit.
var versionWeights = map[string]map[string]float64{
	Version1: {
		"visual_clip":      0.20,
		"visual_artifacts": 0.15,
		"lipsync":          0.15,
		"blink":            0.10,
		"ocr_gibberish":    0.05,
		"motion_flow":      0.10,
		"audio_loop":       0.05,
		"lighting":         0.05,
		"transcript":       0.00,
	},
}

// WeightsFor returns a copy of the frozen weight table for the given
// pipeline version. Inspectors absent from the table contribute events but
// no weight to the fused score.
func WeightsFor(version string) (map[string]float64, error) {
	table, ok := versionWeights[version]
	if !ok {
		return nil, fmt.Errorf("unknown pipeline version %q", version)
	}
	out := make(map[string]float64, len(table))
	for name, w := range table {
		out[name] = w
	}
	return out, nil
}
