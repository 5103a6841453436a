package models

// AnomalyEvent is a timestamped observation attributed to one inspector.
// JSON field names are wire-stable (result payload contract).
type AnomalyEvent struct {
	Module       string         `json:"module"`
	EventTag     string         `json:"event"`
	TimestampSec float64        `json:"ts"`
	DurationSec  float64        `json:"dur"`
	Metadata     map[string]any `json:"meta,omitempty"`
}

// Clone returns a copy with its own metadata map.
func (e AnomalyEvent) Clone() AnomalyEvent {
	out := e
	if e.Metadata != nil {
		out.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// EventTagInspectorFailed marks a non-fatal inspector failure that was
// neutralized to score 0.5. Emitted by the runner, not by inspector code.
const EventTagInspectorFailed = "inspector_failed"

// EventTagScoreClamped marks a score that fell outside [0,1] and was
// clamped. Also runner-emitted.
const EventTagScoreClamped = "score_clamped"
