package models

import "time"

// Classification labels produced by fusion. Wire-stable.
const (
	LabelLikelyReal = "LIKELY_REAL"
	LabelUncertain  = "UNCERTAIN"
	LabelLikelyFake = "LIKELY_FAKE"
)

// DerivedSummary carries secondary analysis outputs alongside the verdict.
type DerivedSummary struct {
	VisualScore         float64 `json:"visualScore"`
	VideoLength         float64 `json:"videoLength"`
	OriginalVideoLength float64 `json:"originalVideoLength"`
	TranscriptSnippet   string  `json:"transcriptSnippet"`
	ProcessingTimeSec   float64 `json:"processingTimeSec"`
	PipelineVersion     string  `json:"pipelineVersion"`
}

// AnalysisResult is the final verdict for a completed job. The JSON layout
// is the wire contract of the result endpoint and must not change shape.
type AnalysisResult struct {
	JobID              string             `json:"jobId"`
	Label              string             `json:"label"`
	Confidence         float64            `json:"confidence"`
	PerInspectorScores map[string]float64 `json:"perInspectorScores"`
	Events             []AnomalyEvent     `json:"events"`
	Derived            DerivedSummary     `json:"derived"`
	ProcessedAt        time.Time          `json:"processedAt"`
}

// Clone returns a deep copy. Results are written once by the orchestrator
// and never mutated afterwards, but snapshots must not alias store memory.
func (r *AnalysisResult) Clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	out := *r
	if r.PerInspectorScores != nil {
		out.PerInspectorScores = make(map[string]float64, len(r.PerInspectorScores))
		for k, v := range r.PerInspectorScores {
			out.PerInspectorScores[k] = v
		}
	}
	if r.Events != nil {
		out.Events = make([]AnomalyEvent, len(r.Events))
		for i := range r.Events {
			out.Events[i] = r.Events[i].Clone()
		}
	}
	return &out
}
