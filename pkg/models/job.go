// Package models defines the domain types shared across the job store,
// pipeline, and API layers.
package models

import "time"

// JobStatus is the externally visible lifecycle state of a job.
// Once terminal (completed/failed) it never changes.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// JobPhase is the orchestrator-internal state machine position.
// External pollers see sampling/inspecting/fusing collapsed to "processing".
type JobPhase string

const (
	PhasePending    JobPhase = "pending"
	PhaseSampling   JobPhase = "sampling"
	PhaseInspecting JobPhase = "inspecting"
	PhaseFusing     JobPhase = "fusing"
	PhaseCompleted  JobPhase = "completed"
	PhaseFailed     JobPhase = "failed"
)

// Status maps a phase to the externally visible job status.
func (p JobPhase) Status() JobStatus {
	switch p {
	case PhasePending:
		return StatusPending
	case PhaseCompleted:
		return StatusCompleted
	case PhaseFailed:
		return StatusFailed
	default:
		return StatusProcessing
	}
}

// ErrorKind classifies terminal job failures for operators and clients.
type ErrorKind string

const (
	ErrKindSampling  ErrorKind = "sampling_error"
	ErrKindInspector ErrorKind = "inspector_fatal"
	ErrKindFusion    ErrorKind = "fusion_error"
	ErrKindWorkspace ErrorKind = "workspace_error"
	ErrKindCancelled ErrorKind = "cancelled"
)

// JobRecord is the per-job state tracked by the store. The orchestrator owns
// all writes; everyone else reads snapshots.
//
// Field invariants:
//   - StartedAt set ⇔ the job advanced past pending at least once
//   - CompletedAt set ⇔ Status is terminal
//   - Result set ⇔ Status == completed
//   - ErrorKind set ⇔ Status == failed
type JobRecord struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	Phase     JobPhase  `json:"phase"`
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Progress advances 0 → 0.10 (sampled) → 0.90 (inspected) → 1.0.
	Progress float64 `json:"progress"`

	Result      *AnalysisResult `json:"result,omitempty"`
	ErrorKind   ErrorKind       `json:"error_kind,omitempty"`
	ErrorDetail string          `json:"error_detail,omitempty"`
}

// Clone returns a deep copy safe to hand to concurrent readers.
func (r *JobRecord) Clone() *JobRecord {
	if r == nil {
		return nil
	}
	out := *r
	if r.StartedAt != nil {
		t := *r.StartedAt
		out.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	out.Result = r.Result.Clone()
	return &out
}
