package api

import (
	"time"

	"github.com/veracity-labs/veracity/pkg/models"
)

// SubmitResponse is returned by POST /api/v1/analyses.
type SubmitResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StatusResponse is returned by GET /api/v1/analyses/:id/status. It is the
// job record without the result payload; results have their own endpoint
// with completion gating.
type StatusResponse struct {
	JobID       string           `json:"job_id"`
	Status      models.JobStatus `json:"status"`
	Phase       models.JobPhase  `json:"phase"`
	Filename    string           `json:"filename"`
	SizeBytes   int64            `json:"size_bytes"`
	Progress    float64          `json:"progress"`
	CreatedAt   time.Time        `json:"created_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	ErrorKind   models.ErrorKind `json:"error_kind,omitempty"`
	ErrorDetail string           `json:"error_detail,omitempty"`
}

// EventsResponse is returned by GET /api/v1/analyses/:id/events.
type EventsResponse struct {
	JobID  string                `json:"job_id"`
	Events []models.AnomalyEvent `json:"events"`
}

// CancelResponse is returned by DELETE /api/v1/analyses/:id.
type CancelResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status          string                 `json:"status"`
	Version         string                 `json:"version"`
	PipelineVersion string                 `json:"pipeline_version"`
	Checks          map[string]HealthCheck `json:"checks"`
}

// HealthCheck is the status of one subsystem inside HealthResponse.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
