package pipeline

import (
	"errors"
	"fmt"

	"github.com/veracity-labs/veracity/pkg/models"
)

// Sentinels for errors.Is checks across the API boundary. The typed errors
// below match these while carrying the detail the handlers need.
var (
	// ErrRejected means the submission was refused before a job existed.
	ErrRejected = errors.New("submission rejected")

	// ErrNotReady means the job exists but has not reached a terminal state.
	ErrNotReady = errors.New("job not finished")

	// ErrFailed means the job reached the failed terminal state.
	ErrFailed = errors.New("job failed")
)

// Rejection reasons, used as the metrics label and in API payloads.
const (
	RejectOversize        = "oversize"
	RejectUnsupportedType = "unsupported_type"
	RejectOverloaded      = "overloaded"
)

// RejectedError says why a submission was refused. No job record exists for
// rejected submissions.
type RejectedError struct {
	Reason string
	Detail string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("submission rejected (%s): %s", e.Reason, e.Detail)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// NotReadyError carries the job's live status for result reads that arrive
// too early.
type NotReadyError struct {
	Status   models.JobStatus
	Progress float64
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("job not finished: status %s", e.Status)
}

func (e *NotReadyError) Is(target error) bool {
	return target == ErrNotReady
}

// FailedError surfaces a terminal failure on result reads.
type FailedError struct {
	Kind   models.ErrorKind
	Detail string
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("job failed (%s): %s", e.Kind, e.Detail)
}

func (e *FailedError) Is(target error) bool {
	return target == ErrFailed
}
