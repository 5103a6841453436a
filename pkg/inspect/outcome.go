package inspect

import (
	"time"

	"github.com/veracity-labs/veracity/pkg/models"
)

// OutcomeKind classifies how an inspector run ended.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeTimeout OutcomeKind = "timeout"
	OutcomeError   OutcomeKind = "error"
)

// Outcome is the runner's terminal record for one inspector run. For
// non-success kinds the dispatcher applies the neutral-score policy; the
// outcome itself just states what happened.
type Outcome struct {
	Inspector string
	Kind      OutcomeKind

	// Score and Events are set on success only (Events already filtered
	// against the descriptor's MayEmit set and stamped with the module).
	Score  float64
	Events []models.AnomalyEvent

	// Artifact is the produced payload for Provides inspectors.
	Artifact string

	// Detail describes the failure for non-success kinds.
	Detail string

	Elapsed time.Duration
}
