package pipeline

import (
	"context"

	"github.com/veracity-labs/veracity/pkg/models"
	"github.com/veracity-labs/veracity/pkg/workspace"
)

// Sampler decodes an uploaded media file into the bundle inspectors consume.
// media.Sampler is the production implementation; tests substitute stubs.
type Sampler interface {
	Sample(ctx context.Context, inputPath string, ws *workspace.Workspace) (*models.SampledMedia, error)
}

// Publisher pushes live job notifications to subscribers. Implementations
// must never block the pipeline; a nil Publisher disables streaming.
type Publisher interface {
	PublishStatus(jobID string, status models.JobStatus, errorKind models.ErrorKind)
	PublishProgress(jobID string, progress float64)
	PublishAnomaly(jobID string, event models.AnomalyEvent)
}
