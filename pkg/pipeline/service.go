package pipeline

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/veracity-labs/veracity/pkg/jobs"
	"github.com/veracity-labs/veracity/pkg/metrics"
	"github.com/veracity-labs/veracity/pkg/models"
	"github.com/veracity-labs/veracity/pkg/queue"
)

// allowedExtensions is the container allowlist checked at admission. ffmpeg
// does the real validation during sampling; this just rejects the obvious.
var allowedExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".webm": true,
}

// Submission describes a staged upload ready for admission. MediaPath must
// point at a file the pipeline may delete; ownership transfers on success,
// while rejected submissions leave the file with the caller.
type Submission struct {
	Filename  string
	SizeBytes int64
	MediaPath string
}

// Service is the front door for clients: admission (validation, identity,
// queueing), read-side gating, and cancellation. Everything after a worker
// claims the job belongs to the Orchestrator.
type Service struct {
	store     *jobs.Store
	queue     *queue.Queue
	pool      *queue.WorkerPool
	publisher Publisher

	maxUploadBytes int64
	version        string
}

// NewService wires the admission front door. publisher may be nil.
func NewService(store *jobs.Store, q *queue.Queue, pool *queue.WorkerPool, maxUploadBytes int64, version string, publisher Publisher) *Service {
	return &Service{
		store:          store,
		queue:          q,
		pool:           pool,
		publisher:      publisher,
		maxUploadBytes: maxUploadBytes,
		version:        version,
	}
}

// Submit validates the staged upload, mints a job, and enqueues it. The
// returned record is the pending snapshot handed back to the client. All
// rejections happen before a job ID exists, so clients never see records for
// refused submissions.
func (s *Service) Submit(sub Submission) (*models.JobRecord, error) {
	if sub.SizeBytes > s.maxUploadBytes {
		return nil, s.reject(RejectOversize, fmt.Sprintf(
			"file size %s exceeds the %s limit",
			humanize.Bytes(uint64(sub.SizeBytes)), humanize.Bytes(uint64(s.maxUploadBytes))))
	}

	ext := strings.ToLower(filepath.Ext(sub.Filename))
	if !allowedExtensions[ext] {
		return nil, s.reject(RejectUnsupportedType,
			fmt.Sprintf("unsupported container %q", ext))
	}

	contentType, err := sniffContentType(sub.MediaPath)
	if err != nil {
		return nil, s.reject(RejectUnsupportedType,
			fmt.Sprintf("staged upload unreadable: %v", err))
	}
	if !videoLike(contentType) {
		return nil, s.reject(RejectUnsupportedType,
			fmt.Sprintf("content sniffed as %q, not video", contentType))
	}

	rec := &models.JobRecord{
		ID:        uuid.NewString(),
		Status:    models.StatusPending,
		Phase:     models.PhasePending,
		Filename:  filepath.Base(sub.Filename),
		SizeBytes: sub.SizeBytes,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Insert(rec); err != nil {
		return nil, fmt.Errorf("insert job record: %w", err)
	}

	if err := s.queue.TryEnqueue(queue.Job{
		ID:         rec.ID,
		MediaPath:  sub.MediaPath,
		EnqueuedAt: time.Now(),
	}); err != nil {
		// Nobody has seen this ID yet, so the insert can be rolled back.
		s.store.Remove(rec.ID)
		return nil, s.reject(RejectOverloaded, fmt.Sprintf(
			"admission queue at capacity (%d pending)", s.queue.Capacity()))
	}

	metrics.JobsSubmittedTotal.Inc()
	slog.Info("Job submitted",
		"job_id", rec.ID,
		"filename", rec.Filename,
		"size", humanize.Bytes(uint64(rec.SizeBytes)))
	if s.publisher != nil {
		s.publisher.PublishStatus(rec.ID, models.StatusPending, "")
	}
	return rec, nil
}

// StatusOf returns a snapshot of the job record.
func (s *Service) StatusOf(jobID string) (*models.JobRecord, error) {
	return s.store.Read(jobID)
}

// ResultOf returns the verdict for a completed job. Unfinished jobs yield
// NotReadyError, failed jobs FailedError.
func (s *Service) ResultOf(jobID string) (*models.AnalysisResult, error) {
	rec, err := s.store.Read(jobID)
	if err != nil {
		return nil, err
	}
	switch rec.Status {
	case models.StatusCompleted:
		return rec.Result, nil
	case models.StatusFailed:
		return nil, &FailedError{Kind: rec.ErrorKind, Detail: rec.ErrorDetail}
	default:
		return nil, &NotReadyError{Status: rec.Status, Progress: rec.Progress}
	}
}

// EventsOf returns the finalized anomaly timeline for a completed job, with
// the same gating as ResultOf.
func (s *Service) EventsOf(jobID string) ([]models.AnomalyEvent, error) {
	res, err := s.ResultOf(jobID)
	if err != nil {
		return nil, err
	}
	return res.Events, nil
}

// Cancel asks a job to stop. Running jobs are cancelled through the worker
// pool and reach their terminal state asynchronously; still-queued jobs are
// failed in place and skipped at claim time. The bool reports whether this
// call changed anything: cancelling an already-terminal job is a no-op.
func (s *Service) Cancel(jobID string) (bool, error) {
	if _, err := s.store.Read(jobID); err != nil {
		return false, err
	}

	if s.pool.Cancel(jobID) {
		slog.Info("Cancellation signalled to running job", "job_id", jobID)
		return true, nil
	}

	var flipped bool
	err := s.store.Update(jobID, func(r *models.JobRecord) {
		if r.Phase != models.PhasePending {
			return
		}
		now := time.Now().UTC()
		r.Phase = models.PhaseFailed
		r.Status = models.StatusFailed
		r.ErrorKind = models.ErrKindCancelled
		r.ErrorDetail = "cancelled before processing started"
		r.CompletedAt = &now
		flipped = true
	})
	switch {
	case errors.Is(err, jobs.ErrTerminal):
		return false, nil
	case err != nil:
		return false, err
	case !flipped:
		// Claimed between the pool lookup and the store update; the running
		// job was not reachable anymore and has nearly finished.
		return false, nil
	}

	metrics.JobsCompletedTotal.WithLabelValues(string(models.StatusFailed), "").Inc()
	slog.Info("Queued job cancelled before processing", "job_id", jobID)
	if s.publisher != nil {
		s.publisher.PublishStatus(jobID, models.StatusFailed, models.ErrKindCancelled)
	}
	return true, nil
}

// HealthReport aggregates pool and store state for the health endpoint.
type HealthReport struct {
	Status          string                   `json:"status"`
	PipelineVersion string                   `json:"pipeline_version"`
	Pool            *queue.PoolHealth        `json:"pool"`
	Jobs            map[models.JobStatus]int `json:"jobs"`
}

// Health reports liveness of the worker pool plus job counts by status.
func (s *Service) Health() *HealthReport {
	pool := s.pool.Health()
	status := "healthy"
	if !pool.IsHealthy {
		status = "unhealthy"
	}
	return &HealthReport{
		Status:          status,
		PipelineVersion: s.version,
		Pool:            pool,
		Jobs:            s.store.CountByStatus(),
	}
}

func (s *Service) reject(reason, detail string) error {
	metrics.JobsRejectedTotal.WithLabelValues(reason).Inc()
	slog.Info("Submission rejected", "reason", reason, "detail", detail)
	return &RejectedError{Reason: reason, Detail: detail}
}

// sniffContentType reads the leading bytes of the staged file and classifies
// them the way net/http does.
func sniffContentType(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}

// videoLike accepts recognized video containers plus opaque binary, which is
// what most containers sniff as. Sampling rejects actual garbage later.
func videoLike(contentType string) bool {
	return strings.HasPrefix(contentType, "video/") ||
		contentType == "application/octet-stream"
}
