// Package pipeline runs accepted jobs end to end: workspace acquisition,
// media sampling, inspector fan-out, score fusion, and the terminal store
// write. Service is the admission and read-side front door; Orchestrator is
// the queue executor doing the work.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/veracity-labs/veracity/pkg/config"
	"github.com/veracity-labs/veracity/pkg/fusion"
	"github.com/veracity-labs/veracity/pkg/inspect"
	"github.com/veracity-labs/veracity/pkg/jobs"
	"github.com/veracity-labs/veracity/pkg/media"
	"github.com/veracity-labs/veracity/pkg/metrics"
	"github.com/veracity-labs/veracity/pkg/models"
	"github.com/veracity-labs/veracity/pkg/queue"
	"github.com/veracity-labs/veracity/pkg/timeline"
	"github.com/veracity-labs/veracity/pkg/workspace"
)

// Progress milestones: sampling fills the first tenth, inspection the middle,
// fusion the rest.
const (
	progressSampled     = 0.10
	progressInspected   = 0.90
	progressInspectSpan = progressInspected - progressSampled
)

// snippetMaxRunes caps the transcript excerpt carried in the result summary.
const snippetMaxRunes = 150

// stageError classifies a terminal pipeline failure.
type stageError struct {
	kind   models.ErrorKind
	detail string
}

// Orchestrator runs one job at a time through the full pipeline. It
// implements queue.Executor.
type Orchestrator struct {
	store      *jobs.Store
	workspaces *workspace.Manager
	sampler    Sampler
	dispatcher *inspect.Dispatcher
	weights    map[string]float64
	publisher  Publisher

	version         string
	perJobTimeout   time.Duration
	samplingTimeout time.Duration
}

// NewOrchestrator wires the pipeline stages together. weights must be the
// frozen table matching cfg.Pipeline.Version; publisher may be nil.
func NewOrchestrator(store *jobs.Store, workspaces *workspace.Manager, sampler Sampler, dispatcher *inspect.Dispatcher, weights map[string]float64, cfg *config.Config, publisher Publisher) *Orchestrator {
	return &Orchestrator{
		store:           store,
		workspaces:      workspaces,
		sampler:         sampler,
		dispatcher:      dispatcher,
		weights:         weights,
		publisher:       publisher,
		version:         cfg.Pipeline.Version,
		perJobTimeout:   cfg.Pipeline.PerJobTimeout(),
		samplingTimeout: cfg.Sampler.SamplingTimeout(),
	}
}

// Execute runs one claimed job to its terminal state. The returned error
// mirrors the recorded failure and is used for worker logging only.
func (o *Orchestrator) Execute(ctx context.Context, job queue.Job) error {
	// The staged upload belongs to the pipeline from admission onwards;
	// remove it whatever the outcome.
	defer func() {
		if err := os.Remove(job.MediaPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Failed to remove staged upload",
				"job_id", job.ID, "path", job.MediaPath, "error", err)
		}
	}()

	rec, err := o.store.Read(job.ID)
	if err != nil {
		slog.Error("Claimed job missing from store", "job_id", job.ID, "error", err)
		return err
	}
	if rec.Status.Terminal() {
		slog.Info("Skipping job cancelled while queued",
			"job_id", job.ID, "status", string(rec.Status))
		return nil
	}

	start := time.Now()
	jctx, cancel := context.WithTimeout(ctx, o.perJobTimeout)
	defer cancel()

	result, serr := o.run(jctx, job, start)
	switch {
	case serr != nil:
		o.fail(job.ID, serr, start)
		return fmt.Errorf("%s: %s", serr.kind, serr.detail)
	case result != nil:
		o.complete(job.ID, result)
		return nil
	default:
		// The record turned terminal under us (cancel raced the claim).
		return nil
	}
}

// run advances the job through sampling, inspection, and fusion. It returns
// the assembled result, a failure, or (nil, nil) when the record was already
// terminal. The workspace is released before run returns, so it is always
// gone by the time Execute writes the terminal state.
func (o *Orchestrator) run(ctx context.Context, job queue.Job, start time.Time) (result *models.AnalysisResult, serr *stageError) {
	log := slog.With("job_id", job.ID)

	phase := models.PhaseSampling
	// A panicking inspector or codec bug must not take the worker down; it
	// fails this job with the phase it happened in.
	defer func() {
		if r := recover(); r != nil {
			log.Error("Pipeline panic", "phase", string(phase), "panic", r)
			result = nil
			serr = &stageError{
				kind:   kindForPhase(phase),
				detail: fmt.Sprintf("internal error: %v", r),
			}
		}
	}()

	ws, err := o.workspaces.Acquire(job.ID)
	if err != nil {
		return nil, &stageError{kind: models.ErrKindWorkspace, detail: err.Error()}
	}
	defer ws.Release()

	startedAt := start.UTC()
	if err := o.store.Update(job.ID, func(r *models.JobRecord) {
		r.Phase = models.PhaseSampling
		r.Status = models.StatusProcessing
		r.StartedAt = &startedAt
	}); err != nil {
		log.Info("Job turned terminal before processing began", "error", err)
		return nil, nil
	}
	o.publishStatus(job.ID, models.StatusProcessing, "")

	sctx, scancel := context.WithTimeout(ctx, o.samplingTimeout)
	sampled, err := o.sampler.Sample(sctx, job.MediaPath, ws)
	scancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil, o.cancelled(ctx.Err())
		}
		detail := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			detail = fmt.Sprintf("sampling exceeded its %s budget", o.samplingTimeout)
		}
		return nil, &stageError{kind: models.ErrKindSampling, detail: detail}
	}
	metrics.SamplingDuration.Observe(time.Since(start).Seconds())

	phase = models.PhaseInspecting
	o.setProgress(job.ID, models.PhaseInspecting, progressSampled)

	bundle := &inspect.Bundle{Media: sampled}
	if sampled.HasAudio {
		samples, rate, aerr := media.ReadPCM16(sampled.AudioPath)
		if aerr != nil {
			// Audio-dependent inspectors neutralize themselves; the visual
			// side of the job is still worth running.
			log.Warn("Extracted audio unreadable, continuing without it", "error", aerr)
		} else {
			bundle.Audio = samples
			bundle.SampleRate = rate
		}
	}

	agg := timeline.NewAggregator()
	hook := func(oc inspect.Outcome, finished, total int) {
		metrics.InspectorOutcomesTotal.WithLabelValues(oc.Inspector, string(oc.Kind)).Inc()
		metrics.InspectorDuration.WithLabelValues(oc.Inspector).Observe(oc.Elapsed.Seconds())
		o.setProgress(job.ID, models.PhaseInspecting,
			progressSampled+progressInspectSpan*float64(finished)/float64(total))
		for _, ev := range oc.Events {
			o.publishAnomaly(job.ID, ev)
		}
	}

	scores, derr := o.dispatcher.Dispatch(ctx, bundle, agg, hook)
	if derr != nil {
		var fatal *inspect.FatalError
		switch {
		case errors.As(derr, &fatal):
			return nil, &stageError{kind: models.ErrKindInspector, detail: fatal.Error()}
		case errors.Is(derr, context.Canceled), errors.Is(derr, context.DeadlineExceeded):
			return nil, o.cancelled(derr)
		default:
			return nil, &stageError{kind: models.ErrKindInspector, detail: derr.Error()}
		}
	}

	phase = models.PhaseFusing
	o.setProgress(job.ID, models.PhaseFusing, progressInspected)

	verdict := fusion.Fuse(scores, o.weights)
	events := agg.Finalize(sampled.EffectiveDurationSec)

	log.Info("Job fused",
		"label", verdict.Label,
		"confidence", verdict.Confidence,
		"inspectors", len(scores),
		"events", len(events))

	return &models.AnalysisResult{
		JobID:              job.ID,
		Label:              verdict.Label,
		Confidence:         verdict.Confidence,
		PerInspectorScores: scores,
		Events:             events,
		Derived: models.DerivedSummary{
			VisualScore:         scores["visual_clip"],
			VideoLength:         sampled.EffectiveDurationSec,
			OriginalVideoLength: sampled.OriginalDurationSec,
			TranscriptSnippet:   snippet(bundle.Transcript, snippetMaxRunes),
			ProcessingTimeSec:   time.Since(start).Seconds(),
			PipelineVersion:     o.version,
		},
		ProcessedAt: time.Now().UTC(),
	}, nil
}

// complete records the result and flips the job to completed in one store
// write, so readers never see a completed status without its result.
func (o *Orchestrator) complete(jobID string, res *models.AnalysisResult) {
	if err := o.store.Update(jobID, func(r *models.JobRecord) {
		now := time.Now().UTC()
		r.Result = res
		r.Progress = 1
		r.CompletedAt = &now
		r.Phase = models.PhaseCompleted
		r.Status = models.StatusCompleted
	}); err != nil {
		slog.Error("Failed to record job completion", "job_id", jobID, "error", err)
		return
	}
	metrics.JobsCompletedTotal.WithLabelValues(string(models.StatusCompleted), res.Label).Inc()
	metrics.JobDuration.Observe(res.Derived.ProcessingTimeSec)
	o.publishStatus(jobID, models.StatusCompleted, "")
}

// fail records the classified failure and flips the job to failed.
func (o *Orchestrator) fail(jobID string, serr *stageError, start time.Time) {
	if err := o.store.Update(jobID, func(r *models.JobRecord) {
		now := time.Now().UTC()
		r.ErrorKind = serr.kind
		r.ErrorDetail = serr.detail
		r.CompletedAt = &now
		r.Phase = models.PhaseFailed
		r.Status = models.StatusFailed
	}); err != nil {
		slog.Error("Failed to record job failure", "job_id", jobID, "error", err)
		return
	}
	metrics.JobsCompletedTotal.WithLabelValues(string(models.StatusFailed), "").Inc()
	metrics.JobDuration.Observe(time.Since(start).Seconds())
	o.publishStatus(jobID, models.StatusFailed, serr.kind)
}

// setProgress writes phase and progress in one update and mirrors it to
// subscribers.
func (o *Orchestrator) setProgress(jobID string, phase models.JobPhase, p float64) {
	if err := o.store.Update(jobID, func(r *models.JobRecord) {
		r.Phase = phase
		r.Progress = p
	}); err != nil {
		slog.Warn("Failed to update job progress", "job_id", jobID, "error", err)
		return
	}
	o.publishProgress(jobID, p)
}

// cancelled classifies a context error: the job budget firing is a timeout,
// everything else is an explicit cancel (API request or shutdown).
func (o *Orchestrator) cancelled(err error) *stageError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &stageError{
			kind:   models.ErrKindCancelled,
			detail: fmt.Sprintf("job exceeded the %s processing budget", o.perJobTimeout),
		}
	}
	return &stageError{kind: models.ErrKindCancelled, detail: "cancelled by request or shutdown"}
}

func (o *Orchestrator) publishStatus(jobID string, st models.JobStatus, kind models.ErrorKind) {
	if o.publisher != nil {
		o.publisher.PublishStatus(jobID, st, kind)
	}
}

func (o *Orchestrator) publishProgress(jobID string, p float64) {
	if o.publisher != nil {
		o.publisher.PublishProgress(jobID, p)
	}
}

func (o *Orchestrator) publishAnomaly(jobID string, ev models.AnomalyEvent) {
	if o.publisher != nil {
		o.publisher.PublishAnomaly(jobID, ev)
	}
}

func kindForPhase(p models.JobPhase) models.ErrorKind {
	switch p {
	case models.PhaseSampling:
		return models.ErrKindSampling
	case models.PhaseFusing:
		return models.ErrKindFusion
	default:
		return models.ErrKindInspector
	}
}

// snippet truncates s to max runes, marking the cut with an ellipsis.
func snippet(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
