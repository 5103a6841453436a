package events

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/veracity-labs/veracity/pkg/models"
)

// Publisher fans pipeline updates out to WebSocket subscribers. It satisfies
// the pipeline's publisher contract: methods never block and never fail the
// job; an undeliverable event is logged and dropped.
//
// Each public method builds a specific typed payload struct; see
// payloads.go. Payloads are marshaled to JSON and handed to the
// ConnectionManager, which stamps the sequence number and routes them.
type Publisher struct {
	manager *ConnectionManager
}

// NewPublisher creates a Publisher on top of a ConnectionManager.
func NewPublisher(manager *ConnectionManager) *Publisher {
	return &Publisher{manager: manager}
}

// PublishStatus broadcasts a job.status event to the job channel and a copy
// to the global jobs channel for list views.
func (p *Publisher) PublishStatus(jobID string, status models.JobStatus, errorKind models.ErrorKind) {
	payload := JobStatusPayload{
		Type:      EventTypeJobStatus,
		JobID:     jobID,
		Status:    status,
		ErrorKind: errorKind,
		Timestamp: eventTimestamp(),
	}
	p.publish(JobChannel(jobID), payload)
	p.publish(GlobalJobsChannel, payload)
}

// PublishProgress broadcasts a job.progress event to the job channel.
func (p *Publisher) PublishProgress(jobID string, progress float64) {
	payload := JobProgressPayload{
		Type:      EventTypeJobProgress,
		JobID:     jobID,
		Progress:  progress,
		Timestamp: eventTimestamp(),
	}
	p.publish(JobChannel(jobID), payload)
}

// PublishAnomaly broadcasts a job.anomaly event to the job channel.
func (p *Publisher) PublishAnomaly(jobID string, event models.AnomalyEvent) {
	payload := JobAnomalyPayload{
		Type:      EventTypeJobAnomaly,
		JobID:     jobID,
		Event:     event,
		Timestamp: eventTimestamp(),
	}
	p.publish(JobChannel(jobID), payload)
}

func (p *Publisher) publish(channel string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("Failed to marshal event payload", "channel", channel, "error", err)
		return
	}
	p.manager.Publish(channel, data)
}

func eventTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
