// Package events delivers real-time job updates to WebSocket subscribers.
//
// Every job publishes to its own channel ("job:{id}"); status transitions
// are additionally mirrored to the global "jobs" channel for list views.
// Payloads are flat JSON objects with a "type" discriminator and a
// manager-assigned "seq" for position tracking.
//
// Delivery contract:
//
//   - subscribe replays every buffered event for the channel, so a client
//     that connects mid-job still sees the history so far. Live events
//     follow in publish order.
//   - catchup {channel, after_seq} re-delivers buffered events past a known
//     position after a reconnect. If the replay window has already evicted
//     part of that range, a catchup.overflow message tells the client to
//     re-read job state over REST instead.
//   - Events are transient. The replay window holds the most recent
//     catchupBuffer events across all channels; nothing is persisted.
//
// A subscriber that stops reading (full send buffer) is disconnected rather
// than allowed to stall broadcasts; it can reconnect and catch up.
package events

import (
	"github.com/veracity-labs/veracity/pkg/models"
)

// Event types carried in the "type" field of every payload.
const (
	EventTypeJobStatus   = "job.status"
	EventTypeJobProgress = "job.progress"
	EventTypeJobAnomaly  = "job.anomaly"
)

// GlobalJobsChannel carries a copy of every job's status transitions.
// Dashboards subscribe here instead of tracking per-job channels.
const GlobalJobsChannel = "jobs"

// JobChannel returns the channel name for a specific job's events.
// Format: "job:{job_id}"
func JobChannel(jobID string) string {
	return "job:" + jobID
}

// ClientMessage is the JSON structure for client → server WebSocket messages.
type ClientMessage struct {
	Action   string  `json:"action"`              // "subscribe", "unsubscribe", "catchup", "ping"
	Channel  string  `json:"channel,omitempty"`   // channel name (e.g. "job:abc-123")
	AfterSeq *uint64 `json:"after_seq,omitempty"` // for catchup: last sequence number seen
}

// JobStatusPayload is the payload for job.status events.
// Published on every externally visible lifecycle transition, to the job
// channel and to the global jobs channel.
type JobStatusPayload struct {
	Type      string           `json:"type"`                 // always EventTypeJobStatus
	JobID     string           `json:"job_id"`               // job UUID
	Status    models.JobStatus `json:"status"`               // pending, processing, completed, failed
	ErrorKind models.ErrorKind `json:"error_kind,omitempty"` // set when status is failed
	Timestamp string           `json:"timestamp"`            // RFC3339Nano
}

// JobProgressPayload is the payload for job.progress events.
// Published to the job channel only: high frequency, ephemeral.
type JobProgressPayload struct {
	Type      string  `json:"type"`      // always EventTypeJobProgress
	JobID     string  `json:"job_id"`    // job UUID
	Progress  float64 `json:"progress"`  // 0.0 → 1.0
	Timestamp string  `json:"timestamp"` // RFC3339Nano
}

// JobAnomalyPayload is the payload for job.anomaly events, one per anomaly
// an inspector reports while the job runs. The final deduplicated list is
// part of the job result; these are the live preview.
type JobAnomalyPayload struct {
	Type      string              `json:"type"`      // always EventTypeJobAnomaly
	JobID     string              `json:"job_id"`    // job UUID
	Event     models.AnomalyEvent `json:"event"`     // module, tag, ts, dur, meta
	Timestamp string              `json:"timestamp"` // RFC3339Nano
}
