// Package config loads and validates the service configuration: built-in
// defaults layered under an optional YAML file, with {{.VAR}} environment
// expansion inside the file.
package config

import (
	"time"
)

// Config is the complete, validated runtime configuration. It is immutable
// after Initialize returns.
type Config struct {
	Server    *ServerConfig    `yaml:"server"`
	Pipeline  *PipelineConfig  `yaml:"pipeline"`
	Sampler   *SamplerConfig   `yaml:"sampler"`
	Workspace *WorkspaceConfig `yaml:"workspace"`

	// Inspectors holds per-inspector overrides keyed by inspector name.
	// Weights are frozen per pipeline version and cannot be overridden.
	Inspectors map[string]InspectorOverride `yaml:"inspectors"`
}

// ServerConfig groups the HTTP listener settings.
type ServerConfig struct {
	// ListenAddr is the host:port the API binds to.
	ListenAddr string `yaml:"listen_addr"`

	// MaxUploadBytes caps the accepted media file size. Larger submissions
	// are rejected before a job record is created.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// ShutdownTimeoutSec bounds the graceful HTTP drain on shutdown.
	ShutdownTimeoutSec int `yaml:"shutdown_timeout_sec"`

	// AllowedWSOrigins lists additional origins accepted for WebSocket
	// upgrades besides the listen host itself.
	AllowedWSOrigins []string `yaml:"allowed_ws_origins"`
}

// ShutdownTimeout returns the drain budget as a duration.
func (c *ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

// PipelineConfig controls job admission and orchestration.
type PipelineConfig struct {
	// MaxConcurrentJobs is the number of pipeline workers: at most this
	// many jobs run simultaneously.
	MaxConcurrentJobs int `yaml:"max_concurrent_jobs"`

	// MaxConcurrentInspectorsPerJob caps parallel inspectors within one job.
	MaxConcurrentInspectorsPerJob int `yaml:"max_concurrent_inspectors_per_job"`

	// AdmissionQueueCapacity bounds the submitted-but-unclaimed backlog.
	// Overflow rejects the submission synchronously.
	AdmissionQueueCapacity int `yaml:"admission_queue_capacity"`

	// PerJobTimeoutSec is the overall wall-clock budget for one job.
	PerJobTimeoutSec int `yaml:"per_job_timeout_sec"`

	// Version tags results and selects the frozen fusion weight table.
	Version string `yaml:"version"`
}

// PerJobTimeout returns the per-job budget as a duration.
func (c *PipelineConfig) PerJobTimeout() time.Duration {
	return time.Duration(c.PerJobTimeoutSec) * time.Second
}

// SamplerConfig controls media probing and decoding.
type SamplerConfig struct {
	// TargetFPS is the uniform frame sampling cadence.
	TargetFPS int `yaml:"target_fps"`

	// MaxDurationSec truncates analysis to the first N seconds of media.
	MaxDurationSec int `yaml:"max_duration_sec"`

	// SamplingTimeoutSec bounds the whole sampling stage (probe + decode).
	SamplingTimeoutSec int `yaml:"sampling_timeout_sec"`

	// MaxFrameEdge scales frames down so the longest side does not exceed
	// this many pixels. Zero disables scaling.
	MaxFrameEdge int `yaml:"max_frame_edge"`

	// FFmpegPath and FFprobePath locate the binaries; bare names resolve
	// through PATH.
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`
}

// MaxDuration returns the media truncation point as a duration.
func (c *SamplerConfig) MaxDuration() time.Duration {
	return time.Duration(c.MaxDurationSec) * time.Second
}

// SamplingTimeout returns the stage budget as a duration.
func (c *SamplerConfig) SamplingTimeout() time.Duration {
	return time.Duration(c.SamplingTimeoutSec) * time.Second
}

// WorkspaceConfig controls per-job scratch directories.
type WorkspaceConfig struct {
	// BasePath is the directory all job workspaces live under.
	BasePath string `yaml:"base_path"`

	// SweepIntervalSec is how often the orphan sweeper runs.
	SweepIntervalSec int `yaml:"sweep_interval_sec"`

	// SweepMaxAgeSec is the age past which a workspace directory is
	// considered orphaned. Must exceed the per-job timeout.
	SweepMaxAgeSec int `yaml:"sweep_max_age_sec"`
}

// SweepInterval returns the sweep cadence as a duration.
func (c *WorkspaceConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSec) * time.Second
}

// SweepMaxAge returns the orphan age threshold as a duration.
func (c *WorkspaceConfig) SweepMaxAge() time.Duration {
	return time.Duration(c.SweepMaxAgeSec) * time.Second
}

// InspectorOverride adjusts one registered inspector. Nil fields keep the
// descriptor's built-in value.
type InspectorOverride struct {
	// Enabled toggles the inspector. Disabled inspectors neither run nor
	// contribute weight to fusion.
	Enabled *bool `yaml:"enabled,omitempty"`

	// TimeoutSec overrides the inspector's wall-clock cap.
	TimeoutSec int `yaml:"timeout_sec,omitempty"`
}
