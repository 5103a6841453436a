package config

import (
	"fmt"
)

// Validate checks every section for values the service cannot run with.
// It returns the first problem found as a *ValidationError.
func (c *Config) Validate() error {
	if c.Server == nil {
		return NewValidationError("server", "", fmt.Errorf("%w: section missing", ErrInvalidValue))
	}
	if c.Pipeline == nil {
		return NewValidationError("pipeline", "", fmt.Errorf("%w: section missing", ErrInvalidValue))
	}
	if c.Sampler == nil {
		return NewValidationError("sampler", "", fmt.Errorf("%w: section missing", ErrInvalidValue))
	}
	if c.Workspace == nil {
		return NewValidationError("workspace", "", fmt.Errorf("%w: section missing", ErrInvalidValue))
	}

	if err := c.Server.validate(); err != nil {
		return err
	}
	if err := c.Pipeline.validate(); err != nil {
		return err
	}
	if err := c.Sampler.validate(); err != nil {
		return err
	}
	if err := c.Workspace.validate(); err != nil {
		return err
	}

	// The sweeper must never be able to delete a live job's directory.
	if c.Workspace.SweepMaxAgeSec <= c.Pipeline.PerJobTimeoutSec {
		return NewValidationError("workspace", "sweep_max_age_sec",
			fmt.Errorf("%w: must exceed pipeline.per_job_timeout_sec (%d)",
				ErrInvalidValue, c.Pipeline.PerJobTimeoutSec))
	}

	for name, ov := range c.Inspectors {
		if name == "" {
			return NewValidationError("inspectors", "",
				fmt.Errorf("%w: empty inspector name", ErrInvalidValue))
		}
		if ov.TimeoutSec < 0 {
			return NewValidationError("inspectors", name+".timeout_sec",
				fmt.Errorf("%w: must not be negative", ErrInvalidValue))
		}
	}
	return nil
}

func (c *ServerConfig) validate() error {
	if c.ListenAddr == "" {
		return NewValidationError("server", "listen_addr",
			fmt.Errorf("%w: must not be empty", ErrInvalidValue))
	}
	if c.MaxUploadBytes <= 0 {
		return NewValidationError("server", "max_upload_bytes",
			fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if c.ShutdownTimeoutSec <= 0 {
		return NewValidationError("server", "shutdown_timeout_sec",
			fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}

func (c *PipelineConfig) validate() error {
	if c.MaxConcurrentJobs < 1 {
		return NewValidationError("pipeline", "max_concurrent_jobs",
			fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if c.MaxConcurrentInspectorsPerJob < 1 {
		return NewValidationError("pipeline", "max_concurrent_inspectors_per_job",
			fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if c.AdmissionQueueCapacity < 1 {
		return NewValidationError("pipeline", "admission_queue_capacity",
			fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if c.PerJobTimeoutSec <= 0 {
		return NewValidationError("pipeline", "per_job_timeout_sec",
			fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if c.Version == "" {
		return NewValidationError("pipeline", "version",
			fmt.Errorf("%w: must not be empty", ErrInvalidValue))
	}
	return nil
}

func (c *SamplerConfig) validate() error {
	if c.TargetFPS < 1 {
		return NewValidationError("sampler", "target_fps",
			fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if c.MaxDurationSec < 1 {
		return NewValidationError("sampler", "max_duration_sec",
			fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if c.SamplingTimeoutSec <= 0 {
		return NewValidationError("sampler", "sampling_timeout_sec",
			fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if c.MaxFrameEdge < 0 {
		return NewValidationError("sampler", "max_frame_edge",
			fmt.Errorf("%w: must not be negative", ErrInvalidValue))
	}
	if c.FFmpegPath == "" {
		return NewValidationError("sampler", "ffmpeg_path",
			fmt.Errorf("%w: must not be empty", ErrInvalidValue))
	}
	if c.FFprobePath == "" {
		return NewValidationError("sampler", "ffprobe_path",
			fmt.Errorf("%w: must not be empty", ErrInvalidValue))
	}
	return nil
}

func (c *WorkspaceConfig) validate() error {
	if c.BasePath == "" {
		return NewValidationError("workspace", "base_path",
			fmt.Errorf("%w: must not be empty", ErrInvalidValue))
	}
	if c.SweepIntervalSec <= 0 {
		return NewValidationError("workspace", "sweep_interval_sec",
			fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if c.SweepMaxAgeSec <= 0 {
		return NewValidationError("workspace", "sweep_max_age_sec",
			fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}
