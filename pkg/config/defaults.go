package config

import (
	"os"
	"path/filepath"
)

// DefaultServerConfig returns the built-in server defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ListenAddr:         ":8080",
		MaxUploadBytes:     100 << 20, // 100 MiB
		ShutdownTimeoutSec: 30,
	}
}

// DefaultPipelineConfig returns the built-in pipeline defaults.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		MaxConcurrentJobs:             2,
		MaxConcurrentInspectorsPerJob: 4,
		AdmissionQueueCapacity:        64,
		PerJobTimeoutSec:              600,
		Version:                       "v1",
	}
}

// DefaultSamplerConfig returns the built-in sampler defaults.
func DefaultSamplerConfig() *SamplerConfig {
	return &SamplerConfig{
		TargetFPS:          8,
		MaxDurationSec:     30,
		SamplingTimeoutSec: 120,
		MaxFrameEdge:       1280,
		FFmpegPath:         "ffmpeg",
		FFprobePath:        "ffprobe",
	}
}

// DefaultWorkspaceConfig returns the built-in workspace defaults.
// SweepMaxAgeSec is twice the default per-job timeout so the sweeper can
// never touch a live job's directory.
func DefaultWorkspaceConfig() *WorkspaceConfig {
	return &WorkspaceConfig{
		BasePath:         filepath.Join(os.TempDir(), "veracity"),
		SweepIntervalSec: 600,
		SweepMaxAgeSec:   1200,
	}
}

// Default returns the complete built-in configuration.
func Default() *Config {
	return &Config{
		Server:     DefaultServerConfig(),
		Pipeline:   DefaultPipelineConfig(),
		Sampler:    DefaultSamplerConfig(),
		Workspace:  DefaultWorkspaceConfig(),
		Inspectors: make(map[string]InspectorOverride),
	}
}
