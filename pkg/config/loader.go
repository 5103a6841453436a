package config

import (
	"fmt"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Load builds the runtime configuration: built-in defaults, overlaid with
// the YAML file at path when one is given. An empty path means defaults
// only. The result is validated before being returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		if err := merge(cfg, file); err != nil {
			return nil, &LoadError{File: path, Err: err}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile reads and parses one YAML config file, expanding {{.VAR}}
// environment references first.
func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{File: path, Err: ErrConfigNotFound}
		}
		return nil, &LoadError{File: path, Err: err}
	}

	expanded := ExpandEnv(data)

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, &LoadError{File: path, Err: fmt.Errorf("%w: %v", ErrInvalidYAML, err)}
	}
	return &cfg, nil
}

// merge overlays the file config onto the defaults, section by section.
// Sections absent from the file keep their defaults wholesale; within a
// present section, only non-zero fields override.
func merge(dst, src *Config) error {
	if src.Server != nil {
		if err := mergo.Merge(dst.Server, src.Server, mergo.WithOverride); err != nil {
			return fmt.Errorf("merge server section: %w", err)
		}
	}
	if src.Pipeline != nil {
		if err := mergo.Merge(dst.Pipeline, src.Pipeline, mergo.WithOverride); err != nil {
			return fmt.Errorf("merge pipeline section: %w", err)
		}
	}
	if src.Sampler != nil {
		if err := mergo.Merge(dst.Sampler, src.Sampler, mergo.WithOverride); err != nil {
			return fmt.Errorf("merge sampler section: %w", err)
		}
	}
	if src.Workspace != nil {
		if err := mergo.Merge(dst.Workspace, src.Workspace, mergo.WithOverride); err != nil {
			return fmt.Errorf("merge workspace section: %w", err)
		}
	}
	for name, override := range src.Inspectors {
		dst.Inspectors[name] = override
	}
	return nil
}
