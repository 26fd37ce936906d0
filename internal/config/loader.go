package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values and fills in
// defaults for unset fields. It returns a joined error listing all
// validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogInfo
	}

	if cfg.Partition.Input != "" && cfg.Partition.GroundTruthDir == "" {
		cfg.Partition.GroundTruthDir = filepath.Dir(cfg.Partition.Input)
	}

	if cfg.Viewer.ListenAddr == "" {
		cfg.Viewer.ListenAddr = DefaultListenAddr
	}
	if cfg.Viewer.DataDir == "" {
		cfg.Viewer.DataDir = cfg.Partition.OutputDir
	}
	if cfg.Viewer.CacheMaxAgeSeconds < 0 {
		errs = append(errs, fmt.Errorf("viewer.cache_max_age_seconds %d is negative", cfg.Viewer.CacheMaxAgeSeconds))
	}
	if cfg.Viewer.CacheMaxAgeSeconds == 0 {
		cfg.Viewer.CacheMaxAgeSeconds = DefaultCacheMaxAge
	}

	s := &cfg.Viewer.Search
	if s.Threshold < 0 || s.Threshold > 1 {
		errs = append(errs, fmt.Errorf("viewer.search.threshold %v is outside [0, 1]", s.Threshold))
	}
	if s.Threshold == 0 {
		s.Threshold = DefaultSearchThreshold
	}
	if s.MaxResults < 0 {
		errs = append(errs, fmt.Errorf("viewer.search.max_results %d is negative", s.MaxResults))
	}
	if s.MaxResults == 0 {
		s.MaxResults = DefaultSearchResults
	}

	return errors.Join(errs...)
}
