// Package config provides the configuration schema and loader for the
// scriptbench tools.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure, typically loaded from a YAML
// file using [Load] or [LoadFromReader].
type Config struct {
	LogLevel  LogLevel        `yaml:"log_level"`
	Partition PartitionConfig `yaml:"partition"`
	Viewer    ViewerConfig    `yaml:"viewer"`
}

// PartitionConfig configures the offline partition and recompute runs.
type PartitionConfig struct {
	// Input is the path of the benchmark results document.
	Input string `yaml:"input"`

	// OutputDir is the directory the partitioned artifacts are written to.
	OutputDir string `yaml:"output_dir"`

	// GroundTruthDir resolves relative ground-truth file paths during
	// recompute runs. Defaults to the directory containing Input.
	GroundTruthDir string `yaml:"ground_truth_dir"`
}

// ViewerConfig configures the artifact server.
type ViewerConfig struct {
	// ListenAddr is the TCP address the viewer listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// DataDir is the artifact directory produced by a partition run.
	// Defaults to partition.output_dir.
	DataDir string `yaml:"data_dir"`

	// CacheMaxAgeSeconds is the max-age sent on index and summary responses.
	// Content-addressed fragments always get a long immutable max-age.
	CacheMaxAgeSeconds int `yaml:"cache_max_age_seconds"`

	// Search tunes the fuzzy sample search endpoint.
	Search SearchConfig `yaml:"search"`
}

// SearchConfig tunes Jaro-Winkler label matching.
type SearchConfig struct {
	// Threshold is the minimum similarity score for a match. Default: 0.6.
	Threshold float64 `yaml:"threshold"`

	// MaxResults caps the number of returned matches. Default: 10.
	MaxResults int `yaml:"max_results"`
}

// Default values applied by [Validate] when fields are unset.
const (
	DefaultListenAddr      = ":8080"
	DefaultCacheMaxAge     = 300
	DefaultSearchThreshold = 0.6
	DefaultSearchResults   = 10
)
