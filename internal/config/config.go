// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults, Load(ctx) to layer
//   file and environment sources on top.
// - External errors must be wrapped via this package's error helpers.
package config

import "time"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DataDir is the document store directory. Empty selects an
	// in-memory store, useful for tests and local experiments.
	DataDir string `koanf:"data_dir"`

	// PollIntervalMS sets how often the evaluation poller runs.
	PollIntervalMS int `koanf:"poll_interval_ms"`

	// PollBatchSize bounds how many events one poll cycle evaluates.
	PollBatchSize int `koanf:"poll_batch_size"`

	// ActivityDedupeMS is the per-player window inside which at most one
	// high-score notification is emitted.
	ActivityDedupeMS int `koanf:"activity_dedupe_ms"`

	// MaxListLimit caps ?limit on list endpoints.
	MaxListLimit int `koanf:"max_list_limit"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		Addr:             ":9080",
		DataDir:          "data",
		PollIntervalMS:   30_000,
		PollBatchSize:    100,
		ActivityDedupeMS: 5_000,
		MaxListLimit:     500,
	}
}

// PollInterval returns the poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// ActivityDedupeWindow returns the dedupe window as a duration.
func (c *Config) ActivityDedupeWindow() time.Duration {
	return time.Duration(c.ActivityDedupeMS) * time.Millisecond
}
