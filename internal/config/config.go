package config

import "time"

// Config is the root configuration for an ingest run.
type Config struct {
	Catalog  CatalogConfig  `yaml:"catalog"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
	API      APIConfig      `yaml:"api"`
	Throttle ThrottleConfig `yaml:"throttle"`
	Proxy    ProxyConfig    `yaml:"proxy"`
	Breaker  BreakerConfig  `yaml:"breaker"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Run      RunConfig      `yaml:"run"`
}

// CatalogConfig points at the externally produced instrument list.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// StorageConfig holds the root directory of the per-instrument store tree.
type StorageConfig struct {
	Root string `yaml:"root"`
}

// LogConfig holds process and run-log settings.
type LogConfig struct {
	Dir        string `yaml:"dir"`   // Run log directory (one file per day)
	Level      string `yaml:"level"` // debug, info, warn, error
	File       string `yaml:"file"`  // Process log file; empty disables file output
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// APIConfig holds upstream endpoints and retry settings.
type APIConfig struct {
	ListedURL       string        `yaml:"listed_url"`
	OTCURL          string        `yaml:"otc_url"`
	UserAgent       string        `yaml:"user_agent"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      *int          `yaml:"max_retries"` // Unset means the default; 0 disables retries
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	MaxRetryBackoff time.Duration `yaml:"max_retry_backoff"`
}

// Retries returns the configured retry count, or the default when unset.
func (a APIConfig) Retries() int {
	if a.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *a.MaxRetries
}

// ThrottleConfig holds per-host concurrency and adaptive delay settings.
type ThrottleConfig struct {
	ConcurrencyPerHost int           `yaml:"concurrency_per_host"`
	StartDelay         time.Duration `yaml:"start_delay"`
	MinDelay           time.Duration `yaml:"min_delay"`
	MaxDelay           time.Duration `yaml:"max_delay"`
	TargetConcurrency  float64       `yaml:"target_concurrency"`
}

// ProxyConfig holds outbound endpoint settings for proxy mode.
type ProxyConfig struct {
	Candidates   []string      `yaml:"candidates"`
	SourceURL    string        `yaml:"source_url"` // Public proxy list page; empty disables scraping
	ProbeURL     string        `yaml:"probe_url"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	ProbeWorkers int           `yaml:"probe_workers"`
	EvictAfter   int           `yaml:"evict_after"` // Consecutive blocks before retirement; 0 never evicts
}

// BreakerConfig holds per-upstream circuit breaker settings.
type BreakerConfig struct {
	Disabled            bool          `yaml:"disabled"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
	OpenTimeout         time.Duration `yaml:"open_timeout"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"` // 0 disables the metrics listener
	Path string `yaml:"path"`
}

// RunConfig holds run-wide settings.
type RunConfig struct {
	Concurrency       int           `yaml:"concurrency"`        // Max instruments in flight across both markets
	InstrumentTimeout time.Duration `yaml:"instrument_timeout"` // Deadline per instrument, retries included
	FailureManifest   string        `yaml:"failure_manifest"`   // Optional JSON summary path
}
