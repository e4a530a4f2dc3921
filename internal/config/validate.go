package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Catalog.Path == "" {
		return errors.New("catalog.path is required")
	}
	if c.Storage.Root == "" {
		return errors.New("storage.root is required")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}

	if err := validateURL("api.listed_url", c.API.ListedURL); err != nil {
		return err
	}
	if err := validateURL("api.otc_url", c.API.OTCURL); err != nil {
		return err
	}
	if c.API.Retries() < 0 {
		return errors.New("api.max_retries must be >= 0")
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be > 0")
	}

	if c.Throttle.ConcurrencyPerHost < 1 {
		return errors.New("throttle.concurrency_per_host must be >= 1")
	}
	if c.Throttle.MinDelay < 0 {
		return errors.New("throttle.min_delay must be >= 0")
	}
	if c.Throttle.MinDelay > c.Throttle.MaxDelay {
		return fmt.Errorf("throttle.min_delay (%s) cannot exceed max_delay (%s)", c.Throttle.MinDelay, c.Throttle.MaxDelay)
	}
	if c.Throttle.TargetConcurrency <= 0 {
		return errors.New("throttle.target_concurrency must be > 0")
	}

	if c.Proxy.ProbeTimeout <= 0 {
		return errors.New("proxy.probe_timeout must be > 0")
	}
	if c.Proxy.ProbeWorkers < 1 {
		return errors.New("proxy.probe_workers must be >= 1")
	}
	if c.Proxy.EvictAfter < 0 {
		return errors.New("proxy.evict_after must be >= 0")
	}
	if err := validateURL("proxy.probe_url", c.Proxy.ProbeURL); err != nil {
		return err
	}

	if c.Run.Concurrency < 1 {
		return errors.New("run.concurrency must be >= 1")
	}
	if c.Run.InstrumentTimeout < 0 {
		return errors.New("run.instrument_timeout must be >= 0")
	}

	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 0 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func validateURL(field, v string) error {
	if v == "" {
		return fmt.Errorf("%s is required", field)
	}
	if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
		return fmt.Errorf("%s must be an http(s) URL, got %q", field, v)
	}
	return nil
}
