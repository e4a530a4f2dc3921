package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultCatalogPath        = "全部股票清單.json"
	DefaultStorageRoot        = "個股日成交資訊"
	DefaultLogDir             = "個股日成交資訊/logs"
	DefaultLogLevel           = "info"
	DefaultLogMaxSizeMB       = 50
	DefaultLogMaxBackups      = 7
	DefaultLogMaxAgeDays      = 30
	DefaultListedURL          = "https://www.twse.com.tw/rwd/zh/afterTrading/STOCK_DAY"
	DefaultOTCURL             = "https://www.tpex.org.tw/www/zh-tw/afterTrading/tradingStock"
	DefaultUserAgent          = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
	DefaultAPITimeout         = 30 * time.Second
	DefaultMaxRetries         = 5
	DefaultRetryBackoff       = 1 * time.Second
	DefaultMaxRetryBackoff    = 30 * time.Second
	DefaultConcurrencyPerHost = 4
	DefaultStartDelay         = 500 * time.Millisecond
	DefaultMinDelay           = 1 * time.Second
	DefaultMaxDelay           = 5 * time.Second
	DefaultTargetConcurrency  = 1.0
	DefaultProxySourceURL     = "https://www.free-proxy-list.net/"
	DefaultProbeURL           = "http://www.google.com"
	DefaultProbeTimeout       = 1 * time.Second
	DefaultProbeWorkers       = 32
	DefaultBreakerFailures    = 20
	DefaultBreakerOpenTimeout = 60 * time.Second
	DefaultMetricsPath        = "/metrics"
	DefaultRunConcurrency     = 64
	DefaultInstrumentTimeout  = 10 * time.Minute
)

func (c *Config) applyDefaults() {
	if c.Catalog.Path == "" {
		c.Catalog.Path = DefaultCatalogPath
	}
	if c.Storage.Root == "" {
		c.Storage.Root = DefaultStorageRoot
	}

	// Log defaults
	if c.Log.Dir == "" {
		c.Log.Dir = DefaultLogDir
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = DefaultLogMaxBackups
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = DefaultLogMaxAgeDays
	}

	// API defaults
	if c.API.ListedURL == "" {
		c.API.ListedURL = DefaultListedURL
	}
	if c.API.OTCURL == "" {
		c.API.OTCURL = DefaultOTCURL
	}
	if c.API.UserAgent == "" {
		c.API.UserAgent = DefaultUserAgent
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == nil {
		n := DefaultMaxRetries
		c.API.MaxRetries = &n
	}
	if c.API.RetryBackoff == 0 {
		c.API.RetryBackoff = DefaultRetryBackoff
	}
	if c.API.MaxRetryBackoff == 0 {
		c.API.MaxRetryBackoff = DefaultMaxRetryBackoff
	}

	// Throttle defaults
	if c.Throttle.ConcurrencyPerHost == 0 {
		c.Throttle.ConcurrencyPerHost = DefaultConcurrencyPerHost
	}
	if c.Throttle.StartDelay == 0 {
		c.Throttle.StartDelay = DefaultStartDelay
	}
	if c.Throttle.MinDelay == 0 {
		c.Throttle.MinDelay = DefaultMinDelay
	}
	if c.Throttle.MaxDelay == 0 {
		c.Throttle.MaxDelay = DefaultMaxDelay
	}
	if c.Throttle.TargetConcurrency == 0 {
		c.Throttle.TargetConcurrency = DefaultTargetConcurrency
	}

	// Proxy defaults
	if c.Proxy.SourceURL == "" && len(c.Proxy.Candidates) == 0 {
		c.Proxy.SourceURL = DefaultProxySourceURL
	}
	if c.Proxy.ProbeURL == "" {
		c.Proxy.ProbeURL = DefaultProbeURL
	}
	if c.Proxy.ProbeTimeout == 0 {
		c.Proxy.ProbeTimeout = DefaultProbeTimeout
	}
	if c.Proxy.ProbeWorkers == 0 {
		c.Proxy.ProbeWorkers = DefaultProbeWorkers
	}

	// Breaker defaults
	if c.Breaker.ConsecutiveFailures == 0 {
		c.Breaker.ConsecutiveFailures = DefaultBreakerFailures
	}
	if c.Breaker.OpenTimeout == 0 {
		c.Breaker.OpenTimeout = DefaultBreakerOpenTimeout
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Run.Concurrency == 0 {
		c.Run.Concurrency = DefaultRunConcurrency
	}
	if c.Run.InstrumentTimeout == 0 {
		c.Run.InstrumentTimeout = DefaultInstrumentTimeout
	}
}
