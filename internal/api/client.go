package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/twstock-daily/internal/metrics"
	"github.com/rickgao/twstock-daily/internal/model"
	"github.com/sony/gobreaker"
)

// Default upstream URLs.
const (
	DefaultListedURL = "https://www.twse.com.tw/rwd/zh/afterTrading/STOCK_DAY"
	DefaultOTCURL    = "https://www.tpex.org.tw/www/zh-tw/afterTrading/tradingStock"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
)

// EndpointPool hands out outbound endpoints for one attempt at a time.
type EndpointPool interface {
	Acquire(ctx context.Context, avoid string) (string, error)
	Release(endpoint string) error
	MarkBlocked(endpoint, reason string)
	MarkHealthy(endpoint string)
}

// Pacer spaces requests to one host and learns from their latency.
type Pacer interface {
	Wait(ctx context.Context, host string) error
	Observe(host string, latency time.Duration, status int) time.Duration
}

// BreakerSettings configures the per-market circuit breaker.
type BreakerSettings struct {
	ConsecutiveFailures uint32        // Upstream failures in a row before opening
	OpenTimeout         time.Duration // Time spent open before a trial request
}

// Client fetches daily trading rows from the listed and OTC upstreams.
type Client struct {
	listedURL string
	otcURL    string
	userAgent string
	timeout   time.Duration
	executor  Executor
	pool      EndpointPool
	pacer     Pacer
	metrics   *metrics.Metrics
	logger    *slog.Logger

	maxRetries      int
	retryBackoff    time.Duration
	maxRetryBackoff time.Duration

	breakerSettings *BreakerSettings
	breakers        map[model.Market]*gobreaker.CircuitBreaker
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a client for the given listed and OTC endpoints.
// Empty URLs fall back to the public defaults.
func NewClient(listedURL, otcURL string, opts ...ClientOption) *Client {
	if listedURL == "" {
		listedURL = DefaultListedURL
	}
	if otcURL == "" {
		otcURL = DefaultOTCURL
	}

	c := &Client{
		listedURL:       listedURL,
		otcURL:          otcURL,
		userAgent:       DefaultUserAgent,
		timeout:         30 * time.Second,
		logger:          slog.Default(),
		maxRetries:      5,
		retryBackoff:    time.Second,
		maxRetryBackoff: 30 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.executor == nil {
		c.executor = NewHTTPExecutor(c.timeout)
	}
	if c.breakerSettings != nil {
		c.breakers = map[model.Market]*gobreaker.CircuitBreaker{
			model.MarketListed: c.newBreaker(model.MarketListed),
			model.MarketOTC:    c.newBreaker(model.MarketOTC),
		}
	}

	return c
}

// WithTimeout sets the per-attempt HTTP timeout of the default executor.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRetries sets the retry count and initial backoff.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithMaxRetryBackoff caps the backoff between retries.
func WithMaxRetryBackoff(d time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetryBackoff = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithUserAgent overrides the browser-like default User-Agent.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithExecutor sets a custom request executor.
func WithExecutor(e Executor) ClientOption {
	return func(c *Client) {
		c.executor = e
	}
}

// WithHTTPClient runs every attempt through hc, ignoring endpoints.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.executor = clientExecutor{hc}
	}
}

// WithEndpointPool routes every attempt through an endpoint from pool.
func WithEndpointPool(pool EndpointPool) ClientOption {
	return func(c *Client) {
		c.pool = pool
	}
}

// WithPacer applies adaptive per-host pacing to every attempt.
func WithPacer(p Pacer) ClientOption {
	return func(c *Client) {
		c.pacer = p
	}
}

// WithMetrics records per-attempt metrics.
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithBreaker enables a circuit breaker per market.
func WithBreaker(s BreakerSettings) ClientOption {
	return func(c *Client) {
		c.breakerSettings = &s
	}
}

// Fetch dispatches to the fetcher for inst's market.
func (c *Client) Fetch(ctx context.Context, inst model.Instrument, day time.Time) ([][]string, error) {
	switch inst.Market {
	case model.MarketListed:
		return c.FetchListed(ctx, inst, day)
	case model.MarketOTC:
		return c.FetchOTC(ctx, inst, day)
	default:
		return nil, fmt.Errorf("instrument %s: unsupported market %s", inst.Code, inst.Market)
	}
}

func (c *Client) newBreaker(m model.Market) *gobreaker.CircuitBreaker {
	threshold := c.breakerSettings.ConsecutiveFailures
	if threshold == 0 {
		threshold = 20
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    m.String(),
		Timeout: c.breakerSettings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isUpstreamFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("upstream circuit breaker state change",
				"market", name,
				"from", from.String(),
				"to", to.String(),
			)
			c.metrics.SetBreakerOpen(name, to == gobreaker.StateOpen)
		},
	})
}
