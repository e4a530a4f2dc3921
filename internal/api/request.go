package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rickgao/twstock-daily/internal/model"
	"github.com/sony/gobreaker"
)

// APIError is a non-success HTTP status from an upstream.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
	Endpoint   string // Outbound endpoint used, if any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether the status is transient.
func (e *APIError) IsRetryable() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout,
		522, 524:
		return true
	}
	return false
}

// IsBlocking reports whether the status implicates the outbound endpoint.
func (e *APIError) IsBlocking() bool {
	switch e.StatusCode {
	case http.StatusForbidden, http.StatusProxyAuthRequired, http.StatusTooManyRequests:
		return true
	}
	return false
}

// RedirectError is a 301/302/307 response. Upstream redirects signal a
// session or anti-bot condition and are never followed or retried.
type RedirectError struct {
	StatusCode int
	Location   string
}

func (e *RedirectError) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("redirect %d", e.StatusCode)
	}
	return fmt.Sprintf("redirect %d to %s", e.StatusCode, e.Location)
}

// EndpointError is a connection, tunnel or proxy failure attributed to the
// outbound endpoint rather than the upstream.
type EndpointError struct {
	Endpoint string
	Err      error
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("endpoint %s: %v", e.Endpoint, e.Err)
}

func (e *EndpointError) Unwrap() error { return e.Err }

// BreakerOpenError is returned without contacting the upstream while its
// circuit breaker is open.
type BreakerOpenError struct {
	Market model.Market
	Err    error
}

func (e *BreakerOpenError) Error() string {
	return fmt.Sprintf("%s upstream unavailable: %v", e.Market, e.Err)
}

func (e *BreakerOpenError) Unwrap() error { return e.Err }

// Block reasons reported to the endpoint pool.
const (
	reasonProxyError = "proxy_error"
)

func blockReason(status int) string {
	return fmt.Sprintf("http_%d", status)
}

var endpointSignatures = []string{
	"proxyconnect",
	"tunnel",
	"proxy",
	"connection refused",
	"connection reset",
	"broken pipe",
	"unexpected eof",
}

// isEndpointFailure inspects a transport error for proxy-level signatures.
func isEndpointFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range endpointSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusTemporaryRedirect:
		return true
	}
	return false
}

// isUpstreamFailure reports whether err counts against the upstream's
// circuit breaker: transient statuses and direct transport failures.
func isUpstreamFailure(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable() && apiErr.Endpoint == ""
	}
	var redirect *RedirectError
	var endpointErr *EndpointError
	switch {
	case errors.As(err, &redirect), errors.As(err, &endpointErr):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, ErrNoEndpoint):
		return false
	case err == context.DeadlineExceeded:
		// The caller's own deadline, returned bare by exchange.
		return false
	}
	return true
}

// isRetryable reports whether another attempt may succeed.
func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable() || (apiErr.Endpoint != "" && apiErr.IsBlocking())
	}
	var redirect *RedirectError
	var breakerErr *BreakerOpenError
	switch {
	case errors.As(err, &redirect), errors.As(err, &breakerErr):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, ErrNoEndpoint):
		return false
	}
	// Remaining errors are transport failures: timeouts, resets, DNS.
	return true
}

var (
	// ErrNoEndpoint wraps failures to obtain an outbound endpoint.
	ErrNoEndpoint = errors.New("acquire endpoint")

	// ErrRetriesExhausted wraps the last error once every attempt has failed.
	ErrRetriesExhausted = errors.New("max retries exceeded")
)

// requestFunc builds a fresh request for one attempt.
type requestFunc func(ctx context.Context) (*http.Request, error)

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("Accept-Language", "zh-TW,zh;q=0.8,en-US;q=0.5,en;q=0.3")
}

// doRequest performs one attempt: endpoint, pacing, then the exchange under
// the market's circuit breaker. It returns the endpoint it used so the next
// attempt can avoid it.
func (c *Client) doRequest(ctx context.Context, market model.Market, build requestFunc, avoid string) (body []byte, endpoint string, err error) {
	if c.pool != nil {
		endpoint, err = c.pool.Acquire(ctx, avoid)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %w", ErrNoEndpoint, err)
		}
		defer func() {
			if rerr := c.pool.Release(endpoint); rerr != nil {
				c.logger.Warn("failed to release endpoint", "endpoint", endpoint, "error", rerr)
			}
		}()
	}

	req, err := build(ctx)
	if err != nil {
		return nil, endpoint, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	host := req.URL.Host

	if c.pacer != nil {
		if err := c.pacer.Wait(ctx, host); err != nil {
			return nil, endpoint, err
		}
	}

	cb, ok := c.breakers[market]
	if !ok {
		body, err = c.exchange(ctx, market, req, endpoint)
		return body, endpoint, err
	}

	// Only the exchange with the upstream runs under the breaker; waiting
	// for an endpoint or for the pacer never counts against it.
	res, err := cb.Execute(func() (interface{}, error) {
		return c.exchange(ctx, market, req, endpoint)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, endpoint, &BreakerOpenError{Market: market, Err: err}
	}
	if err != nil {
		return nil, endpoint, err
	}
	return res.([]byte), endpoint, nil
}

// exchange sends req and checks the response status.
func (c *Client) exchange(ctx context.Context, market model.Market, req *http.Request, endpoint string) ([]byte, error) {
	host := req.URL.Host
	start := time.Now()
	resp, err := c.executor.Do(ctx, req, endpoint)
	if err != nil {
		c.observe(market, host, 0, time.Since(start))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if endpoint != "" && isEndpointFailure(err) {
			c.markBlocked(endpoint, reasonProxyError, err)
			return nil, &EndpointError{Endpoint: endpoint, Err: err}
		}
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.observe(market, host, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if isRedirect(resp.StatusCode) {
		return nil, &RedirectError{
			StatusCode: resp.StatusCode,
			Location:   resp.Header.Get("Location"),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
			Endpoint:   endpoint,
		}
		if endpoint != "" && apiErr.IsBlocking() {
			c.markBlocked(endpoint, blockReason(resp.StatusCode), apiErr)
		}
		return nil, apiErr
	}

	if endpoint != "" {
		c.pool.MarkHealthy(endpoint)
	}
	return body, nil
}

func (c *Client) observe(market model.Market, host string, status int, latency time.Duration) {
	c.metrics.ObserveRequest(market.String(), status, latency)
	if c.pacer != nil {
		delay := c.pacer.Observe(host, latency, status)
		c.metrics.SetDelay(host, delay)
	}
}

func (c *Client) markBlocked(endpoint, reason string, cause error) {
	c.logger.Debug("endpoint failure", "endpoint", endpoint, "reason", reason, "error", cause)
	c.pool.MarkBlocked(endpoint, reason)
	c.metrics.Blocked(reason)
}

// doWithRetry performs a request with jittered exponential backoff. Each
// attempt acquires and releases its own endpoint and avoids the previous one.
func (c *Client) doWithRetry(ctx context.Context, market model.Market, build requestFunc) ([]byte, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.retryBackoff
	eb.MaxInterval = c.maxRetryBackoff
	eb.RandomizationFactor = 0.5
	eb.Multiplier = 2

	var last string
	permanent := false
	op := func() ([]byte, error) {
		body, endpoint, err := c.doRequest(ctx, market, build, last)
		if endpoint != "" {
			last = endpoint
		}
		if err == nil {
			return body, nil
		}
		if !isRetryable(err) {
			permanent = true
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	body, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(uint(c.maxRetries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.metrics.Retry(market.String())
			c.logger.Debug("retrying request",
				"market", market.String(),
				"backoff", next,
				"error", err,
			)
		}),
	)
	if err == nil {
		return body, nil
	}

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	if permanent {
		return nil, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return nil, fmt.Errorf("%w: %w", ErrRetriesExhausted, err)
}
