package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Executor performs exactly one outbound HTTP attempt. When endpoint is
// non-empty the request is routed through it. Redirect responses are returned
// to the caller, never followed.
type Executor interface {
	Do(ctx context.Context, req *http.Request, endpoint string) (*http.Response, error)
}

// HTTPExecutor is the default Executor. It keeps one http.Client per
// endpoint so connections to a proxy are reused across attempts.
type HTTPExecutor struct {
	timeout time.Duration

	mu      sync.Mutex
	clients map[string]*http.Client
}

// NewHTTPExecutor creates an executor whose attempts time out after timeout.
func NewHTTPExecutor(timeout time.Duration) *HTTPExecutor {
	return &HTTPExecutor{
		timeout: timeout,
		clients: make(map[string]*http.Client),
	}
}

func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

func (e *HTTPExecutor) client(endpoint string) (*http.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if hc, ok := e.clients[endpoint]; ok {
		return hc, nil
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if endpoint != "" {
		u, err := url.Parse(endpoint)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid endpoint %q", endpoint)
		}
		transport.Proxy = http.ProxyURL(u)
	}

	hc := &http.Client{
		Timeout:       e.timeout,
		Transport:     transport,
		CheckRedirect: noRedirect,
	}
	e.clients[endpoint] = hc
	return hc, nil
}

// Do implements Executor.
func (e *HTTPExecutor) Do(ctx context.Context, req *http.Request, endpoint string) (*http.Response, error) {
	hc, err := e.client(endpoint)
	if err != nil {
		return nil, err
	}
	return hc.Do(req.WithContext(ctx))
}

// CloseIdleConnections closes idle connections of every cached client.
func (e *HTTPExecutor) CloseIdleConnections() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, hc := range e.clients {
		hc.CloseIdleConnections()
	}
}

// clientExecutor adapts a caller-supplied http.Client. Endpoints are ignored.
type clientExecutor struct {
	hc *http.Client
}

func (e clientExecutor) Do(ctx context.Context, req *http.Request, _ string) (*http.Response, error) {
	hc := *e.hc
	hc.CheckRedirect = noRedirect
	return hc.Do(req.WithContext(ctx))
}
