package proxy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"
)

// ProbeConfig controls endpoint validation.
type ProbeConfig struct {
	URL     string        // Known-reachable target
	Timeout time.Duration // Per-probe deadline
	Workers int           // Concurrent probes
}

// Probe sends one request to cfg.URL through endpoint. A nil error means the
// target answered with a 2xx status within cfg.Timeout.
func Probe(ctx context.Context, endpoint string, cfg ProbeConfig) error {
	proxyURL, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	if proxyURL.Scheme == "" || proxyURL.Host == "" {
		return fmt.Errorf("endpoint %q: missing scheme or host", endpoint)
	}

	transport := &http.Transport{
		Proxy:             http.ProxyURL(proxyURL),
		DisableKeepAlives: true,
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("probe status %d", resp.StatusCode)
	}
	return nil
}

// Validate probes every candidate concurrently and returns the ones that pass,
// in candidate order. Failing candidates are dropped; they are not errors.
func Validate(ctx context.Context, candidates []string, cfg ProbeConfig, logger *slog.Logger) []string {
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	seen := make(map[string]bool, len(candidates))
	unique := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		unique = append(unique, c)
	}

	ok := make([]bool, len(unique))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, candidate := range unique {
		g.Go(func() error {
			if err := Probe(ctx, candidate, cfg); err != nil {
				logger.Debug("endpoint rejected", "endpoint", candidate, "error", err)
				return nil
			}
			logger.Debug("endpoint valid", "endpoint", candidate)
			ok[i] = true
			return nil
		})
	}
	g.Wait()

	valid := make([]string, 0, len(unique))
	for i, candidate := range unique {
		if ok[i] {
			valid = append(valid, candidate)
		}
	}

	logger.Info("endpoint validation complete",
		"candidates", len(unique),
		"valid", len(valid),
	)

	return valid
}
