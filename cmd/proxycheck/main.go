// proxycheck validates outbound endpoints and prints the egress address each
// one presents.
// Usage: go run ./cmd/proxycheck --config configs/twstock.yaml
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/twstock-daily/internal/config"
	"github.com/rickgao/twstock-daily/internal/logging"
	"github.com/rickgao/twstock-daily/internal/proxy"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	ipURL := flag.String("ip-url", "http://httpbin.org/ip", "endpoint echoing the caller's address as JSON")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, closer := logging.New(cfg.Log)
	defer closer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	candidates := append([]string{}, cfg.Proxy.Candidates...)
	if cfg.Proxy.SourceURL != "" {
		scraped, err := proxy.FetchCandidates(ctx, &http.Client{Timeout: 30 * time.Second}, cfg.Proxy.SourceURL)
		if err != nil {
			logger.Warn("failed to fetch proxy list", "url", cfg.Proxy.SourceURL, "error", err)
		} else {
			candidates = append(candidates, scraped...)
		}
	}
	logger.Info("validating endpoints", "candidates", len(candidates))

	probe := proxy.ProbeConfig{
		URL:     cfg.Proxy.ProbeURL,
		Timeout: cfg.Proxy.ProbeTimeout,
		Workers: cfg.Proxy.ProbeWorkers,
	}
	valid := proxy.Validate(ctx, candidates, probe, logger)
	logger.Info("validation complete", "valid", len(valid), "candidates", len(candidates))

	origins := make([]string, len(valid))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(probe.Workers, 1))
	for i, endpoint := range valid {
		g.Go(func() error {
			origin, err := egress(gctx, endpoint, *ipURL, probe.Timeout*5)
			if err != nil {
				logger.Debug("egress lookup failed", "endpoint", endpoint, "error", err)
				origin = "?"
			}
			origins[i] = origin
			return nil
		})
	}
	g.Wait()

	for i, endpoint := range valid {
		fmt.Printf("%s\t%s\n", endpoint, origins[i])
	}
	if len(valid) == 0 {
		os.Exit(1)
	}
}

// egress asks ipURL through endpoint which address the request arrived from.
func egress(ctx context.Context, endpoint, ipURL string, timeout time.Duration) (string, error) {
	proxyURL, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	client := &http.Client{
		Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL), DisableKeepAlives: true},
		Timeout:   timeout,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ipURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body struct {
		Origin string `json:"origin"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	return body.Origin, nil
}
