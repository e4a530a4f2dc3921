package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rickgao/twstock-daily/internal/api"
	"github.com/rickgao/twstock-daily/internal/catalog"
	"github.com/rickgao/twstock-daily/internal/config"
	"github.com/rickgao/twstock-daily/internal/fetcher"
	"github.com/rickgao/twstock-daily/internal/metrics"
	"github.com/rickgao/twstock-daily/internal/model"
	"github.com/rickgao/twstock-daily/internal/proxy"
	"github.com/rickgao/twstock-daily/internal/runlog"
	"github.com/rickgao/twstock-daily/internal/sink"
	"github.com/rickgao/twstock-daily/internal/throttle"
)

// Mode selects how outbound requests leave the process.
type Mode string

const (
	ModeDirect Mode = "direct" // Requests go straight to the upstreams
	ModeProxy  Mode = "proxy"  // Requests rotate through validated endpoints
)

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDirect, ModeProxy:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q (want direct or proxy)", s)
	}
}

// Run-log categories for run-level events.
const (
	CategoryCatalog  = "catalog"
	CategoryProxy    = "proxy"
	CategoryBlocked  = "endpoint_blocked"
	CategorySummary  = "summary"
	CategoryManifest = "manifest"
	CategorySink     = "sink_close"
)

// ErrCatalog marks a run aborted because the catalog could not be read.
var ErrCatalog = errors.New("catalog unavailable")

// ValidateFunc filters endpoint candidates down to the usable ones.
type ValidateFunc func(ctx context.Context, candidates []string, cfg proxy.ProbeConfig, logger *slog.Logger) []string

// Option configures a Runner.
type Option func(*Runner)

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// WithValidator replaces endpoint validation.
func WithValidator(fn ValidateFunc) Option {
	return func(r *Runner) {
		r.validate = fn
	}
}

// WithHTTPClient sets the client used to download the proxy list.
func WithHTTPClient(hc *http.Client) Option {
	return func(r *Runner) {
		r.httpClient = hc
	}
}

// WithRegistry registers run metrics with reg instead of a private registry.
// reg must also be a Gatherer when the metrics listener is enabled.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(r *Runner) {
		r.registry = reg
	}
}

// Runner executes ingest runs for one configuration.
type Runner struct {
	cfg        *config.Config
	mode       Mode
	logger     *slog.Logger
	now        func() time.Time
	validate   ValidateFunc
	httpClient *http.Client
	registry   prometheus.Registerer
}

// New creates a Runner.
func New(cfg *config.Config, mode Mode, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		cfg:        cfg,
		mode:       mode,
		logger:     logger,
		now:        time.Now,
		validate:   proxy.Validate,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes a single run with cfg. See Runner.Run.
func Run(ctx context.Context, cfg *config.Config, mode Mode, logger *slog.Logger, opts ...Option) (fetcher.Summary, error) {
	return New(cfg, mode, logger, opts...).Run(ctx)
}

// Run executes one ingest run. The returned error is non-nil only when the
// run could not start; instrument failures are reported in the summary.
func (r *Runner) Run(ctx context.Context) (fetcher.Summary, error) {
	now := r.now()

	events, err := runlog.Open(r.cfg.Log.Dir, now)
	if err != nil {
		return fetcher.Summary{}, fmt.Errorf("open run log: %w", err)
	}
	defer events.Close()

	instruments, err := catalog.Load(r.cfg.Catalog.Path, r.logger)
	if err != nil {
		events.Append(runlog.SubjectSystem, CategoryCatalog, err.Error())
		r.logger.Error("failed to load catalog", "path", r.cfg.Catalog.Path, "error", err)
		return fetcher.Summary{}, fmt.Errorf("%w: %w", ErrCatalog, err)
	}
	counts := catalog.Count(instruments)
	r.logger.Info("catalog loaded",
		"path", r.cfg.Catalog.Path,
		"listed", counts[model.MarketListed],
		"otc", counts[model.MarketOTC],
	)

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	m, err := r.startMetrics(runCtx, &wg)
	if err != nil {
		return fetcher.Summary{}, err
	}

	th := throttle.New(throttle.Config{
		ConcurrencyPerHost: r.cfg.Throttle.ConcurrencyPerHost,
		StartDelay:         r.cfg.Throttle.StartDelay,
		MinDelay:           r.cfg.Throttle.MinDelay,
		MaxDelay:           r.cfg.Throttle.MaxDelay,
		TargetConcurrency:  r.cfg.Throttle.TargetConcurrency,
	})

	clientOpts := []api.ClientOption{
		api.WithLogger(r.logger),
		api.WithTimeout(r.cfg.API.Timeout),
		api.WithRetries(r.cfg.API.Retries(), r.cfg.API.RetryBackoff),
		api.WithMaxRetryBackoff(r.cfg.API.MaxRetryBackoff),
		api.WithUserAgent(r.cfg.API.UserAgent),
		api.WithPacer(th),
		api.WithMetrics(m),
	}
	if !r.cfg.Breaker.Disabled {
		clientOpts = append(clientOpts, api.WithBreaker(api.BreakerSettings{
			ConsecutiveFailures: r.cfg.Breaker.ConsecutiveFailures,
			OpenTimeout:         r.cfg.Breaker.OpenTimeout,
		}))
	}

	mode := r.mode
	if mode == ModeProxy {
		pool := r.buildPool(runCtx, events, m)
		if pool == nil {
			mode = ModeDirect
		} else {
			clientOpts = append(clientOpts, api.WithEndpointPool(pool))
			wg.Add(1)
			go func() {
				defer wg.Done()
				samplePool(runCtx, pool, m)
			}()
		}
	}

	client := api.NewClient(r.cfg.API.ListedURL, r.cfg.API.OTCURL, clientOpts...)

	store, err := sink.New(r.cfg.Storage.Root, sink.WithLogger(r.logger))
	if err != nil {
		events.Append(runlog.SubjectSystem, CategorySink, err.Error())
		return fetcher.Summary{}, fmt.Errorf("open sink: %w", err)
	}

	f := fetcher.New(
		fetcher.Config{
			Concurrency: r.cfg.Run.Concurrency,
			Timeout:     r.cfg.Run.InstrumentTimeout,
			Hosts:       hosts(r.cfg.API),
		},
		client,
		store,
		fetcher.WithLogger(r.logger),
		fetcher.WithEventLog(events),
		fetcher.WithHostLimiter(th),
		fetcher.WithMetrics(m),
		fetcher.WithClock(func() time.Time { return now }),
	)

	r.logger.Info("run starting", "run_id", f.RunID(), "mode", string(mode))
	summary := f.Run(ctx, instruments)

	if err := store.Close(); err != nil {
		events.Append(runlog.SubjectSystem, CategorySink, err.Error())
		r.logger.Error("failed to close sink", "error", err)
	}
	stats := store.Stats()

	events.Append(runlog.SubjectSystem, CategorySummary, fmt.Sprintf(
		"run %s attempted=%d succeeded=%d failed=%d skipped=%d written=%d duplicates=%d",
		summary.RunID, summary.Attempted, summary.Succeeded, summary.Failed,
		summary.Skipped, summary.Written, summary.Duplicates,
	))

	if path := r.cfg.Run.FailureManifest; path != "" {
		if err := WriteManifest(path, summary); err != nil {
			events.Append(runlog.SubjectSystem, CategoryManifest, err.Error())
			r.logger.Error("failed to write failure manifest", "path", path, "error", err)
		}
	}

	r.logger.Info("run complete",
		"run_id", summary.RunID,
		"mode", string(mode),
		"attempted", summary.Attempted,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"stores", stats.Stores,
		"written", stats.Written,
	)
	return summary, nil
}

// startMetrics registers collectors and starts the listener when configured.
func (r *Runner) startMetrics(ctx context.Context, wg *sync.WaitGroup) (*metrics.Metrics, error) {
	reg := r.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := metrics.New()
	if err := m.Register(reg); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	if r.cfg.Metrics.Port <= 0 {
		return m, nil
	}
	gatherer, ok := reg.(prometheus.Gatherer)
	if !ok {
		r.logger.Warn("metrics registry cannot be gathered, listener disabled")
		return m, nil
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := metrics.Serve(ctx, r.cfg.Metrics.Port, r.cfg.Metrics.Path, gatherer, r.logger); err != nil {
			r.logger.Error("metrics server failed", "error", err)
		}
	}()
	return m, nil
}

// buildPool gathers and validates endpoint candidates. It returns nil when
// none are usable, and the run continues in direct mode.
func (r *Runner) buildPool(ctx context.Context, events *runlog.Log, m *metrics.Metrics) *proxy.Pool {
	candidates := append([]string{}, r.cfg.Proxy.Candidates...)

	if r.cfg.Proxy.SourceURL != "" {
		scraped, err := proxy.FetchCandidates(ctx, r.httpClient, r.cfg.Proxy.SourceURL)
		if err != nil {
			r.logger.Warn("failed to fetch proxy list", "url", r.cfg.Proxy.SourceURL, "error", err)
		} else {
			candidates = append(candidates, scraped...)
		}
	}

	valid := r.validate(ctx, candidates, proxy.ProbeConfig{
		URL:     r.cfg.Proxy.ProbeURL,
		Timeout: r.cfg.Proxy.ProbeTimeout,
		Workers: r.cfg.Proxy.ProbeWorkers,
	}, r.logger)

	if len(valid) == 0 {
		msg := fmt.Sprintf("no valid endpoints among %d candidates, falling back to direct", len(candidates))
		events.Append(runlog.SubjectSystem, CategoryProxy, msg)
		r.logger.Warn("no valid endpoints, falling back to direct mode", "candidates", len(candidates))
		return nil
	}

	r.logger.Info("endpoint pool ready", "valid", len(valid), "candidates", len(candidates))
	pool := proxy.NewPool(valid,
		proxy.WithLogger(r.logger),
		proxy.WithEvictAfter(r.cfg.Proxy.EvictAfter),
		proxy.WithBlockedFunc(func(endpoint, reason string) {
			events.Append(endpoint, CategoryBlocked, reason)
		}),
	)
	m.SetPoolAvailable(pool.Len())
	return pool
}

// samplePool publishes the idle endpoint count until ctx is done.
func samplePool(ctx context.Context, pool *proxy.Pool, m *metrics.Metrics) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SetPoolAvailable(len(pool.Available()))
		}
	}
}

// hosts maps each market to its upstream host for per-host limits.
func hosts(cfg config.APIConfig) map[model.Market]string {
	out := make(map[model.Market]string, 2)
	for market, raw := range map[model.Market]string{
		model.MarketListed: cfg.ListedURL,
		model.MarketOTC:    cfg.OTCURL,
	} {
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			out[market] = u.Host
		}
	}
	return out
}
