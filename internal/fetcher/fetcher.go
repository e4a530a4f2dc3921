package fetcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/twstock-daily/internal/metrics"
	"github.com/rickgao/twstock-daily/internal/model"
	"github.com/rickgao/twstock-daily/internal/normalize"
)

// Source fetches the raw rows for one instrument.
type Source interface {
	Fetch(ctx context.Context, inst model.Instrument, day time.Time) ([][]string, error)
}

// RecordSink persists canonical records.
type RecordSink interface {
	Write(rec model.CanonicalRecord) (bool, error)
}

// EventLog receives per-instrument events for the run log.
type EventLog interface {
	Append(subject, category, message string)
}

// HostLimiter bounds in-flight requests per upstream host.
type HostLimiter interface {
	Acquire(ctx context.Context, host string) (release func(), err error)
}

// Config holds fetcher configuration.
type Config struct {
	Concurrency int                     // Max instruments in flight (default: 64)
	Timeout     time.Duration           // Per-instrument deadline, retries included; 0 disables
	Hosts       map[model.Market]string // Host key per market for the HostLimiter
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency: 64,
		Timeout:     10 * time.Minute,
	}
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithEventLog sets the run log.
func WithEventLog(l EventLog) Option {
	return func(f *Fetcher) {
		f.events = l
	}
}

// WithHostLimiter bounds concurrent instruments per upstream host.
func WithHostLimiter(l HostLimiter) Option {
	return func(f *Fetcher) {
		f.limiter = l
	}
}

// WithMetrics records instrument and record outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) {
		f.now = now
	}
}

// WithRunID sets the run identifier; a random one is generated otherwise.
func WithRunID(id string) Option {
	return func(f *Fetcher) {
		f.runID = id
	}
}

// Fetcher runs the fetch, normalize and persist pipeline for a catalog.
type Fetcher struct {
	cfg     Config
	source  Source
	sink    RecordSink
	events  EventLog
	limiter HostLimiter
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
	runID   string
}

// New creates a new Fetcher.
func New(cfg Config, source Source, sink RecordSink, opts ...Option) *Fetcher {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	f := &Fetcher{
		cfg:    cfg,
		source: source,
		sink:   sink,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.runID == "" {
		f.runID = uuid.NewString()
	}
	return f
}

// RunID returns the run identifier.
func (f *Fetcher) RunID() string {
	return f.runID
}

// Interleave alternates listed and OTC instruments one-for-one. When one list
// runs out, the rest of the other follows in order.
func Interleave(listed, otc []model.Instrument) []model.Instrument {
	out := make([]model.Instrument, 0, len(listed)+len(otc))
	for i := 0; i < max(len(listed), len(otc)); i++ {
		if i < len(listed) {
			out = append(out, listed[i])
		}
		if i < len(otc) {
			out = append(out, otc[i])
		}
	}
	return out
}

// Run fetches every instrument once. It returns when all dispatched
// instruments have finished; per-instrument failures are reported in the
// summary, never as an error. If ctx is cancelled, undispatched instruments
// are counted as skipped.
func (f *Fetcher) Run(ctx context.Context, instruments []model.Instrument) Summary {
	start := time.Now()
	day := f.now()

	var listed, otc []model.Instrument
	for _, inst := range instruments {
		switch inst.Market {
		case model.MarketListed:
			listed = append(listed, inst)
		case model.MarketOTC:
			otc = append(otc, inst)
		default:
			f.logger.Warn("skipping instrument with unknown market", "code", inst.Code)
		}
	}

	acc := newTally(f.runID, day, start)
	order := Interleave(listed, otc)

	f.logger.Info("fetch run started",
		"run_id", f.runID,
		"day", day.Format("2006-01-02"),
		"listed", len(listed),
		"otc", len(otc),
		"concurrency", f.cfg.Concurrency,
	)

	// Semaphore for bounded concurrency.
	sem := make(chan struct{}, f.cfg.Concurrency)
	var wg sync.WaitGroup

dispatch:
	for i, inst := range order {
		if ctx.Err() != nil {
			acc.skip(len(order) - i)
			break
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			acc.skip(len(order) - i)
			break dispatch
		}

		release, err := f.acquireHost(ctx, inst)
		if err != nil {
			<-sem
			acc.skip(len(order) - i)
			break dispatch
		}

		wg.Add(1)
		go func(inst model.Instrument) {
			defer wg.Done()
			defer func() { <-sem }()
			defer release()

			f.process(ctx, inst, day, acc)
		}(inst)
	}

	wg.Wait()

	summary := acc.summary(time.Now())
	f.logger.Info("fetch run complete",
		"run_id", f.runID,
		"attempted", summary.Attempted,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"written", summary.Written,
		"duplicates", summary.Duplicates,
		"rejected", summary.Rejected,
		"duration", time.Since(start),
	)
	return summary
}

func (f *Fetcher) acquireHost(ctx context.Context, inst model.Instrument) (func(), error) {
	if f.limiter == nil {
		return func() {}, nil
	}
	host, ok := f.cfg.Hosts[inst.Market]
	if !ok {
		host = inst.Market.String()
	}
	return f.limiter.Acquire(ctx, host)
}

// process fetches, normalizes and persists a single instrument.
func (f *Fetcher) process(ctx context.Context, inst model.Instrument, day time.Time, acc *tally) {
	acc.attempt()

	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	rows, err := f.source.Fetch(ctx, inst, day)
	if err != nil {
		f.fail(inst, classify(err), err.Error(), acc)
		return
	}

	records, rejections := normalize.NormalizeRows(inst.Market, inst, rows)
	for _, rej := range rejections {
		f.event(inst, CategoryRejected, rej.Error())
	}
	f.metrics.Records(metrics.RecordRejected, len(rejections))

	var written, duplicates, sinkErrors int
	var sinkErr error
	for _, rec := range records {
		ok, err := f.sink.Write(rec)
		switch {
		case err != nil:
			sinkErrors++
			sinkErr = err
		case ok:
			written++
		default:
			duplicates++
		}
	}
	f.metrics.Records(metrics.RecordWritten, written)
	f.metrics.Records(metrics.RecordDuplicate, duplicates)
	f.metrics.Records(metrics.RecordError, sinkErrors)

	acc.records(len(records), written, duplicates, len(rejections), sinkErrors)

	if sinkErr != nil {
		f.fail(inst, CategorySink, sinkErr.Error(), acc)
		return
	}

	acc.succeed()
	f.metrics.Instrument(inst.Market.String(), "succeeded")
	f.logger.Debug("instrument complete",
		"code", inst.Code,
		"market", inst.Market.String(),
		"rows", len(rows),
		"written", written,
		"duplicates", duplicates,
	)
}

func (f *Fetcher) fail(inst model.Instrument, category, reason string, acc *tally) {
	acc.fail(Failure{
		Code:     inst.Code,
		Name:     inst.Name,
		Market:   inst.Market.String(),
		Category: category,
		Reason:   reason,
	})
	f.metrics.Instrument(inst.Market.String(), "failed")
	f.event(inst, category, reason)
	f.logger.Warn("instrument failed",
		"code", inst.Code,
		"name", inst.Name,
		"market", inst.Market.String(),
		"category", category,
		"error", reason,
	)
}

func (f *Fetcher) event(inst model.Instrument, category, message string) {
	if f.events != nil {
		f.events.Append(inst.Subject(), category, message)
	}
}
