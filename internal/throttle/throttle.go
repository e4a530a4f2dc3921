package throttle

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds throttle configuration.
type Config struct {
	ConcurrencyPerHost int           // Max in-flight requests per host
	StartDelay         time.Duration // Initial delay between request starts
	MinDelay           time.Duration // Delay floor
	MaxDelay           time.Duration // Delay ceiling
	TargetConcurrency  float64       // Desired steady-state concurrency per host
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ConcurrencyPerHost: 4,
		StartDelay:         500 * time.Millisecond,
		MinDelay:           time.Second,
		MaxDelay:           5 * time.Second,
		TargetConcurrency:  1.0,
	}
}

type slot struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter

	mu    sync.Mutex
	delay time.Duration
}

// Throttle paces requests per host.
type Throttle struct {
	cfg Config

	mu    sync.Mutex
	slots map[string]*slot
}

// New creates a Throttle.
func New(cfg Config) *Throttle {
	if cfg.ConcurrencyPerHost < 1 {
		cfg.ConcurrencyPerHost = 1
	}
	if cfg.TargetConcurrency <= 0 {
		cfg.TargetConcurrency = 1.0
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	return &Throttle{
		cfg:   cfg,
		slots: make(map[string]*slot),
	}
}

func (t *Throttle) slot(host string) *slot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.slots[host]
	if !ok {
		delay := t.clamp(max(t.cfg.StartDelay, t.cfg.MinDelay))
		s = &slot{
			sem:     semaphore.NewWeighted(int64(t.cfg.ConcurrencyPerHost)),
			limiter: rate.NewLimiter(limitFor(delay), 1),
			delay:   delay,
		}
		t.slots[host] = s
	}
	return s
}

func limitFor(delay time.Duration) rate.Limit {
	if delay <= 0 {
		return rate.Inf
	}
	return rate.Every(delay)
}

func (t *Throttle) clamp(d time.Duration) time.Duration {
	if d < t.cfg.MinDelay {
		d = t.cfg.MinDelay
	}
	if d > t.cfg.MaxDelay {
		d = t.cfg.MaxDelay
	}
	return d
}

// Acquire reserves one in-flight slot for host. The returned release func
// must be called exactly once when the request completes.
func (t *Throttle) Acquire(ctx context.Context, host string) (release func(), err error) {
	s := t.slot(host)
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(func() { s.sem.Release(1) }) }, nil
}

// Wait blocks until the adaptive delay allows the next request to host.
func (t *Throttle) Wait(ctx context.Context, host string) error {
	return t.slot(host).limiter.Wait(ctx)
}

// Observe feeds one response latency back into host's delay. status is the
// HTTP status, or 0 when the request failed before a response.
func (t *Throttle) Observe(host string, latency time.Duration, status int) time.Duration {
	s := t.slot(host)

	s.mu.Lock()
	defer s.mu.Unlock()

	target := time.Duration(float64(latency) / t.cfg.TargetConcurrency)
	next := max(target, (s.delay+target)/2)
	next = t.clamp(next)

	// Errors and non-200 responses are often fast; don't let them speed us up.
	if status != http.StatusOK && next <= s.delay {
		return s.delay
	}

	s.delay = next
	s.limiter.SetLimit(limitFor(next))
	return next
}

// Delay returns host's current delay.
func (t *Throttle) Delay(host string) time.Duration {
	s := t.slot(host)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delay
}
