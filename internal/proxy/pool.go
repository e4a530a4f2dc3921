package proxy

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	// ErrEmpty is returned by Acquire when the pool holds no endpoints.
	ErrEmpty = errors.New("proxy pool is empty")

	// ErrNotCheckedOut is returned by Release for endpoints that are unknown
	// to the pool or already available.
	ErrNotCheckedOut = errors.New("endpoint is not checked out")
)

// BlockedFunc observes blocked signals (e.g., for metrics or the run log).
type BlockedFunc func(endpoint, reason string)

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

// WithEvictAfter retires an endpoint once it has been blocked n times in a
// row without an intervening MarkHealthy. Zero keeps every endpoint forever.
// The last remaining endpoint is never retired.
func WithEvictAfter(n int) Option {
	return func(p *Pool) {
		p.evictAfter = n
	}
}

// WithBlockedFunc registers an observer for MarkBlocked.
func WithBlockedFunc(fn BlockedFunc) Option {
	return func(p *Pool) {
		p.onBlocked = fn
	}
}

type endpointState struct {
	checkedOut        bool
	consecutiveBlocks int
	totalBlocks       int
	acquires          int64
}

// Stats contains pool statistics.
type Stats struct {
	Size       int   // Endpoints still in rotation
	Available  int   // Queued and ready
	CheckedOut int   // Held by in-flight requests
	Acquires   int64 // Total successful acquires
	Blocked    int64 // Total MarkBlocked calls
	Retired    int   // Endpoints removed by the eviction policy
}

// Pool is a concurrency-safe FIFO rotation of outbound endpoints.
type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   *ring
	members map[string]*endpointState

	logger     *slog.Logger
	evictAfter int
	onBlocked  BlockedFunc

	acquires int64
	blocked  int64
	retired  int
}

// NewPool creates a pool holding the given endpoints in order. Duplicates and
// empty strings are dropped.
func NewPool(endpoints []string, opts ...Option) *Pool {
	p := &Pool{
		queue:   newRing(len(endpoints)),
		members: make(map[string]*endpointState, len(endpoints)),
		logger:  slog.Default(),
	}
	p.cond = sync.NewCond(&p.mu)

	for _, opt := range opts {
		opt(p)
	}

	for _, e := range endpoints {
		if e == "" {
			continue
		}
		if _, dup := p.members[e]; dup {
			continue
		}
		p.members[e] = &endpointState{}
		p.queue.push(e)
	}

	return p
}

// Acquire returns the endpoint that has been idle the longest, blocking until
// one is released or ctx is done. If avoid is at the front of the rotation and
// another endpoint is available, the other one is returned instead.
func (p *Pool) Acquire(ctx context.Context, avoid string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	defer stop()

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if len(p.members) == 0 {
			return "", ErrEmpty
		}
		if p.queue.len() > 0 {
			break
		}
		p.cond.Wait()
	}

	e, _ := p.queue.popAvoiding(avoid)
	st := p.members[e]
	st.checkedOut = true
	st.acquires++
	p.acquires++

	return e, nil
}

// Release returns a checked-out endpoint to the back of the rotation.
func (p *Pool) Release(endpoint string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.members[endpoint]
	if !ok || !st.checkedOut {
		return ErrNotCheckedOut
	}
	st.checkedOut = false

	if p.evictAfter > 0 && st.consecutiveBlocks >= p.evictAfter && len(p.members) > 1 {
		delete(p.members, endpoint)
		p.retired++
		p.logger.Warn("retiring blocked endpoint",
			"endpoint", endpoint,
			"consecutive_blocks", st.consecutiveBlocks,
			"remaining", len(p.members),
		)
		p.cond.Broadcast()
		return nil
	}

	p.queue.push(endpoint)
	p.cond.Broadcast()
	return nil
}

// MarkBlocked records that endpoint produced a blocking-class response or a
// proxy-level connection failure. It does not change the rotation by itself.
func (p *Pool) MarkBlocked(endpoint, reason string) {
	p.mu.Lock()
	st, ok := p.members[endpoint]
	if !ok {
		p.mu.Unlock()
		return
	}
	st.consecutiveBlocks++
	st.totalBlocks++
	p.blocked++
	consecutive := st.consecutiveBlocks
	fn := p.onBlocked
	p.mu.Unlock()

	p.logger.Warn("endpoint blocked",
		"endpoint", endpoint,
		"reason", reason,
		"consecutive", consecutive,
	)

	if fn != nil {
		fn(endpoint, reason)
	}
}

// MarkHealthy resets the consecutive block count after a clean response.
func (p *Pool) MarkHealthy(endpoint string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.members[endpoint]; ok {
		st.consecutiveBlocks = 0
	}
}

// Len returns the number of endpoints still in rotation.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.members)
}

// Available returns the queued endpoints, front to back.
func (p *Pool) Available() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.snapshot()
}

// Blocks returns the total blocked count recorded for endpoint.
func (p *Pool) Blocks(endpoint string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.members[endpoint]; ok {
		return st.totalBlocks
	}
	return 0
}

// Stats returns pool statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	checkedOut := 0
	for _, st := range p.members {
		if st.checkedOut {
			checkedOut++
		}
	}

	return Stats{
		Size:       len(p.members),
		Available:  p.queue.len(),
		CheckedOut: checkedOut,
		Acquires:   p.acquires,
		Blocked:    p.blocked,
		Retired:    p.retired,
	}
}
