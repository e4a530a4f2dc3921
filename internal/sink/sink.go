package sink

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rickgao/twstock-daily/internal/model"
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("sink closed")

// Stats holds sink counters.
type Stats struct {
	Written    int64 // Rows appended
	Duplicates int64 // Records dropped because their date was already stored
	Errors     int64 // Records refused by a failed store
	Stores     int   // Stores touched
}

// Option configures a Sink.
type Option func(*Sink)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Sink routes records to their FileKey's store.
type Sink struct {
	root   string
	logger *slog.Logger

	mu     sync.Mutex
	stores map[model.FileKey]*store
	closed bool

	written    atomic.Int64
	duplicates atomic.Int64
	errors     atomic.Int64
}

// New creates a Sink rooted at root, creating the directory if needed.
func New(root string, opts ...Option) (*Sink, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	s := &Sink{
		root:   root,
		logger: slog.Default(),
		stores: make(map[model.FileKey]*store),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

var pathReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_")

// Path returns the store file for rec. Stores are keyed by code, market and
// month only: once a key has been touched, its path is fixed for the life of
// the Sink, and a later record with a different name for the same key goes
// to that same file.
func (s *Sink) Path(rec model.CanonicalRecord) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.stores[rec.Key()]; ok {
		return st.path
	}
	return s.pathFor(rec)
}

func (s *Sink) pathFor(rec model.CanonicalRecord) string {
	dir := pathReplacer.Replace(rec.Code) + "_" + pathReplacer.Replace(rec.Name) + "_" + rec.Market.Tag()
	return filepath.Join(s.root, dir, rec.Key().YearMonth+".csv")
}

func (s *Sink) lookup(rec model.CanonicalRecord) (*store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	key := rec.Key()
	st, ok := s.stores[key]
	if !ok {
		st = &store{path: s.pathFor(rec)}
		s.stores[key] = st
	}
	return st, nil
}

// Write appends rec to its store unless the store already holds rec's date.
// It reports whether a row was appended.
func (s *Sink) Write(rec model.CanonicalRecord) (bool, error) {
	st, err := s.lookup(rec)
	if err != nil {
		return false, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.closed {
		return false, ErrClosed
	}

	if !st.opened {
		st.opened = true
		existing, err := st.open()
		if err != nil {
			st.err = fmt.Errorf("store %s: %w", st.path, err)
			s.logger.Error("store unavailable", "path", st.path, "error", err)
		} else {
			s.logger.Debug("store opened", "path", st.path, "existing_dates", existing)
		}
	}

	if st.err != nil {
		s.errors.Add(1)
		return false, st.err
	}

	if _, dup := st.dates[rec.Date]; dup {
		s.duplicates.Add(1)
		return false, nil
	}

	if err := st.append(rec.Row()); err != nil {
		st.err = fmt.Errorf("store %s: append: %w", st.path, err)
		s.logger.Error("store write failed", "path", st.path, "error", err)
		s.errors.Add(1)
		return false, st.err
	}

	st.dates[rec.Date] = struct{}{}
	s.written.Add(1)
	return true, nil
}

// Close flushes and closes every open store. Later writes return ErrClosed.
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	stores := make([]*store, 0, len(s.stores))
	for _, st := range s.stores {
		stores = append(stores, st)
	}
	s.mu.Unlock()

	var errs []error
	for _, st := range stores {
		st.mu.Lock()
		errs = append(errs, st.close())
		st.mu.Unlock()
	}

	s.logger.Info("sink closed",
		"stores", len(stores),
		"written", s.written.Load(),
		"duplicates", s.duplicates.Load(),
	)
	return errors.Join(errs...)
}

// Stats returns current counters.
func (s *Sink) Stats() Stats {
	s.mu.Lock()
	n := len(s.stores)
	s.mu.Unlock()

	return Stats{
		Written:    s.written.Load(),
		Duplicates: s.duplicates.Load(),
		Errors:     s.errors.Load(),
		Stores:     n,
	}
}
