package fetcher

import (
	"sort"
	"sync"
	"time"
)

// Failure describes one instrument that contributed no records.
type Failure struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Market   string `json:"market"`
	Category string `json:"category"`
	Reason   string `json:"reason"`
}

// Summary reports the outcome of one run.
type Summary struct {
	RunID      string    `json:"run_id"`
	Day        string    `json:"day"` // YYYYMMDD requested from both upstreams
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
	Attempted  int       `json:"attempted"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"` // Never dispatched because the run was cancelled
	Records    int       `json:"records"`
	Written    int       `json:"written"`
	Duplicates int       `json:"duplicates"`
	Rejected   int       `json:"rejected"`
	SinkErrors int       `json:"sink_errors"`
	Failures   []Failure `json:"failures"`
}

// tally accumulates a Summary from concurrent workers.
type tally struct {
	mu sync.Mutex
	s  Summary
}

func newTally(runID string, day, started time.Time) *tally {
	return &tally{s: Summary{
		RunID:    runID,
		Day:      day.Format("20060102"),
		Started:  started,
		Failures: []Failure{},
	}}
}

func (t *tally) attempt() {
	t.mu.Lock()
	t.s.Attempted++
	t.mu.Unlock()
}

func (t *tally) succeed() {
	t.mu.Lock()
	t.s.Succeeded++
	t.mu.Unlock()
}

func (t *tally) skip(n int) {
	t.mu.Lock()
	t.s.Skipped += n
	t.mu.Unlock()
}

func (t *tally) fail(f Failure) {
	t.mu.Lock()
	t.s.Failed++
	t.s.Failures = append(t.s.Failures, f)
	t.mu.Unlock()
}

func (t *tally) records(records, written, duplicates, rejected, sinkErrors int) {
	t.mu.Lock()
	t.s.Records += records
	t.s.Written += written
	t.s.Duplicates += duplicates
	t.s.Rejected += rejected
	t.s.SinkErrors += sinkErrors
	t.mu.Unlock()
}

func (t *tally) summary(finished time.Time) Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.s
	s.Finished = finished
	s.Failures = append([]Failure{}, t.s.Failures...)
	sort.Slice(s.Failures, func(i, j int) bool {
		if s.Failures[i].Market != s.Failures[j].Market {
			return s.Failures[i].Market < s.Failures[j].Market
		}
		return s.Failures[i].Code < s.Failures[j].Code
	})
	return s
}
