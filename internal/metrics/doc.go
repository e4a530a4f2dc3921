// Package metrics provides Prometheus metrics for monitoring an ingest run.
//
// Key metrics:
//   - Upstream request counts, latencies and retries per market
//   - Endpoint block signals from the rotation pool
//   - Instrument outcomes and record dispositions (written, duplicate, rejected)
//   - Adaptive per-host delay and circuit breaker state
//
// All recording methods are safe to call on a nil *Metrics.
package metrics
