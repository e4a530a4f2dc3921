// Package runner wires one ingest run together.
//
// A run loads the instrument catalog, opens the day's run log, builds the
// upstream client (optionally behind a validated endpoint pool), and drives
// the fetcher over the catalog into the dedup sink. Only an unreadable
// catalog or run-log directory aborts a run; every per-instrument problem is
// reported in the returned summary and the run log.
package runner
