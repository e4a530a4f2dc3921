// Package fetcher drives one ingest run over the instrument catalog.
//
// For each instrument it issues exactly one upstream fetch, normalizes the
// returned rows and hands the records to the sink. Listed and OTC instruments
// are dispatched alternately so neither upstream sees a long burst, with a
// global bound on instruments in flight and an optional per-host bound.
// Failures are isolated per instrument: they are logged with the instrument's
// identity and counted, and never abort the run.
package fetcher
