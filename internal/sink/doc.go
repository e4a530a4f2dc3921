// Package sink persists canonical records into append-only monthly CSV stores.
//
// Layout:
//
//	<root>/<code>_<name>_<market tag>/<YYYYMM>.csv
//
// Each store is UTF-8 with a byte-order mark and a fixed localized header.
// A date is written at most once per store: on first touch of an existing
// store its date column is scanned once to seed the in-memory index, and every
// later write checks and appends under that store's own lock. Stores for
// different keys are written concurrently.
//
// Rows are never rewritten, reordered or deleted.
package sink
