// Package normalize implements the Record Normalizer.
//
// It turns one positional upstream row into a model.CanonicalRecord:
//   - ROC era dates (113/01/05) become Gregorian YYYYMMDD (20240105)
//   - Thousands separators are stripped from volume and turnover
//   - OTC volume and turnover, reported in thousands, are scaled by 1000
//
// The package is pure: no I/O and no shared state. Bad rows come back as a
// *Rejection and never affect sibling rows.
package normalize
