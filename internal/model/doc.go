// Package model defines shared data types used across the daily ingester.
//
// Conventions:
//   - Dates: 8-digit Gregorian strings (YYYYMMDD), zero-padded
//   - Volume: shares; Turnover: currency units (both integer decimal strings)
//   - Prices and change: passed through verbatim from upstream
//   - Market tags: the localized labels used in store paths ("上市", "上櫃")
package model
