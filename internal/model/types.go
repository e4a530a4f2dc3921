package model

import (
	"fmt"
	"strings"
)

// -----------------------------------------------------------------------------
// Catalog Types
// -----------------------------------------------------------------------------

// Market identifies one of the two upstream trading venues.
type Market int

const (
	MarketUnknown Market = iota
	MarketListed         // TWSE listed equities
	MarketOTC            // TPEx over-the-counter equities
)

// Localized market tags as they appear in the catalog and in store paths.
const (
	TagListed = "上市"
	TagOTC    = "上櫃"
)

// String returns a short ASCII name, used in logs and metric labels.
func (m Market) String() string {
	switch m {
	case MarketListed:
		return "listed"
	case MarketOTC:
		return "otc"
	default:
		return "unknown"
	}
}

// Tag returns the localized market label.
func (m Market) Tag() string {
	switch m {
	case MarketListed:
		return TagListed
	case MarketOTC:
		return TagOTC
	default:
		return ""
	}
}

// ParseMarket accepts either the localized tag or the ASCII name.
func ParseMarket(s string) (Market, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case TagListed, "listed", "twse":
		return MarketListed, nil
	case TagOTC, "otc", "tpex":
		return MarketOTC, nil
	default:
		return MarketUnknown, fmt.Errorf("unknown market %q", s)
	}
}

// Instrument is one tradable equity from the external catalog. Immutable once loaded.
type Instrument struct {
	Code     string // Unique within a market (e.g., "2330")
	Name     string // Display name
	Market   Market // Listed or OTC
	Category string // Industry category, informational only
}

// Subject returns the identity used in run-log lines ("2330_TSMC").
func (i Instrument) Subject() string {
	return i.Code + "_" + i.Name
}

// -----------------------------------------------------------------------------
// Record Types
// -----------------------------------------------------------------------------

// CanonicalRecord is one instrument's trading data for one calendar date,
// normalized across both upstream markets.
type CanonicalRecord struct {
	Code         string // Instrument code
	Name         string // Instrument name
	Market       Market // Source market
	Date         string // Gregorian YYYYMMDD
	Volume       string // Shares traded
	Turnover     string // Currency units traded
	Open         string
	High         string
	Low          string
	Close        string
	Change       string // Signed price change
	Transactions string // Number of transactions
}

// Key returns the FileKey this record is persisted under.
func (r CanonicalRecord) Key() FileKey {
	return FileKey{
		Code:      r.Code,
		Market:    r.Market,
		YearMonth: YearMonth(r.Date),
	}
}

// Row returns the record as a store row, in column order.
func (r CanonicalRecord) Row() []string {
	return []string{
		r.Code, r.Name, r.Date,
		r.Volume, r.Turnover,
		r.Open, r.High, r.Low, r.Close,
		r.Change, r.Transactions,
	}
}

// FileKey identifies exactly one on-disk store: (instrument, market, year-month).
type FileKey struct {
	Code      string
	Market    Market
	YearMonth string // YYYYMM
}

func (k FileKey) String() string {
	return k.Code + "/" + k.Market.String() + "/" + k.YearMonth
}

// YearMonth returns the YYYYMM prefix of a YYYYMMDD date.
func YearMonth(date string) string {
	if len(date) < 6 {
		return date
	}
	return date[:6]
}
