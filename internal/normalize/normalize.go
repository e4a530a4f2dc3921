package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rickgao/twstock-daily/internal/model"
)

// RowFields is the minimum number of positional fields in an upstream row:
// date, volume, turnover, open, high, low, close, change, transactions.
const RowFields = 9

// rocEpochOffset converts ROC era years to Gregorian years.
const rocEpochOffset = 1911

// otcUnitScale rescales OTC volume/turnover from thousands to units.
var otcUnitScale = decimal.NewFromInt(1000)

// Rejection explains why a row produced no record.
type Rejection struct {
	Reason string
	Row    []string
}

func (r *Rejection) Error() string {
	return "rejected row: " + r.Reason
}

func reject(row []string, format string, args ...any) *Rejection {
	return &Rejection{Reason: fmt.Sprintf(format, args...), Row: row}
}

// ConvertDate converts an ROC date "113/01/05" to "20240105".
func ConvertDate(s string) (string, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return "", reject(nil, "date %q: want era_year/month/day", s)
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return "", reject(nil, "date %q: non-numeric component %q", s, p)
		}
		nums[i] = n
	}

	year, month, day := nums[0]+rocEpochOffset, nums[1], nums[2]
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return "", reject(nil, "date %q: month/day out of range", s)
	}

	return fmt.Sprintf("%04d%02d%02d", year, month, day), nil
}

// StripThousands removes thousands separators ("1,234,567" -> "1234567").
func StripThousands(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ",", "")
}

// scaleThousands multiplies an integer quantity reported in thousands by 1000.
func scaleThousands(s string) (string, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", err
	}
	scaled := d.Mul(otcUnitScale)
	if !scaled.IsInteger() {
		return "", fmt.Errorf("%q is not a whole quantity after scaling", s)
	}
	return scaled.String(), nil
}

// Normalize converts one raw upstream row into a CanonicalRecord.
// A failed row returns a *Rejection.
func Normalize(market model.Market, inst model.Instrument, row []string) (model.CanonicalRecord, error) {
	if len(row) < RowFields {
		return model.CanonicalRecord{}, reject(row, "row has %d fields, want at least %d", len(row), RowFields)
	}

	date, err := ConvertDate(row[0])
	if err != nil {
		rej := err.(*Rejection)
		rej.Row = row
		return model.CanonicalRecord{}, rej
	}

	volume := StripThousands(row[1])
	turnover := StripThousands(row[2])

	switch market {
	case model.MarketListed:
	case model.MarketOTC:
		if volume, err = scaleThousands(volume); err != nil {
			return model.CanonicalRecord{}, reject(row, "volume: %v", err)
		}
		if turnover, err = scaleThousands(turnover); err != nil {
			return model.CanonicalRecord{}, reject(row, "turnover: %v", err)
		}
	default:
		return model.CanonicalRecord{}, reject(row, "unsupported market %s", market)
	}

	return model.CanonicalRecord{
		Code:         inst.Code,
		Name:         inst.Name,
		Market:       market,
		Date:         date,
		Volume:       volume,
		Turnover:     turnover,
		Open:         row[3],
		High:         row[4],
		Low:          row[5],
		Close:        row[6],
		Change:       row[7],
		Transactions: row[8],
	}, nil
}

// NormalizeRows normalizes every row of one upstream response.
// Each row yields at most one record or one rejection.
func NormalizeRows(market model.Market, inst model.Instrument, rows [][]string) ([]model.CanonicalRecord, []*Rejection) {
	records := make([]model.CanonicalRecord, 0, len(rows))
	var rejected []*Rejection

	for _, row := range rows {
		rec, err := Normalize(market, inst, row)
		if err != nil {
			rejected = append(rejected, err.(*Rejection))
			continue
		}
		records = append(records, rec)
	}

	return records, rejected
}
