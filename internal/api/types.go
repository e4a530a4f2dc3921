package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ListedResponse from GET /rwd/zh/afterTrading/STOCK_DAY
type ListedResponse struct {
	Stat   string   `json:"stat"`
	Date   string   `json:"date"`
	Title  string   `json:"title"`
	Fields []string          `json:"fields"`
	Data   []json.RawMessage `json:"data"` // Decoded row by row; see decodeRows
}

// OTCResponse from POST /www/zh-tw/afterTrading/tradingStock
type OTCResponse struct {
	Stat   string     `json:"stat"`
	Date   string     `json:"date"`
	Code   string     `json:"code"`
	Name   string     `json:"name"`
	Tables []OTCTable `json:"tables"`
}

// OTCTable is one table of an OTC response. Volume and turnover are in thousands.
type OTCTable struct {
	Title      string            `json:"title"`
	Date       string            `json:"date"`
	Fields     []string          `json:"fields"`
	Data       []json.RawMessage `json:"data"`
	TotalCount int               `json:"totalCount"`
}

// Row is one positional data row:
// date, volume, turnover, open, high, low, close, change, transactions.
// Cells may arrive as JSON strings or numbers; both decode to their text.
type Row []string

func (r *Row) UnmarshalJSON(b []byte) error {
	var cells []json.RawMessage
	if err := json.Unmarshal(b, &cells); err != nil {
		return err
	}

	row := make(Row, len(cells))
	for i, cell := range cells {
		cell = bytes.TrimSpace(cell)
		switch {
		case len(cell) == 0, bytes.Equal(cell, []byte("null")):
			row[i] = ""
		case cell[0] == '"':
			var s string
			if err := json.Unmarshal(cell, &s); err != nil {
				return fmt.Errorf("cell %d: %w", i, err)
			}
			row[i] = strings.TrimSpace(s)
		case cell[0] == '[' || cell[0] == '{':
			return fmt.Errorf("cell %d: unexpected %s", i, cell)
		default:
			row[i] = string(cell)
		}
	}

	*r = row
	return nil
}

// decodeRows converts each raw row on its own. A row that is not a flat
// array is passed on as a single cell holding its JSON text, so the
// normalizer rejects it as short without dropping its siblings.
func decodeRows(raw []json.RawMessage) [][]string {
	out := make([][]string, len(raw))
	for i, msg := range raw {
		var r Row
		if err := json.Unmarshal(msg, &r); err != nil {
			out[i] = []string{string(bytes.TrimSpace(msg))}
			continue
		}
		out[i] = []string(r)
	}
	return out
}
