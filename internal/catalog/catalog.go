package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rickgao/twstock-daily/internal/model"
)

// entry is one catalog row as written by the listing scraper.
type entry struct {
	Code     string `json:"代碼"`
	Name     string `json:"名稱"`
	Market   string `json:"市場"`
	Category string `json:"類別"`
}

// Load reads and parses the catalog file at path.
func Load(path string, logger *slog.Logger) ([]model.Instrument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	instruments, err := Parse(f, logger)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return instruments, nil
}

// Parse decodes a catalog document. It fails only when the document itself
// is unreadable; bad entries are skipped.
func Parse(r io.Reader, logger *slog.Logger) ([]model.Instrument, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var entries []entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	type key struct {
		market model.Market
		code   string
	}
	seen := make(map[key]struct{}, len(entries))
	instruments := make([]model.Instrument, 0, len(entries))

	for i, e := range entries {
		code := strings.TrimSpace(e.Code)
		if code == "" {
			logger.Warn("skipping catalog entry without code", "index", i, "name", e.Name)
			continue
		}

		market, err := model.ParseMarket(e.Market)
		if err != nil {
			logger.Warn("skipping catalog entry", "index", i, "code", code, "error", err)
			continue
		}

		k := key{market, code}
		if _, dup := seen[k]; dup {
			logger.Debug("duplicate catalog entry", "code", code, "category", e.Category)
			continue
		}
		seen[k] = struct{}{}

		instruments = append(instruments, model.Instrument{
			Code:     code,
			Name:     strings.TrimSpace(e.Name),
			Market:   market,
			Category: strings.TrimSpace(e.Category),
		})
	}

	return instruments, nil
}

// Count returns the number of instruments per market.
func Count(instruments []model.Instrument) map[model.Market]int {
	counts := make(map[model.Market]int)
	for _, inst := range instruments {
		counts[inst.Market]++
	}
	return counts
}
