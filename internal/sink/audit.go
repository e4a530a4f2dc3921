package sink

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Duplicate reports a date that occurs more than once in one store.
type Duplicate struct {
	Path  string
	Date  string
	Count int
}

// AuditReport summarizes a scan of a store tree.
type AuditReport struct {
	Stores     int
	Rows       int
	Duplicates []Duplicate
	Unreadable map[string]error
}

// Audit scans every store under root and reports repeated dates. Unreadable
// stores are collected in the report and do not stop the scan.
func Audit(root string) (AuditReport, error) {
	report := AuditReport{Unreadable: make(map[string]error)}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".csv") {
			return nil
		}

		dates, err := ScanFile(path)
		if err != nil {
			report.Unreadable[path] = err
			return nil
		}
		report.Stores++
		report.Rows += len(dates)

		counts := make(map[string]int, len(dates))
		for _, date := range dates {
			counts[date]++
		}
		for date, n := range counts {
			if n > 1 {
				report.Duplicates = append(report.Duplicates, Duplicate{Path: path, Date: date, Count: n})
			}
		}
		return nil
	})

	sort.Slice(report.Duplicates, func(i, j int) bool {
		a, b := report.Duplicates[i], report.Duplicates[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Date < b.Date
	})
	return report, err
}
