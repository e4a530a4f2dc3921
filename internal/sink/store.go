package sink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Header is the fixed column set of every store.
var Header = []string{
	"股票代號", "股票名稱", "日期",
	"成交股數", "成交金額",
	"開盤價", "最高價", "最低價", "收盤價",
	"漲跌價差", "成交筆數",
}

const (
	dateColumn       = "日期"
	defaultDateIndex = 2
)

// store is one open CSV file and its date index.
type store struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	csv    *csv.Writer
	dates  map[string]struct{}
	opened bool
	closed bool
	err    error // Sticky; set once the store fails
}

// open performs first-touch: create with header, or scan existing dates.
func (st *store) open() (existing int, err error) {
	if err := os.MkdirAll(filepath.Dir(st.path), 0o755); err != nil {
		return 0, fmt.Errorf("create store dir: %w", err)
	}

	info, err := os.Stat(st.path)
	switch {
	case errors.Is(err, fs.ErrNotExist), err == nil && info.Size() == 0:
		return 0, st.create()
	case err != nil:
		return 0, fmt.Errorf("stat store: %w", err)
	}

	dates, err := ScanDates(st.path)
	if err != nil {
		return 0, err
	}

	f, err := os.OpenFile(st.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open store: %w", err)
	}
	if err := terminateLastLine(f, st.path); err != nil {
		f.Close()
		return 0, err
	}

	st.file = f
	st.csv = csv.NewWriter(f)
	st.dates = dates
	return len(dates), nil
}

func (st *store) create() error {
	f, err := os.OpenFile(st.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}

	bom := transform.NewWriter(f, unicode.UTF8BOM.NewEncoder())
	hw := csv.NewWriter(bom)
	if err := hw.Write(Header); err != nil {
		f.Close()
		return fmt.Errorf("write header: %w", err)
	}
	hw.Flush()
	if err := hw.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write header: %w", err)
	}
	if err := bom.Close(); err != nil {
		f.Close()
		return fmt.Errorf("write header: %w", err)
	}

	st.file = f
	st.csv = csv.NewWriter(f)
	st.dates = make(map[string]struct{})
	return nil
}

// terminateLastLine appends a newline if the file does not end with one, so
// the next row starts on its own line.
func terminateLastLine(f *os.File, path string) error {
	r, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer r.Close()

	if _, err := r.Seek(-1, io.SeekEnd); err != nil {
		return fmt.Errorf("seek store: %w", err)
	}
	last := make([]byte, 1)
	if _, err := io.ReadFull(r, last); err != nil {
		return fmt.Errorf("read store: %w", err)
	}
	if last[0] == '\n' {
		return nil
	}
	if _, err := f.Write([]byte("\n")); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	return nil
}

// append writes one row and flushes it to the file.
func (st *store) append(row []string) error {
	if err := st.csv.Write(row); err != nil {
		return err
	}
	st.csv.Flush()
	return st.csv.Error()
}

func (st *store) close() error {
	st.closed = true
	if st.file == nil {
		return nil
	}
	st.csv.Flush()
	err := errors.Join(st.csv.Error(), st.file.Close())
	st.file = nil
	if err != nil {
		return fmt.Errorf("close %s: %w", st.path, err)
	}
	return nil
}

// ScanFile returns the date column of every data row in a store, in file
// order. The header row is located by its date column name; a file without
// one is read with the default column position and no header.
func ScanFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(transform.NewReader(f, unicode.UTF8BOM.NewDecoder()))
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	var dates []string
	idx := -1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", path, err)
		}

		if idx < 0 {
			idx = defaultDateIndex
			if i := indexOf(rec, dateColumn); i >= 0 {
				idx = i
				continue
			}
		}

		if idx < len(rec) {
			if d := strings.TrimSpace(rec[idx]); d != "" {
				dates = append(dates, d)
			}
		}
	}
	return dates, nil
}

// ScanDates returns the set of dates present in a store.
func ScanDates(path string) (map[string]struct{}, error) {
	list, err := ScanFile(path)
	if err != nil {
		return nil, err
	}
	dates := make(map[string]struct{}, len(list))
	for _, d := range list {
		dates[d] = struct{}{}
	}
	return dates, nil
}

func indexOf(rec []string, name string) int {
	for i, v := range rec {
		if strings.TrimSpace(v) == name {
			return i
		}
	}
	return -1
}
