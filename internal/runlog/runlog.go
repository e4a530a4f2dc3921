package runlog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// SubjectSystem is the subject for run-level events not tied to an instrument.
const SubjectSystem = "SYSTEM"

// FileName returns the run log file name for the calendar day of t.
func FileName(t time.Time) string {
	return t.Format("2006-01-02") + ".txt"
}

// Log appends events to one day's run log. Safe for concurrent use.
type Log struct {
	path   string
	out    *lumberjack.Logger
	logger *slog.Logger
}

// Open creates dir and the log file for the day of now if needed, and
// returns a Log appending to it.
func Open(dir string, now time.Time) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run log dir: %w", err)
	}

	path := filepath.Join(dir, FileName(now))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create run log: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("create run log: %w", err)
	}

	out := &lumberjack.Logger{
		Filename:  path,
		MaxSize:   100,
		LocalTime: true,
	}
	handler := slog.NewTextHandler(out, &slog.HandlerOptions{
		ReplaceAttr: dropLevel,
	})

	return &Log{
		path:   path,
		out:    out,
		logger: slog.New(handler),
	}, nil
}

// dropLevel removes the level attribute; every run-log line is an event.
func dropLevel(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.LevelKey {
		return slog.Attr{}
	}
	return a
}

// Path returns the file the log appends to.
func (l *Log) Path() string {
	return l.path
}

// Append writes one event line.
func (l *Log) Append(subject, category, message string) {
	l.logger.Info(message, "subject", subject, "category", category)
}

// Close closes the underlying file.
func (l *Log) Close() error {
	return l.out.Close()
}
