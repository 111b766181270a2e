// internal/trace/sink.go
package trace

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// TimestampLayout is the layout of the timestamp that prefixes every trace line
const TimestampLayout = "2006.01.02 15:04:05"

// FilePrefix is the name prefix of the daily trace files
const FilePrefix = "aac_io_log_"

// Entry is one recorded trace line
type Entry struct {
	Timestamp time.Time
	Message   string
}

// String renders the entry the way it is written to the trace file
func (e Entry) String() string {
	return e.Timestamp.Format(TimestampLayout) + " " + e.Message
}

// Sink is an append-only, in-memory log of instrument I/O held for one
// session. Recording is enabled only when the sink has a directory.
type Sink struct {
	directory string
	entries   []Entry
	now       func() time.Time
}

// Option configures a Sink
type Option func(*Sink)

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(s *Sink) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSink creates a sink. An empty directory yields a disabled sink.
func NewSink(directory string, opts ...Option) *Sink {
	s := &Sink{
		directory: directory,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether Record stores anything
func (s *Sink) Enabled() bool {
	return s.directory != ""
}

// Directory returns the configured log directory
func (s *Sink) Directory() string {
	return s.directory
}

// SetDirectory enables (or, with "", disables) recording for the next session
func (s *Sink) SetDirectory(directory string) {
	s.directory = directory
}

// Record appends a message stamped with the current time
func (s *Sink) Record(msg string) {
	if !s.Enabled() {
		return
	}
	s.entries = append(s.entries, Entry{Timestamp: s.now(), Message: msg})
}

// Recordf is Record with formatting
func (s *Sink) Recordf(format string, args ...any) {
	if !s.Enabled() {
		return
	}
	s.Record(fmt.Sprintf(format, args...))
}

// Entries returns a copy of the pending entries
func (s *Sink) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Lines returns the pending entries rendered as trace lines
func (s *Sink) Lines() []string {
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.String()
	}
	return out
}

// Len returns the number of pending entries
func (s *Sink) Len() int {
	return len(s.entries)
}

// Clear drops all pending entries
func (s *Sink) Clear() {
	s.entries = nil
}

// FileName returns the trace file name for the given day
func FileName(day time.Time) string {
	return FilePrefix + day.Format("20060102") + ".txt"
}

// FlushToFile appends every pending entry to the daily file in directory and
// clears the sink. The file is never truncated, so sessions of the same day
// share one file.
func (s *Sink) FlushToFile(directory string) (string, error) {
	if err := os.MkdirAll(directory, 0755); err != nil {
		return "", fmt.Errorf("failed to create trace directory: %w", err)
	}

	path := filepath.Join(directory, FileName(s.now()))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to open trace file: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, e := range s.entries {
		if _, err := w.WriteString(e.String() + lineEnding()); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write trace file: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write trace file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close trace file: %w", err)
	}

	s.Clear()
	return path, nil
}

func lineEnding() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}
