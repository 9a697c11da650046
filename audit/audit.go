// Package audit is the append-only structured log sink the presentation
// layer reads. Every entry is one JSON object per line with a timestamp, a
// kind, and a free-form payload. Data and error entries go to separate
// files, both size-rotated.
package audit

import (
	"encoding/json"
	"io"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Entry is the wire format of one audit record.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload"`
}

// Logger appends entries to the data and error sinks. Safe for concurrent
// use.
type Logger struct {
	mu     sync.Mutex
	data   io.Writer
	errors io.Writer
	closer []io.Closer
}

// New creates a Logger writing data.jsonl and errors.jsonl under dir,
// rotating each file at 50 MB and keeping five old copies.
func New(dir string) *Logger {
	data := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "data.jsonl"),
		MaxSize:    50,
		MaxBackups: 5,
	}
	errs := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "errors.jsonl"),
		MaxSize:    50,
		MaxBackups: 5,
	}
	return &Logger{data: data, errors: errs, closer: []io.Closer{data, errs}}
}

// NewWithWriters creates a Logger over arbitrary writers, used in tests.
func NewWithWriters(data, errors io.Writer) *Logger {
	return &Logger{data: data, errors: errors}
}

// Data appends a telemetry entry.
func (l *Logger) Data(kind string, payload map[string]any) {
	l.write(l.data, kind, payload)
}

// Error appends a failure entry.
func (l *Logger) Error(kind string, payload map[string]any) {
	l.write(l.errors, kind, payload)
}

func (l *Logger) write(w io.Writer, kind string, payload map[string]any) {
	entry := Entry{
		Timestamp: time.Now().Format(time.RFC3339Nano),
		Kind:      kind,
		Payload:   payload,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		// A payload that cannot marshal must not take the request down.
		return
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	w.Write(line)
}

// Close flushes and closes the underlying rotated files.
func (l *Logger) Close() error {
	var first error
	for _, c := range l.closer {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
