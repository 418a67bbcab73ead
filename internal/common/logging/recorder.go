package logging

import (
	"context"
	"strings"
	"sync"
)

// Entry is a single log line captured by a Recorder
type Entry struct {
	Level   LogLevel
	Message string
	Err     error
	Fields  map[string]interface{}
}

// Recorder is an in-memory Logger used by tests to assert on emitted warnings
type Recorder struct {
	mu      *sync.Mutex
	entries *[]Entry
	fields  []Field
}

// NewRecorder creates an empty Recorder
func NewRecorder() *Recorder {
	return &Recorder{
		mu:      &sync.Mutex{},
		entries: &[]Entry{},
	}
}

func (r *Recorder) record(level LogLevel, msg string, err error, fields []Field) {
	all := make(map[string]interface{}, len(r.fields)+len(fields))
	for _, f := range r.fields {
		all[f.Key] = f.Value
	}
	for _, f := range fields {
		all[f.Key] = f.Value
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	*r.entries = append(*r.entries, Entry{Level: level, Message: msg, Err: err, Fields: all})
}

func (r *Recorder) Debug(msg string, fields ...Field) { r.record(DebugLevel, msg, nil, fields) }
func (r *Recorder) Info(msg string, fields ...Field)  { r.record(InfoLevel, msg, nil, fields) }
func (r *Recorder) Warn(msg string, fields ...Field)  { r.record(WarnLevel, msg, nil, fields) }

func (r *Recorder) Error(msg string, err error, fields ...Field) {
	r.record(ErrorLevel, msg, err, fields)
}

// WithFields returns a child Recorder sharing the same entry buffer
func (r *Recorder) WithFields(fields ...Field) Logger {
	merged := make([]Field, 0, len(r.fields)+len(fields))
	merged = append(merged, r.fields...)
	merged = append(merged, fields...)
	return &Recorder{mu: r.mu, entries: r.entries, fields: merged}
}

func (r *Recorder) WithContext(ctx context.Context) Logger {
	return r.WithFields(contextFields(ctx)...)
}

// Entries returns a snapshot of everything recorded so far
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(*r.entries))
	copy(out, *r.entries)
	return out
}

// Messages returns the messages recorded at the given level
func (r *Recorder) Messages(level LogLevel) []string {
	var out []string
	for _, e := range r.Entries() {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

// HasMessage reports whether any entry at level contains substr
func (r *Recorder) HasMessage(level LogLevel, substr string) bool {
	for _, m := range r.Messages(level) {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

// Reset drops all recorded entries
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.entries = (*r.entries)[:0]
}
