package logger

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/Brandon-Parker9/fractal/types"
)

// TestLogger implements types.Logger using testing.TB for output,
// so log messages appear next to the failing assertion.
type TestLogger struct {
	tb testing.TB
}

// Compile-time assertion that TestLogger implements Logger.
var _ types.Logger = (*TestLogger)(nil)

// NewTest creates a new test logger that writes through tb.Logf.
//
// Example:
//
//	func TestSomething(t *testing.T) {
//	    logger := NewTest(t)
//	    logger.Info("rank started", "rank", 1)
//	}
func NewTest(tb testing.TB) *TestLogger {
	return &TestLogger{tb: tb}
}

// Debug logs a debug-level message with optional key-value pairs.
func (l *TestLogger) Debug(msg string, keysAndValues ...any) {
	l.tb.Logf("DEBUG: %s %s", msg, formatKeyValues(keysAndValues))
}

// Info logs an info-level message with optional key-value pairs.
func (l *TestLogger) Info(msg string, keysAndValues ...any) {
	l.tb.Logf("INFO: %s %s", msg, formatKeyValues(keysAndValues))
}

// Warn logs a warning-level message with optional key-value pairs.
func (l *TestLogger) Warn(msg string, keysAndValues ...any) {
	l.tb.Logf("WARN: %s %s", msg, formatKeyValues(keysAndValues))
}

// Error logs an error-level message with optional key-value pairs.
func (l *TestLogger) Error(msg string, keysAndValues ...any) {
	l.tb.Logf("ERROR: %s %s", msg, formatKeyValues(keysAndValues))
}

// Fatal logs a fatal-level message and fails the test.
func (l *TestLogger) Fatal(msg string, keysAndValues ...any) {
	l.tb.Fatalf("FATAL: %s %s", msg, formatKeyValues(keysAndValues))
}

// Entry is one message captured by a Recorder.
type Entry struct {
	Level   string
	Message string
	Fields  []any
}

// Recorder captures log entries for assertions. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

var _ types.Logger = (*Recorder)(nil)

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Entries returns a copy of the captured entries.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)

	return out
}

// Messages returns the captured messages of one level ("DEBUG", "INFO", "WARN", "ERROR", "FATAL").
func (r *Recorder) Messages(level string) []string {
	var out []string
	for _, e := range r.Entries() {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}

	return out
}

func (r *Recorder) record(level, msg string, keysAndValues []any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, Entry{Level: level, Message: msg, Fields: keysAndValues})
}

// Debug records a debug entry.
func (r *Recorder) Debug(msg string, keysAndValues ...any) { r.record("DEBUG", msg, keysAndValues) }

// Info records an info entry.
func (r *Recorder) Info(msg string, keysAndValues ...any) { r.record("INFO", msg, keysAndValues) }

// Warn records a warning entry.
func (r *Recorder) Warn(msg string, keysAndValues ...any) { r.record("WARN", msg, keysAndValues) }

// Error records an error entry.
func (r *Recorder) Error(msg string, keysAndValues ...any) { r.record("ERROR", msg, keysAndValues) }

// Fatal records a fatal entry without exiting.
func (r *Recorder) Fatal(msg string, keysAndValues ...any) { r.record("FATAL", msg, keysAndValues) }

// formatKeyValues formats key-value pairs for logging.
func formatKeyValues(keysAndValues []any) string {
	if len(keysAndValues) == 0 {
		return ""
	}

	var sb strings.Builder
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			fmt.Fprintf(&sb, "%v=%v ", keysAndValues[i], keysAndValues[i+1])
		} else {
			fmt.Fprintf(&sb, "%v=<missing> ", keysAndValues[i])
		}
	}

	return strings.TrimSuffix(sb.String(), " ")
}
