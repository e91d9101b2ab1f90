package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// TestLogger captures JSON log lines for assertions.
type TestLogger struct {
	Logger *zerolog.Logger

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewTestLogger creates a trace level logger writing into memory.
func NewTestLogger(t testing.TB) *TestLogger {
	t.Helper()
	tl := &TestLogger{}
	logger := zerolog.New(tl).Level(zerolog.TraceLevel)
	tl.Logger = &logger
	return tl
}

// Write implements io.Writer; cycles log from several goroutines.
func (tl *TestLogger) Write(p []byte) (int, error) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.buf.Write(p)
}

// Output returns everything logged so far.
func (tl *TestLogger) Output() string {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.buf.String()
}

// Lines returns one string per log line.
func (tl *TestLogger) Lines() []string {
	out := strings.TrimSpace(tl.Output())
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// Entries decodes every line. Lines that are not JSON are skipped.
func (tl *TestLogger) Entries() []map[string]any {
	var entries []map[string]any
	for _, line := range tl.Lines() {
		var e map[string]any
		if json.Unmarshal([]byte(line), &e) == nil {
			entries = append(entries, e)
		}
	}
	return entries
}

// Find returns the first entry with the given message.
func (tl *TestLogger) Find(message string) (map[string]any, bool) {
	for _, e := range tl.Entries() {
		if e[zerolog.MessageFieldName] == message {
			return e, true
		}
	}
	return nil, false
}

// AssertContains fails the test unless the output contains substr.
func (tl *TestLogger) AssertContains(t testing.TB, substr string) {
	t.Helper()
	if !strings.Contains(tl.Output(), substr) {
		t.Errorf("log output does not contain %q\n%s", substr, tl.Output())
	}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}
