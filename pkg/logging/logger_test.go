package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func parseEntry(t *testing.T, line string) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, line)
	}
	return entry
}

func TestJSONLogger_WritesStructuredEntries(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	logger.Info("investigation completed",
		Subject("123456789012"),
		Count(42),
		Latency(15*time.Millisecond),
	)

	entry := parseEntry(t, buf.String())
	if entry["level"] != "INFO" || entry["msg"] != "investigation completed" {
		t.Errorf("unexpected entry: %v", entry)
	}
	fields := entry["fields"].(map[string]any)
	if fields["subject"] != "123456789012" {
		t.Errorf("subject field missing: %v", fields)
	}
	if fields["count"] != float64(42) {
		t.Errorf("count field wrong: %v", fields["count"])
	}
}

func TestJSONLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, WarnLevel)

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("kept")
	logger.Error("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 entries, got %d:\n%s", len(lines), buf.String())
	}
}

func TestJSONLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel).With(Component("ingest"))

	logger.Info("batch parsed", Skipped(3))

	fields := parseEntry(t, buf.String())["fields"].(map[string]any)
	if fields["component"] != "ingest" {
		t.Errorf("inherited field missing: %v", fields)
	}
	if fields["skipped"] != float64(3) {
		t.Errorf("call-site field missing: %v", fields)
	}
}

func TestJSONLogger_ErrorField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, InfoLevel)

	logger.Error("lookup failed", Error(errors.New("boom")))

	fields := parseEntry(t, buf.String())["fields"].(map[string]any)
	if fields["error"] != "boom" {
		t.Errorf("error field wrong: %v", fields)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"DEBUG", DebugLevel},
		{"debug", DebugLevel},
		{"warn", WarnLevel},
		{"WARNING", WarnLevel},
		{"error", ErrorLevel},
		{"", InfoLevel},
		{"bogus", InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	logger.Info("discarded", String("k", "v"))
	if child := logger.With(Component("x")); child == nil {
		t.Error("With must return a usable logger")
	}
}
