package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

// TestParseLevel tests level name parsing including the fallback
func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{name: "debug", input: "debug", want: slog.LevelDebug},
		{name: "info", input: "info", want: slog.LevelInfo},
		{name: "warn", input: "warn", want: slog.LevelWarn},
		{name: "warning alias", input: "warning", want: slog.LevelWarn},
		{name: "error", input: "error", want: slog.LevelError},
		{name: "mixed case with spaces", input: "  DEBUG ", want: slog.LevelDebug},
		{name: "empty defaults to info", input: "", want: slog.LevelInfo},
		{name: "unknown defaults to info", input: "verbose", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// TestSetupJSONFormat tests that the json format emits structured records
func TestSetupJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Setup(Options{Level: "info", Format: "json", Output: &buf})

	slog.Info("hello", "key", "value")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if record["msg"] != "hello" || record["key"] != "value" {
		t.Errorf("record = %v, want msg=hello key=value", record)
	}
}

// TestSetupLevelFiltering tests that records below the level are dropped
func TestSetupLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Setup(Options{Level: "warn", Format: "text", Output: &buf})

	slog.Info("should be dropped")
	if buf.Len() != 0 {
		t.Errorf("info record was not filtered: %s", buf.String())
	}

	slog.Warn("should pass")
	if buf.Len() == 0 {
		t.Error("warn record was filtered out")
	}
}
