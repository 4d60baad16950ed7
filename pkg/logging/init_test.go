package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestInitialize(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	tests := []struct {
		name      string
		logType   string
		level     string
		wantError bool
	}{
		{"json/info", JSON, "info", false},
		{"text/debug", Text, "debug", false},
		{"tint/warn", Tint, "warn", false},
		{"json/error", JSON, "error", false},
		{"invalid level", JSON, "bogus", true},
		{"unknown type", "unknown", "info", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := Initialize(&buf, tt.logType, tt.level)
			if (err != nil) != tt.wantError {
				t.Errorf("Initialize(%q, %q) error = %v, wantError = %v", tt.logType, tt.level, err, tt.wantError)
			}
		})
	}
}

func TestNewHandler_WritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	h, err := NewHandler(&buf, JSON, "info")
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(h)
	logger.Debug("hidden")
	logger.Info("step finished", "step", "lint")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["msg"] != "step finished" || rec["step"] != "lint" {
		t.Errorf("unexpected record: %v", rec)
	}
}
