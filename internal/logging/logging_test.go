package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"", zap.InfoLevel},
		{"debug", zap.DebugLevel},
		{" WARN ", zap.WarnLevel},
		{"error", zap.ErrorLevel},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Fatalf("ParseLevel(%q) returned error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if _, err := ParseLevel("chatty"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNewFileLogger_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "gridwatch.log")
	logger, closeFn, err := NewFileLogger(path, zap.InfoLevel)
	if err != nil {
		t.Fatalf("NewFileLogger returned error: %v", err)
	}
	logger.Named("query").Info("fetch completed", zap.String("key", `["power-usage"]`))
	logger.Debug("filtered out")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), data)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if rec[LevelKey] != "info" || rec[NameKey] != "query" || rec[MessageKey] != "fetch completed" {
		t.Fatalf("record = %v", rec)
	}
	if _, ok := rec[TimeKey]; !ok {
		t.Fatalf("record missing %q", TimeKey)
	}
}

func TestNewFileLogger_EmptyPathIsNop(t *testing.T) {
	logger, closeFn, err := NewFileLogger("  ", zap.DebugLevel)
	if err != nil {
		t.Fatalf("NewFileLogger returned error: %v", err)
	}
	logger.Info("discarded")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
