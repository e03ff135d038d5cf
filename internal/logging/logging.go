// Package logging builds the zap loggers used across gridwatch. The TUI owns
// the terminal, so the dashboard logs JSON lines to a file that the activity
// pane tails back.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Encoder keys. logtail parses lines written with these.
const (
	MessageKey = "msg"
	LevelKey   = "level"
	TimeKey    = "time"
	NameKey    = "logger"
)

// ParseLevel maps a config value to a zap level. Blank means info.
func ParseLevel(s string) (zapcore.Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return zap.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return zap.InfoLevel, fmt.Errorf("parse log level %q: %w", s, err)
	}
	return lvl, nil
}

// NewLoggerWithOutput creates a JSON logger writing to output at level.
func NewLoggerWithOutput(output zapcore.WriteSyncer, level zapcore.Level) *zap.Logger {
	econf := zapcore.EncoderConfig{
		MessageKey:     MessageKey,
		LevelKey:       LevelKey,
		TimeKey:        TimeKey,
		NameKey:        NameKey,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(econf), output, level)
	return zap.New(core)
}

// NewFileLogger appends JSON lines to path, creating parent directories. An
// empty path returns a no-op logger. The returned func syncs and closes the
// file.
func NewFileLogger(path string, level zapcore.Level) (*zap.Logger, func() error, error) {
	if strings.TrimSpace(path) == "" {
		return zap.NewNop(), func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := NewLoggerWithOutput(zapcore.AddSync(f), level)
	closer := func() error {
		_ = logger.Sync()
		return f.Close()
	}
	return logger, closer, nil
}
