package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Level is shared by every logger built here and can be changed at runtime.
	Level = zap.NewAtomicLevel()
	// Logger is the process-wide logger.
	Logger = zap.NewNop()
)

// Init builds the global logger writing JSON to stderr at the given level.
func Init(level string) (*zap.Logger, error) {
	if err := SetLevel(level); err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = Level
	cfg.OutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	Logger = l
	zap.ReplaceGlobals(l)
	return l, nil
}

// SetLevel accepts debug, info, warn or error. An empty level means info.
func SetLevel(level string) error {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		level = "info"
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}
	Level.SetLevel(l)
	return nil
}
