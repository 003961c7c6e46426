package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevelEnvVar selects the log level when no level is passed to
// Initialize. Unset or "off" keeps the CLI silent.
const LogLevelEnvVar = "SWITCHER_LOG_LEVEL"

var logger = zap.NewNop()

// Initialize replaces the global logger. level is one of debug, info, warn
// or error; an empty level falls back to SWITCHER_LOG_LEVEL.
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" || level == "off" {
		logger = zap.NewNop()
		return nil
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: use debug, info, warn, error or off", level)
	}

	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeCaller = zapcore.ShortCallerEncoder

	// stdout carries command output (and --json), so logs go to stderr
	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Encoding:         "console",
		EncoderConfig:    enc,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	built, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = built
	return nil
}

// InitializeFromEnv initializes the logger from SWITCHER_LOG_LEVEL only.
func InitializeFromEnv() error {
	return Initialize("")
}

// GetLogger returns the global logger. It is a no-op logger until
// Initialize succeeds.
func GetLogger() *zap.Logger { return logger }

func enabled(l zapcore.Level) bool { return logger.Core().Enabled(l) }

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) { logger.Debug(msg, fields...) }

// Info logs an info message
func Info(msg string, fields ...zap.Field) { logger.Info(msg, fields...) }

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) { logger.Warn(msg, fields...) }

// Error logs an error message
func Error(msg string, fields ...zap.Field) { logger.Error(msg, fields...) }

// Sync flushes buffered entries. Errors from syncing a terminal are ignored.
func Sync() {
	_ = logger.Sync()
}
