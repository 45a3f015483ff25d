// Package log holds the process-wide zap logger used by the changepoint
// command and its pipeline.
package log

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	base  *zap.Logger
	sugar *zap.SugaredLogger
)

// Init builds the package logger. Debug mode uses zap's development encoder
// at debug level; otherwise JSON at info level. Output goes to stderr so
// that reports written to stdout stay machine readable.
func Init(debug bool) error {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %w", err)
	}
	Set(logger)
	return nil
}

// Set replaces the package logger. Tests use it to install an observer.
func Set(logger *zap.Logger) {
	base = logger
	sugar = logger.Sugar()
}

// GetZapLogger returns the base logger, handed to library code that takes a
// *zap.Logger. Before Init it is a no-op logger.
func GetZapLogger() *zap.Logger {
	if base == nil {
		Set(zap.NewNop())
	}
	return base
}

// GetSugaredLogger returns the sugared form of the package logger.
func GetSugaredLogger() *zap.SugaredLogger {
	if sugar == nil {
		Set(zap.NewNop())
	}
	return sugar
}

// Sync flushes buffered entries.
func Sync() {
	if base != nil {
		_ = base.Sync()
	}
}

func Debugf(template string, args ...interface{}) {
	GetSugaredLogger().Debugf(template, args...)
}

func Infof(template string, args ...interface{}) {
	GetSugaredLogger().Infof(template, args...)
}

func Infow(msg string, keysAndValues ...interface{}) {
	GetSugaredLogger().Infow(msg, keysAndValues...)
}

func Warnf(template string, args ...interface{}) {
	GetSugaredLogger().Warnf(template, args...)
}

func Errorf(template string, args ...interface{}) {
	GetSugaredLogger().Errorf(template, args...)
}

// Fatalf logs and exits with status 1.
func Fatalf(template string, args ...interface{}) {
	GetSugaredLogger().Errorf(template, args...)
	Sync()
	os.Exit(1)
}
