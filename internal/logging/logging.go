// Package logging provides the application logger, backed by kataras/golog.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kataras/golog"
)

// Logger is the logging interface used across the service.
type Logger interface {
	Debug(format string, v ...any)
	Info(format string, v ...any)
	Warn(format string, v ...any)
	Error(format string, v ...any)
}

// Options configures the golog-backed logger.
type Options struct {
	// Level is one of debug, info, warn, error, disable.
	Level string
	// TimeFormat is a Go time layout for log timestamps.
	TimeFormat string
	// File, when non-empty, receives a copy of every log line in addition
	// to stderr. The parent directory must already exist.
	File string
}

// GologLogger implements Logger using kataras/golog.
type GologLogger struct {
	logger *golog.Logger
	closer io.Closer
}

var _ Logger = (*GologLogger)(nil)

// New creates a configured logger. An unknown level falls back to info.
func New(opts Options) (*GologLogger, error) {
	logger := golog.New()
	logger.SetLevel(normalizeLevel(opts.Level))
	if opts.TimeFormat != "" {
		logger.SetTimeFormat(opts.TimeFormat)
	}

	l := &GologLogger{logger: logger}

	if opts.File != "" {
		f, err := os.OpenFile(filepath.Clean(opts.File), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		logger.AddOutput(f)
		l.closer = f
	}

	return l, nil
}

// Debug logs a debug message.
func (l *GologLogger) Debug(format string, v ...any) { l.logger.Debugf(format, v...) }

// Info logs an informational message.
func (l *GologLogger) Info(format string, v ...any) { l.logger.Infof(format, v...) }

// Warn logs a warning message.
func (l *GologLogger) Warn(format string, v ...any) { l.logger.Warnf(format, v...) }

// Error logs an error message.
func (l *GologLogger) Error(format string, v ...any) { l.logger.Errorf(format, v...) }

// Close releases the log file, if one was opened.
func (l *GologLogger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

func normalizeLevel(level string) string {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error", "fatal", "disable":
		return strings.ToLower(level)
	case "warning":
		return "warn"
	default:
		return "info"
	}
}

// NoOpLogger discards all messages. Useful in tests.
type NoOpLogger struct{}

var _ Logger = (*NoOpLogger)(nil)

// Debug does nothing.
func (NoOpLogger) Debug(format string, v ...any) {}

// Info does nothing.
func (NoOpLogger) Info(format string, v ...any) {}

// Warn does nothing.
func (NoOpLogger) Warn(format string, v ...any) {}

// Error does nothing.
func (NoOpLogger) Error(format string, v ...any) {}
