// Package log provides a structured logging interface for ssvae training and inference.
//
// The Logger interface is slog-compatible so that any backend can be plugged in;
// the default backend is zerolog (see zerolog.go). Components obtain a named logger
// and attach the standard attribute keys from attributes.go:
//
//	logger := log.GetLoggerWithName("ssvae.train")
//	logger.Info("Epoch finished",
//	    log.EpochKey, 3,
//	    log.LossKey, 41.2,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are alternating key/value pairs. Error additionally accepts an error
// value as its first field; backends attach its stack trace when available.
type Logger interface {
	// Debug logs detailed diagnostic information, such as per-layer shapes.
	Debug(msg string, fields ...any)

	// Info logs general operational information about training progress.
	Info(msg string, fields ...any)

	// Warn logs potentially problematic situations that do not stop training.
	Warn(msg string, fields ...any)

	// Error logs error conditions. If the first field is an error, it is
	// rendered under the "error" key together with its stack trace.
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4 // Detailed diagnostic information
	LevelInfo  Level = 0  // General operational information
	LevelWarn  Level = 4  // Warning conditions
	LevelError Level = 8  // Error conditions
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider defines an interface for creating and configuring loggers.
// Tests swap the process-wide provider with SetProvider.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger with a specific name/component identifier.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
