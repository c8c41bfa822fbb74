// Package log provides the structured logging interface used across genopredict.
//
// The interface is deliberately slog-shaped (message plus alternating
// key/value fields) so that call sites stay backend-agnostic. The default
// backend is zerolog; tests swap in a TestLogger that captures JSON lines in
// memory.
//
// Example usage:
//
//	logger := log.GetLoggerWithName("gblup").With(
//	    log.ModelKindKey, "me_gblup",
//	    log.FocalEnvKey, "Ithaca_2021_GS1",
//	)
//	logger.Info("fit completed",
//	    log.OperationKey, log.OperationFit,
//	    log.TrainObservationsKey, 812,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// With returns a child logger whose fields are attached to every subsequent
// record, which is how per-pair context (protocol, focal environment, run id)
// is threaded through the evaluation loop.
type Logger interface {
	// Debug logs a debug-level message with optional structured fields.
	//
	// Example:
	//   logger.Debug("standardized marker block",
	//       "from", 0,
	//       "to", 512,
	//   )
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional structured fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional structured fields.
	// Partition fallbacks and solver fallbacks are reported at this level.
	Warn(msg string, fields ...any)

	// Error logs an error-level message with optional structured fields.
	// If the first field is an error it is attached under the "error" key
	// and, when it carries a cockroachdb stack, under StacktraceKey.
	//
	// Example:
	//   logger.Error("pair failed",
	//       err,
	//       log.ProtocolKey, "CV00",
	//   )
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	//
	// Example:
	//   if logger.Enabled(ctx, LevelDebug) {
	//       logger.Debug("diagonal", "values", rel.Diagonal())
	//   }
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
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
