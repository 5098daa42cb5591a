// Package logging configures process-wide structured logging from resolved
// application properties and defines the Logger contract used by every
// launcher package.
package logging

import "log/slog"

// Logger defines the interface for application logging.
// Every launcher component logs with key-value pairs:
//
//	logger.Info("Update skipped", "url", url, "next", next)
//
// *slog.Logger satisfies it directly.
type Logger interface {
	// Info logs normal lifecycle events such as startup steps.
	Info(msg string, args ...any)

	// Error logs failures that were absorbed, e.g. a failed update attempt.
	Error(msg string, args ...any)

	// Warn logs unusual conditions that do not stop the startup sequence.
	Warn(msg string, args ...any)

	// Debug logs detailed diagnostic information.
	Debug(msg string, args ...any)
}

// LoggerKey is the attribute carrying a component logger name. Names listed
// in the logger.disabled property are filtered on this attribute.
const LoggerKey = "logger"

// Named returns a child of logger tagged with the given component name.
// Loggers that are not *slog.Logger are returned unchanged.
func Named(logger Logger, name string) Logger {
	if l, ok := logger.(*slog.Logger); ok {
		return l.With(LoggerKey, name)
	}
	return logger
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
