package cascade

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with cascade-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithLevelCount adds a priority-level count field to the logger.
func (l *Logger) WithLevelCount(levels int) *Logger {
	return &Logger{
		Logger: l.Logger.With("levels", levels),
	}
}

// LogIteration logs one solver iteration.
func (l *Logger) LogIteration(iter int, squaredNorm, sigma, alpha float64) {
	l.Debug("iteration completed",
		"iter", iter,
		"squared_norm", squaredNorm,
		"sigma", sigma,
		"alpha", alpha,
	)
}

// LogSolve logs the outcome of a solve call.
func (l *Logger) LogSolve(status Status, iterations int, squaredNorm float64) {
	if status == StatusSuccess {
		l.Debug("solve converged",
			"iterations", iterations,
			"squared_norm", squaredNorm,
		)
	} else {
		l.Info("solve did not converge",
			"status", status.String(),
			"iterations", iterations,
			"squared_norm", squaredNorm,
		)
	}
}
