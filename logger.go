package vecboard

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/vecboard/model"
)

// Logger wraps slog.Logger with vecboard-specific context.
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
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// WithScope adds a scope field to the logger.
func (l *Logger) WithScope(scope model.Scope) *Logger {
	return &Logger{
		Logger: l.Logger.With("scope", scope.String()),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogInsert logs an insert operation.
func (l *Logger) LogInsert(ctx context.Context, scope model.Scope, id model.ItemID, dimension, projected int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "insert failed",
			"scope", scope.String(),
			"id", id,
			"dimension", dimension,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "insert completed",
			"scope", scope.String(),
			"id", id,
			"dimension", dimension,
			"projected", projected,
		)
	}
}

// LogRecompute logs a full recompute.
func (l *Logger) LogRecompute(ctx context.Context, scope model.Scope, updated int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "recompute failed",
			"scope", scope.String(),
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "recompute completed",
			"scope", scope.String(),
			"updated", updated,
		)
	}
}

// LogDropped logs a stored record excluded from a projection.
func (l *Logger) LogDropped(ctx context.Context, scope model.Scope, id model.ItemID, reason string, dimension, expected int) {
	l.WarnContext(ctx, "record excluded from projection",
		"scope", scope.String(),
		"id", id,
		"reason", reason,
		"dimension", dimension,
		"expected", expected,
	)
}

// LogProjection logs the chosen projection strategy. A fallback cause is
// logged as a warning.
func (l *Logger) LogProjection(ctx context.Context, scope model.Scope, n int, strategy string, cause error) {
	if cause != nil {
		l.WarnContext(ctx, "projection fell back",
			"scope", scope.String(),
			"vectors", n,
			"strategy", strategy,
			"cause", cause,
		)
	} else {
		l.DebugContext(ctx, "projection completed",
			"scope", scope.String(),
			"vectors", n,
			"strategy", strategy,
		)
	}
}

// LogRemove logs a remove operation.
func (l *Logger) LogRemove(ctx context.Context, scope model.Scope, id model.ItemID, err error) {
	if err != nil {
		l.ErrorContext(ctx, "remove failed",
			"scope", scope.String(),
			"id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "remove completed",
			"scope", scope.String(),
			"id", id,
		)
	}
}
