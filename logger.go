package packedmap

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with packedmap-specific field names.
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
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithKey adds a key field to the logger.
func (l *Logger) WithKey(k any) *Logger {
	return &Logger{
		Logger: l.Logger.With("key", k),
	}
}

// LogFind logs a lookup.
func (l *Logger) LogFind(ctx context.Context, k any, found bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "find failed",
			"key", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "find completed",
			"key", k,
			"found", found,
		)
	}
}

// LogAdd logs an insert or update.
func (l *Logger) LogAdd(ctx context.Context, k any, inserted bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "add failed",
			"key", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "add completed",
			"key", k,
			"inserted", inserted,
		)
	}
}

// LogDelete logs a delete operation.
func (l *Logger) LogDelete(ctx context.Context, k any, removed bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"key", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "delete completed",
			"key", k,
			"removed", removed,
		)
	}
}

// LogRebalance logs a completed rebalance window.
func (l *Logger) LogRebalance(ctx context.Context, ev RebalanceEvent) {
	if ev.Err != nil {
		l.WarnContext(ctx, "rebalance failed",
			"lo", ev.Lo,
			"width", ev.Width,
			"error", ev.Err,
		)
	} else {
		l.DebugContext(ctx, "rebalance completed",
			"lo", ev.Lo,
			"width", ev.Width,
			"occupied", ev.Occupied,
			"moved", ev.Moved,
			"duration", ev.Duration,
		)
	}
}
