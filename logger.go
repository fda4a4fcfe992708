package relidx

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with relidx-specific context.
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
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithIndex adds the index name to the logger so every record carries it.
func (l *Logger) WithIndex(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("index", name),
	}
}

// LogBuild logs index construction.
func (l *Logger) LogBuild(ctx context.Context, name, encoding string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "index build failed",
			"index", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "index built",
			"index", name,
			"encoding", encoding,
		)
	}
}

// LogInsert logs an entry insertion.
func (l *Logger) LogInsert(ctx context.Context, location ItemPointer, err error) {
	if err != nil {
		l.ErrorContext(ctx, "insert failed",
			"block", location.Block,
			"offset", location.Offset,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "insert completed",
			"block", location.Block,
			"offset", location.Offset,
		)
	}
}

// LogDelete logs an entry deletion.
func (l *Logger) LogDelete(ctx context.Context, location ItemPointer, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"block", location.Block,
			"offset", location.Offset,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "delete completed",
			"block", location.Block,
			"offset", location.Offset,
		)
	}
}

// LogScan logs a point or range scan.
func (l *Logger) LogScan(ctx context.Context, kind string, matches int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "scan failed",
			"kind", kind,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "scan completed",
			"kind", kind,
			"matches", matches,
		)
	}
}

// LogClose logs index teardown.
func (l *Logger) LogClose(ctx context.Context, err error) {
	if err != nil {
		l.ErrorContext(ctx, "close failed", "error", err)
	} else {
		l.InfoContext(ctx, "index closed")
	}
}
