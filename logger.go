package measx

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with measx-specific context.
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

// WithPath adds a path field to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// LogOpen logs the opening of a measurement file.
func (l *Logger) LogOpen(kind, path string, size int, err error) {
	if err != nil {
		l.Error("open failed",
			"kind", kind,
			"path", path,
			"error", err,
		)
		return
	}
	l.Debug("file mapped",
		"kind", kind,
		"path", path,
		"size", size,
	)
}

// LogClose logs the release of a mapping.
func (l *Logger) LogClose(path string, err error) {
	if err != nil {
		l.Warn("close failed", "path", path, "error", err)
		return
	}
	l.Debug("file released", "path", path)
}

// LogFetch logs a completed extraction.
func (l *Logger) LogFetch(path string, start, rows, offset, cols int) {
	l.Debug("fetch completed",
		"path", path,
		"start_frame", start,
		"rows", rows,
		"byte_offset", offset,
		"cols", cols,
	)
}

// LogUnevenSize logs a file whose size is not a multiple of its frame length.
func (l *Logger) LogUnevenSize(path string, size, frameSize int) {
	l.Warn("size not evenly divisible by frame length",
		"path", path,
		"size", size,
		"frame_size", frameSize,
		"remainder", size%frameSize,
	)
}

// LogDownload logs a remote blob staged into the local cache.
func (l *Logger) LogDownload(ctx context.Context, name, cachePath string, bytes int64, cached bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "download failed",
			"name", name,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "remote file staged",
		"name", name,
		"cache_path", cachePath,
		"bytes", bytes,
		"cache_hit", cached,
	)
}

// LogBatch logs a multi-channel extraction.
func (l *Logger) LogBatch(ctx context.Context, channels int, reserved int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "channel batch failed",
			"channels", channels,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "channel batch completed",
		"channels", channels,
		"reserved_bytes", reserved,
	)
}
