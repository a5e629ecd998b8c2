package meridian

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with meridian-specific fields.
// This keeps field names consistent across the store, indexes and pipeline.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses a text handler to stderr at info level.
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

// NewJSONLogger creates a Logger that writes JSON records to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that writes human-readable records to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))
}

// WithIndex tags the logger with an index kind.
func (l *Logger) WithIndex(kind SpatialIndexKind) *Logger {
	return &Logger{
		Logger: l.Logger.With("index", string(kind)),
	}
}

// WithRecord tags the logger with a record id.
func (l *Logger) WithRecord(id uint32) *Logger {
	return &Logger{
		Logger: l.Logger.With("record", id),
	}
}

// ParseLevel maps a level name ("debug", "info", "warn", "error") to a
// slog level. Unknown names map to info.
func ParseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}
