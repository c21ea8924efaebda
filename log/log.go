// Package log provides structured logging for the journal engine. It wraps
// Go's log/slog with conveniences for a multi-component system: per-module
// child loggers, and an optional rotating file sink for operational logs
// written under a location's "log" layout directory.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps slog.Logger with journal-engine context.
type Logger struct {
	inner *slog.Logger
}

// defaultLogger is the process-wide logger used by the package-level
// convenience functions.
var defaultLogger *Logger

func init() {
	defaultLogger = New(slog.LevelInfo)
}

// New creates a Logger that writes JSON to stderr at the given level.
func New(level slog.Level) *Logger {
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{inner: slog.New(h)}
}

// NewWithHandler creates a Logger backed by the supplied slog.Handler. This
// is useful for testing or for writing to a custom destination.
func NewWithHandler(h slog.Handler) *Logger {
	return &Logger{inner: slog.New(h)}
}

// RotatingFileConfig configures a size- and age-based rotating log file,
// written under a location's "log" layout directory.
type RotatingFileConfig struct {
	// Path is the log file path, typically Locator.LayoutFile(loc, "log", name).
	Path string
	// MaxSizeMB is the size in megabytes a log file reaches before rotation.
	MaxSizeMB int
	// MaxBackups is the number of rotated files to retain.
	MaxBackups int
	// MaxAgeDays is the maximum age in days to retain a rotated file.
	MaxAgeDays int
	// Level is the minimum level written to the file.
	Level slog.Level
}

// NewRotating creates a Logger that writes JSON lines to a rotating file
// backed by lumberjack. Defaults: 100MB per file, 7 backups, 28 days.
func NewRotating(cfg RotatingFileConfig) *Logger {
	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}
	maxBackups := cfg.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 7
	}
	maxAge := cfg.MaxAgeDays
	if maxAge <= 0 {
		maxAge = 28
	}
	w := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   true,
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.Level})
	return &Logger{inner: slog.New(h)}
}

// SetDefault replaces the package-level default logger.
func SetDefault(l *Logger) {
	if l != nil {
		defaultLogger = l
	}
}

// Default returns the current package-level default logger.
func Default() *Logger {
	return defaultLogger
}

// Module returns a child logger with an additional "module" attribute. This
// is the primary way subsystems (writer, locator, assembler, ...) obtain
// their own contextual logger.
func (l *Logger) Module(name string) *Logger {
	return &Logger{inner: l.inner.With("module", name)}
}

// With returns a child logger with additional key-value context.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{inner: l.inner.With(args...)}
}

// Debug logs at LevelDebug.
func (l *Logger) Debug(msg string, args ...any) { l.inner.Debug(msg, args...) }

// Info logs at LevelInfo.
func (l *Logger) Info(msg string, args ...any) { l.inner.Info(msg, args...) }

// Warn logs at LevelWarn.
func (l *Logger) Warn(msg string, args ...any) { l.inner.Warn(msg, args...) }

// Error logs at LevelError.
func (l *Logger) Error(msg string, args ...any) { l.inner.Error(msg, args...) }

// ---------------------------------------------------------------------------
// Package-level convenience functions -- delegate to defaultLogger.
// ---------------------------------------------------------------------------

// Debug logs at LevelDebug using the default logger.
func Debug(msg string, args ...any) { defaultLogger.Debug(msg, args...) }

// Info logs at LevelInfo using the default logger.
func Info(msg string, args ...any) { defaultLogger.Info(msg, args...) }

// Warn logs at LevelWarn using the default logger.
func Warn(msg string, args ...any) { defaultLogger.Warn(msg, args...) }

// Error logs at LevelError using the default logger.
func Error(msg string, args ...any) { defaultLogger.Error(msg, args...) }

// Module returns a child of the current default logger with an additional
// "module" attribute.
func Module(name string) *Logger { return defaultLogger.Module(name) }

// ---------------------------------------------------------------------------
// Console logging via LogFormatter -- used by interactive CLI entry points
// (cmd/kfjournal) where a human reads the output directly, as an
// alternative to the JSON-to-stderr default aimed at log aggregators.
// ---------------------------------------------------------------------------

// slogLevel maps a LogLevel to its slog.Level equivalent.
func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case DEBUG:
		return slog.LevelDebug
	case WARN:
		return slog.LevelWarn
	case ERROR, FATAL:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// levelFromSlog maps an slog.Level back to the nearest LogLevel.
func levelFromSlog(l slog.Level) LogLevel {
	switch {
	case l < slog.LevelInfo:
		return DEBUG
	case l < slog.LevelWarn:
		return INFO
	case l < slog.LevelError:
		return WARN
	default:
		return ERROR
	}
}

// formatterHandler adapts a LogFormatter to slog.Handler, so any of
// TextFormatter, JSONFormatter or ColorFormatter can back a Logger.
type formatterHandler struct {
	w       io.Writer
	level   slog.Level
	fmt     LogFormatter
	attrs   []slog.Attr
	groupPfx string
}

func (h *formatterHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *formatterHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make(map[string]interface{}, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		fields[h.groupPfx+a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		fields[h.groupPfx+a.Key] = a.Value.Any()
		return true
	})
	entry := LogEntry{Timestamp: r.Time, Level: levelFromSlog(r.Level), Message: r.Message, Fields: fields}
	_, err := io.WriteString(h.w, h.fmt.Format(entry)+"\n")
	return err
}

func (h *formatterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *formatterHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.groupPfx = h.groupPfx + name + "."
	return &next
}

// NewConsole creates a Logger backed by formatter, writing to w at the
// given minimum level. format selects among TextFormatter (plain),
// ColorFormatter (ANSI-colored, for an interactive terminal) and
// JSONFormatter (line-delimited JSON, matching the default stderr logger's
// shape but via the hand-rolled formatter rather than slog's own encoder).
func NewConsole(w io.Writer, level LogLevel, formatter LogFormatter) *Logger {
	h := &formatterHandler{w: w, level: level.slogLevel(), fmt: formatter}
	return &Logger{inner: slog.New(h)}
}

// NewConsoleFromName builds a console Logger from a format name
// ("text", "color", "json") and a level name (parsed via LevelFromString),
// the shape expected from a CLI's -log-format/-log-level flags. An
// unrecognised format name falls back to TextFormatter.
func NewConsoleFromName(w io.Writer, levelName, formatName string) *Logger {
	var formatter LogFormatter
	switch formatName {
	case "color":
		formatter = &ColorFormatter{}
	case "json":
		formatter = &JSONFormatter{}
	default:
		formatter = &TextFormatter{}
	}
	return NewConsole(w, LevelFromString(levelName), formatter)
}
