// Package logging provides structured logging for symphony invocations.
// It wraps Go's log/slog package to provide JSON-formatted file logs and
// human-readable console diagnostics with context propagation.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

// Log levels supported by the logger
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// LogFileName is the name of the JSON log file inside the log directory.
const LogFileName = "symphony.log"

// Options configures a Logger. Either sink may be left unset.
type Options struct {
	// Dir is the directory for the JSON log file. Empty disables the file sink.
	Dir string
	// Level is the minimum level for both sinks.
	Level string
	// Rotation controls size-based rotation of the JSON log file.
	Rotation RotationConfig
	// Console receives tint-formatted output. Nil disables the console sink.
	Console io.Writer
	// ConsoleLevel overrides Level for the console sink when non-empty.
	ConsoleLevel string
	// Color enables ANSI colors on the console sink.
	Color bool
}

// Logger provides structured logging with context propagation.
// It is safe for concurrent use.
type Logger struct {
	sinks  []*slog.Logger
	writer *RotatingWriter
	mu     *sync.Mutex
	attrs  []slog.Attr // Persistent attributes (run, phase, operation)
}

// New creates a Logger writing JSON lines to {Dir}/symphony.log and, when a
// console writer is supplied, tint-formatted lines to it.
//
// The level parameter controls which messages are logged:
//   - DEBUG: All messages
//   - INFO: Info, Warn, and Error messages
//   - WARN: Warn and Error messages
//   - ERROR: Only Error messages
func New(opts Options) (*Logger, error) {
	l := &Logger{mu: &sync.Mutex{}}

	level := parseLevel(opts.Level)

	if opts.Dir != "" {
		rw, err := NewRotatingWriter(filepath.Join(opts.Dir, LogFileName), opts.Rotation)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		l.writer = rw
		l.sinks = append(l.sinks, slog.New(slog.NewJSONHandler(rw, &slog.HandlerOptions{Level: level})))
	}

	if opts.Console != nil {
		consoleLevel := level
		if opts.ConsoleLevel != "" {
			consoleLevel = parseLevel(opts.ConsoleLevel)
		}
		l.sinks = append(l.sinks, slog.New(tint.NewHandler(opts.Console, &tint.Options{
			Level:      consoleLevel,
			TimeFormat: time.Kitchen,
			NoColor:    !opts.Color,
		})))
	}

	return l, nil
}

// NewLogger creates a file-only Logger in dir using the default rotation
// settings. If dir is empty the returned logger discards everything.
func NewLogger(dir string, level string) (*Logger, error) {
	if dir == "" {
		return NopLogger(), nil
	}
	return New(Options{Dir: dir, Level: level, Rotation: DefaultRotationConfig()})
}

// NewConsoleLogger creates a Logger that writes only tint-formatted lines to w.
func NewConsoleLogger(w io.Writer, level string, color bool) *Logger {
	l, _ := New(Options{Console: w, Level: level, Color: color})
	return l
}

// parseLevel converts a string log level to slog.Level.
// Defaults to INFO if the level string is not recognized.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn, "WARNING":
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRun returns a new Logger with the orchestration run id added to all entries.
func (l *Logger) WithRun(runID string) *Logger {
	return l.withAttr(slog.String("run_id", runID))
}

// WithPhase returns a new Logger with the phase id added to all entries.
func (l *Logger) WithPhase(phaseID string) *Logger {
	return l.withAttr(slog.String("phase", phaseID))
}

// WithOperation returns a new Logger tagged with the mutation operation name.
func (l *Logger) WithOperation(op string) *Logger {
	return l.withAttr(slog.String("operation", op))
}

// With returns a new Logger with arbitrary key-value attributes.
// Keys and values are provided as alternating arguments.
func (l *Logger) With(args ...any) *Logger {
	if len(args) == 0 {
		return l
	}

	newAttrs := make([]slog.Attr, 0, len(l.attrs)+len(args)/2)
	newAttrs = append(newAttrs, l.attrs...)

	for i := 0; i < len(args)-1; i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		newAttrs = append(newAttrs, slog.Any(key, args[i+1]))
	}

	return l.child(newAttrs)
}

func (l *Logger) withAttr(attr slog.Attr) *Logger {
	newAttrs := make([]slog.Attr, len(l.attrs)+1)
	copy(newAttrs, l.attrs)
	newAttrs[len(l.attrs)] = attr
	return l.child(newAttrs)
}

func (l *Logger) child(attrs []slog.Attr) *Logger {
	return &Logger{
		sinks:  l.sinks,
		writer: l.writer,
		mu:     l.mu,
		attrs:  attrs,
	}
}

// Debug logs a message at DEBUG level with optional key-value pairs.
func (l *Logger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, msg, args...)
}

// Info logs a message at INFO level with optional key-value pairs.
func (l *Logger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, msg, args...)
}

// Warn logs a message at WARN level with optional key-value pairs.
func (l *Logger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, msg, args...)
}

// Error logs a message at ERROR level with optional key-value pairs.
func (l *Logger) Error(msg string, args ...any) {
	l.log(slog.LevelError, msg, args...)
}

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	if l == nil || len(l.sinks) == 0 {
		return
	}

	allArgs := make([]any, 0, len(l.attrs)*2+len(args))
	for _, attr := range l.attrs {
		allArgs = append(allArgs, attr.Key, attr.Value.Any())
	}
	allArgs = append(allArgs, args...)

	for _, sink := range l.sinks {
		sink.Log(context.Background(), level, msg, allArgs...)
	}
}

// Close flushes and closes the log file. Loggers without a file sink
// return nil.
func (l *Logger) Close() error {
	if l == nil || l.writer == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writer.Close()
}

// NopLogger returns a Logger that discards all log output.
func NopLogger() *Logger {
	return &Logger{mu: &sync.Mutex{}}
}

// ParseLevel converts a string level to the corresponding constant.
// Returns LevelInfo if the level string is not recognized.
func ParseLevel(level string) string {
	switch parseLevel(level) {
	case slog.LevelDebug:
		return LevelDebug
	case slog.LevelWarn:
		return LevelWarn
	case slog.LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

// IsValidLevel reports whether level names one of the supported levels.
func IsValidLevel(level string) bool {
	upper := strings.ToUpper(level)
	for _, v := range ValidLevels() {
		if v == upper {
			return true
		}
	}
	return false
}

// ValidLevels returns the list of valid log level strings.
func ValidLevels() []string {
	return []string{LevelDebug, LevelInfo, LevelWarn, LevelError}
}
