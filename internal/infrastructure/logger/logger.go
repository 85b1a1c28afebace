package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/port"
)

// ParseLevel converts a string to slog.Level
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger is an implementation of port.Logger on top of log/slog
type Logger struct {
	slog   *slog.Logger
	level  *slog.LevelVar
	closer io.Closer
}

// NewLogger creates a new Logger instance. format is "json" or "text".
func NewLogger(writer io.Writer, level, format string) *Logger {
	levelVar := new(slog.LevelVar)
	levelVar.Set(ParseLevel(level))

	opts := &slog.HandlerOptions{Level: levelVar}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	l := &Logger{
		slog:  slog.New(handler),
		level: levelVar,
	}
	if closer, ok := writer.(io.Closer); ok && writer != os.Stdout && writer != os.Stderr {
		l.closer = closer
	}
	return l
}

// NewFileLogger creates a logger that writes to stdout and to a file
func NewFileLogger(filePath, level, format string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := NewLogger(io.MultiWriter(os.Stdout, file), level, format)
	l.closer = file
	return l, nil
}

// Slog exposes the underlying structured logger for components that log
// with attributes
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// SetLevel changes the logging level
func (l *Logger) SetLevel(level string) {
	l.level.Set(ParseLevel(level))
}

func (l *Logger) log(level slog.Level, format string, args ...interface{}) {
	message := format
	if len(args) > 0 {
		message = fmt.Sprintf(format, args...)
	}
	l.slog.Log(context.Background(), level, message)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.slog.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	l.log(slog.LevelDebug, format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(slog.LevelInfo, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(slog.LevelWarn, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(slog.LevelError, format, args...)
}

// Close closes the log file, if any
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// Ensure Logger implements port.Logger
var _ port.Logger = (*Logger)(nil)
