package logger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level represents the log level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel maps a level name to a Level. Unknown names yield LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Fields holds structured key/value pairs attached to an entry
type Fields map[string]interface{}

// Entry represents a structured log entry
type Entry struct {
	Timestamp string        `json:"timestamp"`
	Level     string        `json:"level"`
	Message   string        `json:"message"`
	RequestID string        `json:"request_id,omitempty"`
	Component string        `json:"component,omitempty"`
	Error     *ErrorDetails `json:"error,omitempty"`
	Fields    Fields        `json:"fields,omitempty"`
	Caller    string        `json:"caller,omitempty"`
}

// ErrorDetails contains structured error information
type ErrorDetails struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// codedError is satisfied by application errors that carry a symbolic code.
type codedError interface {
	error
	ErrorCode() string
}

// Config configures a Logger
type Config struct {
	Output    io.Writer
	Level     Level
	Component string
}

// Logger provides structured logging
type Logger struct {
	mu        *sync.Mutex
	output    io.Writer
	level     Level
	component string
}

var defaultLogger = New(&Config{Output: os.Stdout, Level: LevelInfo})

// New creates a new logger
func New(cfg *Config) *Logger {
	if cfg == nil {
		cfg = &Config{}
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	return &Logger{
		mu:        &sync.Mutex{},
		output:    out,
		level:     cfg.Level,
		component: cfg.Component,
	}
}

// SetDefault sets the default logger
func SetDefault(l *Logger) {
	defaultLogger = l
}

// Default returns the default logger
func Default() *Logger {
	return defaultLogger
}

// WithComponent creates a new logger with the specified component name.
// The child shares the parent's output and lock.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		mu:        l.mu,
		output:    l.output,
		level:     l.level,
		component: component,
	}
}

var sensitiveKeys = []string{"token", "secret", "password", "authorization"}

func redact(fields Fields) Fields {
	if len(fields) == 0 {
		return fields
	}
	out := make(Fields, len(fields))
	for k, v := range fields {
		lower := strings.ToLower(k)
		redacted := false
		for _, s := range sensitiveKeys {
			if strings.Contains(lower, s) {
				redacted = true
				break
			}
		}
		if redacted {
			out[k] = "[REDACTED]"
		} else {
			out[k] = v
		}
	}
	return out
}

func (l *Logger) log(ctx context.Context, level Level, msg string, fields Fields, err error) {
	if level < l.level {
		return
	}

	entry := Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   msg,
		RequestID: RequestID(ctx),
		Component: l.component,
		Fields:    redact(fields),
	}

	if level >= LevelError {
		_, file, line, ok := runtime.Caller(2)
		if ok {
			parts := strings.Split(file, "/")
			if len(parts) > 2 {
				file = strings.Join(parts[len(parts)-2:], "/")
			}
			entry.Caller = fmt.Sprintf("%s:%d", file, line)
		}
	}

	if err != nil {
		entry.Error = &ErrorDetails{Message: err.Error()}
		var coded codedError
		if errors.As(err, &coded) {
			entry.Error.Code = coded.ErrorCode()
		}
	}

	data, mErr := json.Marshal(entry)
	if mErr != nil {
		data = []byte(fmt.Sprintf(`{"level":"error","message":"log marshal failed: %s"}`, mErr))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write(append(data, '\n'))
}

func first(fields []Fields) Fields {
	if len(fields) > 0 {
		return fields[0]
	}
	return nil
}

// Debug logs a debug message
func (l *Logger) Debug(ctx context.Context, msg string, fields ...Fields) {
	l.log(ctx, LevelDebug, msg, first(fields), nil)
}

// Info logs an info message
func (l *Logger) Info(ctx context.Context, msg string, fields ...Fields) {
	l.log(ctx, LevelInfo, msg, first(fields), nil)
}

// Warn logs a warning message
func (l *Logger) Warn(ctx context.Context, msg string, fields ...Fields) {
	l.log(ctx, LevelWarn, msg, first(fields), nil)
}

// Error logs an error message
func (l *Logger) Error(ctx context.Context, msg string, err error, fields ...Fields) {
	l.log(ctx, LevelError, msg, first(fields), err)
}

// Package-level convenience functions

func Debug(ctx context.Context, msg string, fields ...Fields) {
	defaultLogger.log(ctx, LevelDebug, msg, first(fields), nil)
}

func Info(ctx context.Context, msg string, fields ...Fields) {
	defaultLogger.log(ctx, LevelInfo, msg, first(fields), nil)
}

func Warn(ctx context.Context, msg string, fields ...Fields) {
	defaultLogger.log(ctx, LevelWarn, msg, first(fields), nil)
}

func Error(ctx context.Context, msg string, err error, fields ...Fields) {
	defaultLogger.log(ctx, LevelError, msg, first(fields), err)
}
