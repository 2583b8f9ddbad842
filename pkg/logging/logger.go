// Package logging provides structured logging for the chat client.
// Loggers carry component and session fields and understand the error
// context attached by pkg/errors.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	mcperrors "github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/errors"
)

// Level represents the severity of a log message
type Level int

const (
	DebugLevel Level = iota - 1
	InfoLevel
	WarnLevel
	ErrorLevel
	// OffLevel disables output entirely
	OffLevel
)

// String returns the string representation of a log level
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case OffLevel:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a configuration string into a Level
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "off", "none":
		return OffLevel, nil
	}
	return InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field { return Field{Key: key, Value: value} }

func Int(key string, value int) Field { return Field{Key: key, Value: value} }

func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }

func Any(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// ErrorField creates an error field
func ErrorField(err error) Field { return Field{Key: "error", Value: err} }

// Component tags log lines with the emitting component
func Component(name string) Field { return Field{Key: "component", Value: name} }

// Logger is the interface for structured logging
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// WithFields returns a new logger with additional fields
	WithFields(fields ...Field) Logger
	// WithContext returns a new logger with the request id held by ctx
	WithContext(ctx context.Context) Logger
	// WithError returns a new logger with error fields, including the
	// code, category and context of an MCPError
	WithError(err error) Logger

	SetLevel(level Level)
	GetLevel() Level
}

// Entry represents a log entry
type Entry struct {
	Level     Level
	Message   string
	Fields    map[string]interface{}
	Timestamp time.Time
	RequestID string
	Component string
	Operation string
}

// Formatter formats log entries
type Formatter interface {
	Format(entry *Entry) ([]byte, error)
}

// sink is shared by a logger and everything derived from it so that
// SetLevel and writes apply to the whole family.
type sink struct {
	mu        sync.Mutex
	level     Level
	output    io.Writer
	formatter Formatter
}

type baseLogger struct {
	sink   *sink
	fields map[string]interface{}
}

// New creates a new structured logger at InfoLevel
func New(output io.Writer, formatter Formatter) Logger {
	if output == nil {
		output = os.Stderr
	}
	if formatter == nil {
		formatter = NewTextFormatter()
	}

	return &baseLogger{
		sink:   &sink{level: InfoLevel, output: output, formatter: formatter},
		fields: map[string]interface{}{},
	}
}

// NewFromConfig builds a logger from the level and format names used in
// configuration files. Format is "text" or "json".
func NewFromConfig(output io.Writer, level, format string) (Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var formatter Formatter
	switch strings.ToLower(format) {
	case "", "text":
		formatter = NewTextFormatter()
	case "json":
		formatter = NewJSONFormatter()
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	logger := New(output, formatter)
	logger.SetLevel(lvl)
	return logger, nil
}

// NewNop returns a logger that discards everything
func NewNop() Logger {
	logger := New(io.Discard, NewTextFormatter())
	logger.SetLevel(OffLevel)
	return logger
}

func (l *baseLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields) }
func (l *baseLogger) Info(msg string, fields ...Field)  { l.log(InfoLevel, msg, fields) }
func (l *baseLogger) Warn(msg string, fields ...Field)  { l.log(WarnLevel, msg, fields) }
func (l *baseLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields) }

func (l *baseLogger) WithFields(fields ...Field) Logger {
	newFields := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for _, field := range fields {
		newFields[field.Key] = field.Value
	}
	return &baseLogger{sink: l.sink, fields: newFields}
}

func (l *baseLogger) WithContext(ctx context.Context) Logger {
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		return l.WithFields(String("request_id", requestID))
	}
	return l
}

func (l *baseLogger) WithError(err error) Logger {
	fields := []Field{ErrorField(err)}

	if mcpErr, ok := mcperrors.AsMCPError(err); ok {
		fields = append(fields,
			Int("error_code", mcpErr.Code()),
			String("error_category", string(mcpErr.Category())),
		)
		if ctx := mcpErr.Context(); ctx != nil {
			if ctx.RequestID != "" {
				fields = append(fields, String("request_id", ctx.RequestID))
			}
			if ctx.Method != "" {
				fields = append(fields, String("method", ctx.Method))
			}
			if ctx.SessionID != "" {
				fields = append(fields, String("session_id", ctx.SessionID))
			}
		}
	}

	return l.WithFields(fields...)
}

func (l *baseLogger) SetLevel(level Level) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.level = level
}

func (l *baseLogger) GetLevel() Level {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	return l.sink.level
}

func (l *baseLogger) log(level Level, msg string, fields []Field) {
	if level < l.GetLevel() {
		return
	}

	entry := &Entry{
		Level:     level,
		Message:   msg,
		Fields:    make(map[string]interface{}, len(l.fields)+len(fields)),
		Timestamp: time.Now(),
	}
	for k, v := range l.fields {
		entry.Fields[k] = v
	}
	for _, field := range fields {
		entry.Fields[field.Key] = field.Value
	}

	entry.RequestID, _ = entry.Fields["request_id"].(string)
	entry.Component, _ = entry.Fields["component"].(string)
	entry.Operation, _ = entry.Fields["operation"].(string)

	data, err := l.sink.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to format log entry: %v\n", err)
		return
	}

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if _, err := l.sink.output.Write(data); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write log entry: %v\n", err)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// ContextWithRequestID returns a context with a request ID
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request ID from a context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}
