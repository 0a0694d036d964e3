// Package logger provides component-scoped logging with verbose gating.
// Debug and Info lines only appear in verbose mode; warnings and errors
// always print to stderr.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// VerboseChecker reports whether verbose output is enabled
type VerboseChecker interface {
	IsVerbose() bool
}

// Logger writes timestamped, component-tagged lines
type Logger struct {
	component      string
	verboseChecker VerboseChecker
	writer         io.Writer
}

// Field is a key-value pair appended to a log line
type Field struct {
	Key   string
	Value interface{}
}

// New creates a logger for a component
func New(component string, verboseChecker VerboseChecker) *Logger {
	return &Logger{
		component:      component,
		verboseChecker: verboseChecker,
		writer:         os.Stderr,
	}
}

// NewWithCallback creates a logger whose verbose state comes from a callback
func NewWithCallback(component string, verboseCheck func() bool) *Logger {
	return &Logger{
		component:      component,
		verboseChecker: &callbackChecker{callback: verboseCheck},
		writer:         os.Stderr,
	}
}

// WithComponent derives a logger for another component
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		component:      component,
		verboseChecker: l.verboseChecker,
		writer:         l.writer,
	}
}

// SetOutput redirects log output, used in tests
func (l *Logger) SetOutput(w io.Writer) {
	l.writer = w
}

type callbackChecker struct {
	callback func() bool
}

func (c *callbackChecker) IsVerbose() bool {
	if c.callback == nil {
		return false
	}
	return c.callback()
}

// Debug logs a debug message (verbose only)
func (l *Logger) Debug(msg string, args ...interface{}) {
	if l.verbose() {
		l.log("DEBUG", msg, nil, args...)
	}
}

// Info logs an informational message (verbose only)
func (l *Logger) Info(msg string, args ...interface{}) {
	if l.verbose() {
		l.log("INFO", msg, nil, args...)
	}
}

// Warn logs a warning (always shown)
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log("WARN", msg, nil, args...)
}

// Error logs an error (always shown)
func (l *Logger) Error(msg string, args ...interface{}) {
	l.log("ERROR", msg, nil, args...)
}

// DebugWithFields logs a debug message with structured fields (verbose only)
func (l *Logger) DebugWithFields(msg string, fields []Field, args ...interface{}) {
	if l.verbose() {
		l.log("DEBUG", msg, fields, args...)
	}
}

// InfoWithFields logs an info message with structured fields (verbose only)
func (l *Logger) InfoWithFields(msg string, fields []Field, args ...interface{}) {
	if l.verbose() {
		l.log("INFO", msg, fields, args...)
	}
}

func (l *Logger) verbose() bool {
	return l.verboseChecker != nil && l.verboseChecker.IsVerbose()
}

func (l *Logger) log(level, msg string, fields []Field, args ...interface{}) {
	timestamp := time.Now().Format("15:04:05.000")
	component := l.component
	if component == "" {
		component = "main"
	}

	formattedMsg := fmt.Sprintf(msg, args...)

	var fieldsStr string
	if len(fields) > 0 {
		parts := make([]string, 0, len(fields))
		for _, field := range fields {
			parts = append(parts, fmt.Sprintf("%s=%v", field.Key, field.Value))
		}
		fieldsStr = fmt.Sprintf(" [%s]", strings.Join(parts, " "))
	}

	logLine := fmt.Sprintf("[%s] %s [%s] %s%s\n", timestamp, level, component, formattedMsg, fieldsStr)

	if _, err := fmt.Fprint(l.writer, logLine); err != nil {
		// nowhere left to report a logging failure
		_ = err
	}
}

// F builds a generic field
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Count builds a count field
func Count(value int) Field {
	return Field{Key: "count", Value: value}
}

// Duration builds a duration field
func Duration(d time.Duration) Field {
	return Field{Key: "duration", Value: d}
}

// Err builds an error field
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// TableName builds a table field
func TableName(name string) Field {
	return Field{Key: "table", Value: name}
}
