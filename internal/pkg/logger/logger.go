// Package logger provides structured JSON logging with PII redaction.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

// ParseLevel maps "debug", "info", "warn" and "error" to a Level. Unknown
// values return INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	}
	return INFO
}

// Logger writes one JSON object per entry. Fields are passed as alternating
// key/value pairs.
type Logger struct {
	mu        *sync.Mutex
	out       io.Writer
	level     Level
	redactPII bool
	base      []interface{}
}

// New creates a logger writing to out at the given level.
func New(out io.Writer, level Level, redactPII bool) *Logger {
	if out == nil {
		out = os.Stderr
	}
	return &Logger{mu: &sync.Mutex{}, out: out, level: level, redactPII: redactPII}
}

var defaultLogger = New(os.Stderr, INFO, true)

// Default returns the process-wide logger used by the package-level helpers.
func Default() *Logger { return defaultLogger }

// SetLevel sets the minimum log level for the default logger.
func SetLevel(l Level) { defaultLogger.level = l }

// SetRedactPII enables or disables PII redaction for the default logger.
func SetRedactPII(r bool) { defaultLogger.redactPII = r }

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...interface{}) { defaultLogger.log(DEBUG, msg, fields...) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...interface{}) { defaultLogger.log(INFO, msg, fields...) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...interface{}) { defaultLogger.log(WARN, msg, fields...) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...interface{}) { defaultLogger.log(ERROR, msg, fields...) }

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields ...interface{}) *Logger {
	child := *l
	child.base = append(append([]interface{}{}, l.base...), fields...)
	return &child
}

// Debug emits a DEBUG-level entry.
func (l *Logger) Debug(msg string, fields ...interface{}) { l.log(DEBUG, msg, fields...) }

// Info emits an INFO-level entry.
func (l *Logger) Info(msg string, fields ...interface{}) { l.log(INFO, msg, fields...) }

// Warn emits a WARN-level entry.
func (l *Logger) Warn(msg string, fields ...interface{}) { l.log(WARN, msg, fields...) }

// Error emits an ERROR-level entry.
func (l *Logger) Error(msg string, fields ...interface{}) { l.log(ERROR, msg, fields...) }

func (l *Logger) log(level Level, msg string, fields ...interface{}) {
	if level < l.level {
		return
	}

	entry := map[string]interface{}{
		"time":  time.Now().UTC().Format(time.RFC3339),
		"level": levelNames[level],
		"msg":   msg,
	}

	all := append(append([]interface{}{}, l.base...), fields...)
	for i := 0; i < len(all)-1; i += 2 {
		key := fmt.Sprintf("%v", all[i])
		val := fmt.Sprintf("%v", all[i+1])
		if l.redactPII {
			val = redactPIIValue(key, val)
		}
		entry[key] = val
	}

	data, _ := json.Marshal(entry)
	l.mu.Lock()
	fmt.Fprintln(l.out, string(data))
	l.mu.Unlock()
}

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	if strings.Contains(key, "email") || strings.Contains(key, "recipient") {
		if strings.Contains(val, "@") {
			return RedactEmail(val)
		}
		return val
	}
	// Embedded addresses in generic fields (error text, provider responses).
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
