package main

import (
	"log"
	"os"

	"github.com/google/uuid"
)

// Logger provides structured logging functionality, tagged with the handler
// module name and a per-invocation id so interleaved invocations can be told
// apart in CloudWatch.
type Logger struct {
	module       string
	invocationID string
	debugEnabled bool
}

// NewLogger creates a new logger instance for the given handler module.
func NewLogger(module string) *Logger {
	return &Logger{
		module:       module,
		invocationID: uuid.NewString(),
		debugEnabled: os.Getenv("DEBUG_LOGGING") == "true",
	}
}

// WithModule returns a copy of the logger tagged with a different module name,
// keeping the invocation id.
func (l *Logger) WithModule(module string) *Logger {
	return &Logger{
		module:       module,
		invocationID: l.invocationID,
		debugEnabled: l.debugEnabled,
	}
}

// Debugf logs a debug message
func (l *Logger) Debugf(format string, v ...any) {
	if l.debugEnabled {
		l.logf("DEBUG", format, v...)
	}
}

// Infof logs an info message
func (l *Logger) Infof(format string, v ...any) {
	l.logf("INFO", format, v...)
}

// Errorf logs an error message
func (l *Logger) Errorf(format string, v ...any) {
	l.logf("ERROR", format, v...)
}

func (l *Logger) logf(level, format string, v ...any) {
	log.Printf("["+l.module+"] ["+level+"] ["+l.invocationID+"] "+format, v...)
}
