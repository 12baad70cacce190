// Package logging provides leveled logging for the badfs client.
package logging

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// LogLevel represents different logging levels
type LogLevel int

const (
	// LevelError only logs errors
	LevelError LogLevel = iota
	// LevelWarn logs warnings and errors
	LevelWarn
	// LevelInfo logs general information, warnings and errors
	LevelInfo
	// LevelDebug logs detailed debug information and all above
	LevelDebug
	// LevelTrace logs very detailed trace information and all above
	LevelTrace
)

var levelNames = map[LogLevel]string{
	LevelError: "ERROR",
	LevelWarn:  "WARN",
	LevelInfo:  "INFO",
	LevelDebug: "DEBUG",
	LevelTrace: "TRACE",
}

func parseLevel(s string) (LogLevel, bool) {
	for level, name := range levelNames {
		if name == s {
			return level, true
		}
	}
	return LevelInfo, false
}

// Logger provides leveled logging with a composable prefix.
// Child loggers created via WithPrefix share the parent's level.
type Logger struct {
	level  *LogLevel
	prefix string
	logger *log.Logger
	mu     *sync.RWMutex
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// GetLogger returns the default logger instance
func GetLogger() *Logger {
	once.Do(func() {
		defaultLogger = NewLogger("badfs")

		// Set initial log level from environment
		if level, ok := parseLevel(os.Getenv("BADFS_LOG_LEVEL")); ok {
			defaultLogger.SetLevel(level)
		}
		if os.Getenv("BADFS_DEBUG") != "" {
			defaultLogger.SetLevel(LevelDebug)
		}
	})
	return defaultLogger
}

// NewLogger creates a new logger with the given prefix
func NewLogger(prefix string) *Logger {
	flags := log.Ldate | log.Ltime | log.Lmicroseconds | log.LUTC
	if os.Getenv("BADFS_LOG_LONGFILE") != "" {
		flags |= log.Llongfile
	} else {
		flags |= log.Lshortfile
	}

	level := LevelInfo
	return &Logger{
		level: &level,
		// The root prefix goes on the log.Logger itself; composed
		// prefixes from WithPrefix are rendered per message.
		logger: log.New(os.Stderr, prefix+": ", flags),
		mu:     &sync.RWMutex{},
	}
}

// SetLevel sets the logging level for this logger and all loggers
// derived from it via WithPrefix.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.level = level
}

// shouldLog determines if a message at the given level should be logged
func (l *Logger) shouldLog(level LogLevel) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level <= *l.level
}

// log performs the actual logging
func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if !l.shouldLog(level) {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if err := l.logger.Output(3, fmt.Sprintf("[%s] %s%s", levelNames[level], l.tag(), msg)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write log message: %v\n", err)
	}
}

func (l *Logger) tag() string {
	if l.prefix == "" {
		return ""
	}
	return "(" + l.prefix + ") "
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

// Trace logs a trace message
func (l *Logger) Trace(format string, args ...interface{}) {
	l.log(LevelTrace, format, args...)
}

// WithPrefix creates a child logger whose messages are tagged with prefix.
// The child shares the parent's level and output.
func (l *Logger) WithPrefix(prefix string) *Logger {
	return &Logger{
		level:  l.level,
		prefix: prefix,
		logger: l.logger,
		mu:     l.mu,
	}
}
