// Package logger provides the process-wide logging facility for mnemora.
// It wraps logrus behind printf-style helpers so callers never import
// logrus directly.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu   sync.Mutex
	log  = newDefault()
	file *os.File
)

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	return l
}

// InitLog redirects log output to the given file path, creating parent
// directories as needed. Stderr output is kept alongside the file so the
// server remains debuggable when run in the foreground.
func InitLog(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %q: %w", path, err)
	}

	file = f
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return nil
}

// SetLevel adjusts the minimum log level. Unknown levels fall back to info.
func SetLevel(level string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)
}

// FlushLog closes the log file if one was opened via InitLog.
func FlushLog() {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		_ = file.Sync()
		_ = file.Close()
		file = nil
		log.SetOutput(os.Stderr)
	}
}

// Debug logs a debug-level message.
func Debug(format string, args ...interface{}) {
	log.Debugf(format, args...)
}

// Info logs an info-level message.
func Info(format string, args ...interface{}) {
	log.Infof(format, args...)
}

// Warn logs a warning-level message.
func Warn(format string, args ...interface{}) {
	log.Warnf(format, args...)
}

// Error logs an error-level message.
func Error(format string, args ...interface{}) {
	log.Errorf(format, args...)
}

// Fatal logs an error-level message and exits the process.
func Fatal(format string, args ...interface{}) {
	log.Fatalf(format, args...)
}
