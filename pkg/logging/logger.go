// Package logging holds the process-wide structured logger.
//
// Library packages log through GetLogger or a WithComponent child at debug
// level; commands and the service configure the logger once with Init and
// log at info and above. Logs go to standard error unless configured
// otherwise, since standard output may carry table data.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	logger   *slog.Logger
	loggerMu sync.RWMutex
	isInited bool
)

type LogLevel string

const (
	LevelDebug LogLevel = "DEBUG"
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
)

type Config struct {
	Level  LogLevel
	Format string    // "json" or "text"
	Output io.Writer // nil for standard error
}

// ParseLevel maps a case-insensitive level name onto a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch lvl := LogLevel(strings.ToUpper(s)); lvl {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return lvl, nil
	}
	return "", fmt.Errorf("unknown log level %q", s)
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Init configures the process logger. It fails if the logger was already
// initialised; Reset allows a new Init.
func Init(config Config) error {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if isInited {
		return fmt.Errorf("logger already initialized")
	}
	logger = newLogger(config)
	isInited = true
	return nil
}

// Reset drops the configured logger so the next GetLogger or Init starts
// afresh.
func Reset() {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = nil
	isInited = false
}

func newLogger(config Config) *slog.Logger {
	writer := config.Output
	if writer == nil {
		writer = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: config.Level.slogLevel()}

	var handler slog.Handler
	if config.Format == "json" {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}
	return slog.New(handler)
}

// GetLogger returns the process logger, creating an INFO level text logger
// on standard error if Init has not been called.
func GetLogger() *slog.Logger {
	loggerMu.RLock()
	if isInited {
		l := logger
		loggerMu.RUnlock()
		return l
	}
	loggerMu.RUnlock()

	loggerMu.Lock()
	defer loggerMu.Unlock()
	if !isInited {
		logger = newLogger(Config{Level: LevelInfo})
		isInited = true
	}
	return logger
}

func Debug(msg string, args ...any) {
	GetLogger().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	GetLogger().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	GetLogger().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	GetLogger().Error(msg, args...)
}

// WithComponent returns a child logger tagged with the subsystem name.
func WithComponent(component string) *slog.Logger {
	return GetLogger().With("component", component)
}

// WithTable returns a child logger tagged with a table name.
func WithTable(name string) *slog.Logger {
	return GetLogger().With("table", name)
}
