package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// Level represents the logging level
type Level int32

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

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
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Logger is the leveled, printf-style logger shared by every component.
type Logger interface {
	Debug(format string, v ...any)
	Info(format string, v ...any)
	Warn(format string, v ...any)
	Error(format string, v ...any)
	Fatal(format string, v ...any)
	SetLevel(level Level)
	// With returns a logger that prefixes every message with component.
	With(component string) Logger
}

// LogConfig holds configuration for the logger. Empty fields fall back to
// READER_LOG_OUTPUT, READER_LOG_LEVEL and READER_LOG_FILE_PATH.
type LogConfig struct {
	// Output destination: "file" or "stderr"
	Output string
	// Log level: "debug", "info", "warn", "error", "fatal"
	Level string
	// FilePath for file output (only used when Output is "file")
	FilePath string
}

type standardLogger struct {
	logger    *log.Logger
	level     *atomic.Int32
	component string
}

// NewLogger creates a new logger based on the provided configuration
func NewLogger(config LogConfig) (Logger, error) {
	output := config.Output
	if output == "" {
		output = os.Getenv("READER_LOG_OUTPUT")
	}
	if output == "" {
		output = detectEnvironment()
	}

	var writer io.Writer
	switch output {
	case "stderr":
		writer = os.Stderr
	case "file":
		filePath := config.FilePath
		if filePath == "" {
			filePath = os.Getenv("READER_LOG_FILE_PATH")
		}
		if filePath == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get user home directory: %w", err)
			}
			filePath = filepath.Join(homeDir, ".academic-reader", "reader.log")
		}
		if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writer = file
	default:
		return nil, fmt.Errorf("invalid log output: %s (expected 'file' or 'stderr')", output)
	}

	levelStr := config.Level
	if levelStr == "" {
		levelStr = os.Getenv("READER_LOG_LEVEL")
	}

	return NewWriterLogger(writer, ParseLevel(levelStr)), nil
}

// NewWriterLogger logs to w with timestamps at the given minimum level.
func NewWriterLogger(w io.Writer, level Level) Logger {
	lvl := &atomic.Int32{}
	lvl.Store(int32(level))
	return &standardLogger{
		logger: log.New(w, "", log.LstdFlags),
		level:  lvl,
	}
}

// NewNoOpLogger creates a logger that discards all output (useful for tests)
func NewNoOpLogger() Logger {
	lvl := &atomic.Int32{}
	lvl.Store(int32(FatalLevel))
	return &standardLogger{
		logger: log.New(io.Discard, "", 0),
		level:  lvl,
	}
}

// detectEnvironment picks stderr inside containers and a log file otherwise.
func detectEnvironment() string {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "stderr"
	}
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "stderr"
	}
	return "file"
}

// ParseLevel converts a string to a Level, defaulting to InfoLevel.
func ParseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}

func (l *standardLogger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

func (l *standardLogger) With(component string) Logger {
	name := component
	if l.component != "" {
		name = l.component + "." + component
	}
	return &standardLogger{logger: l.logger, level: l.level, component: name}
}

func (l *standardLogger) Debug(format string, v ...any) { l.log(DebugLevel, format, v...) }
func (l *standardLogger) Info(format string, v ...any)  { l.log(InfoLevel, format, v...) }
func (l *standardLogger) Warn(format string, v ...any)  { l.log(WarnLevel, format, v...) }
func (l *standardLogger) Error(format string, v ...any) { l.log(ErrorLevel, format, v...) }

// Fatal logs a fatal message and exits
func (l *standardLogger) Fatal(format string, v ...any) {
	l.log(FatalLevel, format, v...)
	os.Exit(1)
}

func (l *standardLogger) log(level Level, format string, v ...any) {
	if Level(l.level.Load()) > level {
		return
	}
	message := fmt.Sprintf(format, v...)
	if l.component != "" {
		l.logger.Printf("[%s] %s: %s", level.String(), l.component, message)
		return
	}
	l.logger.Printf("[%s] %s", level.String(), message)
}
