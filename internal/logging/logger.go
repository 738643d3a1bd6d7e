package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level represents log severity levels
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	CRITICAL
	FATAL
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case CRITICAL:
		return "CRITICAL"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string to a Level
func ParseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "CRITICAL":
		return CRITICAL
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case DEBUG:
		return zerolog.DebugLevel
	case INFO:
		return zerolog.InfoLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR, CRITICAL:
		return zerolog.ErrorLevel
	case FATAL:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Logger is a structured logger backed by zerolog
type Logger struct {
	zl    zerolog.Logger
	level Level
}

// Config holds logger configuration
type Config struct {
	Level       string    `json:"level" yaml:"level" default:"INFO"`
	Output      string    `json:"output" yaml:"output" default:"stdout"` // "stdout", "stderr", or file path
	Component   string    `json:"component" yaml:"component" default:"pinbar-bot"`
	IncludeFile bool      `json:"include_file" yaml:"include_file"`
	JSONFormat  bool      `json:"json_format" yaml:"json_format" default:"true"` // false switches to the console writer
	Writer      io.Writer `json:"-" yaml:"-"`                                    // overrides Output when set
}

var (
	defaultLogger *Logger
	defaultMu     sync.RWMutex
	once          sync.Once
)

// New creates a new logger with the given configuration
func New(cfg *Config) *Logger {
	var output io.Writer = os.Stdout

	switch {
	case cfg.Writer != nil:
		output = cfg.Writer
	case cfg.Output == "stderr":
		output = os.Stderr
	case cfg.Output != "" && cfg.Output != "stdout":
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err == nil {
			output = file
		}
	}

	if !cfg.JSONFormat {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339, NoColor: cfg.Writer != nil}
	}

	level := ParseLevel(cfg.Level)
	ctx := zerolog.New(output).Level(level.zerolog()).With().Timestamp()
	if cfg.IncludeFile {
		ctx = ctx.CallerWithSkipFrameCount(4)
	}

	l := &Logger{zl: ctx.Logger(), level: level}
	if cfg.Component != "" {
		return l.WithComponent(cfg.Component)
	}
	return l
}

// Default returns the default logger instance
func Default() *Logger {
	once.Do(func() {
		defaultMu.Lock()
		if defaultLogger == nil {
			defaultLogger = New(&Config{
				Level:      "INFO",
				Output:     "stdout",
				Component:  "app",
				JSONFormat: true,
			})
		}
		defaultMu.Unlock()
	})
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault sets the default logger
func SetDefault(l *Logger) {
	once.Do(func() {})
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// Nop returns a logger that discards everything. Used by tests.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop(), level: FATAL + 1}
}

// WithComponent returns a new logger with the specified component
func (l *Logger) WithComponent(component string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Str("component", component) })
}

// WithTraceID returns a new logger with the specified trace ID
func (l *Logger) WithTraceID(traceID string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Str("trace_id", traceID) })
}

// WithField returns a new logger with an additional field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Interface(key, value) })
}

// WithFields returns a new logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Fields(fields) })
}

func (l *Logger) with(fn func(zerolog.Context) zerolog.Context) *Logger {
	return &Logger{
		zl:    fn(l.zl.With()).Logger(),
		level: l.level,
	}
}

// log writes a log entry. Args are either key-value pairs or printf args.
func (l *Logger) log(level Level, msg string, args ...interface{}) {
	if level < l.level {
		return
	}

	var event *zerolog.Event
	if level == FATAL {
		// WithLevel keeps zerolog from exiting; Fatal handles that itself.
		event = l.zl.WithLevel(zerolog.FatalLevel)
	} else {
		event = l.zl.WithLevel(level.zerolog())
	}
	if event == nil {
		return
	}
	if level == CRITICAL {
		event = event.Str("severity", CRITICAL.String())
	}

	if len(args) > 0 {
		if len(args)%2 == 0 && isKey(args[0]) {
			for i := 0; i < len(args); i += 2 {
				key, ok := args[i].(string)
				if !ok {
					continue
				}
				switch v := args[i+1].(type) {
				case error:
					if v != nil {
						event = event.Str(key, v.Error())
					} else {
						event = event.Interface(key, nil)
					}
				case time.Duration:
					event = event.Str(key, v.String())
				default:
					event = event.Interface(key, v)
				}
			}
		} else {
			msg = fmt.Sprintf(msg, args...)
		}
	}

	event.Msg(msg)
}

func isKey(v interface{}) bool {
	_, ok := v.(string)
	return ok
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log(DEBUG, msg, args...)
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...interface{}) {
	l.log(INFO, msg, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log(WARN, msg, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...interface{}) {
	l.log(ERROR, msg, args...)
}

// Critical logs at error level tagged with severity=CRITICAL
func (l *Logger) Critical(msg string, args ...interface{}) {
	l.log(CRITICAL, msg, args...)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log(FATAL, msg, args...)
	os.Exit(1)
}
