// Package logging sets up the zerolog logger shared by every component: a
// daily file, an optional console and an in-memory tail for the panel.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel is a minimum level name as written in config.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

func (l LogLevel) level() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Config holds logger configuration
type Config struct {
	LogDir     string   // default: ~/.lumiavatar/logs
	Level      LogLevel // default: info
	MaxHistory int      // entries kept for GetHistory, default 500
	Console    bool
	File       bool
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		LogDir:     filepath.Join(home, ".lumiavatar", "logs"),
		Level:      LevelInfo,
		MaxHistory: 500,
		Console:    true,
		File:       true,
	}
}

// Logger owns the process-wide zerolog logger and its outputs.
type Logger struct {
	zlog    zerolog.Logger
	file    *os.File
	logPath string
	hist    *history
}

// New opens today's log file under cfg.LogDir (lumiavatar_YYYY-MM-DD.log)
// and builds the logger.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	l := &Logger{hist: newHistory(historySize(cfg.MaxHistory))}
	writers := []io.Writer{l.hist}

	if cfg.File {
		if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		l.logPath = filepath.Join(cfg.LogDir, "lumiavatar_"+time.Now().Format("2006-01-02")+".log")

		f, err := os.OpenFile(l.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.file = f
		writers = append(writers, f)
	}

	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	l.zlog = zerolog.New(io.MultiWriter(writers...)).
		Level(cfg.Level.level()).
		With().
		Timestamp().
		Str("app", "lumiavatar").
		Logger()

	return l, nil
}

// NewWriter builds a Logger over w without a log file. Used by tests and as
// a fallback when the log directory is not writable.
func NewWriter(w io.Writer, level LogLevel) *Logger {
	l := &Logger{hist: newHistory(64)}
	l.zlog = zerolog.New(io.MultiWriter(l.hist, w)).Level(level.level()).With().Timestamp().Logger()
	return l
}

func historySize(n int) int {
	if n <= 0 {
		return 500
	}
	return n
}

// Component returns a zerolog.Logger with the component field set
func (l *Logger) Component(name string) zerolog.Logger {
	return l.zlog.With().Str("component", name).Logger()
}

// Zerolog returns the underlying zerolog.Logger
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zlog
}

// Debug logs a debug message with optional fields.
func (l *Logger) Debug(component, msg string, data map[string]interface{}) {
	l.event(l.zlog.Debug(), component, data).Msg(msg)
}

// Info logs an info message with optional fields.
func (l *Logger) Info(component, msg string, data map[string]interface{}) {
	l.event(l.zlog.Info(), component, data).Msg(msg)
}

// Warn logs a warning with optional fields.
func (l *Logger) Warn(component, msg string, data map[string]interface{}) {
	l.event(l.zlog.Warn(), component, data).Msg(msg)
}

// Error logs err with optional fields.
func (l *Logger) Error(component, msg string, err error, data map[string]interface{}) {
	l.event(l.zlog.Error().Err(err), component, data).Msg(msg)
}

func (l *Logger) event(e *zerolog.Event, component string, data map[string]interface{}) *zerolog.Event {
	return e.Str("component", component).Fields(data)
}

// SetOnLog registers a callback for every new entry, called on its own
// goroutine.
func (l *Logger) SetOnLog(fn func(LogEntry)) {
	l.hist.mu.Lock()
	defer l.hist.mu.Unlock()
	l.hist.onLog = fn
}

// GetHistory returns up to limit of the most recent entries, oldest first.
// limit <= 0 returns everything kept.
func (l *Logger) GetHistory(limit int) []LogEntry {
	return l.hist.last(limit)
}

// GetLogPath returns the log file path, or "" without one.
func (l *Logger) GetLogPath() string {
	return l.logPath
}

// Close closes the log file
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
