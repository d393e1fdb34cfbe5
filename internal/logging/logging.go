// Package logging is a thin zerolog front end shared by every triage
// component. Logs go to stderr until Init points them at a date-named
// file; components get tagged child loggers via Component.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config controls the global logger.
type Config struct {
	Level         string // debug, info, warn or error
	Path          string // log directory; empty logs to stderr only
	Format        string // json or text
	RetentionDays int    // how long date files are kept
}

// DefaultConfig returns the configuration used when nothing else is
// supplied.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Level:         "info",
		Path:          filepath.Join(home, ".local", "share", "triage", "logs"),
		Format:        "json",
		RetentionDays: 7,
	}
}

var levels = map[string]zerolog.Level{
	"debug": zerolog.DebugLevel,
	"info":  zerolog.InfoLevel,
	"warn":  zerolog.WarnLevel,
	"error": zerolog.ErrorLevel,
}

func parseLevel(name string) (zerolog.Level, error) {
	level, ok := levels[strings.ToLower(name)]
	if !ok {
		return zerolog.InfoLevel, fmt.Errorf("invalid log level: %s", name)
	}
	return level, nil
}

// Logger is a zerolog.Logger plus the file handle it writes to.
type Logger struct {
	zl        zerolog.Logger
	component string
	logDir    string
	file      *os.File
	mu        sync.Mutex
}

// New builds a Logger from cfg. With a Path set it appends to
// triage-YYYY-MM-DD.log in that directory and prunes files older than
// the retention window.
func New(cfg Config) (*Logger, error) {
	def := DefaultConfig()
	if cfg.Level == "" {
		cfg.Level = def.Level
	}
	if cfg.Format == "" {
		cfg.Format = def.Format
	}
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = def.RetentionDays
	}

	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	logger := &Logger{}

	var out io.Writer = os.Stderr
	if cfg.Path != "" {
		dir := expandPath(cfg.Path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}

		name := fmt.Sprintf("triage-%s.log", time.Now().Format("2006-01-02"))
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}

		logger.logDir = dir
		logger.file = f
		out = f

		go logger.prune(cfg.RetentionDays)
	}

	if cfg.Format == "text" {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		}
	}

	logger.zl = zerolog.New(out).Level(level).With().Timestamp().Logger()
	return logger, nil
}

// prune removes date files older than the retention window.
func (l *Logger) prune(retentionDays int) {
	matches, err := filepath.Glob(filepath.Join(l.logDir, "triage-*.log"))
	if err != nil {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for _, path := range matches {
		base := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "triage-"), ".log")
		day, err := time.Parse("2006-01-02", base)
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			_ = os.Remove(path)
		}
	}
}

// WithComponent returns a child logger whose entries carry a component
// field.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		zl:        l.zl.With().Str("component", name).Logger(),
		component: name,
		logDir:    l.logDir,
		file:      l.file,
	}
}

// Leveled logging; the f variants format like fmt.Printf.

func (l *Logger) Debug(msg string) {
	l.zl.Debug().Msg(msg)
}

func (l *Logger) Info(msg string) {
	l.zl.Info().Msg(msg)
}

func (l *Logger) Warn(msg string) {
	l.zl.Warn().Msg(msg)
}

func (l *Logger) Error(msg string) {
	l.zl.Error().Msg(msg)
}

func (l *Logger) Debugf(format string, args ...any) {
	l.zl.Debug().Msgf(format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.zl.Info().Msgf(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.zl.Warn().Msgf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.zl.Error().Msgf(format, args...)
}

// InfoFields logs msg at info level with the given fields attached.
func (l *Logger) InfoFields(msg string, fields map[string]any) {
	l.zl.Info().Fields(fields).Msg(msg)
}

// WarnFields logs msg at warn level with the given fields attached.
func (l *Logger) WarnFields(msg string, fields map[string]any) {
	l.zl.Warn().Fields(fields).Msg(msg)
}

// Err starts an error-level event with err attached; callers finish it
// with Msg or Msgf.
func (l *Logger) Err(err error) *zerolog.Event {
	return l.zl.Error().Err(err)
}

// Close closes the log file, if one is open.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

var (
	global   *Logger
	globalMu sync.RWMutex
)

// Init replaces the global logger. The previous log file, if any, is
// closed.
func Init(cfg Config) error {
	logger, err := New(cfg)
	if err != nil {
		return err
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if global != nil {
		_ = global.Close()
	}
	global = logger
	return nil
}

// Get returns the global logger, or a stderr logger when Init has not
// run yet.
func Get() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if global == nil {
		return &Logger{zl: zerolog.New(os.Stderr).With().Timestamp().Logger()}
	}
	return global
}

// Component returns the global logger tagged with a component name.
func Component(name string) *Logger {
	return Get().WithComponent(name)
}

// Package-level shorthands that write through the global logger.

func Debug(msg string) { Get().Debug(msg) }
func Info(msg string)  { Get().Info(msg) }
func Warn(msg string)  { Get().Warn(msg) }
func Error(msg string) { Get().Error(msg) }

func expandPath(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return path
}
