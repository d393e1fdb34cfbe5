// Package config handles loading and validating triage configuration.
// Supports a global YAML file merged with a per-project override.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/lucasdoreac/triage/internal/task"
)

// Default configuration values.
const (
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultLogRetentionDays = 7
	DefaultLogDir           = "~/.local/share/triage/logs"
	DefaultStoragePath      = "~/.local/share/triage/triage.db"
	DefaultSpoolDir         = "~/.local/share/triage/spool"
	DefaultPreviewLength    = 50

	// ProjectConfigName is the per-project override file looked up in the
	// working directory.
	ProjectConfigName = "triage.yaml"
)

// Validation errors.
var (
	ErrCronAndInterval  = errors.New("schedule.cron and schedule.interval are mutually exclusive")
	ErrInvalidLogLevel  = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat = errors.New("logging.format must be json or text")
	ErrInvalidClass     = errors.New("classes: class number must be positive")
	ErrDuplicateClass   = errors.New("classes: class number declared twice")
	ErrInvalidPreview   = errors.New("display.preview_length cannot be negative")
)

// Config holds all triage configuration.
type Config struct {
	Classes  []ClassConfig  `mapstructure:"classes"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Spool    SpoolConfig    `mapstructure:"spool"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Display  DisplayConfig  `mapstructure:"display"`
}

// ClassConfig declares one recognized priority class and its display label.
type ClassConfig struct {
	Class int    `mapstructure:"class"`
	Label string `mapstructure:"label"`
}

// ScheduleConfig controls when the run loop drains the queue. Cron and
// Interval are mutually exclusive.
type ScheduleConfig struct {
	Cron     string        `mapstructure:"cron"`
	Interval string        `mapstructure:"interval"`
	Window   *WindowConfig `mapstructure:"window"`
}

// WindowConfig restricts dispatching to a time-of-day window.
type WindowConfig struct {
	Start    string `mapstructure:"start"`
	End      string `mapstructure:"end"`
	Timezone string `mapstructure:"timezone"`
}

// StorageConfig locates the journal database.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// SpoolConfig locates the directory watched for incoming task files.
type SpoolConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level         string `mapstructure:"level"`
	Format        string `mapstructure:"format"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// DisplayConfig controls how listings render.
type DisplayConfig struct {
	PreviewLength int `mapstructure:"preview_length"`
}

// DefaultClasses returns the reference class set used when the config does
// not declare its own.
func DefaultClasses() []ClassConfig {
	return []ClassConfig{
		{Class: task.ClassHigh, Label: "High"},
		{Class: task.ClassMedium, Label: "Medium"},
		{Class: task.ClassLow, Label: "Low"},
	}
}

// GlobalConfigPath returns the path of the user-wide config file.
func GlobalConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "triage", "config.yaml")
}

// Load reads configuration for the current working directory.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	return LoadFromPaths(cwd, "")
}

// LoadFromPaths reads the global config file, merges the project override
// from projectDir on top of it, applies defaults and validates the result.
// Missing files are fine; an empty globalPath means the default location.
func LoadFromPaths(projectDir, globalPath string) (*Config, error) {
	if globalPath == "" {
		globalPath = GlobalConfigPath()
	}

	v := viper.New()
	v.SetConfigType("yaml")

	if _, err := os.Stat(globalPath); err == nil {
		v.SetConfigFile(globalPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read global config: %w", err)
		}
	}

	projectPath := filepath.Join(projectDir, ProjectConfigName)
	if _, err := os.Stat(projectPath); err == nil {
		v.SetConfigFile(projectPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read project config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills in zero values after unmarshalling.
func applyDefaults(cfg *Config) {
	if len(cfg.Classes) == 0 {
		cfg.Classes = DefaultClasses()
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	if cfg.Logging.Path == "" {
		cfg.Logging.Path = DefaultLogDir
	}
	if cfg.Logging.RetentionDays == 0 {
		cfg.Logging.RetentionDays = DefaultLogRetentionDays
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Spool.Dir == "" {
		cfg.Spool.Dir = DefaultSpoolDir
	}
	if cfg.Display.PreviewLength == 0 {
		cfg.Display.PreviewLength = DefaultPreviewLength
	}
}

// Validate checks a configuration for contradictions. Zero values are
// treated as unset and pass.
func Validate(cfg *Config) error {
	if cfg.Schedule.Cron != "" && cfg.Schedule.Interval != "" {
		return ErrCronAndInterval
	}
	if cfg.Schedule.Interval != "" {
		d, err := time.ParseDuration(cfg.Schedule.Interval)
		if err != nil || d <= 0 {
			return fmt.Errorf("schedule.interval: invalid duration %q", cfg.Schedule.Interval)
		}
	}

	seen := make(map[int]bool, len(cfg.Classes))
	for _, cc := range cfg.Classes {
		if cc.Class <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidClass, cc.Class)
		}
		if seen[cc.Class] {
			return fmt.Errorf("%w: %d", ErrDuplicateClass, cc.Class)
		}
		seen[cc.Class] = true
	}

	switch cfg.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	switch cfg.Logging.Format {
	case "", "json", "text":
	default:
		return ErrInvalidLogFormat
	}

	if cfg.Display.PreviewLength < 0 {
		return ErrInvalidPreview
	}
	return nil
}

// ClassNumbers returns the configured class numbers in declaration order.
func (c *Config) ClassNumbers() []int {
	out := make([]int, len(c.Classes))
	for i, cc := range c.Classes {
		out[i] = cc.Class
	}
	return out
}

// LabelFor returns the display label for a class. Classes without a
// configured label fall back to the well-known labels.
func (c *Config) LabelFor(class int) string {
	for _, cc := range c.Classes {
		if cc.Class == class && cc.Label != "" {
			return cc.Label
		}
	}
	return task.Label(class)
}

// StoragePath returns the journal database path with ~ expanded.
func (c *Config) StoragePath() string {
	return expandPath(c.Storage.Path)
}

// SpoolDir returns the spool directory with ~ expanded.
func (c *Config) SpoolDir() string {
	return expandPath(c.Spool.Dir)
}

func expandPath(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
