// Package config defines symphony's configuration, its defaults, and how it
// is loaded through viper from files, environment variables and flags.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable viper consults,
// e.g. SYMPHONY_LOCK_MAX_WAIT_MS.
const EnvPrefix = "SYMPHONY"

// DefaultStateFile is the document path used when none is supplied.
const DefaultStateFile = ".symphony-state.json"

// Config holds all configuration options for symphony.
type Config struct {
	State   StateConfig   `mapstructure:"state"`
	Lock    LockConfig    `mapstructure:"lock"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Logging LoggingConfig `mapstructure:"logging"`
	Plans   PlansConfig   `mapstructure:"plans"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	UI      UIConfig      `mapstructure:"ui"`
}

// StateConfig controls where orchestration documents live.
type StateConfig struct {
	// DefaultPath is used by commands that accept an optional state path.
	DefaultPath string `mapstructure:"default_path"`
}

// LockConfig controls acquisition of the per-document lock file.
type LockConfig struct {
	// MaxWaitMs bounds how long a mutation waits for the lock.
	MaxWaitMs int `mapstructure:"max_wait_ms"`
	// StaleAfterMs is the lock file age after which it is presumed abandoned.
	StaleAfterMs int `mapstructure:"stale_after_ms"`
	// InitialDelayMs is the first contention backoff delay; it doubles per attempt.
	InitialDelayMs int `mapstructure:"initial_delay_ms"`
	// MaxDelayMs caps the contention backoff delay.
	MaxDelayMs int `mapstructure:"max_delay_ms"`
}

// RetryConfig is the retry policy written into new documents by init.
type RetryConfig struct {
	MaxRetries          int      `mapstructure:"max_retries"`
	BackoffStrategy     string   `mapstructure:"backoff_strategy"`
	InitialDelayMs      int      `mapstructure:"initial_delay_ms"`
	MaxDelayMs          int      `mapstructure:"max_delay_ms"`
	RetryableCategories []string `mapstructure:"retryable_categories"`
}

// LoggingConfig controls the JSON log file and console diagnostics.
type LoggingConfig struct {
	// Enabled turns the JSON log file on.
	Enabled bool `mapstructure:"enabled"`
	// Level is the minimum level written to the log file.
	Level string `mapstructure:"level"`
	// ConsoleLevel is the minimum level printed to stderr.
	ConsoleLevel string `mapstructure:"console_level"`
	// Dir holds symphony.log. Empty means the user state directory.
	Dir        string `mapstructure:"dir"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// PlansConfig controls plan discovery.
type PlansConfig struct {
	// Dir is searched recursively by find-plan. Empty means ~/.claude/plans.
	Dir string `mapstructure:"dir"`
	// Include lists glob patterns (relative to Dir) a candidate must match.
	Include []string `mapstructure:"include"`
	// Exclude lists glob patterns that reject a candidate.
	Exclude []string `mapstructure:"exclude"`
}

// MetricsConfig controls the Prometheus textfile written after each mutation.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// TextfilePath is the .prom file to (over)write, typically inside a
	// node_exporter textfile collector directory.
	TextfilePath string `mapstructure:"textfile_path"`
}

// UIConfig controls terminal rendering.
type UIConfig struct {
	// Color is one of "auto", "always" or "never".
	Color string `mapstructure:"color"`
	// StatusBarWidth is the number of cells in the status line progress bar.
	StatusBarWidth int `mapstructure:"status_bar_width"`
	// RunningListWidth truncates the running-phase list in the status line.
	RunningListWidth int `mapstructure:"running_list_width"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		State: StateConfig{
			DefaultPath: DefaultStateFile,
		},
		Lock: LockConfig{
			MaxWaitMs:      30000,
			StaleAfterMs:   60000,
			InitialDelayMs: 50,
			MaxDelayMs:     2000,
		},
		Retry: RetryConfig{
			MaxRetries:          3,
			BackoffStrategy:     "exponential-jitter",
			InitialDelayMs:      1000,
			MaxDelayMs:          30000,
			RetryableCategories: []string{"transient", "resource", "timeout", "unknown"},
		},
		Logging: LoggingConfig{
			Enabled:      true,
			Level:        "info",
			ConsoleLevel: "warn",
			MaxSizeMB:    10,
			MaxBackups:   3,
		},
		Plans: PlansConfig{
			Include: []string{"**.md"},
			Exclude: []string{},
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
		UI: UIConfig{
			Color:            "auto",
			StatusBarWidth:   10,
			RunningListWidth: 30,
		},
	}
}

// MaxWait returns the lock acquisition timeout.
func (c LockConfig) MaxWait() time.Duration {
	return time.Duration(c.MaxWaitMs) * time.Millisecond
}

// StaleAfter returns the age after which a lock file is presumed abandoned.
func (c LockConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterMs) * time.Millisecond
}

// InitialDelay returns the first contention backoff delay.
func (c LockConfig) InitialDelay() time.Duration {
	return time.Duration(c.InitialDelayMs) * time.Millisecond
}

// MaxDelay returns the contention backoff cap.
func (c LockConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMs) * time.Millisecond
}

// SetDefaults registers default values with viper.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("state.default_path", defaults.State.DefaultPath)

	viper.SetDefault("lock.max_wait_ms", defaults.Lock.MaxWaitMs)
	viper.SetDefault("lock.stale_after_ms", defaults.Lock.StaleAfterMs)
	viper.SetDefault("lock.initial_delay_ms", defaults.Lock.InitialDelayMs)
	viper.SetDefault("lock.max_delay_ms", defaults.Lock.MaxDelayMs)

	viper.SetDefault("retry.max_retries", defaults.Retry.MaxRetries)
	viper.SetDefault("retry.backoff_strategy", defaults.Retry.BackoffStrategy)
	viper.SetDefault("retry.initial_delay_ms", defaults.Retry.InitialDelayMs)
	viper.SetDefault("retry.max_delay_ms", defaults.Retry.MaxDelayMs)
	viper.SetDefault("retry.retryable_categories", defaults.Retry.RetryableCategories)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.console_level", defaults.Logging.ConsoleLevel)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	viper.SetDefault("plans.dir", defaults.Plans.Dir)
	viper.SetDefault("plans.include", defaults.Plans.Include)
	viper.SetDefault("plans.exclude", defaults.Plans.Exclude)

	viper.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	viper.SetDefault("metrics.textfile_path", defaults.Metrics.TextfilePath)

	viper.SetDefault("ui.color", defaults.UI.Color)
	viper.SetDefault("ui.status_bar_width", defaults.UI.StatusBarWidth)
	viper.SetDefault("ui.running_list_width", defaults.UI.RunningListWidth)
}

// Load unmarshals the current viper configuration and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults if it
// cannot be loaded.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "symphony")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".symphony"
	}
	return filepath.Join(home, ".config", "symphony")
}

// ConfigFile returns the path to the config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// StateDir returns the directory for symphony's own files (logs).
func StateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "symphony")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".symphony"
	}
	return filepath.Join(home, ".local", "state", "symphony")
}

// LogDir resolves the log directory, defaulting to StateDir.
func (c LoggingConfig) LogDir() string {
	if c.Dir != "" {
		return expandHome(c.Dir)
	}
	return StateDir()
}

// PlanDir resolves the plan discovery root, defaulting to ~/.claude/plans.
func (c PlansConfig) PlanDir() string {
	if c.Dir != "" {
		return expandHome(c.Dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".claude", "plans")
	}
	return filepath.Join(home, ".claude", "plans")
}

func expandHome(p string) string {
	if len(p) >= 2 && p[0] == '~' && (p[1] == '/' || p[1] == filepath.Separator) {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}
