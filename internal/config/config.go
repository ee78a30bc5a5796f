package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RereadConfig controls progress-regression protection and re-read detection.
// All thresholds are percentages in [0,100].
type RereadConfig struct {
	// RereadThreshold: a new observation at or below this value on a book that
	// was previously at HighProgressThreshold or above is treated as the start
	// of a re-read and the regression is allowed.
	RereadThreshold float64 `yaml:"reread_threshold"`
	// HighProgressThreshold: cached progress at or above this value marks the
	// book as effectively finished for re-read detection.
	HighProgressThreshold float64 `yaml:"high_progress_threshold"`
	// RegressionBlockThreshold: regressions on books cached at or above this
	// value are blocked unless re-read detection authorized them.
	RegressionBlockThreshold float64 `yaml:"regression_block_threshold"`
	// RegressionWarnThreshold: regressions larger than this delta are logged
	// as warnings but still applied.
	RegressionWarnThreshold float64 `yaml:"regression_warn_threshold"`
}

// DelayedUpdatesConfig controls the session mechanism that buffers small
// progress deltas instead of writing each one to the catalog.
type DelayedUpdatesConfig struct {
	Enabled bool `yaml:"enabled"`
	// SessionTimeout: a pending session idle longer than this is flushed on
	// the next run.
	SessionTimeout time.Duration `yaml:"session_timeout"`
	// MaxDelay: maximum time between external syncs for a book regardless of
	// how small the deltas are.
	MaxDelay time.Duration `yaml:"max_delay"`
	// DeltaThreshold: a progress jump of at least this many percentage points
	// bypasses buffering and is written through immediately. Zero disables the
	// check.
	DeltaThreshold float64 `yaml:"delta_threshold"`
	// ImmediateCompletion: a completion flag always bypasses buffering.
	ImmediateCompletion bool `yaml:"immediate_completion"`
}

// RateLimitConfig bounds the request rate against the external APIs.
type RateLimitConfig struct {
	PerMinute     int `yaml:"per_minute"`
	Burst         int `yaml:"burst"`
	MaxConcurrent int `yaml:"max_concurrent"`
}

// Config holds all configuration for the application
type Config struct {
	// User is the identity the progress cache is keyed by.
	User struct {
		ID string `yaml:"id"`
	} `yaml:"user"`

	// Audiobookshelf configuration
	Audiobookshelf struct {
		URL   string `yaml:"url"`
		Token string `yaml:"token"`
		// IncludeLibraries/ExcludeLibraries filter which libraries are synced,
		// by name or ID. An empty include list means every book library.
		IncludeLibraries []string `yaml:"include_libraries"`
		ExcludeLibraries []string `yaml:"exclude_libraries"`
	} `yaml:"audiobookshelf"`

	// Hardcover configuration
	Hardcover struct {
		URL   string `yaml:"url"`
		Token string `yaml:"token"`
	} `yaml:"hardcover"`

	// Logging configuration
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	// Sync settings
	Sync struct {
		// MinProgressThreshold is the minimum progress percentage a book needs
		// before it is synced at all.
		MinProgressThreshold float64 `yaml:"min_progress_threshold"`
		// ProgressTolerance is the change-detection tolerance in percent.
		ProgressTolerance float64 `yaml:"progress_tolerance"`
		Workers           int     `yaml:"workers"`
		Parallel          bool    `yaml:"parallel"`
		// ForceSync bypasses all early-check optimizations.
		ForceSync                 bool          `yaml:"force_sync"`
		AutoAddBooks              bool          `yaml:"auto_add_books"`
		CrossFormatSync           bool          `yaml:"cross_format_sync"`
		PreventProgressRegression bool          `yaml:"prevent_progress_regression"`
		DryRun                    bool          `yaml:"dry_run"`
		SyncInterval              time.Duration `yaml:"sync_interval"`

		Reread         RereadConfig         `yaml:"reread_detection"`
		DelayedUpdates DelayedUpdatesConfig `yaml:"delayed_updates"`
	} `yaml:"sync"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// File paths
	Paths struct {
		CacheFile string `yaml:"cache_file"`
	} `yaml:"paths"`
}

// Default returns a Config populated with the default-safe settings.
func Default() *Config {
	cfg := &Config{}

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Sync.MinProgressThreshold = 1.0
	cfg.Sync.ProgressTolerance = 0.1
	cfg.Sync.Workers = 3
	cfg.Sync.Parallel = true
	cfg.Sync.AutoAddBooks = false
	cfg.Sync.CrossFormatSync = true
	cfg.Sync.PreventProgressRegression = true
	cfg.Sync.SyncInterval = 1 * time.Hour

	cfg.Sync.Reread.RereadThreshold = 30
	cfg.Sync.Reread.HighProgressThreshold = 85
	cfg.Sync.Reread.RegressionBlockThreshold = 50
	cfg.Sync.Reread.RegressionWarnThreshold = 15

	// Delayed updates are off by default: every change syncs directly.
	cfg.Sync.DelayedUpdates.Enabled = false
	cfg.Sync.DelayedUpdates.SessionTimeout = 15 * time.Minute
	cfg.Sync.DelayedUpdates.MaxDelay = 1 * time.Hour
	cfg.Sync.DelayedUpdates.DeltaThreshold = 10
	cfg.Sync.DelayedUpdates.ImmediateCompletion = true

	cfg.RateLimit.PerMinute = 55
	cfg.RateLimit.Burst = 10
	cfg.RateLimit.MaxConcurrent = 3

	cfg.Paths.CacheFile = "./data/shelfbridge.db"

	return cfg
}

// Load loads configuration from a YAML file (if specified) and environment
// variables. Priority: environment variables > config file > defaults.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("config file not found: %s", configFile)
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	var missing []string

	if c.Audiobookshelf.URL == "" {
		missing = append(missing, "AUDIOBOOKSHELF_URL")
	}
	if c.Audiobookshelf.Token == "" {
		missing = append(missing, "AUDIOBOOKSHELF_TOKEN")
	}
	if c.Hardcover.Token == "" {
		missing = append(missing, "HARDCOVER_TOKEN")
	}

	if len(missing) > 0 {
		return &ConfigError{
			Field: strings.Join(missing, ", "),
			Msg:   "required configuration values are missing",
		}
	}

	if c.Sync.Workers < 1 {
		c.Sync.Workers = 1
	}
	if c.User.ID == "" {
		c.User.ID = "default"
	}

	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Field + " " + e.Msg
}

// loadFromEnv loads configuration overrides from environment variables
func loadFromEnv(cfg *Config) {
	if url := os.Getenv("AUDIOBOOKSHELF_URL"); url != "" {
		cfg.Audiobookshelf.URL = strings.TrimSuffix(url, "/")
	}
	if token := os.Getenv("AUDIOBOOKSHELF_TOKEN"); token != "" {
		cfg.Audiobookshelf.Token = token
	}
	if url := os.Getenv("HARDCOVER_URL"); url != "" {
		cfg.Hardcover.URL = url
	}
	if token := os.Getenv("HARDCOVER_TOKEN"); token != "" {
		cfg.Hardcover.Token = token
	}
	if userID := os.Getenv("SHELFBRIDGE_USER_ID"); userID != "" {
		cfg.User.ID = userID
	}
	if v := os.Getenv("AUDIOBOOKSHELF_INCLUDE_LIBRARIES"); v != "" {
		cfg.Audiobookshelf.IncludeLibraries = splitList(v)
	}
	if v := os.Getenv("AUDIOBOOKSHELF_EXCLUDE_LIBRARIES"); v != "" {
		cfg.Audiobookshelf.ExcludeLibraries = splitList(v)
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	if v := getFloat64FromEnv("MIN_PROGRESS_THRESHOLD", -1); v >= 0 {
		cfg.Sync.MinProgressThreshold = v
	}
	if v := getIntFromEnv("SYNC_WORKERS", 0); v > 0 {
		cfg.Sync.Workers = v
	}
	if v, set := os.LookupEnv("SYNC_PARALLEL"); set {
		cfg.Sync.Parallel = parseBool(v, cfg.Sync.Parallel)
	}
	if v, set := os.LookupEnv("FORCE_SYNC"); set {
		cfg.Sync.ForceSync = parseBool(v, cfg.Sync.ForceSync)
	}
	if v, set := os.LookupEnv("AUTO_ADD_BOOKS"); set {
		cfg.Sync.AutoAddBooks = parseBool(v, cfg.Sync.AutoAddBooks)
	}
	if v, set := os.LookupEnv("CROSS_FORMAT_SYNC"); set {
		cfg.Sync.CrossFormatSync = parseBool(v, cfg.Sync.CrossFormatSync)
	}
	if v, set := os.LookupEnv("PREVENT_PROGRESS_REGRESSION"); set {
		cfg.Sync.PreventProgressRegression = parseBool(v, cfg.Sync.PreventProgressRegression)
	}
	if v, set := os.LookupEnv("DRY_RUN"); set {
		cfg.Sync.DryRun = parseBool(v, cfg.Sync.DryRun)
	}
	if d := getDurationFromEnv("SYNC_INTERVAL", 0); d > 0 {
		cfg.Sync.SyncInterval = d
	}

	if v, set := os.LookupEnv("DELAYED_UPDATES_ENABLED"); set {
		cfg.Sync.DelayedUpdates.Enabled = parseBool(v, cfg.Sync.DelayedUpdates.Enabled)
	}
	if d := getDurationFromEnv("DELAYED_UPDATES_SESSION_TIMEOUT", 0); d > 0 {
		cfg.Sync.DelayedUpdates.SessionTimeout = d
	}
	if d := getDurationFromEnv("DELAYED_UPDATES_MAX_DELAY", 0); d > 0 {
		cfg.Sync.DelayedUpdates.MaxDelay = d
	}
	if v := getFloat64FromEnv("DELAYED_UPDATES_DELTA_THRESHOLD", -1); v >= 0 {
		cfg.Sync.DelayedUpdates.DeltaThreshold = v
	}
	if v, set := os.LookupEnv("DELAYED_UPDATES_IMMEDIATE_COMPLETION"); set {
		cfg.Sync.DelayedUpdates.ImmediateCompletion = parseBool(v, cfg.Sync.DelayedUpdates.ImmediateCompletion)
	}

	if v := getIntFromEnv("RATE_LIMIT_PER_MINUTE", 0); v > 0 {
		cfg.RateLimit.PerMinute = v
	}
	if v := getIntFromEnv("RATE_LIMIT_BURST", 0); v > 0 {
		cfg.RateLimit.Burst = v
	}
	if v := getIntFromEnv("RATE_LIMIT_MAX_CONCURRENT", 0); v > 0 {
		cfg.RateLimit.MaxConcurrent = v
	}

	if path := os.Getenv("CACHE_FILE"); path != "" {
		cfg.Paths.CacheFile = path
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBool(value string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.ToLower(value))
	if err != nil {
		return fallback
	}
	return b
}

func getIntFromEnv(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		i, err := strconv.Atoi(value)
		if err != nil {
			return fallback
		}
		return i
	}
	return fallback
}

func getFloat64FromEnv(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fallback
		}
		return f
	}
	return fallback
}

func getDurationFromEnv(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fallback
		}
		return d
	}
	return fallback
}
