// Package config handles configuration loading and validation for linglenz.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/colonyops/linglenz/internal/core/styles"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the application configuration.
type Config struct {
	Correction CorrectionConfig `yaml:"correction"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Capture    CaptureConfig    `yaml:"capture"`
	Sessions   SessionsConfig   `yaml:"sessions"`
	Database   DatabaseConfig   `yaml:"database"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Theme      string           `yaml:"theme"`
	DataDir    string           `yaml:"-"` // set by caller, not from config file
}

// CorrectionConfig configures the correction gateway waterfall.
type CorrectionConfig struct {
	// Models are tried in order until one returns a valid result.
	Models          []string      `yaml:"models"`
	DefaultLanguage string        `yaml:"default_language"`
	PerModelTimeout time.Duration `yaml:"per_model_timeout"`
	CacheSize       int           `yaml:"cache_size"` // 0 disables the result cache
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	APIKeyEnv       string        `yaml:"api_key_env"`
	BaseURL         string        `yaml:"base_url"`
	// Endpoint, when set, sends corrections to a remote check-sentence
	// service instead of calling Gemini directly.
	Endpoint string `yaml:"endpoint"`
}

// AnalysisConfig configures the per-entry analysis state machine.
type AnalysisConfig struct {
	AutoRetryLimit *int          `yaml:"auto_retry_limit"`
	AutoRetryDelay time.Duration `yaml:"auto_retry_delay"`
	// MaxInFlight bounds concurrent gateway calls per process. 0 is unlimited.
	MaxInFlight        int   `yaml:"max_in_flight"`
	RetryBackendErrors *bool `yaml:"retry_backend_errors"`
}

// CaptureConfig configures microphone capture.
type CaptureConfig struct {
	SegmentInterval  time.Duration `yaml:"segment_interval"`
	SampleRate       int           `yaml:"sample_rate"`
	Channels         int           `yaml:"channels"`
	SilenceThreshold float64       `yaml:"silence_threshold"`
}

// SessionsConfig configures the active session watcher.
type SessionsConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// DatabaseConfig configures the durable store.
type DatabaseConfig struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"` // postgres only; sqlite lives in DataDir
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	BusyTimeout  int    `yaml:"busy_timeout"` // milliseconds, sqlite only
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures log file rotation.
type LogConfig struct {
	MaxSizeMB  int `yaml:"max_size_mb"`
	MaxBackups int `yaml:"max_backups"`
	MaxAgeDays int `yaml:"max_age_days"`
}

// DefaultModels is the correction waterfall: fast default, high throughput
// backup, then the advanced reasoning model.
var DefaultModels = []string{"gemini-2.5-flash", "gemini-2.5-flash-lite", "gemini-2.5-pro"}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Correction: CorrectionConfig{
			Models:          append([]string(nil), DefaultModels...),
			DefaultLanguage: "English",
			PerModelTimeout: 20 * time.Second,
			CacheSize:       256,
			CacheTTL:        10 * time.Minute,
			APIKeyEnv:       "GEMINI_API_KEY",
		},
		Analysis: AnalysisConfig{
			AutoRetryLimit:     ptr(1),
			AutoRetryDelay:     2 * time.Second,
			RetryBackendErrors: ptr(true),
		},
		Capture: CaptureConfig{
			SegmentInterval:  4 * time.Second,
			SampleRate:       16000,
			Channels:         1,
			SilenceThreshold: 0.01,
		},
		Sessions: SessionsConfig{
			PollInterval: 2 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:       DriverSQLite,
			MaxOpenConns: 2,
			MaxIdleConns: 2,
			BusyTimeout:  5000,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8484",
		},
		Log: LogConfig{
			MaxSizeMB:  20,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
		Theme: styles.DefaultTheme,
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.DataDir = dataDir
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	d := DefaultConfig()

	if len(c.Correction.Models) == 0 {
		c.Correction.Models = d.Correction.Models
	}
	if c.Correction.DefaultLanguage == "" {
		c.Correction.DefaultLanguage = d.Correction.DefaultLanguage
	}
	if c.Correction.PerModelTimeout == 0 {
		c.Correction.PerModelTimeout = d.Correction.PerModelTimeout
	}
	if c.Correction.CacheTTL == 0 {
		c.Correction.CacheTTL = d.Correction.CacheTTL
	}
	if c.Correction.APIKeyEnv == "" {
		c.Correction.APIKeyEnv = d.Correction.APIKeyEnv
	}

	if c.Analysis.AutoRetryLimit == nil {
		c.Analysis.AutoRetryLimit = d.Analysis.AutoRetryLimit
	}
	if c.Analysis.AutoRetryDelay == 0 {
		c.Analysis.AutoRetryDelay = d.Analysis.AutoRetryDelay
	}
	if c.Analysis.RetryBackendErrors == nil {
		c.Analysis.RetryBackendErrors = d.Analysis.RetryBackendErrors
	}

	if c.Capture.SegmentInterval == 0 {
		c.Capture.SegmentInterval = d.Capture.SegmentInterval
	}
	if c.Capture.SampleRate == 0 {
		c.Capture.SampleRate = d.Capture.SampleRate
	}
	if c.Capture.Channels == 0 {
		c.Capture.Channels = d.Capture.Channels
	}

	if c.Sessions.PollInterval == 0 {
		c.Sessions.PollInterval = d.Sessions.PollInterval
	}

	if c.Database.Driver == "" {
		c.Database.Driver = d.Database.Driver
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = d.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = d.Database.MaxIdleConns
	}
	if c.Database.BusyTimeout == 0 {
		c.Database.BusyTimeout = d.Database.BusyTimeout
	}

	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}

	if c.Theme == "" {
		c.Theme = d.Theme
	}
}

// Validate checks that the configuration is structurally valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	for i, m := range c.Correction.Models {
		if m == "" {
			return fmt.Errorf("correction.models[%d] cannot be empty", i)
		}
	}

	if c.Correction.PerModelTimeout < 0 {
		return fmt.Errorf("correction.per_model_timeout cannot be negative")
	}

	if *c.Analysis.AutoRetryLimit < 0 {
		return fmt.Errorf("analysis.auto_retry_limit cannot be negative")
	}

	if c.Analysis.MaxInFlight < 0 {
		return fmt.Errorf("analysis.max_in_flight cannot be negative")
	}

	switch c.Database.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}

	return nil
}

// AutoRetryLimit returns the configured automatic retry bound.
func (c *Config) AutoRetryLimit() int {
	if c.Analysis.AutoRetryLimit == nil {
		return 1
	}
	return *c.Analysis.AutoRetryLimit
}

// RetryBackendErrors reports whether backend-reported errors are retried automatically.
func (c *Config) RetryBackendErrors() bool {
	return c.Analysis.RetryBackendErrors == nil || *c.Analysis.RetryBackendErrors
}

// DatabaseDir returns the directory holding the SQLite database.
func (c *Config) DatabaseDir() string {
	return c.DataDir
}

// LogFile returns the default log file path.
func (c *Config) LogFile() string {
	return filepath.Join(c.DataDir, "logs", "linglenz.log")
}

// APIKey returns the Gemini API key from the environment. The linglenz
// specific variable takes precedence over the configured one.
func (c *Config) APIKey() string {
	if v := os.Getenv("LINGLENZ_GEMINI_API_KEY"); v != "" {
		return v
	}
	return os.Getenv(c.Correction.APIKeyEnv)
}

func ptr[T any](v T) *T { return &v }
