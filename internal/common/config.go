package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Sync        SyncConfig      `toml:"sync"`
	Discovery   DiscoveryConfig `toml:"discovery"`
	Fetcher     FetcherConfig   `toml:"fetcher"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// SyncConfig governs the orchestrator: worker pool size and the per-job
// wall-clock ceiling. Both cap load placed on third-party sites and must
// stay externally configurable.
type SyncConfig struct {
	WorkerCount      int           `toml:"worker_count"`      // Fixed worker pool size, never derived from URL count
	JobTimeout       time.Duration `toml:"job_timeout"`       // Per-job wall-clock ceiling
	ProgressRetention time.Duration `toml:"progress_retention"` // How long terminal job snapshots stay pollable
}

// DiscoveryConfig governs sitemap retrieval.
type DiscoveryConfig struct {
	RequestTimeout time.Duration `toml:"request_timeout"` // HTTP timeout per sitemap request
	RetryAttempts  int           `toml:"retry_attempts"`  // Attempts before surfacing unreachable
	RetryBackoff   time.Duration `toml:"retry_backoff"`   // Initial backoff between attempts
	MaxIndexDepth  int           `toml:"max_index_depth"` // Sitemap-index recursion ceiling
}

// FetcherConfig governs per-URL content retrieval.
type FetcherConfig struct {
	UserAgent      string        `toml:"user_agent"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	RetryAttempts  int           `toml:"retry_attempts"`
	RetryBackoff   time.Duration `toml:"retry_backoff"`
	RequestsPerSec float64       `toml:"requests_per_sec"` // Outbound rate limit across the worker pool
	MaxBodySize    int64         `toml:"max_body_size"`    // Maximum response body size in bytes
}

type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron expression for the scheduler tick
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Sync: SyncConfig{
			WorkerCount:       4,
			JobTimeout:        30 * time.Minute,
			ProgressRetention: 5 * time.Minute,
		},
		Discovery: DiscoveryConfig{
			RequestTimeout: 30 * time.Second,
			RetryAttempts:  2,
			RetryBackoff:   2 * time.Second,
			MaxIndexDepth:  3,
		},
		Fetcher: FetcherConfig{
			UserAgent:      "sitesync/" + Version,
			RequestTimeout: 30 * time.Second,
			RetryAttempts:  2,
			RetryBackoff:   time.Second,
			RequestsPerSec: 4,
			MaxBodySize:    10 * 1024 * 1024,
		},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Schedule: "*/1 * * * *", // Check for due sources every minute
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env -> CLI flags. Later files
// override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SITESYNC_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("SITESYNC_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("SITESYNC_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if badgerPath := os.Getenv("SITESYNC_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if level := os.Getenv("SITESYNC_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if workers := os.Getenv("SITESYNC_SYNC_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil && w > 0 {
			config.Sync.WorkerCount = w
		}
	}
	if timeout := os.Getenv("SITESYNC_JOB_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Sync.JobTimeout = d
		}
	}

	if schedule := os.Getenv("SITESYNC_SCHEDULER_SCHEDULE"); schedule != "" {
		config.Scheduler.Schedule = schedule
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime behavior.
func (c *Config) Validate() error {
	if c.Sync.WorkerCount < 1 {
		return fmt.Errorf("sync.worker_count must be at least 1")
	}
	if c.Sync.JobTimeout <= 0 {
		return fmt.Errorf("sync.job_timeout must be positive")
	}
	if c.Discovery.RetryAttempts < 1 {
		return fmt.Errorf("discovery.retry_attempts must be at least 1")
	}
	if c.Scheduler.Schedule != "" {
		if _, err := cron.ParseStandard(c.Scheduler.Schedule); err != nil {
			return fmt.Errorf("invalid scheduler cron expression %q: %w", c.Scheduler.Schedule, err)
		}
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
