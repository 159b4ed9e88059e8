package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Backend    BackendConfig    `yaml:"backend"`
	State      StateConfig      `yaml:"state"`
	Day        DayConfig        `yaml:"day"`
	Sync       SyncConfig       `yaml:"sync"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
	MaxUploadMB     int     `yaml:"max_upload_mb"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DatabaseConfig holds the database connection configuration.
// Driver is "sqlite" or "postgres".
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"`
}

// BackendConfig selects and configures the backing store.
// Kind is "gorm" (self-hosted on Database) or "rest" (hosted auth/rest service).
type BackendConfig struct {
	Kind           string `yaml:"kind"`
	URL            string `yaml:"url"`
	Key            string `yaml:"key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	SessionTTLMin  int    `yaml:"session_ttl_minutes"`
}

// StateConfig holds local storage locations.
type StateConfig struct {
	Dir      string `yaml:"dir"`
	PhotoDir string `yaml:"photo_dir"`
}

// DayConfig holds defaults applied when a day is started.
type DayConfig struct {
	Timezone          string `yaml:"timezone"`
	Merchandiser      string `yaml:"merchandiser"`
	TravelBufferMin   int    `yaml:"travel_buffer_min"`
	DefaultEstMinutes int    `yaml:"default_est_minutes"`
}

// SyncConfig controls the queue drain and session poll loops.
type SyncConfig struct {
	Enabled            bool          `yaml:"enabled"`
	IntervalSeconds    int           `yaml:"interval_seconds"`
	Interval           time.Duration `yaml:"-"`
	SessionPollSeconds int           `yaml:"session_poll_seconds"`
	SessionPoll        time.Duration `yaml:"-"`
	Workers            int           `yaml:"workers"`
	MaxBackoffSeconds  int           `yaml:"max_backoff_seconds"`
	MaxBackoff         time.Duration `yaml:"-"`
}

// PushConfig holds the VAPID keys for urgent-issue web push alerts.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// Load reads the configuration from the given path. A missing file yields the
// defaults; environment overrides are applied last.
func Load(path string) (*Config, error) {
	var cfg Config

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a configuration holding only defaults.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}
	if cfg.Server.MaxUploadMB <= 0 {
		cfg.Server.MaxUploadMB = 16
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "./data/axis.db"
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}

	if cfg.Backend.Kind == "" {
		cfg.Backend.Kind = "gorm"
	}
	if cfg.Backend.TimeoutSeconds <= 0 {
		cfg.Backend.TimeoutSeconds = 30
	}
	if cfg.Backend.SessionTTLMin <= 0 {
		cfg.Backend.SessionTTLMin = 12 * 60
	}

	if cfg.State.Dir == "" {
		cfg.State.Dir = "./data/state"
	}
	if cfg.State.PhotoDir == "" {
		cfg.State.PhotoDir = "./data/photos"
	}

	if cfg.Day.Timezone == "" {
		cfg.Day.Timezone = "UTC"
	}
	if cfg.Day.TravelBufferMin <= 0 {
		cfg.Day.TravelBufferMin = 15
	}
	if cfg.Day.DefaultEstMinutes <= 0 {
		cfg.Day.DefaultEstMinutes = 35
	}

	if cfg.Sync.IntervalSeconds <= 0 {
		cfg.Sync.IntervalSeconds = 30
	}
	cfg.Sync.Interval = time.Duration(cfg.Sync.IntervalSeconds) * time.Second
	if cfg.Sync.SessionPollSeconds <= 0 {
		cfg.Sync.SessionPollSeconds = 4
	}
	cfg.Sync.SessionPoll = time.Duration(cfg.Sync.SessionPollSeconds) * time.Second
	if cfg.Sync.Workers <= 0 {
		cfg.Sync.Workers = 4
	}
	if cfg.Sync.MaxBackoffSeconds <= 0 {
		cfg.Sync.MaxBackoffSeconds = 600
	}
	cfg.Sync.MaxBackoff = time.Duration(cfg.Sync.MaxBackoffSeconds) * time.Second

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}
}

// applyEnv overrides file values with AXIS_* environment variables.
func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("AXIS_PORT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v, ok := os.LookupEnv("AXIS_LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	if v, ok := os.LookupEnv("AXIS_DB_DRIVER"); ok {
		cfg.Database.Driver = v
	}
	if v, ok := os.LookupEnv("AXIS_DB_DSN"); ok {
		cfg.Database.DSN = v
	}
	if v, ok := os.LookupEnv("AXIS_BACKEND_KIND"); ok {
		cfg.Backend.Kind = v
	}
	if v, ok := os.LookupEnv("AXIS_BACKEND_URL"); ok {
		cfg.Backend.URL = v
	}
	if v, ok := os.LookupEnv("AXIS_BACKEND_KEY"); ok {
		cfg.Backend.Key = v
	}
	if v, ok := os.LookupEnv("AXIS_STATE_DIR"); ok {
		cfg.State.Dir = v
	}
	if v, ok := os.LookupEnv("AXIS_PHOTO_DIR"); ok {
		cfg.State.PhotoDir = v
	}
	if v, ok := os.LookupEnv("AXIS_TIMEZONE"); ok {
		cfg.Day.Timezone = v
	}
	if v, ok := os.LookupEnv("AXIS_SYNC_ENABLED"); ok {
		cfg.Sync.Enabled = v == "1" || v == "true"
	}
}

// Location returns the configured day timezone, falling back to UTC.
func (c DayConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
