package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Store holds connection parameters for the Redis host store.
type Store struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Cookie is the session cookie policy. It is consumed by the request-layer
// middleware; the core logic never reads it.
type Cookie struct {
	Name     string `mapstructure:"name"`
	Secure   bool   `mapstructure:"secure"`
	HTTPOnly bool   `mapstructure:"http_only"`
	SameSite string `mapstructure:"same_site"` // "lax", "strict" or "none"
}

// Concurrency is the per-user session bound policy.
type Concurrency struct {
	Enabled            bool `mapstructure:"enabled"`
	MaxSessionsPerUser int  `mapstructure:"max_sessions_per_user"`
}

// Monitor configures the supervisory loop.
type Monitor struct {
	CleanupInterval  time.Duration `mapstructure:"cleanup_interval"`
	MetricsInterval  time.Duration `mapstructure:"metrics_interval"`
	AlertCooldown    time.Duration `mapstructure:"alert_cooldown"`
	SessionThreshold int           `mapstructure:"session_threshold"`
	MemoryBudget     int64         `mapstructure:"memory_budget_bytes"`
	EventBuffer      int           `mapstructure:"event_buffer"`
}

// Config is immutable for the lifetime of a manager instance.
type Config struct {
	Store       Store         `mapstructure:"store"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	Cookie      Cookie        `mapstructure:"cookie"`
	MaxAge      time.Duration `mapstructure:"max_age"`
	ScanTimeout time.Duration `mapstructure:"scan_timeout"`
	Concurrency Concurrency   `mapstructure:"concurrency"`
	Monitor     Monitor       `mapstructure:"monitor"`
	AdminAddr   string        `mapstructure:"admin_addr"`
	LogLevel    string        `mapstructure:"log_level"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		Store:       Store{Address: "localhost:6379"},
		KeyPrefix:   "sess:",
		Cookie:      Cookie{Name: "sessiond.sid", Secure: true, HTTPOnly: true, SameSite: "lax"},
		MaxAge:      24 * time.Hour,
		ScanTimeout: 30 * time.Second,
		Concurrency: Concurrency{Enabled: true, MaxSessionsPerUser: 3},
		Monitor: Monitor{
			CleanupInterval:  60 * time.Second,
			MetricsInterval:  30 * time.Second,
			AlertCooldown:    5 * time.Minute,
			SessionThreshold: 10000,
			MemoryBudget:     256 << 20,
			EventBuffer:      64,
		},
		AdminAddr: ":8089",
		LogLevel:  "info",
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// SESSIOND_* environment overrides, in that precedence order.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}

		var tree map[string]any
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}

		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		})
		if err != nil {
			return cfg, err
		}
		if err := dec.Decode(tree); err != nil {
			return cfg, fmt.Errorf("invalid config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the core cannot operate with.
func (c Config) Validate() error {
	if c.KeyPrefix == "" {
		return fmt.Errorf("key_prefix must not be empty")
	}
	if c.MaxAge <= 0 {
		return fmt.Errorf("max_age must be positive")
	}
	if c.Concurrency.Enabled && c.Concurrency.MaxSessionsPerUser < 1 {
		return fmt.Errorf("max_sessions_per_user must be at least 1")
	}
	if c.Monitor.CleanupInterval <= 0 {
		return fmt.Errorf("cleanup_interval must be positive")
	}
	if c.Monitor.MetricsInterval <= 0 {
		return fmt.Errorf("metrics_interval must be positive")
	}
	return nil
}

func applyEnv(cfg *Config) {
	envString("SESSIOND_REDIS_ADDR", &cfg.Store.Address)
	envString("SESSIOND_REDIS_PASSWORD", &cfg.Store.Password)
	envInt("SESSIOND_REDIS_DB", &cfg.Store.DB)
	envString("SESSIOND_KEY_PREFIX", &cfg.KeyPrefix)
	envString("SESSIOND_COOKIE_NAME", &cfg.Cookie.Name)
	envBool("SESSIOND_COOKIE_SECURE", &cfg.Cookie.Secure)
	envDuration("SESSIOND_MAX_AGE", &cfg.MaxAge)
	envBool("SESSIOND_CONCURRENCY_ENABLED", &cfg.Concurrency.Enabled)
	envInt("SESSIOND_MAX_SESSIONS_PER_USER", &cfg.Concurrency.MaxSessionsPerUser)
	envDuration("SESSIOND_CLEANUP_INTERVAL", &cfg.Monitor.CleanupInterval)
	envDuration("SESSIOND_METRICS_INTERVAL", &cfg.Monitor.MetricsInterval)
	envDuration("SESSIOND_ALERT_COOLDOWN", &cfg.Monitor.AlertCooldown)
	envInt("SESSIOND_SESSION_THRESHOLD", &cfg.Monitor.SessionThreshold)
	envString("SESSIOND_ADMIN_ADDR", &cfg.AdminAddr)
	envString("SESSIOND_LOG_LEVEL", &cfg.LogLevel)
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
