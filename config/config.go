package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Exchange ExchangeConfig `yaml:"exchange"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateBurst       int     `yaml:"rate_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration. An empty DSN
// selects the local SQLite fallback; DATABASE_URL overrides the DSN.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// ExchangeConfig holds per-cycle defaults for the marketplace.
type ExchangeConfig struct {
	SubmissionWindowHours int           `yaml:"submission_window_hours"`
	SubmissionWindow      time.Duration `yaml:"-"` // ignored by the YAML parser
}

// Load reads the configuration from the given path. A missing file is not an
// error: the server then runs entirely on defaults, the way local development
// expects.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	f, err := os.Open(path)
	if err == nil {
		defer f.Close()
		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateBurst <= 0 {
		cfg.Server.RateBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}
	if cfg.Exchange.SubmissionWindowHours <= 0 {
		cfg.Exchange.SubmissionWindowHours = 72
	}
	cfg.Exchange.SubmissionWindow = time.Duration(cfg.Exchange.SubmissionWindowHours) * time.Hour

	return cfg, nil
}
