// Package config loads the client configuration and the clinic hours file.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	API struct {
		BaseURL            string  `yaml:"base_url"`
		TimeoutSeconds     int     `yaml:"timeout_seconds"`
		RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
		RateBurst          int     `yaml:"rate_burst"`
		CacheTTLSeconds    int     `yaml:"cache_ttl_seconds"`
	} `yaml:"api"`

	Database struct {
		Path                  string `yaml:"path"`
		ActivityRetentionDays int    `yaml:"activity_retention_days"`
	} `yaml:"database"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking struct {
		StrictTransitions   bool `yaml:"strict_transitions"`
		PollIntervalSeconds int  `yaml:"poll_interval_seconds"`
	} `yaml:"booking"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	ClinicConfigPath string `yaml:"clinic_config_path"`
}

// Load reads path (default configs/config.yaml). Variables from a .env file
// next to the working directory are loaded first so ${VAR} placeholders can
// refer to them. A missing config file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		// Support ${ENV_VAR} placeholders in YAML config.
		data = []byte(os.ExpandEnv(string(data)))
		if err = yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyDefaults()

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if v := os.Getenv("DISPENSARY_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://localhost:8080"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/dispensary.db"
	}
	if c.ClinicConfigPath == "" {
		c.ClinicConfigPath = "configs/clinic.yaml"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) APITimeout() time.Duration {
	if c.API.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	if c.API.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.API.CacheTTLSeconds) * time.Second
}

func (c *Config) PollInterval() time.Duration {
	if c.Booking.PollIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.Booking.PollIntervalSeconds) * time.Second
}

func (c *Config) ActivityRetention() time.Duration {
	if c.Database.ActivityRetentionDays <= 0 {
		return 31 * 24 * time.Hour
	}
	return time.Duration(c.Database.ActivityRetentionDays) * 24 * time.Hour
}

// LoadClinic loads the clinic hours file, falling back to defaults when it does not exist.
func (c *Config) LoadClinic() (*ClinicConfig, error) {
	if _, err := os.Stat(c.ClinicConfigPath); errors.Is(err, fs.ErrNotExist) {
		return DefaultClinicConfig(), nil
	}
	return LoadClinicConfig(c.ClinicConfigPath)
}
