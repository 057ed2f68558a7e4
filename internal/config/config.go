// Package config resolves runtime settings for the data manager: explicit
// argument, then environment variable, then a built-in default, in that
// order. Grounded on the teacher's internal/config/providers.go YAML
// schema and Validate() pattern, generalized from a provider-rps/budget
// shape to this engine's venue, cache, and network knobs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// VenueConfig holds per-venue tuning, mirroring the teacher's
// ProviderConfig (rps/burst/backoff/circuit) narrowed to what the REST
// chunking engine and circuit breaker manager consume.
type VenueConfig struct {
	Host          string        `yaml:"host"`
	RPS           float64       `yaml:"rps"`
	Burst         int           `yaml:"burst"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	BackoffBase   time.Duration `yaml:"backoff_base"`
}

// Config is the resolved set of knobs for one Manager instance.
type Config struct {
	CacheDir        string                 `yaml:"cache_dir"`
	RedisAddr       string                 `yaml:"redis_addr"`
	NegativeCacheTTL time.Duration         `yaml:"negative_cache_ttl"`
	DatabaseURL     string                 `yaml:"database_url"`
	MaxConcurrency  int                    `yaml:"max_concurrency"`
	Venues          map[string]VenueConfig `yaml:"venues"`
}

// Default returns the built-in configuration used when neither an
// explicit argument nor an environment variable supplies a value.
func Default() Config {
	return Config{
		CacheDir:         "./.marketdata-cache",
		RedisAddr:        "",
		NegativeCacheTTL: 5 * time.Minute,
		DatabaseURL:      "",
		MaxConcurrency:   8,
		Venues: map[string]VenueConfig{
			"binance": {Host: "api.binance.com", RPS: 20, Burst: 40, RequestTimeout: 10 * time.Second, MaxRetries: 3, BackoffBase: 250 * time.Millisecond},
			"okx":     {Host: "www.okx.com", RPS: 10, Burst: 20, RequestTimeout: 10 * time.Second, MaxRetries: 3, BackoffBase: 250 * time.Millisecond},
		},
	}
}

// Load resolves configuration: start from Default(), overlay a YAML file
// at path if provided and present, then overlay recognized environment
// variables, which always win over file content.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: invalid: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MARKETDATA_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("MARKETDATA_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("MARKETDATA_MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConcurrency = n
		}
	}
	if v := os.Getenv("MARKETDATA_NEGATIVE_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.NegativeCacheTTL = d
		}
	}
}

// Validate ensures the resolved configuration is internally consistent.
func (c Config) Validate() error {
	if c.CacheDir == "" {
		return fmt.Errorf("cache_dir cannot be empty")
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("max_concurrency must be positive, got %d", c.MaxConcurrency)
	}
	if len(c.Venues) == 0 {
		return fmt.Errorf("at least one venue must be configured")
	}
	for name, v := range c.Venues {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("venue %s: %w", name, err)
		}
	}
	return nil
}

func (v VenueConfig) Validate() error {
	if v.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if v.RPS <= 0 {
		return fmt.Errorf("rps must be positive, got %f", v.RPS)
	}
	if v.Burst <= 0 {
		return fmt.Errorf("burst must be positive, got %d", v.Burst)
	}
	if v.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", v.MaxRetries)
	}
	return nil
}
