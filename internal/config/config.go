// Package config provides YAML configuration loading and validation for the
// extractor. It handles environment variable expansion, default value
// application, and ensures the endpoint configuration is usable.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure loaded from YAML.
type Config struct {
	Endpoint  Endpoint  `yaml:"endpoint"`
	Retry     Retry     `yaml:"retry"`
	RateLimit RateLimit `yaml:"rate_limit"`
	Breaker   Breaker   `yaml:"breaker"`
	Cache     Cache     `yaml:"cache"`
	Limits    Limits    `yaml:"limits"`
	Log       Log       `yaml:"log"`
}

// Endpoint is the single Ethereum JSON-RPC node the extractor talks to.
// The URL supports ${VAR} environment expansion.
type Endpoint struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Retry controls transport-level retry of transient failures.
type Retry struct {
	MaxRetries  int           `yaml:"max_retries"`
	BackoffBase time.Duration `yaml:"backoff_base"`
}

// RateLimit is the client-side request rate limit. Zero RPS disables it.
type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Breaker configures the circuit breaker on the HTTP send path.
type Breaker struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

// Cache bounds the in-memory memoization of immutable chain data.
type Cache struct {
	Capacity int `yaml:"capacity"`
	// FinalityDepth is how many blocks behind the head a block must be
	// before its contents are cached.
	FinalityDepth uint64 `yaml:"finality_depth"`
}

// Limits bounds the cost of a single multi-block operation.
type Limits struct {
	MaxLatestBlocks      int `yaml:"max_latest_blocks"`
	MaxRangeBlocks       int `yaml:"max_range_blocks"`
	BatchSize            int `yaml:"batch_size"`
	MaxConcurrentBatches int `yaml:"max_concurrent_batches"`
}

// Log controls the structured logger.
type Log struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console or json
}

// Validate checks required fields and applies defaults. Only the endpoint
// URL is strictly required; every tunable has a sensible default.
func (c *Config) Validate() error {
	if c.Endpoint.URL == "" {
		return fmt.Errorf("endpoint.url is required")
	}
	u, err := url.Parse(c.Endpoint.URL)
	if err != nil {
		return fmt.Errorf("endpoint.url: invalid url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("endpoint.url: invalid url (missing scheme or host)")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint.url: invalid scheme %q (expected http or https)", u.Scheme)
	}

	if c.Endpoint.Timeout == 0 {
		c.Endpoint.Timeout = 10 * time.Second
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must be >= 0")
	}
	if c.Retry.MaxRetries == 0 {
		c.Retry.MaxRetries = 3
	}
	if c.Retry.BackoffBase == 0 {
		c.Retry.BackoffBase = 200 * time.Millisecond
	}
	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("rate_limit.rps must be >= 0")
	}
	if c.Breaker.MaxFailures == 0 {
		c.Breaker.MaxFailures = 5
	}
	if c.Breaker.OpenTimeout == 0 {
		c.Breaker.OpenTimeout = 30 * time.Second
	}
	if c.Cache.Capacity == 0 {
		c.Cache.Capacity = 10000
	}
	if c.Cache.Capacity < 0 {
		return fmt.Errorf("cache.capacity must be >= 0")
	}
	if c.Cache.FinalityDepth == 0 {
		c.Cache.FinalityDepth = 64
	}
	if c.Limits.MaxLatestBlocks == 0 {
		c.Limits.MaxLatestBlocks = 1000
	}
	if c.Limits.MaxRangeBlocks == 0 {
		c.Limits.MaxRangeBlocks = 1000
	}
	if c.Limits.BatchSize == 0 {
		c.Limits.BatchSize = 100
	}
	if c.Limits.MaxConcurrentBatches == 0 {
		c.Limits.MaxConcurrentBatches = 4
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
}

// Load reads and parses a YAML configuration file, expanding environment
// variables and validating the result. URLs can use ${VAR} syntax, e.g.
// url: ${ALCHEMY_URL}.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated configuration for the given endpoint URL,
// used when no config file is supplied.
func Default(endpointURL string) (*Config, error) {
	cfg := &Config{Endpoint: Endpoint{URL: endpointURL}}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
