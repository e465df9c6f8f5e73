// Package config loads and validates the YAML application configuration.
// Credentials can be overridden from the environment so tokens never need
// to live in the file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable overrides for credentials.
const (
	EnvToken     = "UBI_TOKEN"
	EnvSessionID = "UBI_SESSION_ID"
)

// Config is the full application configuration.
type Config struct {
	SpaceID string  `yaml:"space_id"`
	Auth    Auth    `yaml:"auth"`
	Scan    Scan    `yaml:"scan"`
	Resolve Resolve `yaml:"resolve"`
	Scoring Scoring `yaml:"scoring"`
	Storage Storage `yaml:"storage"`
	Server  Server  `yaml:"server"`
	Windows []int   `yaml:"windows"`
}

// Auth carries the marketplace session credentials.
type Auth struct {
	Token     string `yaml:"token"`
	SessionID string `yaml:"session_id"`
	AppID     string `yaml:"app_id"`
	Locale    string `yaml:"locale"`
}

// Scan configures the catalog walk.
type Scan struct {
	PageSize      int `yaml:"page_size"`
	TargetCount   int `yaml:"target_count"`
	MinSellPrice  int `yaml:"min_sell_price"`
	MaxSellPrice  int `yaml:"max_sell_price"`
	MinSellOrders int `yaml:"min_sell_orders"`
	MinBuyOrders  int `yaml:"min_buy_orders"`
	PageDelaySec  int `yaml:"page_delay_seconds"`
}

// Resolve configures the batched resolver.
type Resolve struct {
	BatchSize    int `yaml:"batch_size"`
	MaxAttempts  int `yaml:"max_attempts"`
	BaseDelaySec int `yaml:"base_delay_seconds"`
	Concurrency  int `yaml:"concurrency"`
	TimeoutSec   int `yaml:"timeout_seconds"`
}

// Scoring configures the profitability ranker.
type Scoring struct {
	FeeRate               float64 `yaml:"fee_rate"`
	SpreadProfitThreshold float64 `yaml:"spread_profit_threshold"`
}

// Storage configures the optional persistence backends. Empty DSNs disable
// the backend; runs then keep everything in memory.
type Storage struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

// Server configures the report server.
type Server struct {
	Addr            string `yaml:"addr"`
	ScanIntervalMin int    `yaml:"scan_interval_minutes"`
}

// Default returns the configuration used when a field is absent.
func Default() *Config {
	return &Config{
		SpaceID: "0d2ae42d-4c27-4cb7-af6c-2099062302bb",
		Auth: Auth{
			AppID:  "80a4a0e8-8797-440f-8f4c-eaba87d0fdda",
			Locale: "en-US",
		},
		Scan: Scan{
			PageSize:      50,
			TargetCount:   100,
			MinSellPrice:  10,
			MinSellOrders: 1,
			MinBuyOrders:  1,
			PageDelaySec:  1,
		},
		Resolve: Resolve{
			BatchSize:    10,
			MaxAttempts:  5,
			BaseDelaySec: 10,
			Concurrency:  1,
			TimeoutSec:   30,
		},
		Scoring: Scoring{
			FeeRate:               0.10,
			SpreadProfitThreshold: 0.10,
		},
		Server: Server{
			Addr:            ":8080",
			ScanIntervalMin: 30,
		},
		Windows: []int{7, 14},
	}
}

// Load reads, merges with defaults, applies environment overrides, and
// validates a configuration file.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config from YAML: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load when path is non-empty, and otherwise
// returns the default configuration with environment overrides applied.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	cfg := Default()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvToken); v != "" {
		c.Auth.Token = v
	}
	if v := os.Getenv(EnvSessionID); v != "" {
		c.Auth.SessionID = v
	}
}

// Validate performs basic configuration validation.
func (c *Config) Validate() error {
	if c.SpaceID == "" {
		return fmt.Errorf("space_id cannot be empty")
	}
	if c.Scan.PageSize <= 0 {
		return fmt.Errorf("scan page_size must be greater than 0")
	}
	if c.Scan.MaxSellPrice > 0 && c.Scan.MaxSellPrice < c.Scan.MinSellPrice {
		return fmt.Errorf("scan max_sell_price %d is below min_sell_price %d", c.Scan.MaxSellPrice, c.Scan.MinSellPrice)
	}
	if c.Resolve.BatchSize <= 0 {
		return fmt.Errorf("resolve batch_size must be greater than 0")
	}
	if c.Resolve.MaxAttempts <= 0 {
		return fmt.Errorf("resolve max_attempts must be greater than 0")
	}
	if c.Resolve.Concurrency <= 0 {
		return fmt.Errorf("resolve concurrency must be greater than 0")
	}
	if c.Scoring.FeeRate < 0 || c.Scoring.FeeRate >= 1 {
		return fmt.Errorf("scoring fee_rate %f must be in [0, 1)", c.Scoring.FeeRate)
	}
	if c.Scoring.SpreadProfitThreshold < 0 {
		return fmt.Errorf("scoring spread_profit_threshold cannot be negative")
	}
	if len(c.Windows) == 0 {
		return fmt.Errorf("at least one aggregation window must be configured")
	}
	for i, w := range c.Windows {
		if w <= 0 {
			return fmt.Errorf("window %d must be greater than 0 days, got %d", i, w)
		}
	}
	if c.Server.ScanIntervalMin <= 0 {
		return fmt.Errorf("server scan_interval_minutes must be greater than 0")
	}
	return nil
}

// PageDelay returns the catalog inter-page delay as a duration.
func (c *Config) PageDelay() time.Duration {
	return time.Duration(c.Scan.PageDelaySec) * time.Second
}

// BaseDelay returns the resolver retry base delay as a duration.
func (c *Config) BaseDelay() time.Duration {
	return time.Duration(c.Resolve.BaseDelaySec) * time.Second
}

// RequestTimeout returns the transport timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Resolve.TimeoutSec) * time.Second
}

// ScanInterval returns the server's scheduled scan interval.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Server.ScanIntervalMin) * time.Minute
}
