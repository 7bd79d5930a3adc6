// Package config provides configuration management.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"tariff-engine/internal/logging"
)

// Config is the main application configuration
type Config struct {
	// Version is the configuration version
	Version string `json:"version"`

	// Upstream contains tariff data source configuration
	Upstream UpstreamConfig `json:"upstream"`

	// Breaker contains circuit breaker configuration
	Breaker BreakerConfig `json:"breaker"`

	// Cache contains result cache configuration
	Cache CacheConfig `json:"cache"`

	// Search contains search defaults
	Search SearchConfig `json:"search"`

	// Alias contains the optional keyword-alias source configuration
	Alias AliasConfig `json:"alias,omitempty"`

	// Server contains HTTP server configuration
	Server ServerConfig `json:"server"`

	// Logging contains logging configuration
	Logging logging.Config `json:"logging"`
}

// UpstreamConfig contains tariff data source settings
type UpstreamConfig struct {
	// BaseURL is the upstream tariff schedule API base URL
	BaseURL string `json:"base_url"`

	// ProxyBase, when set, rewrites every upstream URL through a proxy
	ProxyBase string `json:"proxy_base,omitempty"`

	// TimeoutMs bounds each logical upstream call
	TimeoutMs int `json:"timeout_ms"`

	// MaxAttempts bounds retries within one logical call
	MaxAttempts int `json:"max_attempts"`

	// BackoffBaseMs is the base for exponential retry backoff
	BackoffBaseMs int `json:"backoff_base_ms"`
}

// BreakerConfig contains circuit breaker settings
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens a circuit
	FailureThreshold int `json:"failure_threshold"`

	// CooldownMs is how long an open circuit rejects calls before half-open
	CooldownMs int `json:"cooldown_ms"`
}

// CacheConfig contains result cache settings
type CacheConfig struct {
	// Capacity is the maximum number of cached search results
	Capacity int `json:"capacity"`

	// SnapshotPath, when set, enables the durable last-good snapshot store
	SnapshotPath string `json:"snapshot_path,omitempty"`
}

// SearchConfig contains search defaults
type SearchConfig struct {
	// DefaultLimit is the page size when the caller gives none
	DefaultLimit int `json:"default_limit"`

	// FuzzyEdits is the edit-distance cap for fuzzy token matching
	FuzzyEdits int `json:"fuzzy_edits"`
}

// AliasConfig contains the optional Postgres alias-source settings
type AliasConfig struct {
	// DSN is the Postgres connection string; empty disables the source
	DSN string `json:"dsn,omitempty"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	// Address to listen on
	Address string `json:"address"`

	// ReadTimeoutMs for requests
	ReadTimeoutMs int `json:"read_timeout_ms"`

	// WriteTimeoutMs for responses
	WriteTimeoutMs int `json:"write_timeout_ms"`

	// EnableCORS enables CORS headers
	EnableCORS bool `json:"enable_cors"`
}

// Default returns a default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	snapshotPath := filepath.Join(homeDir, ".tariff-engine", "snapshots.db")

	return &Config{
		Version: "1.0",
		Upstream: UpstreamConfig{
			BaseURL:       "https://hts.usitc.gov/reststop",
			TimeoutMs:     8000,
			MaxAttempts:   3,
			BackoffBaseMs: 250,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			CooldownMs:       30000,
		},
		Cache: CacheConfig{
			Capacity:     200,
			SnapshotPath: snapshotPath,
		},
		Search: SearchConfig{
			DefaultLimit: 25,
			FuzzyEdits:   1,
		},
		Server: ServerConfig{
			Address:        ":8080",
			ReadTimeoutMs:  30000,
			WriteTimeoutMs: 60000,
			EnableCORS:     true,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, err
	}

	return config, nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Global configuration instance
var globalConfig = Default()

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// Set sets the global configuration
func Set(config *Config) {
	globalConfig = config
}
