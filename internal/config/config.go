package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for skoda-watch
type Config struct {
	// Vehicle selection
	VIN string `yaml:"vin"`

	// Authentication
	AccessToken string `yaml:"access_token"` // Usually left empty, token cache is preferred
	TokenCache  string `yaml:"token_cache"`
	SPIN        string `yaml:"spin"`

	// Polling
	PollInterval time.Duration `yaml:"poll_interval"`
	Cooldown     time.Duration `yaml:"cooldown"`

	// Event stream
	BrokerURL string `yaml:"broker_url"` // Empty uses the MySkoda broker

	// Safety
	ReadOnly             bool     `yaml:"read_only"`
	ExcludedCapabilities []string `yaml:"excluded_capabilities"`

	// Output
	Quiet   bool `yaml:"quiet"`
	Verbose bool `yaml:"verbose"`
}

// Load loads configuration from multiple sources in priority order:
// 1. Environment variables
// 2. Config file (~/.config/skoda-watch/config.yaml)
// 3. Defaults
//
// Note: CLI flags are applied separately by the caller and take highest precedence
func Load() (*Config, error) {
	cfg := &Config{
		TokenCache:   defaultTokenCachePath(),
		PollInterval: 30 * time.Minute,
		Cooldown:     30 * time.Second,
	}

	// Load from config file if it exists
	if err := cfg.loadFromFile(); err != nil {
		// Non-fatal: config file is optional
		_ = err
	}

	// Override with environment variables
	cfg.loadFromEnv()

	return cfg, nil
}

// Validate checks that the configuration is usable for a watch run.
func (c *Config) Validate() error {
	if c.VIN == "" {
		return fmt.Errorf("vin is required (set SKODA_VIN or vin in config.yaml)")
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", c.PollInterval)
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("cooldown must be positive, got %v", c.Cooldown)
	}
	return nil
}

// loadFromFile loads configuration from ~/.config/skoda-watch/config.yaml
func (c *Config) loadFromFile() error {
	configPath := getConfigPath()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // Config file is optional
		}
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if vin := os.Getenv("SKODA_VIN"); vin != "" {
		c.VIN = vin
	}

	if token := os.Getenv("SKODA_ACCESS_TOKEN"); token != "" {
		c.AccessToken = token
	}

	if tokenCache := os.Getenv("SKODA_TOKEN_CACHE"); tokenCache != "" {
		c.TokenCache = tokenCache
	}

	if spin := os.Getenv("SKODA_SPIN"); spin != "" {
		c.SPIN = spin
	}

	if broker := os.Getenv("SKODA_BROKER_URL"); broker != "" {
		c.BrokerURL = broker
	}

	if os.Getenv("SKODA_READ_ONLY") == "true" {
		c.ReadOnly = true
	}

	if os.Getenv("SKODA_QUIET") == "true" {
		c.Quiet = true
	}

	if os.Getenv("SKODA_VERBOSE") == "true" {
		c.Verbose = true
	}

	if interval := os.Getenv("SKODA_POLL_INTERVAL"); interval != "" {
		if duration, err := time.ParseDuration(interval); err == nil {
			c.PollInterval = duration
		}
	}

	if cooldown := os.Getenv("SKODA_COOLDOWN"); cooldown != "" {
		if duration, err := time.ParseDuration(cooldown); err == nil {
			c.Cooldown = duration
		}
	}
}

// getConfigPath returns the path to the config file
func getConfigPath() string {
	// Try XDG_CONFIG_HOME first
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "skoda-watch", "config.yaml")
	}

	// Fall back to ~/.config
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "skoda-watch", "config.yaml")
}

// defaultTokenCachePath returns the default token cache path
func defaultTokenCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "credentials.json"
	}

	return filepath.Join(home, ".local", "share", "skoda-watch", "credentials.json")
}
