// Package config collects run settings from defaults, an optional YAML file,
// and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultAPIURL is where the summarization service listens locally.
	DefaultAPIURL = "http://localhost:4021"

	// DefaultMaxValue caps a single payment at 0.01 USDC (atomic units).
	DefaultMaxValue = 10000

	defaultDataDir      = "./data"
	defaultPollInterval = 4 * time.Second
	defaultMaxPolls     = 150
	defaultPaidTimeout  = 60 * time.Second
)

// Config holds everything a probe run needs.
type Config struct {
	APIURL       string
	PrivateKey   string
	DataDir      string
	PollInterval time.Duration
	MaxPolls     int
	MaxValue     uint64
	PaidTimeout  time.Duration
}

// fileConfig is the YAML shape; durations are parsed from strings.
type fileConfig struct {
	APIURL       string `yaml:"api_url"`
	DataDir      string `yaml:"data_dir"`
	PollInterval string `yaml:"poll_interval"`
	MaxPolls     int    `yaml:"max_polls"`
	MaxValue     uint64 `yaml:"max_value"`
	PaidTimeout  string `yaml:"paid_timeout"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		APIURL:       DefaultAPIURL,
		DataDir:      defaultDataDir,
		PollInterval: defaultPollInterval,
		MaxPolls:     defaultMaxPolls,
		MaxValue:     DefaultMaxValue,
		PaidTimeout:  defaultPaidTimeout,
	}
}

// Load builds the config from defaults, then the YAML file at path (skipped
// when path is empty or the file does not exist), then the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnvOverrides()

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if fc.APIURL != "" {
		c.APIURL = fc.APIURL
	}
	if fc.DataDir != "" {
		c.DataDir = fc.DataDir
	}
	if fc.MaxPolls > 0 {
		c.MaxPolls = fc.MaxPolls
	}
	if fc.MaxValue > 0 {
		c.MaxValue = fc.MaxValue
	}
	if fc.PollInterval != "" {
		d, err := time.ParseDuration(fc.PollInterval)
		if err != nil {
			return fmt.Errorf("parse poll_interval in %s: %w", path, err)
		}
		c.PollInterval = d
	}
	if fc.PaidTimeout != "" {
		d, err := time.ParseDuration(fc.PaidTimeout)
		if err != nil {
			return fmt.Errorf("parse paid_timeout in %s: %w", path, err)
		}
		c.PaidTimeout = d
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv("PRIVATE_KEY"); v != "" {
		c.PrivateKey = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("MAX_VALUE"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.MaxValue = n
		}
	}
}

// Validate checks the config before any network call is made.
func (c *Config) Validate() error {
	if c.PrivateKey == "" {
		return fmt.Errorf("PRIVATE_KEY is not set")
	}
	if c.APIURL == "" {
		return fmt.Errorf("api url is empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.MaxPolls <= 0 {
		return fmt.Errorf("max polls must be positive")
	}
	if c.MaxValue == 0 {
		return fmt.Errorf("max payment value must be positive")
	}
	if c.PaidTimeout <= 0 {
		return fmt.Errorf("paid request timeout must be positive")
	}
	return nil
}
