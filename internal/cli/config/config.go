// Package config loads the lodestar server configuration from
// lodestar.yml/lodestar.yaml and the environment.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Source selects where workspace content comes from.
type Source string

const (
	// SourceLocal reads the workspace from local disk.
	SourceLocal Source = "local"
	// SourceRemote fetches the workspace from the editor client over the
	// LSP connection.
	SourceRemote Source = "remote"
)

// Config represents the lodestar configuration.
type Config struct {
	// Source selects the content source implementation.
	Source Source `mapstructure:"source"`

	Fetch FetchConfig `mapstructure:"fetch"`
	Crawl CrawlConfig `mapstructure:"crawl"`
	Log   LogConfig   `mapstructure:"log"`
}

// FetchConfig bounds content fetching.
type FetchConfig struct {
	// Concurrency is the maximum number of simultaneous content fetches.
	Concurrency int `mapstructure:"concurrency"`
}

// CrawlConfig bounds dependency traversal.
type CrawlConfig struct {
	// Depth is the transitive dependency depth bound.
	Depth int `mapstructure:"depth"`
}

// LogConfig controls logging output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`
}

// Load loads the configuration from lodestar.yml or lodestar.yaml, falling
// back to defaults when no file exists.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("source", string(SourceLocal))
	v.SetDefault("fetch.concurrency", 100)
	v.SetDefault("crawl.depth", 30)
	v.SetDefault("log.level", "info")

	v.SetConfigName("lodestar")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("lodestar")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// Default returns the built-in configuration, used by tests and embedders.
func Default() *Config {
	return &Config{
		Source: SourceLocal,
		Fetch:  FetchConfig{Concurrency: 100},
		Crawl:  CrawlConfig{Depth: 30},
		Log:    LogConfig{Level: "info"},
	}
}

func validateConfig(config *Config) error {
	switch config.Source {
	case SourceLocal, SourceRemote:
	default:
		return fmt.Errorf("invalid source %q: must be %q or %q", config.Source, SourceLocal, SourceRemote)
	}
	if config.Fetch.Concurrency < 0 {
		return fmt.Errorf("fetch.concurrency must not be negative, got %d", config.Fetch.Concurrency)
	}
	if config.Crawl.Depth < 0 {
		return fmt.Errorf("crawl.depth must not be negative, got %d", config.Crawl.Depth)
	}
	switch config.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", config.Log.Level)
	}
	return nil
}
