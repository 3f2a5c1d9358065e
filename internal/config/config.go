// Package config provides configuration management for pricewatch.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"pricewatch/internal/errors"
)

// FileName is the configuration file name inside the config directory.
const FileName = "config.toml"

// Config holds all application configuration.
type Config struct {
	Scraper       ScraperConfig       `mapstructure:"scraper"`
	History       HistoryConfig       `mapstructure:"history"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Logging       LoggingConfig       `mapstructure:"logging"`

	// Path is the file the configuration was read from.
	Path string `mapstructure:"-"`
}

// ScraperConfig holds extraction and pacing settings.
type ScraperConfig struct {
	MaxRetries           int           `mapstructure:"max_retries"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	SettleDelay          time.Duration `mapstructure:"settle_delay"`
	DelayBetweenRequests time.Duration `mapstructure:"delay_between_requests"`
	RetryBaseDelay       time.Duration `mapstructure:"retry_base_delay"`
	UserAgent            string        `mapstructure:"user_agent"`
	Debug                bool          `mapstructure:"debug"`
}

// HistoryConfig holds price history settings.
type HistoryConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	MaxEntries int  `mapstructure:"max_entries"`
}

// StorageConfig holds data file locations.
type StorageConfig struct {
	DataFile       string `mapstructure:"data_file"`
	ArchiveEnabled bool   `mapstructure:"archive_enabled"`
	ArchivePath    string `mapstructure:"archive_path"`
}

// NotificationsConfig holds notification configuration.
type NotificationsConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Shoutrrr ShoutrrrConfig `mapstructure:"shoutrrr"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ShoutrrrConfig holds shoutrrr notification configuration.
type ShoutrrrConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URLs    []string      `mapstructure:"urls"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	File     bool   `mapstructure:"file"`
	FilePath string `mapstructure:"file_path"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/pricewatch"
	}
	return filepath.Join(home, ".config", "pricewatch")
}

// Default returns the built-in configuration rooted at configDir.
func Default(configDir string) *Config {
	cfg := &Config{}
	v := viper.New()
	setDefaults(v)
	// Defaults alone cannot fail to decode.
	_ = v.Unmarshal(cfg)
	cfg.resolvePaths(configDir)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scraper.max_retries", 3)
	v.SetDefault("scraper.request_timeout", 30*time.Second)
	v.SetDefault("scraper.settle_delay", 2*time.Second)
	v.SetDefault("scraper.delay_between_requests", 2*time.Second)
	v.SetDefault("scraper.retry_base_delay", time.Second)
	v.SetDefault("scraper.user_agent", "")
	v.SetDefault("scraper.debug", false)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.max_entries", 100)

	v.SetDefault("storage.data_file", "")
	v.SetDefault("storage.archive_enabled", true)
	v.SetDefault("storage.archive_path", "")

	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.webhook.enabled", false)
	v.SetDefault("notifications.webhook.timeout", 10*time.Second)
	v.SetDefault("notifications.shoutrrr.enabled", false)
	v.SetDefault("notifications.shoutrrr.timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.file_path", "")
}

// Load loads config.toml from configDir, writing a template first when the
// file does not exist. If configDir is empty, uses the default directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return LoadFile(filepath.Join(configDir, FileName))
}

// LoadFile loads configuration from path, then applies environment
// overrides and validates the result. Relative data paths default to the
// directory containing path.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createTemplateConfig(path); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	cfg.Path = path
	cfg.resolvePaths(filepath.Dir(path))

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) resolvePaths(dir string) {
	if c.Storage.DataFile == "" {
		c.Storage.DataFile = filepath.Join(dir, "products.json")
	}
	if c.Storage.ArchivePath == "" {
		c.Storage.ArchivePath = filepath.Join(dir, "observations.db")
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = filepath.Join(dir, "logs", "pricewatch.log")
	}
}

// applyEnvOverrides applies the environment variables understood by the
// original price checker. Durations are given in milliseconds.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError("MAX_RETRIES", v, err)
		}
		cfg.Scraper.MaxRetries = n
	}
	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		d, err := parseMillis(v)
		if err != nil {
			return envError("REQUEST_TIMEOUT", v, err)
		}
		cfg.Scraper.RequestTimeout = d
	}
	if v := os.Getenv("DELAY_BETWEEN_REQUESTS"); v != "" {
		d, err := parseMillis(v)
		if err != nil {
			return envError("DELAY_BETWEEN_REQUESTS", v, err)
		}
		cfg.Scraper.DelayBetweenRequests = d
	}
	if os.Getenv("DEBUG_SCRAPER") == "true" {
		cfg.Scraper.Debug = true
	}
	// Only the literal "false" disables history.
	if v := os.Getenv("ENABLE_PRICE_HISTORY"); v != "" {
		cfg.History.Enabled = v != "false"
	}
	if v := os.Getenv("MAX_HISTORY_ENTRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError("MAX_HISTORY_ENTRIES", v, err)
		}
		cfg.History.MaxEntries = n
	}
	if v := os.Getenv("PRICEWATCH_DATA_FILE"); v != "" {
		cfg.Storage.DataFile = v
	}
	return nil
}

func parseMillis(s string) (time.Duration, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Millisecond, nil
}

func envError(name, value string, err error) error {
	return fmt.Errorf("%w: %s=%q: %v", errors.ErrConfigInvalid, name, value, err)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Scraper.MaxRetries < 1 {
		return invalid("scraper.max_retries must be at least 1")
	}
	if c.Scraper.RequestTimeout <= 0 {
		return invalid("scraper.request_timeout must be positive")
	}
	if c.Scraper.SettleDelay < 0 {
		return invalid("scraper.settle_delay must be non-negative")
	}
	if c.Scraper.DelayBetweenRequests < 0 {
		return invalid("scraper.delay_between_requests must be non-negative")
	}
	if c.Scraper.RetryBaseDelay < 0 {
		return invalid("scraper.retry_base_delay must be non-negative")
	}
	if c.History.MaxEntries < 0 {
		return invalid("history.max_entries must be non-negative")
	}
	if c.Storage.DataFile == "" {
		return invalid("storage.data_file is required")
	}
	if c.Notifications.Enabled {
		if c.Notifications.Webhook.Enabled && c.Notifications.Webhook.URL == "" {
			return invalid("notifications.webhook.url is required when the webhook is enabled")
		}
		if c.Notifications.Shoutrrr.Enabled && len(c.Notifications.Shoutrrr.URLs) == 0 {
			return invalid("notifications.shoutrrr.urls is required when shoutrrr is enabled")
		}
	}
	if c.Logging.Level != "" {
		if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
			return invalid(fmt.Sprintf("logging.level %q is not a valid level", c.Logging.Level))
		}
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", errors.ErrConfigInvalid, msg)
}

// Dir returns the directory holding the configuration file.
func (c *Config) Dir() string {
	if c.Path == "" {
		return DefaultConfigDir()
	}
	return filepath.Dir(c.Path)
}
