package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Source   SourceConfig   `yaml:"source"`
	Poll     PollConfig     `yaml:"poll"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Storage  StorageConfig  `yaml:"storage"`
	Telegram TelegramConfig `yaml:"telegram"`
	HTTP     HTTPConfig     `yaml:"http"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SourceConfig selects and tunes the quote source.
type SourceConfig struct {
	Kind       string        `yaml:"kind" env:"QUOTE_SOURCE"`
	BatchSize  int           `yaml:"batch_size" env:"QUOTE_BATCH_SIZE"`
	RatePerSec float64       `yaml:"rate_per_sec" env:"QUOTE_RATE_PER_SEC"`
	Timeout    time.Duration `yaml:"timeout" env:"QUOTE_TIMEOUT"`
	Proxy      string        `yaml:"proxy" env:"HTTPS_PROXY"`
}

// PollConfig drives the quote poller.
type PollConfig struct {
	Enabled   *bool         `yaml:"enabled" env:"POLL_ENABLED"`
	Immediate *bool         `yaml:"immediate" env:"POLL_IMMEDIATE"`
	Interval  time.Duration `yaml:"interval" env:"POLL_INTERVAL"`
}

// AlertsConfig holds alert engine settings.
type AlertsConfig struct {
	ResetCron string `yaml:"reset_cron" env:"ALERT_RESET_CRON"`
	GCCron    string `yaml:"gc_cron" env:"QUOTE_GC_CRON"`
}

// StorageConfig locates persisted state.
type StorageConfig struct {
	StateDir    string `yaml:"state_dir" env:"STATE_DIR"`
	SQLitePath  string `yaml:"sqlite_path" env:"SQLITE_PATH"`
	HistoryDays int    `yaml:"history_days" env:"HISTORY_DAYS"` // quote history retention
}

// TelegramConfig enables the desktop channel via a Telegram bot.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
	ChatID   string `yaml:"chat_id" env:"TELEGRAM_CHAT_ID"`
}

// HTTPConfig configures the status API.
type HTTPConfig struct {
	Addr string `yaml:"addr" env:"HTTP_ADDR"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"`
	Format     string `yaml:"format" env:"LOG_FORMAT"`
	Output     string `yaml:"output" env:"LOG_OUTPUT"`
	MaxAgeDays int    `yaml:"max_age_days" env:"LOG_MAX_AGE_DAYS"`
}

// Load reads config from a YAML file, then applies environment variable overrides
// and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env overrides: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.Source.Kind = strings.ToLower(strings.TrimSpace(c.Source.Kind))
	if c.Source.Kind == "" {
		c.Source.Kind = "sina"
	}
	if c.Source.BatchSize == 0 {
		c.Source.BatchSize = 50
	}
	if c.Source.RatePerSec == 0 {
		c.Source.RatePerSec = 5
	}
	if c.Source.Timeout == 0 {
		c.Source.Timeout = 10 * time.Second
	}
	if c.Poll.Enabled == nil {
		c.Poll.Enabled = boolPtr(true)
	}
	if c.Poll.Immediate == nil {
		c.Poll.Immediate = boolPtr(true)
	}
	if c.Poll.Interval == 0 {
		c.Poll.Interval = 5 * time.Second
	}
	if c.Alerts.ResetCron == "" {
		c.Alerts.ResetCron = "0 0 0 * * *"
	}
	if c.Alerts.GCCron == "" {
		c.Alerts.GCCron = "0 30 0 * * *"
	}
	if c.Storage.StateDir == "" {
		c.Storage.StateDir = "data"
	}
	if c.Storage.HistoryDays == 0 {
		c.Storage.HistoryDays = 30
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate checks field ranges and combinations.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case "sina", "yahoo", "mock":
	default:
		return fmt.Errorf("source.kind %q is not one of sina, yahoo, mock", c.Source.Kind)
	}
	if c.Source.BatchSize <= 0 {
		return fmt.Errorf("source.batch_size must be positive")
	}
	if c.Source.RatePerSec <= 0 {
		return fmt.Errorf("source.rate_per_sec must be positive")
	}
	if c.Poll.Interval < 500*time.Millisecond {
		return fmt.Errorf("poll.interval must be at least 500ms")
	}
	if c.Storage.HistoryDays < 0 {
		return fmt.Errorf("storage.history_days must be positive")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

// TelegramEnabled reports whether the desktop channel can be delivered.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

func boolPtr(b bool) *bool { return &b }
