// Package config loads storyarchive settings from YAML, .env files and
// STORYARCHIVE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/gauthierbraillon/storyarchive/internal/archive"
)

const (
	EnvPrefix   = "STORYARCHIVE"
	defaultName = "storyarchive"
	redacted    = "********"
)

type Config struct {
	Account   AccountConfig    `mapstructure:"account" yaml:"account"`
	Targets   []archive.Target `mapstructure:"targets" yaml:"targets"`
	Storage   StorageConfig    `mapstructure:"storage" yaml:"storage"`
	Interval  time.Duration    `mapstructure:"interval" yaml:"interval"`
	Telegram  TelegramConfig   `mapstructure:"telegram" yaml:"telegram"`
	Instagram InstagramConfig  `mapstructure:"instagram" yaml:"instagram"`
	Session   SessionConfig    `mapstructure:"session" yaml:"session"`
	History   HistoryConfig    `mapstructure:"history" yaml:"history"`
	Logging   LoggingConfig    `mapstructure:"logging" yaml:"logging"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-" yaml:"-"`
}

type AccountConfig struct {
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
}

type StorageConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

type TelegramConfig struct {
	Token         string        `mapstructure:"token" yaml:"token"`
	ChatID        string        `mapstructure:"chat_id" yaml:"chat_id"`
	AnnounceEmpty bool          `mapstructure:"announce_empty" yaml:"announce_empty"`
	BaseURL       string        `mapstructure:"base_url" yaml:"base_url"`
	RateLimit     time.Duration `mapstructure:"rate_limit" yaml:"rate_limit"` // minimum gap between requests
}

type InstagramConfig struct {
	BaseURL   string        `mapstructure:"base_url" yaml:"base_url"`
	RateLimit time.Duration `mapstructure:"rate_limit" yaml:"rate_limit"` // minimum gap between API calls
}

// SessionConfig locates the persisted device identity.
type SessionConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// HistoryConfig locates the cycle history database. An empty path disables it.
type HistoryConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

func defaults() map[string]any {
	return map[string]any{
		"account.username":        "",
		"account.password":        "",
		"targets":                 []archive.Target{},
		"storage.dir":             "./stories",
		"interval":                "12h",
		"telegram.token":          "",
		"telegram.chat_id":        "",
		"telegram.announce_empty": true,
		"telegram.base_url":       "https://api.telegram.org",
		"telegram.rate_limit":     "1s",
		"instagram.base_url":      "https://i.instagram.com",
		"instagram.rate_limit":    "1s",
		"session.dir":             defaultSessionDir(),
		"history.path":            "./storyarchive.db",
		"logging.level":           "info",
		"logging.format":          "text",
		"logging.file":            "",
	}
}

func defaultSessionDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, defaultName)
	}
	return "." + defaultName
}

// Load reads configuration. envFile, when set, must exist; otherwise a .env
// in the working directory is loaded if present. Variables already set in
// the environment win over .env values, and both win over the YAML file.
//
// When path is empty, storyarchive.yaml is searched in the working directory
// and the user config directory; finding none is not an error.
func Load(path, envFile string) (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(defaultName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(defaultSessionDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	cfg.Storage.Dir = expandHome(cfg.Storage.Dir)
	cfg.Session.Dir = expandHome(cfg.Session.Dir)
	cfg.History.Path = expandHome(cfg.History.Path)
	cfg.Logging.File = expandHome(cfg.Logging.File)

	return cfg, nil
}

func loadEnvFile(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
	}
	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// Validate checks the settings a sync cycle needs. Delivery settings are
// only required when deliver is true. Every problem is reported at once.
func (c *Config) Validate(deliver bool) error {
	var errs []error

	if c.Account.Username == "" {
		errs = append(errs, errors.New("account.username is required"))
	}
	if c.Account.Password == "" {
		errs = append(errs, errors.New("account.password is required"))
	}
	if c.Storage.Dir == "" {
		errs = append(errs, errors.New("storage.dir is required"))
	}
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %s", c.Interval))
	}

	if len(c.Targets) == 0 {
		errs = append(errs, errors.New("at least one target is required"))
	}
	ids := make(map[int64]bool, len(c.Targets))
	for i, t := range c.Targets {
		if t.ID <= 0 {
			errs = append(errs, fmt.Errorf("targets[%d]: id must be positive", i))
		}
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("targets[%d]: name is required", i))
		}
		if ids[t.ID] {
			errs = append(errs, fmt.Errorf("targets[%d]: duplicate id %d", i, t.ID))
		}
		ids[t.ID] = true
	}

	if deliver {
		if c.Telegram.Token == "" {
			errs = append(errs, errors.New("telegram.token is required"))
		}
		if c.Telegram.ChatID == "" {
			errs = append(errs, errors.New("telegram.chat_id is required"))
		}
	}
	if c.Telegram.RateLimit < 0 {
		errs = append(errs, errors.New("telegram.rate_limit must not be negative"))
	}
	if c.Instagram.RateLimit < 0 {
		errs = append(errs, errors.New("instagram.rate_limit must not be negative"))
	}

	return errors.Join(errs...)
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	out.Targets = append([]archive.Target(nil), c.Targets...)
	if out.Account.Password != "" {
		out.Account.Password = redacted
	}
	if out.Telegram.Token != "" {
		out.Telegram.Token = redacted
	}
	return &out
}

// YAML renders the configuration with secrets redacted.
func (c *Config) YAML() (string, error) {
	data, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(data), nil
}
