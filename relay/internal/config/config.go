package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingRequired is returned by Validate when a required value is absent.
var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	Slack     SlackConfig     `mapstructure:"slack" yaml:"slack"`
	Webhook   WebhookConfig   `mapstructure:"webhook" yaml:"webhook"`
	Directory DirectoryConfig `mapstructure:"directory" yaml:"directory"`
	Redis     RedisConfig     `mapstructure:"redis" yaml:"redis"`
	NATS      NATSConfig      `mapstructure:"nats" yaml:"nats"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

type SlackConfig struct {
	BotToken      string        `mapstructure:"bot_token" yaml:"bot_token"`
	AppToken      string        `mapstructure:"app_token" yaml:"app_token"`
	APIURL        string        `mapstructure:"api_url" yaml:"api_url"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait" yaml:"reconnect_wait"`
	AckTimeout    time.Duration `mapstructure:"ack_timeout" yaml:"ack_timeout"`
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace" yaml:"shutdown_grace"`
}

type WebhookConfig struct {
	URL     string        `mapstructure:"url" yaml:"url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// Format is "native" (forward Slack payloads as received) or "normalized"
	// (wrap normalized Events API data in a synthetic event_callback).
	Format string `mapstructure:"format" yaml:"format"`
}

type DirectoryConfig struct {
	LookupTimeout time.Duration `mapstructure:"lookup_timeout" yaml:"lookup_timeout"`
	RateLimit     float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst     int           `mapstructure:"rate_burst" yaml:"rate_burst"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	URL      string        `mapstructure:"url" yaml:"url"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

type NATSConfig struct {
	Enabled       bool          `mapstructure:"enabled" yaml:"enabled"`
	URL           string        `mapstructure:"url" yaml:"url"`
	SubjectPrefix string        `mapstructure:"subject_prefix" yaml:"subject_prefix"`
	MaxReconnects int           `mapstructure:"max_reconnects" yaml:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait" yaml:"reconnect_wait"`
}

type ServerConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Environment variables kept from the original deployment, bound next to the
// RELAY_ prefixed names.
var legacyEnv = map[string]string{
	"slack.bot_token": "SLACK_BOT_TOKEN",
	"slack.app_token": "SLACK_APP_TOKEN",
	"webhook.url":     "N8N_WEBHOOK_URL",
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("slack.bot_token", "")
	v.SetDefault("slack.app_token", "")
	v.SetDefault("slack.api_url", "https://slack.com/api/")
	v.SetDefault("slack.reconnect_wait", "5s")
	v.SetDefault("slack.ack_timeout", "5s")
	v.SetDefault("slack.shutdown_grace", "5s")
	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.timeout", "30s")
	v.SetDefault("webhook.format", "native")
	v.SetDefault("directory.lookup_timeout", "5s")
	v.SetDefault("directory.rate_limit", 1.5)
	v.SetDefault("directory.rate_burst", 5)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.cache_ttl", "10m")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://nats:4222")
	v.SetDefault("nats.subject_prefix", "relay.events")
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 9090)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/telhawk/relay")
	}

	// Environment variables override
	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		prefixed := "RELAY_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the values the relay cannot start without. All missing
// values are reported in a single error wrapping ErrMissingRequired.
func (c *Config) Validate() error {
	var missing []string
	if c.Slack.BotToken == "" {
		missing = append(missing, "slack.bot_token (SLACK_BOT_TOKEN)")
	}
	if c.Slack.AppToken == "" {
		missing = append(missing, "slack.app_token (SLACK_APP_TOKEN)")
	}
	if c.Webhook.URL == "" {
		missing = append(missing, "webhook.url (N8N_WEBHOOK_URL)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingRequired, strings.Join(missing, ", "))
	}

	switch c.Webhook.Format {
	case "native", "normalized":
	default:
		return fmt.Errorf("invalid webhook.format %q (supported: native, normalized)", c.Webhook.Format)
	}
	if c.Webhook.Timeout <= 0 {
		return fmt.Errorf("webhook.timeout must be positive, got %s", c.Webhook.Timeout)
	}
	return nil
}

// Redacted returns a copy with credentials masked, for display.
func (c Config) Redacted() Config {
	c.Slack.BotToken = redact(c.Slack.BotToken)
	c.Slack.AppToken = redact(c.Slack.AppToken)
	return c
}

func redact(token string) string {
	if token == "" {
		return ""
	}
	if i := strings.Index(token, "-"); i > 0 && i < 6 {
		return token[:i+1] + "****"
	}
	return "****"
}
