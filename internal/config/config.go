// Package config provides YAML-based configuration loading for Questlog.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Questlog configuration, loaded from questlog.yaml.
type Config struct {
	DataDir    string           `yaml:"data_dir"`
	MySQL      *MySQLConfig     `yaml:"mysql"`
	Server     ServerConfig     `yaml:"server"`
	LLM        LLMConfig        `yaml:"llm"`
	Notify     NotifyConfig     `yaml:"notify"`
	Assessment AssessmentConfig `yaml:"assessment"`
}

// MySQLConfig holds connection settings for a MySQL server backend.
// When absent, Questlog uses per-store SQLite files under DataDir.
type MySQLConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Prefix string `yaml:"prefix"` // database name prefix, e.g. "questlog"
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LLMConfig selects and configures the assessment provider.
type LLMConfig struct {
	Provider       string `yaml:"provider"` // anthropic, openai, mock
	Model          string `yaml:"model"`
	APIKeyEnv      string `yaml:"api_key_env"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the bounded duration for a single assessment call.
func (l LLMConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// APIKey resolves the provider API key from the configured environment
// variable.
func (l LLMConfig) APIKey() string {
	return os.Getenv(l.APIKeyEnv)
}

// NotifyConfig configures outbound notification adapters.
type NotifyConfig struct {
	Slack      SlackConfig   `yaml:"slack"`
	Discord    DiscordConfig `yaml:"discord"`
	DigestCron string        `yaml:"digest_cron"` // 5-field cron expression
}

// SlackConfig holds Slack bot credentials for notifications.
type SlackConfig struct {
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"`
}

// DiscordConfig holds Discord bot credentials for notifications.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"`
}

// AssessmentConfig tunes the commit-assessment batch behavior.
type AssessmentConfig struct {
	// AbortOnError stops processing further suggestions in a batch after
	// the first ledger failure. Already-applied suggestions are never
	// rolled back either way.
	AbortOnError bool `yaml:"abort_on_error"`
	// MaxReasonLen bounds the change-reason text derived from assessment
	// reasoning before it is written to the progress history.
	MaxReasonLen int `yaml:"max_reason_len"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a Config with every default applied and no file read.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.MySQL != nil {
		if c.MySQL.Host == "" {
			c.MySQL.Host = "127.0.0.1"
		}
		if c.MySQL.Port == 0 {
			c.MySQL.Port = 3306
		}
		if c.MySQL.Prefix == "" {
			c.MySQL.Prefix = "questlog"
		}
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "anthropic"
	}
	if c.LLM.APIKeyEnv == "" {
		c.LLM.APIKeyEnv = defaultKeyEnv(c.LLM.Provider)
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 30
	}
	if c.Notify.DigestCron == "" {
		c.Notify.DigestCron = "0 21 * * *"
	}
	if c.Assessment.MaxReasonLen == 0 {
		c.Assessment.MaxReasonLen = 500
	}
}

// defaultKeyEnv maps a provider name to its conventional API key variable.
func defaultKeyEnv(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	default:
		return "ANTHROPIC_API_KEY"
	}
}

// validate checks that all configured values are consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.LLM.Provider {
	case "anthropic", "openai", "mock":
	default:
		errs = append(errs, fmt.Sprintf("llm.provider %q is not one of anthropic, openai, mock", c.LLM.Provider))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if c.Assessment.MaxReasonLen < 0 {
		errs = append(errs, "assessment.max_reason_len must be non-negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}
