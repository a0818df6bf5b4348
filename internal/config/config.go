// ABOUTME: Configuration loading and parsing for chat-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete chat-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Identity IdentityConfig `yaml:"identity"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds token verification configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// IdentityConfig points at the external Identity Provider
type IdentityConfig struct {
	BaseURL string `yaml:"base_url"`
}

// GatewayConfig holds live-channel tunables
type GatewayConfig struct {
	WriteWait      time.Duration `yaml:"-"`
	PongWait       time.Duration `yaml:"-"`
	PingInterval   time.Duration `yaml:"-"`
	MaxMessageSize int64         `yaml:"max_message_size"`
	SendBuffer     int           `yaml:"send_buffer"`

	// Raw string values for YAML unmarshaling
	WriteWaitRaw    string `yaml:"write_wait"`
	PongWaitRaw     string `yaml:"pong_wait"`
	PingIntervalRaw string `yaml:"ping_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults for gateway tunables when the config leaves them unset.
const (
	defaultWriteWait      = 10 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultPingInterval   = 30 * time.Second
	defaultMaxMessageSize = 64 * 1024
	defaultSendBuffer     = 64
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	if c.Gateway.PingInterval >= c.Gateway.PongWait {
		return fmt.Errorf("gateway.ping_interval must be shorter than gateway.pong_wait")
	}

	return nil
}

// applyDefaults fills unset gateway tunables with safe defaults
func (c *Config) applyDefaults() {
	if c.Gateway.WriteWait == 0 {
		c.Gateway.WriteWait = defaultWriteWait
	}
	if c.Gateway.PongWait == 0 {
		c.Gateway.PongWait = defaultPongWait
	}
	if c.Gateway.PingInterval == 0 {
		c.Gateway.PingInterval = defaultPingInterval
	}
	if c.Gateway.MaxMessageSize == 0 {
		c.Gateway.MaxMessageSize = defaultMaxMessageSize
	}
	if c.Gateway.SendBuffer == 0 {
		c.Gateway.SendBuffer = defaultSendBuffer
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Gateway.WriteWaitRaw != "" {
		cfg.Gateway.WriteWait, err = time.ParseDuration(cfg.Gateway.WriteWaitRaw)
		if err != nil {
			return fmt.Errorf("parsing write_wait %q: %w", cfg.Gateway.WriteWaitRaw, err)
		}
	}

	if cfg.Gateway.PongWaitRaw != "" {
		cfg.Gateway.PongWait, err = time.ParseDuration(cfg.Gateway.PongWaitRaw)
		if err != nil {
			return fmt.Errorf("parsing pong_wait %q: %w", cfg.Gateway.PongWaitRaw, err)
		}
	}

	if cfg.Gateway.PingIntervalRaw != "" {
		cfg.Gateway.PingInterval, err = time.ParseDuration(cfg.Gateway.PingIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing ping_interval %q: %w", cfg.Gateway.PingIntervalRaw, err)
		}
	}

	return nil
}
