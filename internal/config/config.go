package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Environment variables recognized by the daemon. All are optional; values
// from the config file (or the built-in defaults) apply otherwise.
const (
	EnvTCPPort    = "LOCALCHAT_TCP_PORT"
	EnvSocketPath = "LOCALCHAT_SOCKET_PATH"
	EnvConfigDir  = "LOCALCHAT_CONFIG_DIR"
)

// DefaultTCPPort is the well-known peer messaging port.
const DefaultTCPPort = 12345

// Config represents the localchat configuration file
type Config struct {
	Daemon  DaemonConfig  `toml:"daemon"`
	Logging LoggingConfig `toml:"logging"`
}

// DaemonConfig contains daemon-related settings
type DaemonConfig struct {
	TCPPort    int    `toml:"tcp_port"`
	SocketPath string `toml:"socket_path"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text, json
}

// Default returns a config with sensible defaults
func Default() *Config {
	return &Config{
		Daemon: DaemonConfig{
			TCPPort:    DefaultTCPPort,
			SocketPath: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads the configuration from the default config file and applies
// environment overrides.
func Load() (*Config, error) {
	paths, err := GetPaths()
	if err != nil {
		return nil, fmt.Errorf("get paths: %w", err)
	}

	cfg, err := LoadFrom(paths.ConfigFile)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// LoadFrom loads the configuration from a specific file
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if no config file exists
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides file values with LOCALCHAT_* environment variables.
// Invalid values are ignored in favor of the existing setting.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvTCPPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Daemon.TCPPort = port
		}
	}
	if v := os.Getenv(EnvSocketPath); v != "" {
		c.Daemon.SocketPath = v
	}
}

// SaveTo saves the configuration to a specific file
func (c *Config) SaveTo(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Daemon.TCPPort < 1 || c.Daemon.TCPPort > 65535 {
		return fmt.Errorf("invalid TCP port: %d", c.Daemon.TCPPort)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}
