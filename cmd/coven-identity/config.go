// ABOUTME: Configuration loading for the coven-identity development service
// ABOUTME: Loads TOML config from XDG path with environment variable expansion

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/2389/coven-console/internal/auth"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "COVEN_IDENTITY_CONFIG"

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Auth     AuthConfig     `toml:"auth"`
	Stream   StreamConfig   `toml:"stream"`
	Logging  LoggingConfig  `toml:"logging"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
	TokenTTL  string `toml:"token_ttl"`
}

type StreamConfig struct {
	Heartbeat string `toml:"heartbeat"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// defaultConfig holds the values used for keys the file leaves out.
func defaultConfig() Config {
	return Config{
		Server:   ServerConfig{Addr: "localhost:8090"},
		Database: DatabaseConfig{Path: filepath.Join(dataDir(), "identity.db")},
		Auth:     AuthConfig{TokenTTL: "168h"},
		Stream:   StreamConfig{Heartbeat: "15s"},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads config from the given path, expanding environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return parse(string(data))
}

func parse(data string) (*Config, error) {
	// Expand environment variables (${VAR} syntax)
	expanded := expandEnvVars(data)

	cfg := defaultConfig()
	if _, err := toml.Decode(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

// Validate checks that required config fields are present and valid.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if len(c.Auth.JWTSecret) < auth.MinSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", auth.MinSecretLength)
	}
	if ttl, err := time.ParseDuration(c.Auth.TokenTTL); err != nil || ttl <= 0 {
		return fmt.Errorf("auth.token_ttl must be a positive duration, got %q", c.Auth.TokenTTL)
	}
	if hb, err := time.ParseDuration(c.Stream.Heartbeat); err != nil || hb <= 0 {
		return fmt.Errorf("stream.heartbeat must be a positive duration, got %q", c.Stream.Heartbeat)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// TokenTTL returns the parsed token lifetime. Validate guarantees it parses.
func (c *Config) TokenTTL() time.Duration {
	d, _ := time.ParseDuration(c.Auth.TokenTTL)
	return d
}

// Heartbeat returns the parsed SSE heartbeat interval.
func (c *Config) Heartbeat() time.Duration {
	d, _ := time.ParseDuration(c.Stream.Heartbeat)
	return d
}

// configPath returns the path to the identity config file.
// Priority: COVEN_IDENTITY_CONFIG env var > XDG_CONFIG_HOME/coven/identity.toml > ~/.config/coven/identity.toml
func configPath() string {
	if envPath := os.Getenv(EnvConfigPath); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "identity.toml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "coven", "identity.toml")
}

// dataDir returns the coven data directory.
// Priority: XDG_DATA_HOME/coven > ~/.local/share/coven
func dataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dir, "coven")
}
