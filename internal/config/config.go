// ABOUTME: Configuration loading and parsing for coven-console
// ABOUTME: Supports YAML files with environment variable expansion, duration parsing and defaults

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "COVEN_CONSOLE_CONFIG"

// Defaults
const (
	DefaultBaseURL        = "http://localhost:8090"
	DefaultTimeout        = 10 * time.Second
	DefaultPendingTimeout = 5 * time.Second
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
)

// Config represents the complete coven-console configuration
type Config struct {
	API        APIConfig        `yaml:"api"`
	Profile    ProfileConfig    `yaml:"profile"`
	Navigation NavigationConfig `yaml:"navigation"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// APIConfig locates the identity API
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"-"`

	TimeoutRaw string `yaml:"timeout"`
}

// ProfileConfig locates the persisted browser profile (cookies and local storage)
type ProfileConfig struct {
	Path string `yaml:"path"`
}

// NavigationConfig holds redirect timing
type NavigationConfig struct {
	PendingTimeout time.Duration `yaml:"-"`

	PendingTimeoutRaw string `yaml:"pending_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: DefaultBaseURL,
			Timeout: DefaultTimeout,
		},
		Profile: ProfileConfig{
			Path: defaultProfilePath(),
		},
		Navigation: NavigationConfig{
			PendingTimeout: DefaultPendingTimeout,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Keys missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.Profile.Path = expandHome(cfg.Profile.Path)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path, falling back to Default when the file does not
// exist. Any other read, parse or validation failure is returned.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// DefaultPath resolves the config file location: $COVEN_CONSOLE_CONFIG, then
// $XDG_CONFIG_HOME/coven/console.yaml, then ~/.config/coven/console.yaml.
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return filepath.Join(configDir(), "console.yaml")
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "coven")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".coven")
	}
	return filepath.Join(home, ".config", "coven")
}

func defaultProfilePath() string {
	return filepath.Join(configDir(), "console-profile.db")
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

// expandHome resolves a leading "~/" against the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute http(s) URL, got %q", c.API.BaseURL)
	}

	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}

	if c.Profile.Path == "" {
		return fmt.Errorf("profile.path is required")
	}

	if c.Navigation.PendingTimeout <= 0 {
		return fmt.Errorf("navigation.pending_timeout must be positive")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.API.TimeoutRaw != "" {
		cfg.API.Timeout, err = time.ParseDuration(cfg.API.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing api.timeout %q: %w", cfg.API.TimeoutRaw, err)
		}
	}

	if cfg.Navigation.PendingTimeoutRaw != "" {
		cfg.Navigation.PendingTimeout, err = time.ParseDuration(cfg.Navigation.PendingTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing navigation.pending_timeout %q: %w", cfg.Navigation.PendingTimeoutRaw, err)
		}
	}

	return nil
}
