// Package config manages the portal client's configuration file. The file
// lives under the user config directory and doubles as the persistent token
// store: a saved access token survives process restarts and is what the
// session store reads at bootstrap.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default name of the config file.
const DefaultConfigFile = "config.yaml"

// Config represents the portal client configuration.
type Config struct {
	// Version of the configuration file format
	Version string `yaml:"version"`
	// ServerURL is the URL and port of the portal API server
	ServerURL string `yaml:"server_url"`
	// AccessToken is the persisted bearer token for the active session
	AccessToken string `yaml:"access_token"`
	// TokenExpiry is when the persisted token expires (RFC3339)
	TokenExpiry string `yaml:"token_expiry"`
	// RequestTimeout bounds each API call, e.g. "30s"
	RequestTimeout string `yaml:"request_timeout"`
	// LogLevel sets the zerolog level for the client
	LogLevel string `yaml:"log_level"`

	path string
}

// GetDefaultConfigPath returns the default path for the config file
// (e.g. ~/.config/qualtrack/config.yaml on Linux).
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "qualtrack", DefaultConfigFile), nil
}

// LoadConfig loads the configuration from the specified file.
// If file is empty the default location is used.
func LoadConfig(file string) (*Config, error) {
	if file == "" {
		var err error
		file, err = GetDefaultConfigPath()
		if err != nil {
			return nil, err
		}
	}

	yamlStr, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}

	var c Config
	if err = yaml.Unmarshal(yamlStr, &c); err != nil {
		return nil, fmt.Errorf("unable to parse config file: %w", err)
	}

	if c.ServerURL == "" {
		return nil, errors.New("server_url is required")
	}
	c.ServerURL = MorphServer(c.ServerURL)
	c.path = file

	return &c, nil
}

// NewConfig creates a fresh configuration for the given server, to be written
// at the given path.
func NewConfig(server, path string) *Config {
	return &Config{
		Version:   "0.1.0",
		ServerURL: MorphServer(server),
		path:      path,
	}
}

// Path returns the file this configuration was loaded from or will be
// written to.
func (cfg *Config) Path() string {
	return cfg.path
}

// WriteConfig writes the configuration back to its file.
func (cfg *Config) WriteConfig() error {
	if cfg.path == "" {
		return errors.New("config file path is not set")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.path), os.ModePerm); err != nil {
		return fmt.Errorf("unable to create config directory: %w", err)
	}

	yamlStr, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("unable to generate configuration: %w", err)
	}

	if err := os.WriteFile(cfg.path, yamlStr, os.FileMode(0600)); err != nil {
		return fmt.Errorf("unable to write config file: %w", err)
	}

	return nil
}

// SaveToken persists the access token and its expiry.
func (cfg *Config) SaveToken(token string, expiry time.Time) error {
	cfg.AccessToken = token
	if expiry.IsZero() {
		cfg.TokenExpiry = ""
	} else {
		cfg.TokenExpiry = expiry.Format(time.RFC3339)
	}
	return cfg.WriteConfig()
}

// ClearToken removes the persisted access token.
func (cfg *Config) ClearToken() error {
	cfg.AccessToken = ""
	cfg.TokenExpiry = ""
	return cfg.WriteConfig()
}

// GetServerURL returns the properly formatted server URL.
func (cfg *Config) GetServerURL() string {
	return MorphServer(cfg.ServerURL)
}

// GetToken returns the persisted access token.
func (cfg *Config) GetToken() string {
	return cfg.AccessToken
}

// GetTokenExpiry returns the persisted token expiry, or the zero time when
// none is recorded.
func (cfg *Config) GetTokenExpiry() time.Time {
	if cfg.TokenExpiry == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, cfg.TokenExpiry)
	if err != nil {
		return time.Time{}
	}
	return t
}

// GetRequestTimeout returns the configured per-request timeout, or zero when
// unset or invalid so the HTTP client applies its default.
func (cfg *Config) GetRequestTimeout() time.Duration {
	if cfg.RequestTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(cfg.RequestTimeout)
	if err != nil {
		return 0
	}
	return d
}

// MorphServer ensures the server URL has a scheme and no trailing slash.
func MorphServer(server string) string {
	if server == "" {
		return server
	}

	server = strings.TrimRight(server, "/")

	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		server = "https://" + server
	}

	return server
}
