// Package config loads and validates the portal dev server's TOML
// configuration. The JWT signing secret never lives in the config file: it
// comes from the environment, optionally via a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Version is the supported config file format version.
const Version = "0.1.0"

const signingSecretEnv = "QUALTRACK_SIGNING_SECRET"

// AuthConfig holds token issuance settings.
type AuthConfig struct {
	TokenValidity string `toml:"token_validity" validate:"required"`
	SigningSecret string `toml:"-"`
}

// GetTokenValidity returns the token validity as a duration.
func (a *AuthConfig) GetTokenValidity() (time.Duration, error) {
	return ParseDuration(a.TokenValidity)
}

// GetTokenValidityOrDefault returns the token validity, panicking on an
// invalid value. ValidateConfig has already rejected those.
func (a *AuthConfig) GetTokenValidityOrDefault() time.Duration {
	duration, err := a.GetTokenValidity()
	if err != nil {
		panic(fmt.Sprintf("invalid token validity: %v", err))
	}
	return duration
}

// ConfigParam holds all configuration for the portal dev server.
type ConfigParam struct {
	FormatVersion string `toml:"format_version" validate:"required"`

	ServerHostName string   `toml:"server_hostname"`
	ServerPort     string   `toml:"server_port" validate:"required,numeric"`
	HandleCORS     bool     `toml:"handle_cors"`
	AllowedOrigins []string `toml:"allowed_origins"`
	RequestTimeout string   `toml:"request_timeout"`

	// FixtureDir points at the YAML account and plan fixtures the server
	// serves from.
	FixtureDir string `toml:"fixture_dir" validate:"required"`

	Auth AuthConfig `toml:"auth"`
}

var cfg *ConfigParam

// Config returns the loaded configuration.
func Config() *ConfigParam {
	return cfg
}

// LoadConfig reads, validates, and installs the configuration at path.
func LoadConfig(path string) error {
	// a .env next to the working directory may carry the signing secret
	_ = godotenv.Load()

	loaded := &ConfigParam{}
	if _, err := toml.DecodeFile(path, loaded); err != nil {
		return fmt.Errorf("unable to read config file %s: %w", path, err)
	}

	loaded.Auth.SigningSecret = os.Getenv(signingSecretEnv)
	if loaded.Auth.SigningSecret == "" {
		return fmt.Errorf("%s must be set", signingSecretEnv)
	}

	if err := ValidateConfig(loaded); err != nil {
		return err
	}

	cfg = loaded
	return nil
}

// ValidateConfig checks structural validity and duration formats.
func ValidateConfig(c *ConfigParam) error {
	if c.FormatVersion != Version {
		return fmt.Errorf("unsupported config file format version: %s", c.FormatVersion)
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := ParseDuration(c.Auth.TokenValidity); err != nil {
		return fmt.Errorf("invalid auth.token_validity: %v", err)
	}
	if c.RequestTimeout != "" {
		if _, err := ParseDuration(c.RequestTimeout); err != nil {
			return fmt.Errorf("invalid request_timeout: %v", err)
		}
	}
	return nil
}

// GetRequestTimeout returns the per-request deadline, defaulting to one
// minute.
func (c *ConfigParam) GetRequestTimeout() time.Duration {
	if c.RequestTimeout == "" {
		return time.Minute
	}
	duration, err := ParseDuration(c.RequestTimeout)
	if err != nil {
		return time.Minute
	}
	return duration
}

// ListenAddr returns the host:port the server binds to.
func (c *ConfigParam) ListenAddr() string {
	return c.ServerHostName + ":" + c.ServerPort
}

// TestInit installs a ready-to-use configuration for tests, pointing at the
// given fixture directory.
func TestInit(fixtureDir string) {
	cfg = &ConfigParam{
		FormatVersion: Version,
		ServerPort:    "0",
		FixtureDir:    fixtureDir,
		Auth: AuthConfig{
			TokenValidity: "1h",
			SigningSecret: "test-signing-secret",
		},
	}
}

// ParseDuration parses "<number><unit>" durations where unit is m (minutes),
// h (hours), d (days), or y (years).
func ParseDuration(input string) (time.Duration, error) {
	if len(input) < 2 {
		return 0, fmt.Errorf("invalid input format")
	}

	unit := input[len(input)-1:]
	value, err := strconv.Atoi(input[:len(input)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", err)
	}

	switch unit {
	case "m":
		return time.Duration(value) * time.Minute, nil
	case "h":
		return time.Duration(value) * time.Hour, nil
	case "d":
		return time.Duration(value) * 24 * time.Hour, nil
	case "y":
		return time.Duration(value) * 365 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown time unit: %s", unit)
	}
}
