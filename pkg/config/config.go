// Package config loads, defaults and validates the server configuration, and
// provides factories that build components from it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete server configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (WEBFSD_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// The served root directory is deliberately not part of this structure: it is
// the single external configuration item, passed as a CLI argument and
// validated to exist before the server accepts connections.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains listener and lifecycle settings.
	Server ServerConfig `mapstructure:"server"`

	// RateLimit selects and configures the admission policy.
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`

	// Metrics controls the Prometheus exposition server.
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written: stdout, stderr, or a file
	// path.
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains listener and lifecycle settings.
type ServerConfig struct {
	// Host to bind. Empty binds all interfaces.
	Host string `mapstructure:"host"`

	// Port is the TCP port to listen on.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// MaxConnections caps concurrent client connections. 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"min=0"`

	// ReadTimeout bounds reading a request. 0 disables the deadline.
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"min=0"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// RateLimitConfig selects the admission policy.
//
// The Type field determines which limiter implementation is used; only the
// matching type-specific section is consulted. This mirrors the type-selected
// store sections pattern: each limiter decodes its own options from a free
// map.
type RateLimitConfig struct {
	// Type specifies the limiter implementation.
	// Valid values: sliding_log, token_bucket, none.
	Type string `mapstructure:"type" validate:"required,oneof=sliding_log token_bucket none"`

	// SlidingLog contains sliding-log options (limit, window).
	// Only used when Type = "sliding_log".
	SlidingLog map[string]any `mapstructure:"sliding_log"`

	// TokenBucket contains token-bucket options (requests_per_second,
	// burst). Only used when Type = "token_bucket".
	TokenBucket map[string]any `mapstructure:"token_bucket"`
}

// MetricsConfig controls the metrics exposition server.
type MetricsConfig struct {
	// Enabled turns Prometheus metrics collection on.
	Enabled bool `mapstructure:"enabled"`

	// Port for the /metrics HTTP endpoint.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: path to a config file; empty uses the default location
//     and tolerates its absence.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures environment variable support and file lookup.
// Environment variables use the WEBFSD_ prefix, e.g. WEBFSD_LOGGING_LEVEL.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("WEBFSD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if present. A missing file is
// acceptable; defaults apply.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory, honoring
// XDG_CONFIG_HOME.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "webfsd")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "webfsd")
}
