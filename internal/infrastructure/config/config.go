package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// minPollPeriod is the lower bound for hub.poll_period, in seconds.
// Anything faster hammers remote hosts without improving freshness.
const minPollPeriod = 0.1

// Config is the root configuration structure for Switchboard.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Hub      HubConfig      `yaml:"hub"`
	Hosts    []string       `yaml:"hosts"`
	Modules  []ModuleConfig `yaml:"modules"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// HubConfig contains the polling engine settings.
type HubConfig struct {
	// PollPeriodSeconds is the delay between polling cycles, in seconds.
	// Must be greater than 0.1.
	PollPeriodSeconds float64 `yaml:"poll_period"`

	// RunOnStart determines whether the engine begins polling immediately,
	// or waits for an explicit start command on the control API.
	RunOnStart bool `yaml:"run_on_start"`

	// AdminEmail is informational, surfaced on the status endpoint.
	AdminEmail string `yaml:"admin_email"`
}

// ModuleConfig declares one processing module to register at startup.
type ModuleConfig struct {
	ID      string         `yaml:"id"`
	Handler string         `yaml:"handler"`
	Params  map[string]any `yaml:"params"`
	Enabled *bool          `yaml:"enabled"`
}

// StartEnabled reports whether a declared module starts enabled.
// Omitting the field means enabled.
func (m ModuleConfig) StartEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings for state events.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains control API server settings.
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// AuthToken is the bearer token required on every API request.
	// Empty disables authentication (local development only).
	AuthToken string `yaml:"auth_token"`

	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings, in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SWITCHBOARD_SECTION_KEY
// For example: SWITCHBOARD_DATABASE_PATH, SWITCHBOARD_API_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Hub: HubConfig{
			PollPeriodSeconds: 2.0,
			RunOnStart:        true,
		},
		Database: DatabaseConfig{
			Path:        "./data/switchboard.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "switchboard-hub",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8321,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SWITCHBOARD_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("SWITCHBOARD_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("SWITCHBOARD_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SWITCHBOARD_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SWITCHBOARD_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("SWITCHBOARD_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// API auth token (IMPORTANT: always set in production)
	if v := os.Getenv("SWITCHBOARD_API_AUTH_TOKEN"); v != "" {
		cfg.API.AuthToken = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Hub validation
	if c.Hub.PollPeriodSeconds <= minPollPeriod {
		errs = append(errs, fmt.Sprintf("hub.poll_period must be greater than %g seconds", minPollPeriod))
	}
	if c.Hub.AdminEmail != "" && !strings.Contains(c.Hub.AdminEmail, "@") {
		errs = append(errs, "hub.admin_email is not a valid email address")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Module declarations: ids must be present and unique, handlers named.
	seen := make(map[string]struct{}, len(c.Modules))
	for i, m := range c.Modules {
		if m.ID == "" {
			errs = append(errs, fmt.Sprintf("modules[%d].id is required", i))
			continue
		}
		if _, dup := seen[m.ID]; dup {
			errs = append(errs, fmt.Sprintf("modules[%d].id %q is declared twice", i, m.ID))
		}
		seen[m.ID] = struct{}{}
		if m.Handler == "" {
			errs = append(errs, fmt.Sprintf("modules[%d].handler is required", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// PollPeriod returns the polling cycle delay as a Duration.
func (c *Config) PollPeriod() time.Duration {
	return time.Duration(c.Hub.PollPeriodSeconds * float64(time.Second))
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
