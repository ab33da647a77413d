package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for HomeDeck.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Home      HomeConfig      `yaml:"home"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Sensors   SensorsConfig   `yaml:"sensors"`
	OTA       OTAConfig       `yaml:"ota"`
	Chat      ChatConfig      `yaml:"chat"`
	Security  SecurityConfig  `yaml:"security"`
	Panel     PanelConfig     `yaml:"panel"`
}

// HomeConfig contains installation-specific information.
type HomeConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for telemetry mirroring.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SensorsConfig contains ESP32 sensor fleet settings.
type SensorsConfig struct {
	// StaleAfter is the number of seconds since last contact before a
	// sensor is considered offline.
	StaleAfter int `yaml:"stale_after"`

	// RetentionDays is the default reading retention window for cleanup.
	RetentionDays int `yaml:"retention_days"`

	// CleanupSchedule is a cron expression for the retention sweep.
	CleanupSchedule string `yaml:"cleanup_schedule"`

	// StaleSweepSchedule is a cron expression for the offline-sensor sweep.
	StaleSweepSchedule string `yaml:"stale_sweep_schedule"`
}

// OTAConfig contains firmware update settings.
type OTAConfig struct {
	// Simulate enables server-side progress simulation for installations
	// without real device firmware callbacks.
	Simulate bool `yaml:"simulate"`

	// SimulateStepSeconds is the pacing between simulated status advances.
	SimulateStepSeconds int `yaml:"simulate_step_seconds"`
}

// ChatConfig contains LLM backend settings for the chat relay.
type ChatConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`

	// HistoryWindow is the number of prior exchanges replayed for context.
	HistoryWindow int `yaml:"history_window"`

	// TimeoutSeconds bounds each backend round trip.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT  JWTConfig       `yaml:"jwt"`
	Dev  DevAuthConfig   `yaml:"dev"`
	Rate RateLimitConfig `yaml:"rate_limit"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// DevAuthConfig contains static development credentials.
// These issue tokens until a full user store is introduced.
type DevAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// RateLimitConfig contains rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

// PanelConfig contains settings for the headless panel client.
type PanelConfig struct {
	ServerURL string `yaml:"server_url"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`

	// Poll intervals in seconds.
	OTAPollInterval    int `yaml:"ota_poll_interval"`
	SensorPollInterval int `yaml:"sensor_poll_interval"`
	RefreshInterval    int `yaml:"refresh_interval"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HOMEDECK_SECTION_KEY
// For example: HOMEDECK_DATABASE_PATH, HOMEDECK_API_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadPanel reads the panel daemon configuration from a YAML file.
//
// The panel only needs the panel and logging sections, so server-side
// requirements (database path, JWT secret) are not enforced. The same
// file layout as the server config is accepted; a panel deployment
// typically carries a small file with just those two sections.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or panel validation fails
func LoadPanel(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if v := os.Getenv("HOMEDECK_PANEL_PASSWORD"); v != "" {
		cfg.Panel.Password = v
	}

	var errs []string
	if cfg.Panel.ServerURL == "" {
		errs = append(errs, "panel.server_url is required")
	}
	if cfg.Panel.Username == "" || cfg.Panel.Password == "" {
		errs = append(errs, "panel.username and panel.password are required (set HOMEDECK_PANEL_PASSWORD)")
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Home: HomeConfig{
			ID:       "home-001",
			Name:     "HomeDeck",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/homedeck.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "homedeck-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Sensors: SensorsConfig{
			StaleAfter:         300,
			RetentionDays:      30,
			CleanupSchedule:    "0 3 * * *",
			StaleSweepSchedule: "*/5 * * * *",
		},
		OTA: OTAConfig{
			Simulate:            true,
			SimulateStepSeconds: 3,
		},
		Chat: ChatConfig{
			Model:          "gpt-4o-mini",
			HistoryWindow:  5,
			TimeoutSeconds: 30,
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
			Dev: DevAuthConfig{
				Username: "admin",
			},
			Rate: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 100,
			},
		},
		Panel: PanelConfig{
			ServerURL:          "http://localhost:8080",
			OTAPollInterval:    10,
			SensorPollInterval: 30,
			RefreshInterval:    3600,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HOMEDECK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HOMEDECK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("HOMEDECK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HOMEDECK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HOMEDECK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("HOMEDECK_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("HOMEDECK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("HOMEDECK_CHAT_API_KEY"); v != "" {
		cfg.Chat.APIKey = v
	}

	// Always override the JWT secret in production deployments.
	if v := os.Getenv("HOMEDECK_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("HOMEDECK_DEV_PASSWORD"); v != "" {
		cfg.Security.Dev.Password = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Home.ID == "" {
		errs = append(errs, "home.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Sensors.StaleAfter <= 0 {
		errs = append(errs, "sensors.stale_after must be positive")
	}
	if c.Sensors.RetentionDays <= 0 {
		errs = append(errs, "sensors.retention_days must be positive")
	}

	if c.Chat.Enabled {
		if c.Chat.BaseURL == "" {
			errs = append(errs, "chat.base_url is required when chat is enabled")
		}
		if c.Chat.APIKey == "" {
			errs = append(errs, "chat.api_key is required when chat is enabled (set HOMEDECK_CHAT_API_KEY)")
		}
	}

	// Tokens guard control of physical devices, so a weak signing secret is
	// treated as a hard configuration error rather than a warning.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set HOMEDECK_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
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

// SensorStaleAfter returns the offline threshold as a Duration.
func (c *Config) SensorStaleAfter() time.Duration {
	return time.Duration(c.Sensors.StaleAfter) * time.Second
}
