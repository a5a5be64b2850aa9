package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for a stagelink device.
// The same file format serves the coordinator and the panels; each binary
// reads the sections it needs. All configuration is loaded from YAML and can
// be overridden by environment variables.
type Config struct {
	Device      DeviceConfig      `yaml:"device"`
	Database    DatabaseConfig    `yaml:"database"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	API         APIConfig         `yaml:"api"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Logging     LoggingConfig     `yaml:"logging"`
	Radio       RadioConfig       `yaml:"radio"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Panel       PanelConfig       `yaml:"panel"`
}

// DeviceConfig identifies the device in logs and telemetry.
type DeviceConfig struct {
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite settings for the dispatch journal.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker MQTTBrokerConfig `yaml:"broker"`
	Auth   MQTTAuthConfig   `yaml:"auth"`
	QoS    int              `yaml:"qos"`

	// TopicPrefix is the root of every show topic, e.g. "ta25stage".
	TopicPrefix string `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	TLS  bool   `yaml:"tls"`

	// ClientID is a prefix; a random suffix is appended on every connect
	// so a rebooted device never collides with its own stale session.
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// APIConfig contains the read-only status API settings.
type APIConfig struct {
	Enabled   bool             `yaml:"enabled"`
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	Timeouts  APITimeoutConfig `yaml:"timeouts"`
	CORS      CORSConfig       `yaml:"cors"`
	WebSocket WebSocketConfig  `yaml:"websocket"`
	Auth      APIAuthConfig    `yaml:"auth"`
}

// APIAuthConfig contains bearer token settings. An empty JWTSecret leaves
// the API open.
type APIAuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	TokenTTL  int    `yaml:"token_ttl"` // minutes
}

// minJWTSecretLength is the shortest accepted HS256 secret.
const minJWTSecretLength = 32

// CORSConfig contains Cross-Origin Resource Sharing settings. An empty
// AllowedOrigins list allows every origin.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains settings for the live event stream.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"` // seconds
	PongTimeout    int `yaml:"pong_timeout"`  // seconds
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains InfluxDB connection settings.
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

// RadioConfig describes the UDP link that carries radio frames.
type RadioConfig struct {
	// Channel must match the channel the panels were built for. A mismatch
	// is reported at startup but does not stop the device.
	Channel int `yaml:"channel"`

	// Port is the base UDP port; the link listens on Port+Channel.
	Port int `yaml:"port"`

	// Address is this device's hardware address. Empty selects the
	// compiled-in address for the role.
	Address string `yaml:"address"`

	BindHost      string `yaml:"bind_host"`
	BroadcastHost string `yaml:"broadcast_host"`

	// Peers maps hardware addresses to UDP hosts for unicast.
	Peers map[string]string `yaml:"peers"`
}

// CoordinatorConfig tunes the coordinator control loop and supervisor.
type CoordinatorConfig struct {
	ControlTick       time.Duration `yaml:"control_tick"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	WatchdogInterval  time.Duration `yaml:"watchdog_interval"`
	SuspendDuration   time.Duration `yaml:"suspend_duration"`

	// NetworkInterface is watched for association loss. Empty disables the
	// check.
	NetworkInterface string `yaml:"network_interface"`

	Backoff           BackoffConfig `yaml:"backoff"`
	RecoveryThreshold int           `yaml:"recovery_threshold"`
	LowPowerThreshold int           `yaml:"low_power_threshold"`

	// InboxSize bounds commands queued between the bus and the control
	// loop. Commands beyond it are dropped.
	InboxSize int `yaml:"inbox_size"`
}

// BackoffConfig is the reconnect backoff: Initial grows by Step up to Max.
type BackoffConfig struct {
	Initial time.Duration `yaml:"initial"`
	Step    time.Duration `yaml:"step"`
	Max     time.Duration `yaml:"max"`
}

// PanelConfig contains panel agent settings.
type PanelConfig struct {
	// ID is the panel id, 1 to 4. Zero on the coordinator.
	ID             int            `yaml:"id"`
	TickInterval   time.Duration  `yaml:"tick_interval"`
	StaleAfter     time.Duration  `yaml:"stale_after"`
	StatusInterval time.Duration  `yaml:"status_interval"`
	Actuator       ActuatorConfig `yaml:"actuator"`
}

// ActuatorConfig selects the region output driver.
type ActuatorConfig struct {
	// Driver is "gpio", "log" or "none".
	Driver      string `yaml:"driver"`
	FrequencyHz int    `yaml:"frequency_hz"`
}

// maxPanels is the highest panel id.
const maxPanels = 4

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: STAGELINK_SECTION_KEY
// For example: STAGELINK_DATABASE_PATH, STAGELINK_PANEL_ID
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

// defaultConfig returns a Config with the installation's defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Name: "stagelink",
		},
		Database: DatabaseConfig{
			Enabled:     true,
			Path:        "./data/stagelink.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "ta25stage-master",
			},
			QoS:         1,
			TopicPrefix: "ta25stage",
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
			WebSocket: WebSocketConfig{
				MaxMessageSize: 8192,
				PingInterval:   30,
				PongTimeout:    10,
			},
			Auth: APIAuthConfig{
				TokenTTL: 720,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Radio: RadioConfig{
			Channel:       1,
			Port:          47600,
			BindHost:      "0.0.0.0",
			BroadcastHost: "255.255.255.255",
		},
		Coordinator: CoordinatorConfig{
			ControlTick:       100 * time.Millisecond,
			HeartbeatInterval: 30 * time.Second,
			WatchdogInterval:  60 * time.Second,
			SuspendDuration:   5 * time.Minute,
			Backoff: BackoffConfig{
				Initial: 5 * time.Second,
				Step:    10 * time.Second,
				Max:     120 * time.Second,
			},
			RecoveryThreshold: 5,
			LowPowerThreshold: 10,
			InboxSize:         32,
		},
		Panel: PanelConfig{
			TickInterval:   5 * time.Millisecond,
			StaleAfter:     5 * time.Minute,
			StatusInterval: 60 * time.Second,
			Actuator: ActuatorConfig{
				Driver:      "gpio",
				FrequencyHz: 5000,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: STAGELINK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STAGELINK_DEVICE_NAME"); v != "" {
		cfg.Device.Name = v
	}

	// Database
	if v := os.Getenv("STAGELINK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("STAGELINK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("STAGELINK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("STAGELINK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("STAGELINK_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("STAGELINK_API_JWT_SECRET"); v != "" {
		cfg.API.Auth.JWTSecret = v
	}

	// InfluxDB
	if v := os.Getenv("STAGELINK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Radio
	if v := os.Getenv("STAGELINK_RADIO_BROADCAST_HOST"); v != "" {
		cfg.Radio.BroadcastHost = v
	}

	// Panel
	if v := os.Getenv("STAGELINK_PANEL_ID"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			cfg.Panel.ID = id
		}
	}
	if v := os.Getenv("STAGELINK_PANEL_ACTUATOR"); v != "" {
		cfg.Panel.Actuator.Driver = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Device.Name == "" {
		errs = append(errs, "device.name is required")
	}

	// Database validation
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database.enabled is true")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if strings.ContainsAny(c.MQTT.TopicPrefix, "+#") {
		errs = append(errs, "mqtt.topic_prefix must not contain wildcards")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.Enabled && (c.API.WebSocket.PingInterval < 1 || c.API.WebSocket.PongTimeout < 1) {
		errs = append(errs, "api.websocket ping_interval and pong_timeout must be positive")
	}
	if c.API.Auth.JWTSecret != "" && len(c.API.Auth.JWTSecret) < minJWTSecretLength {
		errs = append(errs, fmt.Sprintf("api.auth.jwt_secret must be at least %d characters", minJWTSecretLength))
	}
	if c.API.Auth.TokenTTL < 1 {
		errs = append(errs, "api.auth.token_ttl must be positive")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb.enabled is true")
	}

	// Radio validation
	if c.Radio.Channel < 1 || c.Radio.Channel > 14 {
		errs = append(errs, "radio.channel must be between 1 and 14")
	}
	if c.Radio.Port < 1 || c.Radio.Port+c.Radio.Channel > 65535 {
		errs = append(errs, "radio.port plus radio.channel must be a valid UDP port")
	}
	if c.Radio.Address != "" {
		if _, err := net.ParseMAC(c.Radio.Address); err != nil {
			errs = append(errs, fmt.Sprintf("radio.address %q is not a hardware address", c.Radio.Address))
		}
	}
	for hw := range c.Radio.Peers {
		if _, err := net.ParseMAC(hw); err != nil {
			errs = append(errs, fmt.Sprintf("radio.peers key %q is not a hardware address", hw))
		}
	}

	// Coordinator validation
	b := c.Coordinator.Backoff
	if b.Initial < 0 || b.Step < 0 || b.Max < b.Initial {
		errs = append(errs, "coordinator.backoff must satisfy 0 <= initial <= max and step >= 0")
	}
	if c.Coordinator.LowPowerThreshold > 0 && c.Coordinator.RecoveryThreshold > c.Coordinator.LowPowerThreshold {
		errs = append(errs, "coordinator.recovery_threshold must not exceed low_power_threshold")
	}

	// Panel validation
	if c.Panel.ID < 0 || c.Panel.ID > maxPanels {
		errs = append(errs, fmt.Sprintf("panel.id must be between 0 and %d", maxPanels))
	}
	switch c.Panel.Actuator.Driver {
	case "gpio", "log", "none", "":
	default:
		errs = append(errs, "panel.actuator.driver must be gpio, log or none")
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

// GetTokenTTL returns the lifetime of API tokens minted by showctl.
func (c *Config) GetTokenTTL() time.Duration {
	return time.Duration(c.API.Auth.TokenTTL) * time.Minute
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
