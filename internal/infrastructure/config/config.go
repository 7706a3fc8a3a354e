package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Hardware description sources.
const (
	HardwareSourceDeviceTree = "devicetree"
	HardwareSourceFile       = "file"
)

// GPIO drivers.
const (
	GPIODriverCDev = "cdev"
	GPIODriverSim  = "sim"
)

// DefaultPath is used when GPIOLED_CONFIG is not set.
const DefaultPath = "configs/config.yaml"

// Config is the root configuration structure for gpioled.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Hardware  HardwareConfig  `yaml:"hardware"`
	GPIO      GPIOConfig      `yaml:"gpio"`
	Events    EventsConfig    `yaml:"events"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// DeviceConfig names the controlled device and where its node appears.
type DeviceConfig struct {
	// Name is the node name and identity region name.
	Name string `yaml:"name"`

	// Major is the preferred major number; 0 allocates one dynamically.
	Major uint32 `yaml:"major"`

	// Minor is the base minor of the identity region.
	Minor uint32 `yaml:"minor"`

	// NodeDir is the directory the node socket is created in.
	NodeDir string `yaml:"node_dir"`

	// Label is the consumer label of the claimed pin.
	Label string `yaml:"label"`
}

// HardwareConfig selects the hardware description and the pin within it.
type HardwareConfig struct {
	// Source is "devicetree" or "file".
	Source          string `yaml:"source"`
	DeviceTreeRoot  string `yaml:"devicetree_root"`
	DescriptionFile string `yaml:"description_file"`

	NodePath    string `yaml:"node_path"`
	PinProperty string `yaml:"pin_property"`
	PinIndex    int    `yaml:"pin_index"`
}

// GPIOConfig selects the pin driver.
type GPIOConfig struct {
	// Driver is "cdev" (Linux GPIO character device) or "sim".
	Driver string `yaml:"driver"`

	// Chip is the character device path used by the cdev driver.
	Chip string `yaml:"chip"`

	// SimLines is the number of lines of the simulated chip.
	SimLines int `yaml:"sim_lines"`
}

// EventsConfig sizes the device event queue and bounds audit history.
type EventsConfig struct {
	Buffer int `yaml:"buffer"`

	// AuditRetentionDays drops older audit entries at startup; 0 keeps
	// them forever.
	AuditRetentionDays int `yaml:"audit_retention_days"`
}

// AuditRetention returns the audit retention period, or 0 for unlimited.
func (e EventsConfig) AuditRetention() time.Duration {
	return time.Duration(e.AuditRetentionDays) * 24 * time.Hour
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
	// MaxDelay caps the reconnect backoff (seconds).
	MaxDelay int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
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

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
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
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// minJWTSecretLength is the shortest accepted HS256 secret.
const minJWTSecretLength = 32

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GPIOLED_SECTION_KEY
// For example: GPIOLED_DEVICE_NAME, GPIOLED_GPIO_DRIVER
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
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

// Path returns the configuration file path from GPIOLED_CONFIG, or DefaultPath.
func Path() string {
	if v := os.Getenv("GPIOLED_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Name:    "led",
			NodeDir: "/run/gpioled",
			Label:   "led",
		},
		Hardware: HardwareConfig{
			Source:         HardwareSourceDeviceTree,
			DeviceTreeRoot: "/proc/device-tree",
			NodePath:       "/gpioled",
			PinProperty:    "led-gpios",
		},
		GPIO: GPIOConfig{
			Driver:   GPIODriverCDev,
			Chip:     "/dev/gpiochip0",
			SimLines: 64,
		},
		Events: EventsConfig{
			Buffer:             256,
			AuditRetentionDays: 90,
		},
		Database: DatabaseConfig{
			Path:        "./data/gpioled.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "gpioled",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				MaxDelay: 60,
			},
		},
		API: APIConfig{
			Host: "127.0.0.1",
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
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				Path:       "./logs/gpioled.log",
				MaxSize:    10,
				MaxBackups: 5,
				MaxAge:     28,
			},
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 15,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GPIOLED_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("GPIOLED_DEVICE_NAME"); v != "" {
		cfg.Device.Name = v
	}
	if v := os.Getenv("GPIOLED_DEVICE_NODE_DIR"); v != "" {
		cfg.Device.NodeDir = v
	}
	if v, ok := envUint32("GPIOLED_DEVICE_MAJOR"); ok {
		cfg.Device.Major = v
	}

	// Hardware
	if v := os.Getenv("GPIOLED_HARDWARE_SOURCE"); v != "" {
		cfg.Hardware.Source = v
	}
	if v := os.Getenv("GPIOLED_HARDWARE_DESCRIPTION_FILE"); v != "" {
		cfg.Hardware.DescriptionFile = v
	}

	// GPIO
	if v := os.Getenv("GPIOLED_GPIO_DRIVER"); v != "" {
		cfg.GPIO.Driver = v
	}
	if v := os.Getenv("GPIOLED_GPIO_CHIP"); v != "" {
		cfg.GPIO.Chip = v
	}

	// Database
	if v := os.Getenv("GPIOLED_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GPIOLED_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GPIOLED_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GPIOLED_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("GPIOLED_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("GPIOLED_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("GPIOLED_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Security - JWT secret (always override in production)
	if v := os.Getenv("GPIOLED_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// envUint32 reads a numeric override; malformed values are ignored.
func envUint32(key string) (uint32, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Device
	if c.Device.Name == "" || strings.ContainsAny(c.Device.Name, "/\x00") {
		errs = append(errs, "device.name is required and must not contain '/'")
	}
	if c.Device.NodeDir == "" {
		errs = append(errs, "device.node_dir is required")
	}
	if c.Device.Major > 511 {
		errs = append(errs, "device.major must be between 0 and 511")
	}

	// Hardware
	switch c.Hardware.Source {
	case HardwareSourceDeviceTree:
		if c.Hardware.DeviceTreeRoot == "" {
			errs = append(errs, "hardware.devicetree_root is required for source devicetree")
		}
	case HardwareSourceFile:
		if c.Hardware.DescriptionFile == "" {
			errs = append(errs, "hardware.description_file is required for source file")
		}
	default:
		errs = append(errs, "hardware.source must be devicetree or file")
	}
	if c.Hardware.NodePath == "" {
		errs = append(errs, "hardware.node_path is required")
	}
	if c.Hardware.PinProperty == "" {
		errs = append(errs, "hardware.pin_property is required")
	}
	if c.Hardware.PinIndex < 0 {
		errs = append(errs, "hardware.pin_index must not be negative")
	}

	// GPIO
	switch c.GPIO.Driver {
	case GPIODriverCDev:
		if c.GPIO.Chip == "" {
			errs = append(errs, "gpio.chip is required for driver cdev")
		}
	case GPIODriverSim:
		if c.GPIO.SimLines < 1 {
			errs = append(errs, "gpio.sim_lines must be at least 1")
		}
	default:
		errs = append(errs, "gpio.driver must be cdev or sim")
	}

	// Events
	if c.Events.AuditRetentionDays < 0 {
		errs = append(errs, "events.audit_retention_days must not be negative")
	}

	// Database
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API
	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}
		// The API drives a physical output, so tokens must not be forgeable.
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required when the API is enabled (set GPIOLED_JWT_SECRET)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters")
		}
	}

	// InfluxDB
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when enabled")
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
