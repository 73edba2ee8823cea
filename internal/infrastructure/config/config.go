package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSSCPort is the UDP port SSC receivers listen on.
const DefaultSSCPort = 45

// Config is the root configuration structure for SSC Monitor.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Receivers []ReceiverConfig `yaml:"receivers"`
	SSC       SSCConfig        `yaml:"ssc"`
	API       APIConfig        `yaml:"api"`
	WebSocket WebSocketConfig  `yaml:"websocket"`
	MQTT      MQTTConfig       `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig   `yaml:"influxdb"`
	Logging   LoggingConfig    `yaml:"logging"`
}

// ReceiverConfig describes one statically configured receiver.
type ReceiverConfig struct {
	// Key is the state key used to index the receiver in the state store
	// and in API paths (e.g. "R1").
	Key string `yaml:"key"`

	// Name is the display name used in logs.
	Name string `yaml:"name"`

	// Address is the receiver's IP address. Inbound datagrams are
	// attributed to a receiver by exact match on this address.
	Address string `yaml:"address"`

	// Port is the receiver's SSC port. Default: 45
	Port int `yaml:"port"`
}

// SSCConfig contains the SSC protocol client settings.
type SSCConfig struct {
	// ListenAddress is the local address the UDP socket binds to.
	ListenAddress string `yaml:"listen_address"`

	// ListenPort is the local UDP port. Receivers reply to the source port
	// of the subscription, so this is normally 45 as well.
	ListenPort int `yaml:"listen_port"`

	// RenewInterval is how often each subscription is re-issued (seconds).
	RenewInterval int `yaml:"renew_interval"`

	// MinInterval is the minimum notification period requested from
	// receivers (milliseconds).
	MinInterval int `yaml:"min_interval"`

	// MaxInterval is the maximum notification period (milliseconds).
	// 0 means notifications are sent on change only.
	MaxInterval int `yaml:"max_interval"`

	// ReadTimeout bounds each socket read so the receive loop can
	// observe shutdown (seconds).
	ReadTimeout int `yaml:"read_timeout"`

	// WriteTimeout bounds each datagram send (seconds).
	WriteTimeout int `yaml:"write_timeout"`

	// QueueSize is the inbound datagram queue depth.
	QueueSize int `yaml:"queue_size"`
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

// APITimeoutConfig contains HTTP timeout settings.
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

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
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

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SSCMONITOR_SECTION_KEY
// For example: SSCMONITOR_API_PORT, SSCMONITOR_MQTT_HOST
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

	cfg.applyReceiverDefaults()
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		SSC: SSCConfig{
			ListenAddress: "0.0.0.0",
			ListenPort:    DefaultSSCPort,
			RenewInterval: 50,
			MinInterval:   1000,
			MaxInterval:   0,
			ReadTimeout:   1,
			WriteTimeout:  5,
			QueueSize:     256,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 3000,
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
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "sscmonitor",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "ssc",
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
	}
}

// applyReceiverDefaults fills per-receiver defaults that YAML cannot express.
func (c *Config) applyReceiverDefaults() {
	for i := range c.Receivers {
		if c.Receivers[i].Port == 0 {
			c.Receivers[i].Port = DefaultSSCPort
		}
		if c.Receivers[i].Name == "" {
			c.Receivers[i].Name = c.Receivers[i].Key
		}
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SSCMONITOR_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// API
	if v := os.Getenv("SSCMONITOR_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("SSCMONITOR_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// SSC
	if v := os.Getenv("SSCMONITOR_SSC_LISTEN_ADDRESS"); v != "" {
		cfg.SSC.ListenAddress = v
	}

	// MQTT
	if v := os.Getenv("SSCMONITOR_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SSCMONITOR_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SSCMONITOR_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("SSCMONITOR_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	errs = append(errs, c.validateReceivers()...)
	errs = append(errs, c.validateSSC()...)

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.TopicPrefix == "" {
			errs = append(errs, "mqtt.topic_prefix is required")
		}
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	errs = append(errs, c.validateLogging()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateReceivers validates the static receiver list.
func (c *Config) validateReceivers() []string {
	var errs []string

	if len(c.Receivers) == 0 {
		errs = append(errs, "at least one receiver is required")
	}

	keys := make(map[string]bool)
	addrs := make(map[string]bool)
	for i, r := range c.Receivers {
		if r.Key == "" {
			errs = append(errs, fmt.Sprintf("receivers[%d].key is required", i))
		} else if keys[r.Key] {
			errs = append(errs, fmt.Sprintf("receivers[%d].key %q is duplicate", i, r.Key))
		}
		keys[r.Key] = true

		addr, err := netip.ParseAddr(r.Address)
		if err != nil {
			errs = append(errs, fmt.Sprintf("receivers[%d].address %q is invalid: %v", i, r.Address, err))
		} else {
			canonical := addr.Unmap().String()
			if addrs[canonical] {
				errs = append(errs, fmt.Sprintf("receivers[%d].address %q is duplicate", i, r.Address))
			}
			addrs[canonical] = true
		}

		if r.Port < 1 || r.Port > 65535 {
			errs = append(errs, fmt.Sprintf("receivers[%d].port must be between 1 and 65535", i))
		}
	}

	return errs
}

// validateSSC validates protocol client settings.
func (c *Config) validateSSC() []string {
	var errs []string
	if c.SSC.ListenPort < 1 || c.SSC.ListenPort > 65535 {
		errs = append(errs, "ssc.listen_port must be between 1 and 65535")
	}
	if c.SSC.RenewInterval < 1 {
		errs = append(errs, "ssc.renew_interval must be at least 1 second")
	}
	if c.SSC.MinInterval < 0 {
		errs = append(errs, "ssc.min_interval must not be negative")
	}
	if c.SSC.MaxInterval < 0 {
		errs = append(errs, "ssc.max_interval must not be negative")
	}
	if c.SSC.ReadTimeout < 1 {
		errs = append(errs, "ssc.read_timeout must be at least 1 second")
	}
	if c.SSC.WriteTimeout < 1 {
		errs = append(errs, "ssc.write_timeout must be at least 1 second")
	}
	if c.SSC.QueueSize < 1 {
		errs = append(errs, "ssc.queue_size must be at least 1")
	}
	return errs
}

// validateLogging validates logging settings.
func (c *Config) validateLogging() []string {
	var errs []string

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("logging.level %q is invalid (use debug, info, warn, or error)", c.Logging.Level))
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("logging.format %q is invalid (use json or text)", c.Logging.Format))
	}

	return errs
}

// GetRenewInterval returns the subscription renewal period as a Duration.
func (c *Config) GetRenewInterval() time.Duration {
	return time.Duration(c.SSC.RenewInterval) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}
