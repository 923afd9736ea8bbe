package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when MUSALCE_CONFIG is not set.
const DefaultPath = "configs/config.yaml"

// Config is the root configuration structure for the MusaLCE server.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	DAW       string          `yaml:"daw"`
	OSC       OSCConfig       `yaml:"osc"`
	MIDI      MIDIConfig      `yaml:"midi"`
	Transport TransportConfig `yaml:"transport"`
	Clock     ClockConfig     `yaml:"clock"`
	API       APIConfig       `yaml:"api"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// OSCConfig contains the OSC listener and DAW endpoint settings.
type OSCConfig struct {
	ListenHost string `yaml:"listen_host"`
	ListenPort int    `yaml:"listen_port"`
	DAWHost    string `yaml:"daw_host"`
	DAWPort    int    `yaml:"daw_port"`

	// SendAttempts bounds how many times a transient send failure is tried.
	SendAttempts int `yaml:"send_attempts"`

	// QueueSize is the number of inbound packets buffered ahead of the handler.
	QueueSize int `yaml:"queue_size"`
}

// MIDIConfig contains hardware MIDI enumeration settings.
type MIDIConfig struct {
	// PollInterval in seconds. 0 disables hot-plug polling.
	PollInterval int `yaml:"poll_interval"`

	// EnumerateTimeout in seconds. CoreMIDI enumeration can hang.
	EnumerateTimeout int `yaml:"enumerate_timeout"`
}

// TransportConfig contains the musical transport settings shared with the DAW.
type TransportConfig struct {
	BeatsPerBar int `yaml:"beats_per_bar"`
}

// ClockConfig selects the MIDI input port feeding the transport clock.
// The name-keyed flavor ignores Port and selects the clock from controller flags.
type ClockConfig struct {
	Port string `yaml:"port"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`

	// WebSocket configures the routing event stream at /api/v1/ws.
	WebSocket WebSocketConfig `yaml:"websocket"`

	// PanelDir serves the status page from disk instead of the embedded copy.
	PanelDir string `yaml:"panel_dir"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings. An empty
// AllowedOrigins list allows every origin.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains websocket stream settings. Durations are seconds.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
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
// Environment variables follow the pattern: MUSALCE_SECTION_KEY
// For example: MUSALCE_OSC_DAW_HOST, MUSALCE_API_PORT
//
// A missing file is only tolerated when path is DefaultPath, so the server
// runs out of the box; an explicitly named file must exist.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && path == DefaultPath:
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with the values the DAW extensions expect.
func Default() *Config {
	return &Config{
		OSC: OSCConfig{
			ListenHost:   "0.0.0.0",
			ListenPort:   11011,
			DAWHost:      "localhost",
			DAWPort:      10001,
			SendAttempts: 3,
			QueueSize:    256,
		},
		MIDI: MIDIConfig{
			PollInterval:     0,
			EnumerateTimeout: 3,
		},
		Transport: TransportConfig{
			BeatsPerBar: 4,
		},
		API: APIConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    8011,
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
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "musalce-server",
			},
			QoS:         1,
			TopicPrefix: "musalce",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Bucket:        "musalce",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: MUSALCE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MUSALCE_DAW"); v != "" {
		cfg.DAW = v
	}

	// OSC
	if v := os.Getenv("MUSALCE_OSC_DAW_HOST"); v != "" {
		cfg.OSC.DAWHost = v
	}
	envInt("MUSALCE_OSC_DAW_PORT", &cfg.OSC.DAWPort)
	envInt("MUSALCE_OSC_LISTEN_PORT", &cfg.OSC.ListenPort)

	// Clock
	if v := os.Getenv("MUSALCE_CLOCK_PORT"); v != "" {
		cfg.Clock.Port = v
	}

	// API
	if v := os.Getenv("MUSALCE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	envInt("MUSALCE_API_PORT", &cfg.API.Port)

	// MQTT
	if v := os.Getenv("MUSALCE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("MUSALCE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MUSALCE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("MUSALCE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("MUSALCE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// envInt overwrites *dst when key holds a valid integer. Garbage is ignored
// and left for Validate to report against the file value.
func envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.DAW != "" && c.DAW != "live" && c.DAW != "bitwig" {
		errs = append(errs, fmt.Sprintf("daw must be \"live\" or \"bitwig\", got %q", c.DAW))
	}

	// OSC validation
	if !validPort(c.OSC.ListenPort) {
		errs = append(errs, "osc.listen_port must be between 1 and 65535")
	}
	if !validPort(c.OSC.DAWPort) {
		errs = append(errs, "osc.daw_port must be between 1 and 65535")
	}
	if c.OSC.DAWHost == "" {
		errs = append(errs, "osc.daw_host is required")
	}
	if c.OSC.SendAttempts < 1 {
		errs = append(errs, "osc.send_attempts must be at least 1")
	}
	if c.OSC.QueueSize < 1 {
		errs = append(errs, "osc.queue_size must be at least 1")
	}

	// MIDI validation
	if c.MIDI.PollInterval < 0 {
		errs = append(errs, "midi.poll_interval must not be negative")
	}
	if c.MIDI.EnumerateTimeout < 1 {
		errs = append(errs, "midi.enumerate_timeout must be at least 1")
	}

	if c.Transport.BeatsPerBar < 1 {
		errs = append(errs, "transport.beats_per_bar must be at least 1")
	}

	if c.API.Enabled {
		if !validPort(c.API.Port) {
			errs = append(errs, "api.port must be between 1 and 65535")
		}
		ws := c.API.WebSocket
		if ws.MaxMessageSize < 1 || ws.PingInterval < 1 || ws.PongTimeout < 1 {
			errs = append(errs, "api.websocket values must be positive")
		}
	}

	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.TopicPrefix == "" {
			errs = append(errs, "mqtt.topic_prefix is required")
		}
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
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

// GetPollInterval returns the MIDI hot-plug poll interval. Zero means disabled.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.MIDI.PollInterval) * time.Second
}

// GetEnumerateTimeout returns the MIDI enumeration timeout as a Duration.
func (c *Config) GetEnumerateTimeout() time.Duration {
	return time.Duration(c.MIDI.EnumerateTimeout) * time.Second
}
