package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for lumen.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Capture   CaptureConfig   `yaml:"capture"`
	Processor ProcessorConfig `yaml:"processor"`
	ALS       ALSConfig       `yaml:"als"`
	Predictor PredictorConfig `yaml:"predictor"`
	Output    OutputConfig    `yaml:"output"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// CaptureConfig selects and tunes the frame capturer.
type CaptureConfig struct {
	// Backend is "wlroots" or "none".
	Backend string `yaml:"backend"`

	// SuccessDelay is the pause after a processed frame.
	SuccessDelay time.Duration `yaml:"success_delay"`

	// FailureDelay is the pause after a transient cancellation.
	FailureDelay time.Duration `yaml:"failure_delay"`

	// IdleInterval is the ambient-only cycle cadence of the "none" backend.
	// Zero blocks until shutdown.
	IdleInterval time.Duration `yaml:"idle_interval"`

	OverlayCursor bool `yaml:"overlay_cursor"`
}

// ProcessorConfig selects the frame processor.
type ProcessorConfig struct {
	Backend      string `yaml:"backend"`
	SampleStride int    `yaml:"sample_stride"`
}

// ALSConfig selects the ambient light source.
type ALSConfig struct {
	Backend string        `yaml:"backend"`
	IIO     ALSIIOConfig  `yaml:"iio"`
	Time    ALSTimeConfig `yaml:"time"`
	MQTT    ALSMQTTConfig `yaml:"mqtt"`
}

// ALSIIOConfig configures the industrial-I/O sensor backend.
type ALSIIOConfig struct {
	// Path is the iio device directory. Empty selects the first illuminance sensor.
	Path string `yaml:"path"`
}

// ALSTimeConfig configures the time-of-day backend.
type ALSTimeConfig struct {
	HourToLux map[int]float64 `yaml:"hour_to_lux"`
}

// ALSMQTTConfig configures the remote sensor backend.
type ALSMQTTConfig struct {
	Topic  string        `yaml:"topic"`
	MaxAge time.Duration `yaml:"max_age"`
}

// PredictorConfig tunes preference learning.
type PredictorConfig struct {
	Enabled      bool              `yaml:"enabled"`
	SettleWindow time.Duration     `yaml:"settle_window"`
	Tolerance    int               `yaml:"tolerance"`
	LuxBuckets   []LuxBucketConfig `yaml:"lux_buckets"`
	LumaBuckets  int               `yaml:"luma_buckets"`
}

// LuxBucketConfig is a named lux range starting at MinLux.
type LuxBucketConfig struct {
	Name   string  `yaml:"name"`
	MinLux float64 `yaml:"min_lux"`
}

// OutputConfig selects the display and its backlight.
type OutputConfig struct {
	// Name is the Wayland output name, e.g. "eDP-1". Empty selects the first output.
	Name      string          `yaml:"name"`
	Backlight BacklightConfig `yaml:"backlight"`
}

// BacklightConfig contains sysfs backlight settings.
type BacklightConfig struct {
	Path         string        `yaml:"path"`
	PollInterval time.Duration `yaml:"poll_interval"`
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

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
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

// APIConfig contains status HTTP server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// ResolvePath picks the config file. An explicit path wins, then LUMEN_CONFIG,
// then $XDG_CONFIG_HOME/lumen/config.yaml, then configs/config.yaml.
// explicit reports whether the path was requested rather than guessed; a
// guessed path that does not exist means "run on defaults".
func ResolvePath(flagPath string) (path string, explicit bool) {
	if flagPath != "" {
		return flagPath, true
	}
	if v := os.Getenv("LUMEN_CONFIG"); v != "" {
		return v, true
	}
	if dir, err := os.UserConfigDir(); err == nil {
		p := filepath.Join(dir, "lumen", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p, false
		}
	}
	return filepath.Join("configs", "config.yaml"), false
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: LUMEN_SECTION_KEY
// For example: LUMEN_DATABASE_PATH, LUMEN_BACKLIGHT_PATH
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

	return finish(cfg)
}

// LoadDefaults returns the built-in configuration with environment overrides applied.
func LoadDefaults() (*Config, error) {
	return finish(defaultConfig())
}

func finish(cfg *Config) (*Config, error) {
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Database: DatabaseConfig{
			Path:        defaultDatabasePath(),
			WALMode:     true,
			BusyTimeout: 5,
		},
		Capture: CaptureConfig{
			Backend:      "wlroots",
			SuccessDelay: 100 * time.Millisecond,
			FailureDelay: time.Second,
			IdleInterval: time.Second,
		},
		Processor: ProcessorConfig{
			Backend:      "cpu",
			SampleStride: 8,
		},
		ALS: ALSConfig{
			Backend: "none",
			MQTT: ALSMQTTConfig{
				MaxAge: 5 * time.Minute,
			},
		},
		Predictor: PredictorConfig{
			Enabled:      true,
			SettleWindow: time.Second,
			Tolerance:    2,
			LumaBuckets:  5,
		},
		Output: OutputConfig{
			Backlight: BacklightConfig{
				PollInterval: 500 * time.Millisecond,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "lumen",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8787,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
	}
}

// defaultDatabasePath places the database under $XDG_DATA_HOME/lumen.
func defaultDatabasePath() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "lumen", "lumen.db")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "lumen", "lumen.db")
	}
	return filepath.Join("data", "lumen.db")
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LUMEN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("LUMEN_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("LUMEN_BACKLIGHT_PATH"); v != "" {
		cfg.Output.Backlight.Path = v
	}

	// MQTT
	if v := os.Getenv("LUMEN_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("LUMEN_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LUMEN_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("LUMEN_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration and reports every problem found.
//
// Returns:
//   - error: Description of all validation failures, or nil if valid
func (c *Config) Validate() error {
	var errs []string
	oneOf := func(field, value string, allowed ...string) {
		if !slices.Contains(allowed, value) {
			errs = append(errs, fmt.Sprintf("%s must be one of %s, got %q", field, strings.Join(allowed, ", "), value))
		}
	}

	oneOf("logging.level", c.Logging.Level, "debug", "info", "warn", "error")
	oneOf("logging.format", c.Logging.Format, "json", "text")
	oneOf("logging.output", c.Logging.Output, "stdout", "stderr")

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// Capture
	oneOf("capture.backend", c.Capture.Backend, "wlroots", "none")
	if c.Capture.SuccessDelay <= 0 {
		errs = append(errs, "capture.success_delay must be positive")
	}
	if c.Capture.FailureDelay < c.Capture.SuccessDelay {
		errs = append(errs, "capture.failure_delay must not be shorter than capture.success_delay")
	}
	if c.Capture.IdleInterval < 0 {
		errs = append(errs, "capture.idle_interval must not be negative")
	}

	oneOf("processor.backend", c.Processor.Backend, "cpu")
	if c.Processor.SampleStride < 1 {
		errs = append(errs, "processor.sample_stride must be at least 1")
	}

	// Ambient light
	oneOf("als.backend", c.ALS.Backend, "iio", "time", "mqtt", "none")
	switch c.ALS.Backend {
	case "time":
		if len(c.ALS.Time.HourToLux) == 0 {
			errs = append(errs, "als.time.hour_to_lux is required for the time backend")
		}
		for h, lux := range c.ALS.Time.HourToLux {
			if h < 0 || h > 23 || lux < 0 {
				errs = append(errs, fmt.Sprintf("als.time.hour_to_lux: invalid entry %d: %g", h, lux))
			}
		}
	case "mqtt":
		if !c.MQTT.Enabled {
			errs = append(errs, "als.backend mqtt requires mqtt.enabled")
		}
		if c.ALS.MQTT.Topic == "" {
			errs = append(errs, "als.mqtt.topic is required for the mqtt backend")
		}
	}

	// Predictor
	if c.Predictor.SettleWindow <= 0 {
		errs = append(errs, "predictor.settle_window must be positive")
	}
	if c.Predictor.Tolerance < 0 || c.Predictor.Tolerance > 100 {
		errs = append(errs, "predictor.tolerance must be between 0 and 100")
	}
	if c.Predictor.LumaBuckets < 1 || c.Predictor.LumaBuckets > 100 {
		errs = append(errs, "predictor.luma_buckets must be between 1 and 100")
	}
	for i, b := range c.Predictor.LuxBuckets {
		if i > 0 && b.MinLux <= c.Predictor.LuxBuckets[i-1].MinLux {
			errs = append(errs, fmt.Sprintf("predictor.lux_buckets[%d] (%s): min_lux must be ascending", i, b.Name))
		}
	}

	if c.Output.Backlight.PollInterval <= 0 {
		errs = append(errs, "output.backlight.poll_interval must be positive")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required")
		}
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
		if c.MQTT.TopicPrefix == "" || strings.ContainsAny(c.MQTT.TopicPrefix, "+#") {
			errs = append(errs, "mqtt.topic_prefix must be non-empty and free of wildcards")
		}
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required")
		}
		if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.org and influxdb.bucket are required")
		}
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ReadTimeout returns the read timeout as a Duration.
func (t APITimeoutConfig) ReadTimeout() time.Duration {
	return time.Duration(t.Read) * time.Second
}

// WriteTimeout returns the write timeout as a Duration.
func (t APITimeoutConfig) WriteTimeout() time.Duration {
	return time.Duration(t.Write) * time.Second
}

// IdleTimeout returns the idle timeout as a Duration.
func (t APITimeoutConfig) IdleTimeout() time.Duration {
	return time.Duration(t.Idle) * time.Second
}
