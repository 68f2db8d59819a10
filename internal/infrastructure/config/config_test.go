package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
database:
  path: "/tmp/lumen.db"
capture:
  backend: none
  success_delay: 250ms
  failure_delay: 2s
  idle_interval: 0s
als:
  backend: time
  time:
    hour_to_lux:
      0: 0
      8: 300
      13: 1000
      20: 50
predictor:
  settle_window: 1500ms
  tolerance: 3
  lux_buckets:
    - {name: dark, min_lux: 0}
    - {name: lit, min_lux: 50}
output:
  name: eDP-1
  backlight:
    path: /sys/class/backlight/intel_backlight
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/lumen.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/lumen.db")
	}
	if cfg.Capture.SuccessDelay != 250*time.Millisecond || cfg.Capture.FailureDelay != 2*time.Second {
		t.Errorf("capture delays = %v, %v", cfg.Capture.SuccessDelay, cfg.Capture.FailureDelay)
	}
	if cfg.Capture.IdleInterval != 0 {
		t.Errorf("Capture.IdleInterval = %v, want 0", cfg.Capture.IdleInterval)
	}
	if cfg.ALS.Time.HourToLux[13] != 1000 {
		t.Errorf("HourToLux[13] = %v, want 1000", cfg.ALS.Time.HourToLux[13])
	}
	if len(cfg.Predictor.LuxBuckets) != 2 || cfg.Predictor.LuxBuckets[1].MinLux != 50 {
		t.Errorf("LuxBuckets = %+v", cfg.Predictor.LuxBuckets)
	}
	if cfg.Output.Name != "eDP-1" {
		t.Errorf("Output.Name = %q, want eDP-1", cfg.Output.Name)
	}

	// Unset values keep their defaults.
	if !cfg.Predictor.Enabled || cfg.Predictor.LumaBuckets != 5 {
		t.Errorf("predictor defaults lost: %+v", cfg.Predictor)
	}
	if cfg.Output.Backlight.PollInterval != 500*time.Millisecond {
		t.Errorf("PollInterval = %v, want 500ms", cfg.Output.Backlight.PollInterval)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Load() error = %v, want fs.ErrNotExist", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "invalid: [yaml: content")); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	if _, err := Load(writeConfig(t, "capture:\n  success_delay: soon\n")); err == nil {
		t.Error("Load() expected error for unparseable duration, got nil")
	}
}

func TestLoad_ReportsAllViolations(t *testing.T) {
	_, err := Load(writeConfig(t, `
capture:
  backend: x11
processor:
  sample_stride: 0
als:
  backend: mqtt
`))
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	for _, want := range []string{"capture.backend", "processor.sample_stride", "mqtt.enabled", "als.mqtt.topic"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LUMEN_DATABASE_PATH", "/var/tmp/lumen.db")

	cfg, err := LoadDefaults()
	if err != nil {
		t.Fatalf("LoadDefaults() error = %v", err)
	}
	if cfg.Database.Path != "/var/tmp/lumen.db" {
		t.Errorf("Database.Path = %q, env override not applied", cfg.Database.Path)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, true},
		{"unknown log level", func(c *Config) { c.Logging.Level = "trace" }, true},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"failure delay shorter than success", func(c *Config) {
			c.Capture.SuccessDelay = time.Second
			c.Capture.FailureDelay = 100 * time.Millisecond
		}, true},
		{"zero success delay", func(c *Config) { c.Capture.SuccessDelay = 0 }, true},
		{"negative idle interval", func(c *Config) { c.Capture.IdleInterval = -time.Second }, true},
		{"unknown processor", func(c *Config) { c.Processor.Backend = "vulkan" }, true},
		{"time backend without table", func(c *Config) { c.ALS.Backend = "time" }, true},
		{"time backend bad hour", func(c *Config) {
			c.ALS.Backend = "time"
			c.ALS.Time.HourToLux = map[int]float64{24: 10}
		}, true},
		{"time backend", func(c *Config) {
			c.ALS.Backend = "time"
			c.ALS.Time.HourToLux = map[int]float64{0: 0, 12: 800}
		}, false},
		{"mqtt backend", func(c *Config) {
			c.ALS.Backend = "mqtt"
			c.ALS.MQTT.Topic = "home/office/lux"
			c.MQTT.Enabled = true
		}, false},
		{"iio backend", func(c *Config) { c.ALS.Backend = "iio" }, false},
		{"tolerance above 100", func(c *Config) { c.Predictor.Tolerance = 101 }, true},
		{"zero luma buckets", func(c *Config) { c.Predictor.LumaBuckets = 0 }, true},
		{"lux buckets not ascending", func(c *Config) {
			c.Predictor.LuxBuckets = []LuxBucketConfig{{"a", 10}, {"b", 10}}
		}, true},
		{"zero poll interval", func(c *Config) { c.Output.Backlight.PollInterval = 0 }, true},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, true},
		{"wildcard topic prefix", func(c *Config) {
			c.MQTT.Enabled = true
			c.MQTT.TopicPrefix = "lumen/#"
		}, true},
		{"influx without bucket", func(c *Config) {
			c.InfluxDB.Enabled = true
			c.InfluxDB.URL = "http://localhost:8086"
			c.InfluxDB.Org = "home"
		}, true},
		{"api port ignored when disabled", func(c *Config) { c.API.Port = 0 }, false},
		{"api port invalid", func(c *Config) {
			c.API.Enabled = true
			c.API.Port = 70000
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAPITimeoutConfig_Durations(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.API.Timeouts.ReadTimeout().Seconds(); got != 30 {
		t.Errorf("ReadTimeout() = %v, want 30", got)
	}

	if got := cfg.API.Timeouts.WriteTimeout().Seconds(); got != 45 {
		t.Errorf("WriteTimeout() = %v, want 45", got)
	}

	if got := cfg.API.Timeouts.IdleTimeout().Seconds(); got != 60 {
		t.Errorf("IdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("LUMEN_DATABASE_PATH", "/custom/path.db")
	t.Setenv("LUMEN_MQTT_HOST", "mqtt.example.com")
	t.Setenv("LUMEN_MQTT_USERNAME", "testuser")
	t.Setenv("LUMEN_MQTT_PASSWORD", "testpass")
	t.Setenv("LUMEN_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("LUMEN_BACKLIGHT_PATH", "/sys/class/backlight/acpi_video0")
	t.Setenv("LUMEN_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	checks := []struct {
		field, got, want string
	}{
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Output.Backlight.Path", cfg.Output.Backlight.Path, "/sys/class/backlight/acpi_video0"},
		{"Logging.Level", cfg.Logging.Level, "debug"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}
}

func TestResolvePath(t *testing.T) {
	cfgHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", cfgHome)
	t.Setenv("LUMEN_CONFIG", "")

	if p, explicit := ResolvePath("/etc/lumen.yaml"); p != "/etc/lumen.yaml" || !explicit {
		t.Errorf("flag path = %q, %v", p, explicit)
	}

	if p, explicit := ResolvePath(""); p != filepath.Join("configs", "config.yaml") || explicit {
		t.Errorf("fallback path = %q, %v", p, explicit)
	}

	xdg := filepath.Join(cfgHome, "lumen", "config.yaml")
	if err := os.MkdirAll(filepath.Dir(xdg), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(xdg, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	if p, _ := ResolvePath(""); p != xdg {
		t.Errorf("xdg path = %q, want %q", p, xdg)
	}

	t.Setenv("LUMEN_CONFIG", "/run/lumen.yaml")
	if p, explicit := ResolvePath(""); p != "/run/lumen.yaml" || !explicit {
		t.Errorf("env path = %q, %v", p, explicit)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}
	if cfg.Capture.SuccessDelay != 100*time.Millisecond || cfg.Capture.FailureDelay != time.Second {
		t.Errorf("capture delays = %v, %v; want 100ms, 1s", cfg.Capture.SuccessDelay, cfg.Capture.FailureDelay)
	}
	if cfg.API.Enabled || cfg.MQTT.Enabled || cfg.InfluxDB.Enabled {
		t.Error("network surfaces should be disabled by default")
	}
	if cfg.API.Host != "127.0.0.1" || cfg.API.Port != 8787 {
		t.Errorf("API address = %s:%d", cfg.API.Host, cfg.API.Port)
	}
	if cfg.MQTT.TopicPrefix != "lumen" {
		t.Errorf("MQTT.TopicPrefix = %q, want lumen", cfg.MQTT.TopicPrefix)
	}
}
