// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Source kinds.
const (
	SourceMQTT   = "mqtt"
	SourceSerial = "serial"
	SourceMock   = "mock"
)

// Config holds all recorder configuration values.
type Config struct {
	DataDir     string                   `yaml:"data_dir"`
	Stabilize   time.Duration            `yaml:"stabilize"`
	TareTimeout time.Duration            `yaml:"tare_timeout"`
	QueueSize   int                      `yaml:"queue_size"`
	DefaultTask string                   `yaml:"default_task"`
	Tasks       map[string]time.Duration `yaml:"tasks"`

	Source  SourceConfig  `yaml:"source"`
	Serial  SerialConfig  `yaml:"serial"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Web     WebConfig     `yaml:"web"`
	GPIO    GPIOConfig    `yaml:"gpio"`
	Display DisplayConfig `yaml:"display"`
	Influx  InfluxConfig  `yaml:"influx"`
}

// SourceConfig selects where raw samples come from.
type SourceConfig struct {
	Kind       string        `yaml:"kind"` // mqtt, serial or mock
	MockRateHz int           `yaml:"mock_rate_hz"`
	MockBodyKg float64       `yaml:"mock_body_kg"`
	Stale      time.Duration `yaml:"stale"` // mqtt only: silence that counts as a disconnect
}

type SerialConfig struct {
	Port string `yaml:"port"`
	Baud uint   `yaml:"baud"`
}

// MQTTConfig is used whenever Enabled is set or the sample source is mqtt.
type MQTTConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Broker         string `yaml:"broker"`
	ClientID       string `yaml:"client_id"`
	TopicRaw       string `yaml:"topic_raw"`
	TopicCmd       string `yaml:"topic_cmd"`
	TopicRecords   string `yaml:"topic_records"`
	TopicStatus    string `yaml:"topic_status"`
	PublishRecords bool   `yaml:"publish_records"`
}

type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// GPIOConfig maps button pins (e.g. GPIO17) to command lines and names the
// status LED pin.
type GPIOConfig struct {
	Enabled  bool              `yaml:"enabled"`
	Buttons  map[string]string `yaml:"buttons"`
	LED      string            `yaml:"led"`
	Debounce time.Duration     `yaml:"debounce"`
}

// DisplayConfig drives an SSD1306 OLED on the I2C bus. An empty bus name
// picks the first one found.
type DisplayConfig struct {
	Enabled bool   `yaml:"enabled"`
	I2CBus  string `yaml:"i2c_bus"`
}

// InfluxConfig enables the InfluxDB mirror. Token is read from INFLUX_TOKEN
// only, never from the YAML file.
type InfluxConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
	Token   string `yaml:"-"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		DataDir:     "data",
		Stabilize:   2 * time.Second,
		TareTimeout: 5 * time.Second,
		QueueSize:   1024,
		DefaultTask: "simple",
		Tasks: map[string]time.Duration{
			"simple":  60 * time.Second,
			"complex": 39 * time.Second,
		},
		Source: SourceConfig{
			Kind:       SourceMQTT,
			MockRateHz: 100,
			MockBodyKg: 70,
			Stale:      2 * time.Second,
		},
		Serial: SerialConfig{
			Port: "/dev/ttyUSB0",
			Baud: 115200,
		},
		MQTT: MQTTConfig{
			Broker:       "tcp://localhost:1883",
			ClientID:     "balance-recorder",
			TopicRaw:     "balance/raw",
			TopicCmd:     "balance/cmd",
			TopicRecords: "balance/records",
			TopicStatus:  "balance/status",
		},
		Web: WebConfig{
			Addr: ":8080",
		},
		GPIO: GPIOConfig{
			Debounce: 200 * time.Millisecond,
		},
		Influx: InfluxConfig{
			URL:    "http://localhost:8086",
			Bucket: "balance",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults. Environment overrides are applied last.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// a tasks table in the file replaces the default one
		defaultTasks := cfg.Tasks
		cfg.Tasks = nil

		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
		if cfg.Tasks == nil {
			cfg.Tasks = defaultTasks
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv loads KEY=VALUE pairs from a .env file into the process
// environment. A missing file is not an error; variables already set win.
func LoadEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BALANCE_MQTT_BROKER"); v != "" {
		c.MQTT.Broker = v
	}
	if v := os.Getenv("BALANCE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("INFLUX_TOKEN"); v != "" {
		c.Influx.Token = v
	}
	if v := os.Getenv("INFLUX_ORG"); v != "" {
		c.Influx.Org = v
	}
	if v := os.Getenv("INFLUX_BUCKET"); v != "" {
		c.Influx.Bucket = v
	}
}

// validate checks that all required fields are set and consistent.
func (c *Config) validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive, got %d", c.QueueSize)
	}
	if c.Stabilize < 0 {
		return fmt.Errorf("stabilize cannot be negative")
	}
	if c.TareTimeout <= 0 {
		return fmt.Errorf("tare_timeout must be positive")
	}

	if len(c.Tasks) == 0 {
		return fmt.Errorf("at least one task is required")
	}
	tasks := make(map[string]time.Duration, len(c.Tasks))
	for name, d := range c.Tasks {
		if d <= 0 {
			return fmt.Errorf("task %q must have a positive duration", name)
		}
		tasks[strings.ToLower(name)] = d
	}
	c.Tasks = tasks
	c.DefaultTask = strings.ToLower(c.DefaultTask)
	if _, ok := c.Tasks[c.DefaultTask]; !ok {
		return fmt.Errorf("default_task %q is not a configured task", c.DefaultTask)
	}

	switch c.Source.Kind {
	case SourceMQTT:
		if c.MQTT.TopicRaw == "" {
			return fmt.Errorf("mqtt.topic_raw is required for the mqtt source")
		}
	case SourceSerial:
		if c.Serial.Port == "" || c.Serial.Baud == 0 {
			return fmt.Errorf("serial.port and serial.baud are required for the serial source")
		}
	case SourceMock:
		if c.Source.MockRateHz <= 0 {
			return fmt.Errorf("source.mock_rate_hz must be positive")
		}
	default:
		return fmt.Errorf("unknown source kind %q (want mqtt, serial or mock)", c.Source.Kind)
	}

	if c.UsesMQTT() && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}
	if c.Web.Enabled && c.Web.Addr == "" {
		return fmt.Errorf("web.addr is required when the web panel is enabled")
	}
	if c.Influx.Enabled {
		if c.Influx.URL == "" || c.Influx.Org == "" || c.Influx.Bucket == "" {
			return fmt.Errorf("influx.url, influx.org and influx.bucket are required when influx is enabled")
		}
		if c.Influx.Token == "" {
			return fmt.Errorf("INFLUX_TOKEN environment variable is not set")
		}
	}
	return nil
}

// UsesMQTT reports whether any component needs a broker connection.
func (c *Config) UsesMQTT() bool {
	return c.Source.Kind == SourceMQTT || c.MQTT.Enabled
}
