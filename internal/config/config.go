// Package config loads the YAML configuration of the hamqtt-example binary.
package config

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nlowe/hamqtt"
	"github.com/nlowe/hamqtt/discovery"
	"github.com/nlowe/hamqtt/platform"
)

const (
	// TransportAutopaho selects the MQTT v5 transport built on paho.golang's autopaho.
	TransportAutopaho = "autopaho"
	// TransportPahoMQTT selects the MQTT 3.1.1 transport built on paho.mqtt.golang.
	TransportPahoMQTT = "pahomqtt"

	DefaultTickInterval = time.Second
)

// ErrInvalid is returned by Validate for a configuration the binary cannot run with.
var ErrInvalid = errors.New("invalid config")

// Config is the root of the configuration file.
type Config struct {
	Device DeviceConfig `yaml:"device"`
	Broker BrokerConfig `yaml:"broker"`

	DiscoveryPrefix string        `yaml:"discovery_prefix"`
	TickInterval    time.Duration `yaml:"tick_interval"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`

	// WatchHomeAssistant re-announces the device whenever Home Assistant publishes online to its status topic.
	WatchHomeAssistant bool `yaml:"watch_home_assistant"`

	LogLevel string `yaml:"log_level"`

	BinarySensors []BinarySensorConfig `yaml:"binary_sensors"`
	Buttons       []ButtonConfig       `yaml:"buttons"`
}

type DeviceConfig struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	Manufacturer    string `yaml:"manufacturer"`
	Model           string `yaml:"model"`
	Serial          string `yaml:"serial"`
	SoftwareVersion string `yaml:"sw_version"`
	HardwareVersion string `yaml:"hw_version"`
	OriginURL       string `yaml:"origin_url"`
}

type BrokerConfig struct {
	URL       string `yaml:"url"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	ClientID  string `yaml:"client_id"`
	Transport string `yaml:"transport"`
}

// EntityConfig holds the fields shared by every entity. UniqueID defaults to the sanitized name.
type EntityConfig struct {
	Name        string `yaml:"name"`
	UniqueID    string `yaml:"unique_id"`
	Icon        string `yaml:"icon"`
	DeviceClass string `yaml:"device_class"`
	Disabled    bool   `yaml:"disabled"`
}

// BinarySensorConfig describes a binary sensor that is on while Path exists.
type BinarySensorConfig struct {
	EntityConfig `yaml:",inline"`

	Path string `yaml:"path"`

	ForceUpdate bool          `yaml:"force_update"`
	ExpireAfter time.Duration `yaml:"expire_after"`
	OffDelay    time.Duration `yaml:"off_delay"`
}

// ButtonConfig describes a button. When Remove is set, pressing the button deletes that file.
type ButtonConfig struct {
	EntityConfig `yaml:",inline"`

	Remove string `yaml:"remove"`
}

// Load reads, expands and parses the file at path, then applies defaults. It does not validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return Parse(data)
}

// Parse expands environment variables in data and decodes it, then applies defaults.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.DiscoveryPrefix = cmp.Or(c.DiscoveryPrefix, discovery.DefaultPrefix)
	c.TickInterval = cmp.Or(c.TickInterval, DefaultTickInterval)
	c.ConnectTimeout = cmp.Or(c.ConnectTimeout, hamqtt.DefaultConnectTimeout)
	c.Broker.Transport = cmp.Or(c.Broker.Transport, TransportAutopaho)
	c.LogLevel = cmp.Or(c.LogLevel, "info")

	c.Device.ID = cmp.Or(c.Device.ID, discovery.SanitizeID(c.Device.Name))
	for i := range c.BinarySensors {
		c.BinarySensors[i].defaultID()
	}
	for i := range c.Buttons {
		c.Buttons[i].defaultID()
	}
}

func (e *EntityConfig) defaultID() {
	e.UniqueID = cmp.Or(e.UniqueID, discovery.SanitizeID(e.Name))
}

// Validate reports every problem with c at once. The returned error matches ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Device.Name == "" {
		invalid("device.name is required")
	}
	if c.Device.ID == "" {
		invalid("device.id is required")
	} else if c.Device.ID != discovery.SanitizeID(c.Device.ID) {
		invalid("device.id %q must be lowercase without spaces or topic separators", c.Device.ID)
	}

	if c.Broker.URL == "" {
		invalid("broker.url is required")
	} else if _, err := url.Parse(c.Broker.URL); err != nil {
		invalid("broker.url: %w", err)
	}
	if c.Device.OriginURL != "" {
		if _, err := url.Parse(c.Device.OriginURL); err != nil {
			invalid("device.origin_url: %w", err)
		}
	}

	switch c.Broker.Transport {
	case TransportAutopaho, TransportPahoMQTT:
	default:
		invalid("broker.transport %q must be %s or %s", c.Broker.Transport, TransportAutopaho, TransportPahoMQTT)
	}

	if c.TickInterval < 0 {
		invalid("tick_interval must be positive")
	}
	if c.ConnectTimeout < 0 {
		invalid("connect_timeout must be positive")
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		invalid("log_level: %w", err)
	}

	seen := map[string]string{}
	unique := func(kind string, i int, e EntityConfig) {
		if e.Name == "" {
			invalid("%s[%d].name is required", kind, i)
		}
		if e.UniqueID == "" {
			invalid("%s[%d].unique_id is required", kind, i)
			return
		}
		if other, ok := seen[e.UniqueID]; ok {
			invalid("%s[%d].unique_id %q is already used by %s", kind, i, e.UniqueID, other)
			return
		}
		seen[e.UniqueID] = fmt.Sprintf("%s[%d]", kind, i)
	}

	for i, s := range c.BinarySensors {
		unique("binary_sensors", i, s.EntityConfig)
		if s.Path == "" {
			invalid("binary_sensors[%d].path is required", i)
		}
	}
	for i, b := range c.Buttons {
		unique("buttons", i, b.EntityConfig)
	}

	if capacity := len(c.BinarySensors) + len(c.Buttons); capacity > hamqtt.DefaultCapacity {
		invalid("%d entities configured, at most %d are supported", capacity, hamqtt.DefaultCapacity)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}

	return nil
}

// Level returns the configured log level, or slog.LevelInfo if it cannot be parsed.
func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}

	return level
}

// DeviceConfig converts the device and broker sections to a hamqtt.Config.
func (c *Config) DeviceConfig() (hamqtt.Config, error) {
	broker, err := url.Parse(c.Broker.URL)
	if err != nil {
		return hamqtt.Config{}, fmt.Errorf("broker url: %w", err)
	}

	var origin *url.URL
	if c.Device.OriginURL != "" {
		if origin, err = url.Parse(c.Device.OriginURL); err != nil {
			return hamqtt.Config{}, fmt.Errorf("origin url: %w", err)
		}
	}

	return hamqtt.Config{
		ID:              c.Device.ID,
		Name:            c.Device.Name,
		Manufacturer:    c.Device.Manufacturer,
		Model:           c.Device.Model,
		Serial:          c.Device.Serial,
		SoftwareVersion: c.Device.SoftwareVersion,
		HardwareVersion: c.Device.HardwareVersion,
		OriginURL:       origin,

		BrokerURL: broker,
		Username:  c.Broker.Username,
		Password:  c.Broker.Password,
		ClientID:  c.Broker.ClientID,

		DiscoveryPrefix: c.DiscoveryPrefix,
	}, nil
}

func (e EntityConfig) toPlatform() platform.EntityConfig {
	return platform.EntityConfig{
		Name:              e.Name,
		UniqueID:          e.UniqueID,
		Icon:              e.Icon,
		DeviceClass:       e.DeviceClass,
		DisabledByDefault: e.Disabled,
	}
}

// Platform converts s to the config of a platform.BinarySensor.
func (s BinarySensorConfig) Platform() *platform.BinarySensorConfig {
	return &platform.BinarySensorConfig{
		EntityConfig: s.toPlatform(),
		ForceUpdate:  s.ForceUpdate,
		ExpireAfter:  s.ExpireAfter,
		OffDelay:     s.OffDelay,
	}
}

// Platform converts b to the config of a platform.Button.
func (b ButtonConfig) Platform() *platform.ButtonConfig {
	return &platform.ButtonConfig{EntityConfig: b.toPlatform()}
}
