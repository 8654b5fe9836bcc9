package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlowe/hamqtt"
)

const example = `
device:
  name: Office Desk
  manufacturer: nlowe
  origin_url: https://github.com/nlowe/hamqtt
broker:
  url: mqtt://broker.local:1883
  username: hamqtt
  password: ${HAMQTT_TEST_PASSWORD}
tick_interval: 250ms
binary_sensors:
  - name: Window Open
    device_class: window
    path: /tmp/window
    expire_after: 5m
buttons:
  - name: Close Window
    unique_id: close
    remove: /tmp/window
`

func TestParse(t *testing.T) {
	t.Setenv("HAMQTT_TEST_PASSWORD", "hunter2")

	cfg, err := Parse([]byte(example))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	t.Run("Environment is expanded", func(t *testing.T) {
		assert.Equal(t, "hunter2", cfg.Broker.Password)
	})

	t.Run("Defaults", func(t *testing.T) {
		assert.Equal(t, "office_desk", cfg.Device.ID)
		assert.Equal(t, "homeassistant", cfg.DiscoveryPrefix)
		assert.Equal(t, TransportAutopaho, cfg.Broker.Transport)
		assert.Equal(t, hamqtt.DefaultConnectTimeout, cfg.ConnectTimeout)
		assert.Equal(t, slog.LevelInfo, cfg.Level())
	})

	t.Run("Explicit values", func(t *testing.T) {
		assert.Equal(t, 250*time.Millisecond, cfg.TickInterval)
		require.Len(t, cfg.BinarySensors, 1)
		assert.Equal(t, 5*time.Minute, cfg.BinarySensors[0].ExpireAfter)
		require.Len(t, cfg.Buttons, 1)
		assert.Equal(t, "/tmp/window", cfg.Buttons[0].Remove)
	})

	t.Run("Entity IDs", func(t *testing.T) {
		assert.Equal(t, "window_open", cfg.BinarySensors[0].UniqueID)
		assert.Equal(t, "close", cfg.Buttons[0].UniqueID)
	})

	t.Run("Device config", func(t *testing.T) {
		device, err := cfg.DeviceConfig()
		require.NoError(t, err)
		require.NoError(t, device.Valid())

		assert.Equal(t, "office_desk", device.ID)
		assert.Equal(t, "Office Desk", device.Name)
		assert.Equal(t, "nlowe", device.Manufacturer)
		assert.Equal(t, "broker.local:1883", device.BrokerURL.Host)
		assert.Equal(t, "https://github.com/nlowe/hamqtt", device.OriginURL.String())
		assert.Equal(t, "hamqtt", device.Username)
		assert.Equal(t, "hunter2", device.Password)
		assert.Equal(t, "homeassistant", device.DiscoveryPrefix)
	})

	t.Run("Platform configs", func(t *testing.T) {
		sensor := cfg.BinarySensors[0].Platform()
		assert.Equal(t, "Window Open", sensor.Name)
		assert.Equal(t, "window_open", sensor.UniqueID)
		assert.Equal(t, "window", sensor.DeviceClass)
		assert.Equal(t, 5*time.Minute, sensor.ExpireAfter)
		assert.False(t, sensor.DisabledByDefault)

		button := cfg.Buttons[0].Platform()
		assert.Equal(t, "Close Window", button.Name)
		assert.Equal(t, "close", button.UniqueID)
	})
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse([]byte("device: [not, a, map"))
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	t.Run("Missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("OK", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(example), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "Office Desk", cfg.Device.Name)
	})
}

func TestValidate(t *testing.T) {
	valid := func(t *testing.T) *Config {
		t.Helper()

		cfg, err := Parse([]byte(example))
		require.NoError(t, err)

		return cfg
	}

	for _, tt := range []struct {
		name     string
		mutate   func(c *Config)
		expected string
	}{
		{
			name:     "Missing device name",
			mutate:   func(c *Config) { c.Device.Name = "" },
			expected: "device.name is required",
		},
		{
			name:     "Unsanitized device id",
			mutate:   func(c *Config) { c.Device.ID = "Office/Desk" },
			expected: "device.id",
		},
		{
			name:     "Missing broker",
			mutate:   func(c *Config) { c.Broker.URL = "" },
			expected: "broker.url is required",
		},
		{
			name:     "Unknown transport",
			mutate:   func(c *Config) { c.Broker.Transport = "carrier-pigeon" },
			expected: "broker.transport",
		},
		{
			name:     "Bad log level",
			mutate:   func(c *Config) { c.LogLevel = "loud" },
			expected: "log_level",
		},
		{
			name:     "Sensor without path",
			mutate:   func(c *Config) { c.BinarySensors[0].Path = "" },
			expected: "binary_sensors[0].path is required",
		},
		{
			name:     "Duplicate unique id",
			mutate:   func(c *Config) { c.Buttons[0].UniqueID = "window_open" },
			expected: `buttons[0].unique_id "window_open" is already used by binary_sensors[0]`,
		},
		{
			name: "Too many entities",
			mutate: func(c *Config) {
				for i := range hamqtt.DefaultCapacity {
					c.Buttons = append(c.Buttons, ButtonConfig{EntityConfig: EntityConfig{
						Name:     "Button",
						UniqueID: "button_" + strings.Repeat("x", i+1),
					}})
				}
			},
			expected: "entities configured",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalid)
			assert.ErrorContains(t, err, tt.expected)
		})
	}

	t.Run("Reports every problem", func(t *testing.T) {
		cfg := valid(t)
		cfg.Device.Name = ""
		cfg.Broker.URL = ""

		err := cfg.Validate()
		assert.ErrorContains(t, err, "device.name")
		assert.ErrorContains(t, err, "broker.url")
	})
}
