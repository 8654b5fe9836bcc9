package hamqtt

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// Config identifies a Device to Home Assistant and tells it how to reach the broker. ID, Name, BrokerURL and
// DiscoveryPrefix are required. It implements slog.LogValuer without logging credentials.
//
// See https://www.home-assistant.io/integrations/mqtt/#device-discovery-payload
type Config struct {
	// ID uniquely identifies the device. It is used as the first segment of every state, command and availability
	// topic, so it should not contain MQTT wildcards or separators.
	ID string

	// The name of the device.
	Name string

	// The manufacturer of the device.
	Manufacturer string
	// The model of the device.
	Model string
	// The serial number of the device
	Serial string
	// The firmware version of the device. It is also reported as the origin's software version.
	SoftwareVersion string
	// The hardware version of the device.
	HardwareVersion string

	// Support URL reported in the discovery payload's origin.
	OriginURL *url.URL

	// BrokerURL is the address of the MQTT broker.
	BrokerURL *url.URL
	Username  string
	Password  string
	// ClientID defaults to a generated value chosen by the transport.
	ClientID string

	// DiscoveryPrefix is the topic prefix Home Assistant watches for discovery payloads, usually
	// discovery.DefaultPrefix.
	DiscoveryPrefix string
}

// Valid checks that every required field is set. The returned error matches ErrInvalidState.
func (c Config) Valid() error {
	var missing []string
	if c.ID == "" {
		missing = append(missing, "id")
	}
	if c.Name == "" {
		missing = append(missing, "name")
	}
	if c.BrokerURL == nil {
		missing = append(missing, "broker url")
	}
	if c.DiscoveryPrefix == "" {
		missing = append(missing, "discovery prefix")
	}

	if len(missing) > 0 {
		return fmt.Errorf("device config: missing %s: %w", strings.Join(missing, ", "), ErrInvalidState)
	}

	return nil
}

func (c Config) LogValue() slog.Value {
	broker := ""
	if c.BrokerURL != nil {
		broker = c.BrokerURL.Redacted()
	}

	return slog.GroupValue(
		slog.String("id", c.ID),
		slog.String("name", c.Name),
		slog.String("broker", broker),
		slog.String("discovery_prefix", c.DiscoveryPrefix),
	)
}

// deviceInfo is the "device" object of the discovery payload.
type deviceInfo struct {
	Identifiers     string `json:"ids"`
	Name            string `json:"name"`
	Manufacturer    string `json:"mf,omitempty"`
	Model           string `json:"mdl,omitempty"`
	SoftwareVersion string `json:"sw,omitempty"`
	HardwareVersion string `json:"hw,omitempty"`
	Serial          string `json:"sn,omitempty"`
}

func (c Config) deviceInfo() *deviceInfo {
	return &deviceInfo{
		Identifiers:     c.ID,
		Name:            c.Name,
		Manufacturer:    c.Manufacturer,
		Model:           c.Model,
		SoftwareVersion: c.SoftwareVersion,
		HardwareVersion: c.HardwareVersion,
		Serial:          c.Serial,
	}
}
