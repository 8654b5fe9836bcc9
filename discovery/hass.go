package discovery

import (
	"github.com/nlowe/hamqtt/hass"
	"github.com/nlowe/hamqtt/mqtt"
)

const (
	// DefaultPrefix is the MQTT Topic Prefix that Home Assistant looks for discovery payloads under
	DefaultPrefix = "homeassistant"
	// StatusTopic is the MQTT Topic that Home Assistant publishes hass.Availability state to for itself.
	StatusTopic = "status"
)

// HomeAssistantAvailability constructs a mqtt.RemoteValue that monitors Home Assistant's availability topic. Watch
// this value to be notified when Home Assistant restarts and discovery payloads need to be sent again.
//
// See https://www.home-assistant.io/integrations/mqtt/#birth-and-last-will-messages.
func HomeAssistantAvailability(discoveryPrefix string) *mqtt.RemoteValue[hass.Availability] {
	return mqtt.NewRemoteValueWithOptions(
		mqtt.JoinTopic(discoveryPrefix, StatusTopic),
		hass.AvailabilityUnmarshaler,
		mqtt.ReadOptions{QoS: mqtt.QOSAtLeastOnce},
	)
}
