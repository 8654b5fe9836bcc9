package hass

import (
	"github.com/nlowe/hamqtt/mqtt"
)

// Availability exposes whether Home Assistant should consider a device or entity as "available" (aka it is online).
// Home Assistant announces its own Availability on its status topic as well.
type Availability string

var (
	AvailabilityMarshaler mqtt.ValueMarshaler[Availability] = func(v Availability) ([]byte, error) {
		return mqtt.StringMarshaler(string(v))
	}
	AvailabilityUnmarshaler mqtt.ValueUnmarshaler[Availability] = func(bytes []byte) (Availability, error) {
		v, err := mqtt.StringUnmarshaler(bytes)
		return Availability(v), err
	}
)

const (
	// Available is the Availability value for online/available devices.
	Available Availability = "online"
	// Unavailable is the Availability value for offline/unavailable devices.
	Unavailable Availability = "offline"
)

// AvailabilityFor maps a boolean to Available or Unavailable.
func AvailabilityFor(available bool) Availability {
	if available {
		return Available
	}

	return Unavailable
}
