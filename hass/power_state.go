package hass

import (
	"github.com/nlowe/hamqtt/mqtt"
)

// PowerState represents generic on/off state for devices. This may or may not refer to physical power depending on the
// underlying entity (For example, a motion sensor may return PowerStateOn when motion is detected).
type PowerState string

var (
	PowerStateMarshaler mqtt.ValueMarshaler[PowerState] = func(v PowerState) ([]byte, error) {
		return mqtt.StringMarshaler(string(v))
	}

	PowerStateUnmarshaler mqtt.ValueUnmarshaler[PowerState] = func(bytes []byte) (PowerState, error) {
		v, err := mqtt.StringUnmarshaler(bytes)
		return PowerState(v), err
	}
)

const (
	PowerStateOn  PowerState = "ON"
	PowerStateOff PowerState = "OFF"
)

// PowerStateFor maps a boolean reading to PowerStateOn or PowerStateOff.
func PowerStateFor(on bool) PowerState {
	if on {
		return PowerStateOn
	}

	return PowerStateOff
}
