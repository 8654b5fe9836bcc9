package hass

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPowerState(t *testing.T) {
	assert.Equal(t, PowerStateOn, PowerStateFor(true))
	assert.Equal(t, PowerStateOff, PowerStateFor(false))

	b, err := PowerStateMarshaler(PowerStateOn)
	require.NoError(t, err)
	assert.Equal(t, "ON", string(b))

	v, err := PowerStateUnmarshaler([]byte("OFF"))
	require.NoError(t, err)
	assert.Equal(t, PowerStateOff, v)
}

func TestAvailability(t *testing.T) {
	assert.Equal(t, Available, AvailabilityFor(true))
	assert.Equal(t, Unavailable, AvailabilityFor(false))

	b, err := AvailabilityMarshaler(Unavailable)
	require.NoError(t, err)
	assert.Equal(t, "offline", string(b))
}

func TestPressPayload(t *testing.T) {
	for _, tt := range []struct {
		payload string
		matches bool
	}{
		{"PRESS", true},
		{"press", false},
		{"PRESS ", false},
		{"", false},
	} {
		t.Run(tt.payload, func(t *testing.T) {
			assert.Equal(t, tt.matches, PressPayload.Matches([]byte(tt.payload)))
		})
	}
}
