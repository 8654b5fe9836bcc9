package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlowe/hamqtt/hass"
	"github.com/nlowe/hamqtt/mqtt"
)

func TestHomeAssistantAvailability(t *testing.T) {
	t.Run("Default Prefix", func(t *testing.T) {
		sut := HomeAssistantAvailability(DefaultPrefix)

		require.Equal(t, "homeassistant/status", sut.FullyQualifiedTopic(""))
	})

	t.Run("Custom Prefix", func(t *testing.T) {
		sut := HomeAssistantAvailability("custom")

		require.Equal(t, "custom/status", sut.FullyQualifiedTopic(""))
	})

	t.Run("Unmarshaler", func(t *testing.T) {
		sut := HomeAssistantAvailability(DefaultPrefix)

		_, ok := sut.Get()
		assert.False(t, ok, "should not have a value before first msg")

		sut.ServeMQTT(nil, "homeassistant/status", []byte(hass.Available))
		v, ok := sut.Get()

		assert.True(t, ok, "should have a value after first msg")
		assert.EqualValues(t, hass.Available, v)
	})

	t.Run("Subscribes at least once", func(t *testing.T) {
		subs := HomeAssistantAvailability("custom").AppendSubscribeOptions(nil, "")

		require.Len(t, subs, 1)
		assert.Equal(t, "custom/status", subs[0].Topic)
		assert.Equal(t, mqtt.QOSAtLeastOnce, subs[0].Options.QoS)
	})
}

func TestConfigTopicFor(t *testing.T) {
	assert.Equal(t, "homeassistant/device/dev1/config", ConfigTopicFor(DefaultPrefix, "dev1"))
	assert.Equal(t, "custom/device/dev1/config", ConfigTopicFor("custom/", "dev1"))
}

func TestSanitizeID(t *testing.T) {
	for _, tt := range []struct {
		in, expected string
	}{
		{"motion", "motion"},
		{"Front Door", "front_door"},
		{" a/b+c#d ", "a_b_c_d"},
		{"v1.2:x", "v1_2_x"},
	} {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeID(tt.in))
		})
	}
}
