package platform

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlowe/hamqtt"
)

func restartButton(t *testing.T) (*Button, *atomic.Int32) {
	t.Helper()

	presses := &atomic.Int32{}
	sut, err := NewButton(&ButtonConfig{EntityConfig{Name: "Restart", UniqueID: "restart"}}, func() {
		presses.Add(1)
	})
	require.NoError(t, err)

	return sut, presses
}

func TestNewButton(t *testing.T) {
	t.Run("Nil arguments", func(t *testing.T) {
		_, err := NewButton(nil, func() {})
		require.ErrorIs(t, err, hamqtt.ErrInvalidArgument)

		_, err = NewButton(&ButtonConfig{EntityConfig{Name: "Restart", UniqueID: "restart"}}, nil)
		require.ErrorIs(t, err, hamqtt.ErrInvalidArgument)
	})

	t.Run("Missing fields", func(t *testing.T) {
		_, err := NewButton(&ButtonConfig{EntityConfig{Name: "Restart"}}, func() {})
		require.ErrorIs(t, err, hamqtt.ErrInvalidState)
		assert.ErrorContains(t, err, "unique id")
	})
}

func TestButtonDiscovery(t *testing.T) {
	sut, _ := restartButton(t)

	assert.Empty(t, sut.CommandTopic())
	assert.Nil(t, sut.SubscribedTopics())

	assert.Equal(t, map[string]any{
		"p":                  "button",
		"name":               "Restart",
		"unique_id":          "restart",
		"command_topic":      "dev1/restart/press",
		"payload_press":      "PRESS",
		"enabled_by_default": true,
	}, fragment(t, sut, "dev1"))

	assert.Equal(t, "dev1/restart/press", sut.CommandTopic())
	assert.Equal(t, []string{"dev1/restart/press"}, sut.SubscribedTopics())

	t.Run("Device ID required", func(t *testing.T) {
		other, _ := restartButton(t)

		require.ErrorIs(t, other.ContributeDiscovery(discard(), ""), hamqtt.ErrInvalidArgument)
		assert.Empty(t, other.CommandTopic())
	})
}

func TestButtonServeMQTT(t *testing.T) {
	t.Run("Before discovery", func(t *testing.T) {
		sut, presses := restartButton(t)

		sut.ServeMQTT(nil, "dev1/restart/press", []byte("PRESS"))
		assert.Zero(t, presses.Load())
	})

	sut, presses := restartButton(t)
	fragment(t, sut, "dev1")

	t.Run("Press", func(t *testing.T) {
		sut.ServeMQTT(nil, "dev1/restart/press", []byte("PRESS"))
		assert.EqualValues(t, 1, presses.Load())
	})

	for _, tt := range []struct {
		name    string
		topic   string
		payload string
	}{
		{name: "Lowercase payload", topic: "dev1/restart/press", payload: "press"},
		{name: "Trailing whitespace", topic: "dev1/restart/press", payload: "PRESS "},
		{name: "Empty payload", topic: "dev1/restart/press", payload: ""},
		{name: "Other topic", topic: "dev1/other/press", payload: "PRESS"},
		{name: "Other device", topic: "dev2/restart/press", payload: "PRESS"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			before := presses.Load()
			sut.ServeMQTT(nil, tt.topic, []byte(tt.payload))
			assert.Equal(t, before, presses.Load())
		})
	}

	t.Run("Tick does nothing", func(t *testing.T) {
		require.NoError(t, sut.Tick(t.Context(), nil))
	})
}
