package hamqtt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlowe/hamqtt/mqtt/mqtttest"
)

// announced returns a Device with entities registered and their topics derived.
func announced(t *testing.T, opts []Option, entities ...*fakeEntity) *Device {
	t.Helper()

	sut := NewDevice(testConfig(t), &mqtttest.Transport{}, opts...)
	for _, e := range entities {
		require.NoError(t, sut.Register(e))
	}

	mustBuild(t, sut)
	return sut
}

func TestRouteIncoming(t *testing.T) {
	t.Run("Exact match", func(t *testing.T) {
		a := &fakeEntity{id: "a", suffixes: []string{"a/press"}}
		b := &fakeEntity{id: "b", suffixes: []string{"b/press"}}
		sut := announced(t, nil, a, b)

		require.Equal(t, 1, sut.RouteIncoming(nil, "dev1/a/press", []byte("PRESS")))

		assert.Equal(t, []string{"dev1/a/press=PRESS"}, a.Received())
		assert.Empty(t, b.Received())
	})

	t.Run("Shared topic", func(t *testing.T) {
		a := &fakeEntity{id: "a", suffixes: []string{"shared"}}
		b := &fakeEntity{id: "b", suffixes: []string{"shared"}}
		sut := announced(t, nil, a, b)

		require.Equal(t, 2, sut.RouteIncoming(nil, "dev1/shared", []byte("x")))

		assert.Equal(t, []string{"dev1/shared=x"}, a.Received())
		assert.Equal(t, []string{"dev1/shared=x"}, b.Received())
	})

	t.Run("Once per entity", func(t *testing.T) {
		a := &fakeEntity{id: "a", suffixes: []string{"cmd", "cmd"}}
		sut := announced(t, nil, a)

		require.Equal(t, 1, sut.RouteIncoming(nil, "dev1/cmd", []byte("x")))
		assert.Len(t, a.Received(), 1)
	})

	t.Run("No match", func(t *testing.T) {
		a := &fakeEntity{id: "a", suffixes: []string{"a/press"}}
		sut := announced(t, nil, a)

		for _, topic := range []string{"", "dev1/a", "dev1/a/press/more", "dev1/+/press", "dev1/#", "DEV1/a/press"} {
			t.Run(topic, func(t *testing.T) {
				require.Zero(t, sut.RouteIncoming(nil, topic, []byte("PRESS")))
			})
		}

		assert.Empty(t, a.Received())
	})

	t.Run("Before discovery", func(t *testing.T) {
		a := &fakeEntity{id: "a", suffixes: []string{"a/press"}}
		sut := NewDevice(testConfig(t), nil)
		require.NoError(t, sut.Register(a))

		require.Zero(t, sut.RouteIncoming(nil, "dev1/a/press", []byte("PRESS")))
	})

	t.Run("Payload is truncated", func(t *testing.T) {
		a := &fakeEntity{id: "a", suffixes: []string{"a"}}
		sut := announced(t, []Option{WithMessageLimit(8)}, a)

		require.Equal(t, 1, sut.RouteIncoming(nil, "dev1/a", []byte("0123456789")))
		assert.Equal(t, []string{"dev1/a=01234567"}, a.Received())
	})

	t.Run("Oversized topic is dropped", func(t *testing.T) {
		long := strings.Repeat("x", DefaultMessageLimit)
		a := &fakeEntity{id: "a", suffixes: []string{long}}
		short := &fakeEntity{id: "short", suffixes: []string{long[:DefaultMessageLimit-len("dev1/")]}}
		sut := announced(t, nil, a, short)

		require.Zero(t, sut.RouteIncoming(nil, "dev1/"+long, []byte("x")))
		assert.Empty(t, a.Received())
		assert.Empty(t, short.Received())
	})
}
