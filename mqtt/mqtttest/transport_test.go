package mqtttest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlowe/hamqtt/mqtt"
)

func TestTransport(t *testing.T) {
	t.Run("Start error", func(t *testing.T) {
		boom := errors.New("boom")
		sut := &Transport{StartErr: boom}

		_, err := sut.Start(t.Context(), mqtt.ClientConfig{}, &Recorder{})
		require.ErrorIs(t, err, boom)
		assert.Nil(t, sut.Last())
	})

	t.Run("Auto connect", func(t *testing.T) {
		r := &Recorder{}
		sut := &Transport{AutoConnect: true}

		_, err := sut.Start(t.Context(), mqtt.ClientConfig{ClientID: "dev1"}, r)
		require.NoError(t, err)

		assert.Equal(t, 1, r.Connects())
		require.Len(t, sut.Sessions(), 1)
		assert.Equal(t, "dev1", sut.Last().Config.ClientID)
	})

	t.Run("Session records and drives events", func(t *testing.T) {
		r := &Recorder{}
		sut := &Transport{}

		c, err := sut.Start(t.Context(), mqtt.ClientConfig{}, r)
		require.NoError(t, err)
		assert.Zero(t, r.Connects())

		s := sut.Last()
		payload := []byte("ON")
		require.NoError(t, c.WriteTopic(t.Context(), "dev1/motion/state", mqtt.Retained, payload))
		payload[0] = 'X'

		require.NoError(t, c.Subscribe(t.Context(), mqtt.Subscription{Topic: "dev1/reboot/press"}))

		s.Connect(t.Context())
		s.Deliver("dev1/reboot/press", []byte("PRESS"))
		s.Drop(nil)

		published := s.PublishedTo("dev1/motion/state")
		require.Len(t, published, 1)
		assert.Equal(t, "ON", string(published[0].Payload))
		assert.Equal(t, []string{"dev1/reboot/press"}, mqtt.Topics(s.Subscribed()...))

		assert.Equal(t, 1, r.Connects())
		assert.Len(t, r.Disconnects(), 1)
		require.Len(t, r.Messages(), 1)
		assert.Equal(t, "PRESS", string(r.Messages()[0].Payload))

		require.NoError(t, c.Disconnect(t.Context()))
		assert.True(t, s.Disconnected())

		s.Reset()
		assert.Empty(t, s.Published())
	})

	t.Run("Failures", func(t *testing.T) {
		sut := &Transport{}
		c, err := sut.Start(t.Context(), mqtt.ClientConfig{}, &Recorder{})
		require.NoError(t, err)

		boom := errors.New("boom")
		sut.Last().FailPublish(boom)
		sut.Last().FailSubscribe(boom)

		require.ErrorIs(t, c.WriteTopic(t.Context(), "t", mqtt.WriteOptions{}, nil), boom)
		require.ErrorIs(t, c.Subscribe(t.Context(), mqtt.Subscription{Topic: "t"}), boom)
		assert.Empty(t, sut.Last().Published())
	})

	t.Run("Stalled publish", func(t *testing.T) {
		sut := &Transport{}
		c, err := sut.Start(t.Context(), mqtt.ClientConfig{}, &Recorder{})
		require.NoError(t, err)

		s := sut.Last()
		release := s.StallPublish()

		ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
		defer cancel()
		require.ErrorIs(t, c.WriteTopic(ctx, "t", mqtt.Retained, []byte("x")), context.DeadlineExceeded)

		require.NoError(t, c.Enqueue(t.Context(), "q", mqtt.Retained, []byte("y")))
		assert.Equal(t, []string{"q"}, topics(s.Enqueued()))

		done := make(chan error, 1)
		go func() {
			done <- c.WriteTopic(t.Context(), "t", mqtt.Retained, []byte("x"))
		}()

		release()
		release()
		require.NoError(t, <-done)
		assert.Equal(t, []string{"q", "t"}, topics(s.Published()))
	})
}

func topics(messages []mqtt.Message) []string {
	result := make([]string, len(messages))
	for i, m := range messages {
		result[i] = m.Topic
	}

	return result
}
