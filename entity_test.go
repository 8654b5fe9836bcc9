package hamqtt

import (
	"context"
	"encoding/json/jsontext"
	"errors"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nlowe/hamqtt/mqtt"
)

// fakeEntity subscribes to {deviceID}/{suffix} for every suffix and records what the Device asks of it.
type fakeEntity struct {
	id       string
	suffixes []string

	contributeErr error
	tickErr       error

	// publish, if set, is written to {deviceID}/{id}/state on every tick.
	publish string

	mu            sync.Mutex
	deviceID      string
	topics        []string
	contributions int
	ticks         int
	received      []string

	onTick func(id string)
}

var _ Entity = &fakeEntity{}

func (f *fakeEntity) ServeMQTT(_ mqtt.Writer, topic string, message []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.received = append(f.received, topic+"="+string(message))
}

func (f *fakeEntity) ContributeDiscovery(e *jsontext.Encoder, deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.contributions++
	if f.contributeErr != nil {
		return f.contributeErr
	}

	f.deviceID = deviceID
	f.topics = f.topics[:0]
	for _, s := range f.suffixes {
		f.topics = append(f.topics, mqtt.JoinTopic(deviceID, s))
	}

	return errors.Join(
		e.WriteToken(jsontext.String("p")),
		e.WriteToken(jsontext.String("fake")),
	)
}

func (f *fakeEntity) Tick(ctx context.Context, w mqtt.Writer) error {
	f.mu.Lock()
	f.ticks++
	deviceID := f.deviceID
	onTick := f.onTick
	f.mu.Unlock()

	if onTick != nil {
		onTick(f.id)
	}

	if f.tickErr != nil {
		return f.tickErr
	}

	if f.publish != "" {
		return w.WriteTopic(ctx, mqtt.JoinTopic(deviceID, f.id, "state"), mqtt.Retained, []byte(f.publish))
	}

	return nil
}

func (f *fakeEntity) UniqueID() string {
	return f.id
}

func (f *fakeEntity) SubscribedTopics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.topics...)
}

func (f *fakeEntity) Received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.received...)
}

func (f *fakeEntity) Ticks() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.ticks
}

func testConfig(t *testing.T) Config {
	t.Helper()

	broker, err := url.Parse("mqtt://broker.local:1883")
	require.NoError(t, err)

	return Config{
		ID:              "dev1",
		Name:            "Desk",
		BrokerURL:       broker,
		DiscoveryPrefix: "homeassistant",
	}
}
