package mqtttest

import (
	"bytes"
	"context"
	"slices"
	"sync"

	"github.com/nlowe/hamqtt/mqtt"
)

// Recorder is an mqtt.EventHandler that remembers every event it receives. The zero value is ready to use.
type Recorder struct {
	mu sync.Mutex

	connects    int
	disconnects []error
	messages    []mqtt.Message
}

var _ mqtt.EventHandler = &Recorder{}

func (r *Recorder) ServeMQTT(_ mqtt.Writer, topic string, message []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages = append(r.messages, mqtt.Message{Topic: topic, Payload: bytes.Clone(message)})
}

func (r *Recorder) OnConnect(context.Context, mqtt.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.connects++
}

func (r *Recorder) OnDisconnect(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.disconnects = append(r.disconnects, err)
}

// Connects returns the number of OnConnect calls.
func (r *Recorder) Connects() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.connects
}

// Disconnects returns the error of every OnDisconnect call.
func (r *Recorder) Disconnects() []error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.disconnects)
}

// Messages returns every message passed to ServeMQTT.
func (r *Recorder) Messages() []mqtt.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.messages)
}
