package hamqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nlowe/hamqtt/log"
	"github.com/nlowe/hamqtt/mqtt"
)

// session receives the events of one Connect call. Events from a generation the Device has moved past are dropped.
type session struct {
	d          *Device
	generation uint64
}

var _ mqtt.EventHandler = &session{}

func (s *session) current() bool {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()

	return s.d.generation == s.generation
}

func (s *session) OnConnect(ctx context.Context, c mqtt.Client) {
	d := s.d

	d.mu.Lock()
	if d.generation != s.generation {
		d.mu.Unlock()
		d.log.Debug("Ignoring connect from a stale session")
		return
	}

	d.state = Connected
	d.client = c
	d.mu.Unlock()

	d.log.Info("Connected")
	if err := d.announce(ctx, c); err != nil {
		d.log.With(log.Error(err)).Error("Failed to announce device")
	}

	d.mu.Lock()
	if d.generation == s.generation && d.ready != nil {
		close(d.ready)
		d.ready = nil
	}
	d.mu.Unlock()
}

func (s *session) OnDisconnect(err error) {
	d := s.d

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.generation != s.generation || d.state != Connected {
		return
	}

	d.state = Disconnected
	d.log.With(log.Error(err)).Warn("Lost connection to mqtt broker")
}

func (s *session) ServeMQTT(w mqtt.Writer, topic string, payload []byte) {
	if !s.current() {
		return
	}

	d := s.d
	if d.homeAssistant != nil && topic == d.homeAssistant.FullyQualifiedTopic("") {
		d.homeAssistant.ServeMQTT(w, topic, payload)
		return
	}

	d.RouteIncoming(w, topic, payload)
}

// subscriptions returns the union of all entity topics, in registration order, plus the Home Assistant status topic
// when it is watched.
func (d *Device) subscriptions() []mqtt.Subscription {
	var result []mqtt.Subscription
	seen := map[string]struct{}{}

	for _, e := range d.Entities() {
		for _, topic := range e.SubscribedTopics() {
			if _, ok := seen[topic]; ok || topic == "" {
				continue
			}

			seen[topic] = struct{}{}
			result = append(result, mqtt.Subscription{Topic: topic, Options: mqtt.ReadOptions{QoS: mqtt.QOSAtLeastOnce}})
		}
	}

	return d.homeAssistant.AppendSubscribeOptions(result, "")
}

// announce publishes availability and then the discovery payload through c, and subscribes to every entity topic. The
// payload is rebuilt so entities registered since Connect are included; if that fails the last good payload is sent.
func (d *Device) announce(ctx context.Context, c mqtt.Client) error {
	payload, err := d.BuildDiscovery()
	if err != nil {
		d.log.With(log.Error(err)).Warn("Failed to rebuild discovery payload, sending the previous one")

		d.mu.Lock()
		payload = d.discoveryPayload
		d.mu.Unlock()
	}

	subscriptions := d.subscriptions()
	d.log.With(log.Topic(d.discoveryTopic), slog.Int("subscriptions", len(subscriptions))).Debug("Announcing device")

	err = errors.Join(
		d.writeAvailability(ctx, c, true),
		d.writeDiscovery(ctx, c, payload),
	)

	if len(subscriptions) > 0 {
		if subscribeErr := c.Subscribe(ctx, subscriptions...); subscribeErr != nil {
			err = errors.Join(err, fmt.Errorf("subscribe: %w", subscribeErr))
		}
	}

	return err
}

func (d *Device) writeDiscovery(ctx context.Context, w mqtt.Writer, payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("publish discovery: %w", ErrInvalidState)
	}

	if err := w.WriteTopic(ctx, d.discoveryTopic, mqtt.Retained, payload); err != nil {
		return fmt.Errorf("publish discovery: %w", err)
	}

	return nil
}

// reannounce sends the discovery payload and availability again for the current session, if it is connected.
func (d *Device) reannounce() {
	d.mu.Lock()
	client, ctx := d.client, d.sessionCtx
	connected := d.state == Connected
	d.mu.Unlock()

	if !connected || client == nil || ctx == nil {
		return
	}

	payload, err := d.BuildDiscovery()
	if err != nil {
		d.log.With(log.Error(err)).Error("Failed to rebuild discovery payload")
		return
	}

	if err = errors.Join(d.writeDiscovery(ctx, client, payload), d.writeAvailability(ctx, client, true)); err != nil {
		d.log.With(log.Error(err)).Error("Failed to announce device again")
	}
}
