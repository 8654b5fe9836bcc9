package hamqtt

import (
	"log/slog"
	"slices"

	"github.com/nlowe/hamqtt/log"
	"github.com/nlowe/hamqtt/mqtt"
)

// RouteIncoming delivers an inbound message to every registered entity that subscribed to exactly topic. Wildcards are
// not interpreted. An entity is given the message once even if it lists the topic more than once. It returns the
// number of entities the message was delivered to.
//
// Topic and payload are truncated to the message limit first (see WithMessageLimit). A truncated topic is never
// delivered, since its prefix could equal an unrelated shorter topic.
func (d *Device) RouteIncoming(w mqtt.Writer, topic string, payload []byte) int {
	truncated := len(topic) > d.messageLimit
	topic = topic[:min(len(topic), d.messageLimit)]
	payload = payload[:min(len(payload), d.messageLimit)]

	if truncated {
		d.log.With(log.Topic(topic), slog.Int("limit", d.messageLimit)).Warn("Dropping message with oversized topic")
		return 0
	}

	delivered := 0
	for _, e := range d.Entities() {
		if !slices.Contains(e.SubscribedTopics(), topic) {
			continue
		}

		e.ServeMQTT(w, topic, payload)
		delivered++
	}

	if delivered == 0 {
		d.log.With(log.Topic(topic)).Debug("No entity subscribed to topic")
	}

	return delivered
}
