package hamqtt

import (
	"context"
	"encoding/json/jsontext"

	"github.com/nlowe/hamqtt/mqtt"
)

// Entity is the interface implemented by every feature a Device exposes to Home Assistant. See the platform package
// for the implementations hamqtt ships with.
type Entity interface {
	// ServeMQTT receives messages for topics returned by SubscribedTopics. It must not retain the message slice and
	// must return quickly.
	mqtt.Handler

	// ContributeDiscovery writes this entity's discovery fields to e. The encoder is positioned inside the entity's
	// object in the "cmps" map, so implementations write name/value pairs only. Any topic derived from deviceID must be
	// recomputed on every call; ContributeDiscovery is called again on every (re)connect. It returns an error matching
	// ErrInvalidState if required configuration is missing.
	ContributeDiscovery(e *jsontext.Encoder, deviceID string) error

	// Tick is called once per Device.Tick. Entities that report state may publish through w; others do nothing. An
	// error is logged by the Device and never stops other entities from ticking.
	Tick(ctx context.Context, w mqtt.Writer) error

	// UniqueID identifies the entity within its device. It must not change after construction.
	UniqueID() string

	// SubscribedTopics returns the exact topics this entity wants to receive. It may be empty, and is only meaningful
	// after ContributeDiscovery has run.
	SubscribedTopics() []string
}
