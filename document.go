package hamqtt

import (
	"bytes"
	"encoding/json/jsontext"
	"errors"
	"fmt"
	"strconv"

	"github.com/nlowe/hamqtt/discovery"
	"github.com/nlowe/hamqtt/mqtt"
)

// BuildDiscovery encodes the device discovery payload: the device and origin, one "cmps" entry per registered entity
// keyed by its unique ID, the availability topic, and the QoS Home Assistant should use. Every entity is asked to
// contribute again, so derived topics are refreshed. The result is also kept for announcing the device on reconnect.
//
// It returns ErrInvalidState if the device config is incomplete or two entities share a unique ID, and the first error
// returned by an entity otherwise. Register accepts duplicate IDs; they are only rejected here, because the components
// object cannot hold two members with the same name.
//
// See https://www.home-assistant.io/integrations/mqtt/#device-discovery-payload
func (d *Device) BuildDiscovery() ([]byte, error) {
	if err := d.cfg.Valid(); err != nil {
		return nil, fmt.Errorf("build discovery: %w", err)
	}

	entities := d.Entities()
	seen := make(map[string]struct{}, len(entities))
	for _, entity := range entities {
		id := entity.UniqueID()
		if id == "" {
			return nil, fmt.Errorf("build discovery: entity without unique id: %w", ErrInvalidState)
		}

		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("build discovery: duplicate unique id %q: %w", id, ErrInvalidState)
		}
		seen[id] = struct{}{}
	}

	var buf bytes.Buffer
	e := jsontext.NewEncoder(&buf)

	origin := d.origin
	err := errors.Join(
		e.WriteToken(jsontext.BeginObject),

		discovery.MarshalStd("device", e, discovery.FieldDevice, d.cfg.deviceInfo()),
		discovery.MarshalStd("origin", e, discovery.FieldOrigin, &origin),

		e.WriteToken(jsontext.String(discovery.FieldComponents)),
		e.WriteToken(jsontext.BeginObject),
	)
	if err != nil {
		return nil, fmt.Errorf("build discovery: %w", err)
	}

	for _, entity := range entities {
		if err = errors.Join(
			e.WriteToken(jsontext.String(entity.UniqueID())),
			e.WriteToken(jsontext.BeginObject),
		); err != nil {
			return nil, fmt.Errorf("build discovery: %s: %w", entity.UniqueID(), err)
		}

		if err = entity.ContributeDiscovery(e, d.cfg.ID); err != nil {
			return nil, fmt.Errorf("build discovery: %s: %w", entity.UniqueID(), err)
		}

		if err = e.WriteToken(jsontext.EndObject); err != nil {
			return nil, fmt.Errorf("build discovery: %s: %w", entity.UniqueID(), err)
		}
	}

	err = errors.Join(
		e.WriteToken(jsontext.EndObject),

		discovery.MarshalRequiredTopic("availability", e, discovery.FieldAvailabilityTopic, d.availabilityTopic),
		discovery.MarshalStdValue(e, discovery.FieldQoS, strconv.Itoa(int(mqtt.Retained.QoS))),

		e.WriteToken(jsontext.EndObject),
	)
	if err != nil {
		return nil, fmt.Errorf("build discovery: %w", err)
	}

	payload := bytes.TrimSpace(buf.Bytes())

	d.mu.Lock()
	d.discoveryPayload = payload
	d.mu.Unlock()

	return payload, nil
}
