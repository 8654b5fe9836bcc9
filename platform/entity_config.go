package platform

import (
	"encoding/json/jsontext"
	"errors"
	"fmt"
	"net/url"

	"github.com/nlowe/hamqtt"
	"github.com/nlowe/hamqtt/discovery"
)

// EntityConfig holds the discovery fields shared by every platform. The zero value of each optional field is omitted
// from the discovery payload.
type EntityConfig struct {
	// The name of the entity. Required.
	Name string

	// An ID that uniquely identifies this entity within its device. It is also the topic segment for the entity's
	// state and command topics. Required.
	UniqueID string

	// The Icon to use in the frontend for this entity, for example mdi:motion-sensor.
	Icon string

	// The type of device, which changes how Home Assistant displays the entity.
	DeviceClass string

	// Picture URL for the entity.
	Picture *url.URL

	// DisabledByDefault asks Home Assistant to add the entity disabled. Entities are enabled by default.
	DisabledByDefault bool
}

func (c *EntityConfig) validate() error {
	var err error
	if c.Name == "" {
		err = errors.Join(err, fmt.Errorf("name: %w", discovery.ErrValueRequired))
	}

	if c.UniqueID == "" {
		err = errors.Join(err, fmt.Errorf("unique id: %w", discovery.ErrValueRequired))
	}

	if err != nil {
		return fmt.Errorf("%w: %w", hamqtt.ErrInvalidState, err)
	}

	return nil
}

func (c *EntityConfig) marshalDiscoveryTo(e *jsontext.Encoder, platform string) error {
	return errors.Join(
		discovery.MarshalStdComparable("platform", e, discovery.FieldPlatform, platform),
		discovery.MarshalStdComparable("name", e, discovery.FieldName, c.Name),
		discovery.MarshalStdComparable("unique id", e, discovery.FieldUniqueID, c.UniqueID),

		discovery.MaybeMarshalStdComparable(e, discovery.FieldDeviceClass, c.DeviceClass),
		discovery.MaybeMarshalStdComparable(e, discovery.FieldIcon, c.Icon),
		discovery.MaybeMarshalStd(e, discovery.FieldPicture, c.Picture),

		discovery.MarshalStdValue(e, discovery.FieldEnabledByDefault, !c.DisabledByDefault),
	)
}

func checkDeviceID(deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("device id: %w", hamqtt.ErrInvalidArgument)
	}

	return nil
}
