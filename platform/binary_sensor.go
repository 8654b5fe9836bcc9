package platform

import (
	"context"
	"encoding/json/jsontext"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nlowe/hamqtt"
	"github.com/nlowe/hamqtt/discovery"
	"github.com/nlowe/hamqtt/hass"
	"github.com/nlowe/hamqtt/log"
	"github.com/nlowe/hamqtt/mqtt"
)

// StateTopic is the last segment of an entity's state topic, {device_id}/{unique_id}/state.
const StateTopic = "state"

// BinarySensorConfig configures a BinarySensor.
//
// See https://www.home-assistant.io/integrations/binary_sensor.mqtt/ for complete documentation.
type BinarySensorConfig struct {
	EntityConfig

	// Instruct Home Assistant to calculate update events even if the value hasn't changed. It also makes the sensor
	// publish on every tick instead of only on changes.
	ForceUpdate bool

	// If set, the number of seconds after which Home Assistant marks the sensor's state unavailable unless it is
	// updated. Only whole seconds are sent. Zero omits it; anything else must be at least a second.
	ExpireAfter time.Duration

	// For sensors that only send on state updates (like PIRs), this sets a delay after which Home Assistant sets the
	// sensor's state back to off. Only whole seconds are sent. Zero omits it; anything else must be at least a second.
	OffDelay time.Duration
}

func (c *BinarySensorConfig) validate() error {
	if err := c.EntityConfig.validate(); err != nil {
		return err
	}

	return errors.Join(
		checkSeconds("expire after", c.ExpireAfter),
		checkSeconds("off delay", c.OffDelay),
	)
}

// checkSeconds rejects durations that would be sent as zero or negative seconds.
func checkSeconds(field string, d time.Duration) error {
	if d < 0 || (d > 0 && d < time.Second) {
		return fmt.Errorf("%s: %s must be zero or at least 1s: %w", field, d, hamqtt.ErrInvalidArgument)
	}

	return nil
}

// BinarySensor is a hamqtt.Entity that reads a boolean on every tick and publishes it as hass.PowerStateOn or
// hass.PowerStateOff. Unless ForceUpdate is set, a reading equal to the last published one is not sent again.
type BinarySensor struct {
	cfg  *BinarySensorConfig
	id   string
	read func() bool

	state *mqtt.Value[hass.PowerState]

	log *slog.Logger
}

var _ hamqtt.Entity = &BinarySensor{}

// NewBinarySensor constructs a BinarySensor that calls read on every tick. It returns hamqtt.ErrInvalidArgument if cfg
// or read is nil or a duration is out of range, and hamqtt.ErrInvalidState if cfg is missing a required field.
func NewBinarySensor(cfg *BinarySensorConfig, read func() bool) (*BinarySensor, error) {
	if cfg == nil || read == nil {
		return nil, fmt.Errorf("binary sensor: config and state func are required: %w", hamqtt.ErrInvalidArgument)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("binary sensor: %w", err)
	}

	return &BinarySensor{
		cfg:  cfg,
		id:   cfg.UniqueID,
		read: read,

		state: mqtt.NewValueWithOptions("", hass.PowerStateMarshaler, mqtt.Retained),

		log: log.ForComponent("binary_sensor").With(log.Entity(cfg.UniqueID)),
	}, nil
}

// Config returns the config the sensor was constructed with.
func (s *BinarySensor) Config() *BinarySensorConfig {
	return s.cfg
}

func (s *BinarySensor) UniqueID() string {
	return s.id
}

// StateTopic returns the topic the sensor publishes to. It is empty until ContributeDiscovery has run.
func (s *BinarySensor) StateTopic() string {
	return s.state.FullyQualifiedTopic("")
}

// LastState returns the last state published successfully, and false if nothing has been published yet.
func (s *BinarySensor) LastState() (hass.PowerState, bool) {
	return s.state.Get()
}

func (s *BinarySensor) SubscribedTopics() []string {
	return nil
}

func (s *BinarySensor) ServeMQTT(_ mqtt.Writer, _ string, _ []byte) {}

func (s *BinarySensor) ContributeDiscovery(e *jsontext.Encoder, deviceID string) error {
	if err := errors.Join(checkDeviceID(deviceID), s.cfg.validate()); err != nil {
		return fmt.Errorf("binary sensor %s: %w", s.id, err)
	}

	s.state.SetTopic(mqtt.JoinTopic(deviceID, s.id, StateTopic))

	return errors.Join(
		s.cfg.marshalDiscoveryTo(e, discovery.PlatformBinarySensor),

		discovery.MarshalRequiredValueTopic("state", e, discovery.FieldStateTopic, s.state, ""),
		discovery.MarshalStdValue(e, discovery.FieldForceUpdate, s.cfg.ForceUpdate),
		discovery.MaybeMarshalStdComparable(e, discovery.FieldExpireAfter, s.cfg.ExpireAfter),
		discovery.MaybeMarshalStdComparable(e, discovery.FieldOffDelay, s.cfg.OffDelay),
	)
}

// Tick reads the current state and publishes it if it changed, or always when ForceUpdate is set. A failed publish is
// not remembered, so the next tick tries again. Tick returns hamqtt.ErrInvalidState before ContributeDiscovery has
// assigned a state topic.
func (s *BinarySensor) Tick(ctx context.Context, w mqtt.Writer) error {
	topic := s.StateTopic()
	if topic == "" {
		return fmt.Errorf("binary sensor %s: no state topic before discovery: %w", s.id, hamqtt.ErrInvalidState)
	}

	v := hass.PowerStateFor(s.read())
	written, err := mqtt.WriteChanged(ctx, s.state, w, "", v, s.cfg.ForceUpdate)
	if err != nil {
		return fmt.Errorf("binary sensor %s: %w", s.id, err)
	}

	if written {
		s.log.With(log.Topic(topic), slog.String("state", string(v))).Debug("Published state")
	}

	return nil
}
