package platform

import (
	"context"
	"encoding/json/jsontext"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nlowe/hamqtt"
	"github.com/nlowe/hamqtt/discovery"
	"github.com/nlowe/hamqtt/hass"
	"github.com/nlowe/hamqtt/log"
	"github.com/nlowe/hamqtt/mqtt"
)

// PressTopic is the last segment of a button's command topic, {device_id}/{unique_id}/press.
const PressTopic = "press"

// ButtonConfig configures a Button.
//
// See https://www.home-assistant.io/integrations/button.mqtt/ for complete documentation.
type ButtonConfig struct {
	EntityConfig
}

// Button is a hamqtt.Entity that calls a function when Home Assistant writes hass.PressPayload to its command topic.
type Button struct {
	cfg     *ButtonConfig
	id      string
	onPress func()

	mu           sync.RWMutex
	commandTopic string

	log *slog.Logger
}

var _ hamqtt.Entity = &Button{}

// NewButton constructs a Button that calls onPress for every press. It returns hamqtt.ErrInvalidArgument if cfg or
// onPress is nil and hamqtt.ErrInvalidState if cfg is missing a required field.
//
// onPress runs on the transport's dispatch goroutine and must return quickly.
func NewButton(cfg *ButtonConfig, onPress func()) (*Button, error) {
	if cfg == nil || onPress == nil {
		return nil, fmt.Errorf("button: config and press func are required: %w", hamqtt.ErrInvalidArgument)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("button: %w", err)
	}

	return &Button{
		cfg:     cfg,
		id:      cfg.UniqueID,
		onPress: onPress,

		log: log.ForComponent("button").With(log.Entity(cfg.UniqueID)),
	}, nil
}

// Config returns the config the button was constructed with.
func (b *Button) Config() *ButtonConfig {
	return b.cfg
}

func (b *Button) UniqueID() string {
	return b.id
}

// CommandTopic returns the topic Home Assistant presses the button on. It is empty until ContributeDiscovery has run.
func (b *Button) CommandTopic() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.commandTopic
}

func (b *Button) SubscribedTopics() []string {
	topic := b.CommandTopic()
	if topic == "" {
		return nil
	}

	return []string{topic}
}

func (b *Button) ContributeDiscovery(e *jsontext.Encoder, deviceID string) error {
	if err := errors.Join(checkDeviceID(deviceID), b.cfg.validate()); err != nil {
		return fmt.Errorf("button %s: %w", b.id, err)
	}

	topic := mqtt.JoinTopic(deviceID, b.id, PressTopic)

	b.mu.Lock()
	b.commandTopic = topic
	b.mu.Unlock()

	return errors.Join(
		b.cfg.marshalDiscoveryTo(e, discovery.PlatformButton),

		discovery.MarshalRequiredTopic("command", e, discovery.FieldCommandTopic, topic),
		discovery.MarshalStdValue(e, discovery.FieldPayloadPress, hass.PressPayload),
	)
}

// ServeMQTT calls the press func once if topic is the command topic and the payload is exactly hass.PressPayload.
// Anything else is ignored.
func (b *Button) ServeMQTT(_ mqtt.Writer, topic string, payload []byte) {
	expected := b.CommandTopic()
	if expected == "" || topic != expected {
		b.log.With(log.Topic(topic)).Debug("Ignoring message for another topic")
		return
	}

	if !hass.PressPayload.Matches(payload) {
		b.log.With(log.Topic(topic), slog.Int("size", len(payload))).Debug("Ignoring unknown command")
		return
	}

	b.log.Debug("Pressed")
	b.onPress()
}

func (b *Button) Tick(context.Context, mqtt.Writer) error {
	return nil
}
