// Package autopaho implements mqtt.Transport on top of github.com/eclipse/paho.golang/autopaho (MQTT v5). autopaho
// reconnects on its own; every reconnect is reported to the mqtt.EventHandler as a new OnConnect.
package autopaho

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"

	hamqttlog "github.com/nlowe/hamqtt/log"
	"github.com/nlowe/hamqtt/mqtt"
)

// ErrNoBroker is the error returned by Transport.Start when the mqtt.ClientConfig has no broker URL.
var ErrNoBroker = errors.New("broker url is required")

// DefaultKeepAlive is the keepalive, in seconds, used when Transport.Base does not set one.
const DefaultKeepAlive = 20

// Transport starts autopaho sessions.
type Transport struct {
	// Base is copied for every session. The broker URL, credentials, will message and client ID are filled from the
	// mqtt.ClientConfig. Callbacks set here are still invoked after the adapter's own.
	Base autopaho.ClientConfig
}

var _ mqtt.Transport = &Transport{}

type client struct {
	mu sync.Mutex

	conn *autopaho.ConnectionManager

	log *slog.Logger
}

var _ mqtt.Client = &client{}

// Start opens a connection manager for cfg. It returns once the manager is running; autopaho keeps trying to connect in
// the background until ctx is cancelled or the client is disconnected.
func (t *Transport) Start(ctx context.Context, cfg mqtt.ClientConfig, h mqtt.EventHandler) (mqtt.Client, error) {
	if cfg.BrokerURL == nil {
		return nil, ErrNoBroker
	}

	c := &client{}
	config := t.clientConfig(ctx, cfg, h, c)

	// Lock the client before starting the connection so the first OnConnectionUp callback blocks until after c.conn is
	// assigned and inbound routing is in place.
	c.mu.Lock()
	defer c.mu.Unlock()

	c.log.With(slog.String("broker", cfg.BrokerURL.Redacted())).Info("Connecting to mqtt broker")
	conn, err := autopaho.NewConnection(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("autopaho: new connection: %w", err)
	}

	conn.AddOnPublishReceived(func(rx autopaho.PublishReceived) (bool, error) {
		h.ServeMQTT(c, rx.Packet.Topic, rx.Packet.Payload)
		return true, nil
	})

	c.conn = conn
	return c, nil
}

// clientConfig copies Base and fills it from cfg. The callbacks it installs report to h and c before calling the ones
// set on Base.
func (t *Transport) clientConfig(ctx context.Context, cfg mqtt.ClientConfig, h mqtt.EventHandler, c *client) autopaho.ClientConfig {
	config := t.Base
	config.ServerUrls = []*url.URL{cfg.BrokerURL}
	config.KeepAlive = cmp.Or(config.KeepAlive, DefaultKeepAlive)
	config.ClientConfig.ClientID = cmp.Or(cfg.ClientID, config.ClientConfig.ClientID, "hamqtt-"+uuid.NewString())

	if cfg.Username != "" {
		config.ConnectUsername = cfg.Username
		config.ConnectPassword = []byte(cfg.Password)
	}

	if cfg.Will != nil {
		config.WillMessage = &paho.WillMessage{
			Topic:   cfg.Will.Topic,
			Payload: cfg.Will.Payload,
			QoS:     uint8(cfg.Will.Options.QoS),
			Retain:  cfg.Will.Options.Retain,
		}
	}

	c.log = hamqttlog.ForComponent("autopaho").With(slog.String("client_id", config.ClientConfig.ClientID))

	onConnectionUp := config.OnConnectionUp
	config.OnConnectionUp = func(cm *autopaho.ConnectionManager, connack *paho.Connack) {
		// Blocks until Start has assigned c.conn.
		c.mu.Lock()
		c.mu.Unlock()

		c.log.Info("Connected to mqtt broker")
		h.OnConnect(ctx, c)

		if onConnectionUp != nil {
			onConnectionUp(cm, connack)
		}
	}

	onConnectError := config.OnConnectError
	config.OnConnectError = func(err error) {
		c.log.With(hamqttlog.Error(err)).Warn("Connection attempt failed")

		if onConnectError != nil {
			onConnectError(err)
		}
	}

	onClientError := config.ClientConfig.OnClientError
	config.ClientConfig.OnClientError = func(err error) {
		c.log.With(hamqttlog.Error(err)).Error("mqtt client error")
		h.OnDisconnect(err)

		if onClientError != nil {
			onClientError(err)
		}
	}

	onServerDisconnect := config.ClientConfig.OnServerDisconnect
	config.ClientConfig.OnServerDisconnect = func(d *paho.Disconnect) {
		log := c.log.With(slog.Int("reason", int(d.ReasonCode)))
		if d.Properties != nil {
			log = log.With(
				slog.Group(
					"properties",
					slog.String("reference", d.Properties.ServerReference),
					slog.String("reason", d.Properties.ReasonString),
				),
			)
		}

		log.Warn("Disconnected from server")
		h.OnDisconnect(fmt.Errorf("server disconnect: reason code %d", d.ReasonCode))

		if onServerDisconnect != nil {
			onServerDisconnect(d)
		}
	}

	return config
}

func (c *client) connection() *autopaho.ConnectionManager {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn
}

func (c *client) WriteTopic(ctx context.Context, topic string, options mqtt.WriteOptions, value []byte) error {
	c.log.With(hamqttlog.Topic(topic), slog.Any("options", options), slog.Int("size", len(value))).Debug("Publishing payload")

	_, err := c.connection().Publish(ctx, &paho.Publish{
		QoS:     uint8(options.QoS),
		Retain:  options.Retain,
		Topic:   topic,
		Payload: value,
	})

	return err
}

// Enqueue adds the publication to the connection manager's queue and returns. autopaho delivers it, retrying across
// reconnects, once the connection is up.
func (c *client) Enqueue(ctx context.Context, topic string, options mqtt.WriteOptions, value []byte) error {
	c.log.With(hamqttlog.Topic(topic), slog.Any("options", options), slog.Int("size", len(value))).Debug("Queueing payload")

	return c.connection().PublishViaQueue(ctx, &autopaho.QueuePublish{
		Publish: &paho.Publish{
			QoS:     uint8(options.QoS),
			Retain:  options.Retain,
			Topic:   topic,
			Payload: value,
		},
	})
}

func (c *client) Subscribe(ctx context.Context, subscriptions ...mqtt.Subscription) error {
	if len(subscriptions) == 0 {
		return nil
	}

	sub := &paho.Subscribe{
		Subscriptions: make([]paho.SubscribeOptions, len(subscriptions)),
	}

	for i, s := range subscriptions {
		sub.Subscriptions[i] = paho.SubscribeOptions{
			Topic:             s.Topic,
			QoS:               uint8(s.Options.QoS),
			RetainHandling:    uint8(s.Options.RetainHandling),
			NoLocal:           s.Options.NoLocal,
			RetainAsPublished: s.Options.RetainAsPublished,
		}
	}

	c.log.With(slog.Any("subscriptions", subscriptions)).Debug("Subscribing to MQTT Topic(s)")
	_, err := c.connection().Subscribe(ctx, sub)
	return err
}

func (c *client) Disconnect(ctx context.Context) error {
	c.log.Info("Disconnecting from mqtt broker")
	return c.connection().Disconnect(ctx)
}
