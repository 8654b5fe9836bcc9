// Package pahomqtt implements mqtt.Transport on top of github.com/eclipse/paho.mqtt.golang for MQTT 3.1.1 brokers.
package pahomqtt

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	hamqttlog "github.com/nlowe/hamqtt/log"
	"github.com/nlowe/hamqtt/mqtt"
)

var (
	// ErrNoBroker is the error returned by Transport.Start when the mqtt.ClientConfig has no broker URL.
	ErrNoBroker = errors.New("broker url is required")
	// ErrTimeout is the error returned when the broker does not acknowledge an operation within Transport.OperationTimeout.
	ErrTimeout = errors.New("operation timed out")
)

const (
	// DefaultOperationTimeout bounds publish and subscribe acknowledgements when Transport.OperationTimeout is zero.
	DefaultOperationTimeout = 5 * time.Second

	// DefaultKeepAlive is used when Transport.KeepAlive is zero.
	DefaultKeepAlive = 60 * time.Second

	// disconnectQuiesce is the time, in milliseconds, pending work gets on Disconnect.
	disconnectQuiesce = 250
)

// Transport starts paho.mqtt.golang sessions with auto-reconnect enabled.
type Transport struct {
	KeepAlive        time.Duration
	OperationTimeout time.Duration

	// Configure, if set, is applied to the client options last.
	Configure func(*pahomqtt.ClientOptions)
}

var _ mqtt.Transport = &Transport{}

type client struct {
	c       pahomqtt.Client
	timeout time.Duration

	log *slog.Logger
}

var _ mqtt.Client = &client{}

// Start creates a client for cfg and begins connecting in the background. The returned mqtt.Client may be used once the
// EventHandler has seen OnConnect.
func (t *Transport) Start(ctx context.Context, cfg mqtt.ClientConfig, h mqtt.EventHandler) (mqtt.Client, error) {
	if cfg.BrokerURL == nil {
		return nil, ErrNoBroker
	}

	c := &client{}
	opts := t.options(ctx, cfg, h, c)
	c.c = pahomqtt.NewClient(opts)

	c.log.With(slog.String("broker", cfg.BrokerURL.Redacted())).Info("Connecting to mqtt broker")
	// With ConnectRetry the token only completes once connected, so it is not waited on here.
	c.c.Connect()

	return c, nil
}

// options builds the client options for cfg. The handlers it installs report to h through c.
func (t *Transport) options(ctx context.Context, cfg mqtt.ClientConfig, h mqtt.EventHandler, c *client) *pahomqtt.ClientOptions {
	clientID := cmp.Or(cfg.ClientID, "hamqtt-"+uuid.NewString())
	c.timeout = cmp.Or(t.OperationTimeout, DefaultOperationTimeout)
	c.log = hamqttlog.ForComponent("pahomqtt").With(slog.String("client_id", clientID))

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL.String())
	opts.SetClientID(clientID)
	opts.SetKeepAlive(cmp.Or(t.KeepAlive, DefaultKeepAlive))
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOrderMatters(false)
	// Bounds how long Publish may block handing a message to the outbound queue.
	opts.SetWriteTimeout(c.timeout)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	if cfg.Will != nil {
		opts.SetWill(cfg.Will.Topic, string(cfg.Will.Payload), byte(cfg.Will.Options.QoS), cfg.Will.Options.Retain)
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.log.Info("Connected to mqtt broker")
		h.OnConnect(ctx, c)
	})

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.log.With(hamqttlog.Error(err)).Warn("Connection to mqtt broker lost")
		h.OnDisconnect(err)
	})

	// Subscriptions are made without per-topic callbacks, so everything lands here.
	opts.SetDefaultPublishHandler(func(_ pahomqtt.Client, msg pahomqtt.Message) {
		h.ServeMQTT(c, msg.Topic(), msg.Payload())
	})

	if t.Configure != nil {
		t.Configure(opts)
	}

	return opts
}

func (c *client) wait(ctx context.Context, op string, token pahomqtt.Token) error {
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
}

func (c *client) WriteTopic(ctx context.Context, topic string, options mqtt.WriteOptions, value []byte) error {
	c.log.With(hamqttlog.Topic(topic), slog.Any("options", options), slog.Int("size", len(value))).Debug("Publishing payload")

	return c.wait(ctx, "publish "+topic, c.c.Publish(topic, byte(options.QoS), options.Retain, value))
}

// Enqueue hands the publication to paho and returns without waiting for the acknowledgement. A publish paho fails
// straight away, for example while disconnected, is returned. Later failures are logged.
func (c *client) Enqueue(ctx context.Context, topic string, options mqtt.WriteOptions, value []byte) error {
	log := c.log.With(hamqttlog.Topic(topic), slog.Any("options", options), slog.Int("size", len(value)))
	log.Debug("Queueing payload")

	token := c.c.Publish(topic, byte(options.QoS), options.Retain, value)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish %s: %w", topic, err)
		}
		return nil
	default:
	}

	go func() {
		if err := c.wait(context.WithoutCancel(ctx), "publish "+topic, token); err != nil {
			log.With(hamqttlog.Error(err)).Warn("Queued publish failed")
		}
	}()

	return nil
}

func (c *client) Subscribe(ctx context.Context, subscriptions ...mqtt.Subscription) error {
	if len(subscriptions) == 0 {
		return nil
	}

	filters := make(map[string]byte, len(subscriptions))
	for _, s := range subscriptions {
		filters[s.Topic] = byte(s.Options.QoS)
	}

	c.log.With(slog.Any("subscriptions", subscriptions)).Debug("Subscribing to MQTT Topic(s)")
	return c.wait(ctx, "subscribe", c.c.SubscribeMultiple(filters, nil))
}

func (c *client) Disconnect(_ context.Context) error {
	c.log.Info("Disconnecting from mqtt broker")
	c.c.Disconnect(disconnectQuiesce)
	return nil
}
