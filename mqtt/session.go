package mqtt

import (
	"context"
	"log/slog"
	"net/url"
)

// Message is a single MQTT publication. It implements slog.LogValuer without logging the payload.
type Message struct {
	Topic   string
	Payload []byte
	Options WriteOptions
}

func (m Message) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("topic", m.Topic),
		slog.Int("size", len(m.Payload)),
		slog.Any("options", m.Options),
	)
}

// ClientConfig holds everything a Transport needs to open a session with a broker.
type ClientConfig struct {
	// BrokerURL is the address of the broker, for example mqtt://broker.local:1883.
	BrokerURL *url.URL

	// ClientID is the MQTT client identifier. Transports generate one when it is empty.
	ClientID string

	Username string
	Password string

	// Will is registered with the broker as the last-will message for the session, if set.
	Will *Message
}

func (c ClientConfig) LogValue() slog.Value {
	broker := ""
	if c.BrokerURL != nil {
		broker = c.BrokerURL.Redacted()
	}

	attrs := []slog.Attr{
		slog.String("broker", broker),
		slog.String("client_id", c.ClientID),
		slog.Bool("authenticated", c.Username != ""),
	}

	if c.Will != nil {
		attrs = append(attrs, slog.Any("will", *c.Will))
	}

	return slog.GroupValue(attrs...)
}

// Client is an open session with a broker.
type Client interface {
	// WriteTopic publishes and waits for the broker to acknowledge it, as far as the QoS requires.
	Writer

	// Enqueue hands a publication to the transport's outbound queue and returns without waiting for the broker.
	// Failures after the message was queued are logged by the transport. Enqueue returns an error only if the message
	// could not be queued.
	Enqueue(ctx context.Context, topic string, options WriteOptions, value []byte) error

	// Subscribe asks the broker to deliver messages for the provided subscriptions. Messages arrive at the EventHandler
	// the session was started with.
	Subscribe(ctx context.Context, subscriptions ...Subscription) error

	// Disconnect closes the session. The will message is not sent by the broker for a graceful disconnect.
	Disconnect(ctx context.Context) error
}

// EventHandler receives the events of a session started by a Transport.
type EventHandler interface {
	Handler

	// OnConnect is called every time the session (re)connects to the broker, including transport-level reconnects. It
	// may publish and subscribe through c before returning.
	OnConnect(ctx context.Context, c Client)

	// OnDisconnect is called when the connection to the broker is lost. err may be nil.
	OnDisconnect(err error)
}

// Transport starts sessions. Start returns as soon as the session is underway; it does not wait for the broker to
// accept the connection. That is signalled to the EventHandler.
type Transport interface {
	Start(ctx context.Context, cfg ClientConfig, h EventHandler) (Client, error)
}
