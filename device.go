package hamqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/nlowe/hamqtt/discovery"
	"github.com/nlowe/hamqtt/hass"
	"github.com/nlowe/hamqtt/log"
	"github.com/nlowe/hamqtt/mqtt"
)

const (
	// DefaultCapacity is the number of entities a Device accepts unless WithCapacity says otherwise.
	DefaultCapacity = 16
	// DefaultConnectTimeout bounds how long Device.Connect waits for the broker unless WithConnectTimeout says
	// otherwise.
	DefaultConnectTimeout = 10 * time.Second
	// DefaultMessageLimit is the number of bytes of an inbound topic and payload considered when routing.
	DefaultMessageLimit = 256

	// AvailabilityTopic is the topic segment, under the device ID, availability is published to.
	AvailabilityTopic = "availability"
)

// Option configures optional behavior of a Device.
type Option func(*Device)

// WithCapacity sets the maximum number of entities that can be registered. Values below one are ignored.
func WithCapacity(n int) Option {
	return func(d *Device) {
		if n > 0 {
			d.capacity = n
		}
	}
}

// WithConnectTimeout sets how long Connect waits for the broker to accept the session. Values below one are ignored.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(d *Device) {
		if timeout > 0 {
			d.connectTimeout = timeout
		}
	}
}

// WithMessageLimit sets how many bytes of an inbound topic and payload are considered by RouteIncoming. Longer values
// are truncated, so a topic that only matches past the limit is not delivered. Values below one are ignored.
func WithMessageLimit(n int) Option {
	return func(d *Device) {
		if n > 0 {
			d.messageLimit = n
		}
	}
}

// WithOrigin overrides the origin reported in the discovery payload, which is otherwise derived with OriginFor.
func WithOrigin(o Origin) Option {
	return func(d *Device) {
		d.origin = o
	}
}

// WithHomeAssistantStatus makes the Device watch Home Assistant's status topic and send its discovery payload and
// availability again whenever Home Assistant comes online.
func WithHomeAssistantStatus() Option {
	return func(d *Device) {
		d.watchHomeAssistant = true
	}
}

// Device is an MQTT-based Home Assistant device: a collection of entities announced with a single device discovery
// payload. It owns the session with the broker, routes inbound messages to entities, and ticks them.
//
// All methods are safe for concurrent use. Session events arrive on the transport's goroutines while the application
// calls Tick from its own loop.
type Device struct {
	cfg       Config
	transport mqtt.Transport

	capacity       int
	connectTimeout time.Duration
	messageLimit   int
	origin         Origin

	availabilityTopic string
	discoveryTopic    string

	watchHomeAssistant bool
	homeAssistant      *mqtt.RemoteValue[hass.Availability]

	mu sync.Mutex

	entities []Entity

	state      SessionState
	generation uint64
	client     mqtt.Client
	sessionCtx context.Context
	cancel     context.CancelFunc
	ready      chan struct{}

	discoveryPayload []byte

	log *slog.Logger
}

// NewDevice constructs a Device for cfg that opens sessions with t. An incomplete cfg is logged here and rejected by
// Connect and BuildDiscovery.
func NewDevice(cfg Config, t mqtt.Transport, opts ...Option) *Device {
	d := &Device{
		cfg:       cfg,
		transport: t,

		capacity:       DefaultCapacity,
		connectTimeout: DefaultConnectTimeout,
		messageLimit:   DefaultMessageLimit,
		origin:         OriginFor(cfg),

		availabilityTopic: mqtt.JoinTopic(cfg.ID, AvailabilityTopic),
		discoveryTopic:    discovery.ConfigTopicFor(cfg.DiscoveryPrefix, cfg.ID),

		log: log.ForComponent("device").With(slog.String("device", cfg.ID)),
	}

	for _, opt := range opts {
		opt(d)
	}

	if err := cfg.Valid(); err != nil {
		d.log.With(log.Error(err)).Warn("Device config is incomplete")
	}

	if d.watchHomeAssistant {
		d.homeAssistant = discovery.HomeAssistantAvailability(cfg.DiscoveryPrefix)
		d.homeAssistant.Watch(func(v hass.Availability) {
			if v != hass.Available {
				return
			}

			d.log.Info("Home Assistant came online, announcing device again")
			go d.reannounce()
		})
	}

	return d
}

// Config returns the configuration the Device was constructed with.
func (d *Device) Config() Config {
	return d.cfg
}

// AvailabilityTopic returns the topic availability and the last-will message are published to.
func (d *Device) AvailabilityTopic() string {
	return d.availabilityTopic
}

// DiscoveryTopic returns the topic the discovery payload is published to.
func (d *Device) DiscoveryTopic() string {
	return d.discoveryTopic
}

// State returns the current SessionState.
func (d *Device) State() SessionState {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.state
}

// Entities returns the registered entities in registration order.
func (d *Device) Entities() []Entity {
	d.mu.Lock()
	defer d.mu.Unlock()

	return slices.Clone(d.entities)
}

// Register adds e to the device. The Device keeps the reference; it does not copy the entity. Entities registered
// after Connect are announced on the next Connect or Home Assistant restart.
//
// Register returns ErrInvalidArgument for a nil entity and ErrCapacityExceeded once the registry is full. Unique IDs
// are not checked here; BuildDiscovery rejects duplicates.
func (d *Device) Register(e Entity) error {
	if isNil(e) {
		return fmt.Errorf("register: nil entity: %w", ErrInvalidArgument)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.entities) >= d.capacity {
		return fmt.Errorf("register %s: %d entities: %w", e.UniqueID(), d.capacity, ErrCapacityExceeded)
	}

	d.entities = append(d.entities, e)
	d.log.With(log.Entity(e.UniqueID())).Debug("Registered entity")
	return nil
}

func isNil(e Entity) bool {
	if e == nil {
		return true
	}

	v := reflect.ValueOf(e)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

// Connect builds the discovery payload and starts a session whose last-will marks the device offline. It waits for the
// broker to accept the session for up to the connect timeout, or until ctx is done. Once connected, availability is
// published online, the discovery payload is published, and every entity topic is subscribed. The same happens again
// on every transport-level reconnect.
//
// Connect returns ErrInvalidState if a session is already connecting or connected, and ErrConnectTimeout if the broker
// did not accept the session in time. After a failure the Device is Disconnected. Once the broker has accepted the
// session Connect returns nil, but only after the announcement is done or ctx ends.
func (d *Device) Connect(ctx context.Context) error {
	if d.transport == nil {
		return fmt.Errorf("connect: no transport: %w", ErrInvalidArgument)
	}

	if _, err := d.BuildDiscovery(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	d.mu.Lock()
	if d.state != Disconnected {
		state := d.state
		d.mu.Unlock()
		return fmt.Errorf("connect: already %s: %w", state, ErrInvalidState)
	}

	stale, staleCancel := d.client, d.cancel

	d.generation++
	generation := d.generation
	ready := make(chan struct{})
	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	d.state = Connecting
	d.client = nil
	if d.ready != nil {
		// Releases a Connect still waiting on the session being replaced.
		close(d.ready)
	}
	d.ready = ready
	d.sessionCtx, d.cancel = sessionCtx, cancel
	d.mu.Unlock()

	if stale != nil {
		d.closeSession(ctx, stale, staleCancel)
	}

	d.log.With(slog.Any("config", d.cfg)).Info("Connecting")
	client, err := d.transport.Start(sessionCtx, mqtt.ClientConfig{
		BrokerURL: d.cfg.BrokerURL,
		ClientID:  d.cfg.ClientID,
		Username:  d.cfg.Username,
		Password:  d.cfg.Password,
		Will: &mqtt.Message{
			Topic:   d.availabilityTopic,
			Payload: []byte(hass.Unavailable),
			Options: mqtt.Retained,
		},
	}, &session{d: d, generation: generation})
	if err != nil {
		d.abandon(generation)
		cancel()
		return fmt.Errorf("connect: start session: %w", err)
	}

	d.mu.Lock()
	if d.generation == generation && d.client == nil {
		d.client = client
	}
	d.mu.Unlock()

	timer := time.NewTimer(d.connectTimeout)
	defer timer.Stop()

	select {
	case <-ready:
		return nil
	case <-timer.C:
		err = ErrConnectTimeout
	case <-ctx.Done():
		err = ctx.Err()
	}

	if !d.abandon(generation) {
		d.mu.Lock()
		connected := d.generation == generation && d.state == Connected
		d.mu.Unlock()

		if !connected {
			return fmt.Errorf("connect: %w", err)
		}

		// The broker accepted the session before the deadline. Wait for the announcement to finish.
		select {
		case <-ready:
		case <-ctx.Done():
			d.log.With(log.Error(ctx.Err())).Warn("Stopped waiting for the device announcement")
		}

		return nil
	}

	d.log.With(log.Error(err), slog.Duration("timeout", d.connectTimeout)).Warn("Gave up waiting for mqtt connection")
	d.closeSession(ctx, client, cancel)
	return fmt.Errorf("connect: %w", err)
}

// abandon moves a session that is still connecting back to Disconnected. It reports whether it did.
func (d *Device) abandon(generation uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.generation != generation || d.state == Connected {
		return false
	}

	d.generation++
	d.state = Disconnected
	d.client = nil
	d.ready = nil
	d.sessionCtx, d.cancel = nil, nil
	return true
}

func (d *Device) closeSession(ctx context.Context, c mqtt.Client, cancel context.CancelFunc) {
	if err := c.Disconnect(context.WithoutCancel(ctx)); err != nil {
		d.log.With(log.Error(err)).Debug("Failed to close old session")
	}

	if cancel != nil {
		cancel()
	}
}

// Disconnect publishes availability offline, if connected, and closes the session. It returns ErrNotConnected if there
// is no session.
func (d *Device) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	client, cancel := d.client, d.cancel
	connected := d.state == Connected
	if client == nil {
		d.mu.Unlock()
		return fmt.Errorf("disconnect: %w", ErrNotConnected)
	}

	d.generation++
	d.state = Disconnected
	d.client = nil
	if d.ready != nil {
		close(d.ready)
		d.ready = nil
	}
	d.sessionCtx, d.cancel = nil, nil
	d.mu.Unlock()

	var err error
	if connected {
		err = d.writeAvailability(ctx, client, false)
	}

	err = errors.Join(err, client.Disconnect(ctx))
	if cancel != nil {
		cancel()
	}

	d.log.Info("Disconnected")
	if err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}

	return nil
}

// PublishAvailability publishes online or offline to the availability topic. It returns ErrNotConnected, without
// touching the broker, if Connect has not started a session.
func (d *Device) PublishAvailability(ctx context.Context, available bool) error {
	d.mu.Lock()
	client := d.client
	d.mu.Unlock()

	if client == nil {
		return fmt.Errorf("publish availability: %w", ErrNotConnected)
	}

	return d.writeAvailability(ctx, client, available)
}

func (d *Device) writeAvailability(ctx context.Context, w mqtt.Writer, available bool) error {
	payload, err := hass.AvailabilityMarshaler(hass.AvailabilityFor(available))
	if err != nil {
		return err
	}

	if err = w.WriteTopic(ctx, d.availabilityTopic, mqtt.Retained, payload); err != nil {
		return fmt.Errorf("publish availability: %w", err)
	}

	return nil
}

// writer returns an mqtt.Writer that enqueues on the current session and never waits for the broker. Writes fail with
// ErrNotConnected while there is no session.
func (d *Device) writer() mqtt.Writer {
	return mqtt.WriterFunc(func(ctx context.Context, topic string, options mqtt.WriteOptions, value []byte) error {
		d.mu.Lock()
		client := d.client
		d.mu.Unlock()

		if client == nil {
			return ErrNotConnected
		}

		return client.Enqueue(ctx, topic, options, value)
	})
}

// Tick calls Tick on every entity in registration order. An entity that fails is logged and the rest still tick.
// Entity publishes are only queued, so Tick does not wait on the broker. A message that could not be queued is not
// remembered by the entity and is retried on the next tick; one that fails after it was queued is logged by the
// transport.
func (d *Device) Tick(ctx context.Context) {
	w := d.writer()

	for _, e := range d.Entities() {
		if err := e.Tick(ctx, w); err != nil {
			d.log.With(log.Entity(e.UniqueID()), log.Error(err)).Warn("Entity tick failed")
		}
	}
}

// Run ticks immediately and then every interval until ctx is done, at which point it returns nil.
func (d *Device) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("run: interval %s: %w", interval, ErrInvalidArgument)
	}

	d.Tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}
