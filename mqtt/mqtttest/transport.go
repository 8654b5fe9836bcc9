// Package mqtttest provides an in-memory mqtt.Transport for tests. Sessions record everything written to them and let
// the test drive connect, disconnect and inbound message events.
package mqtttest

import (
	"bytes"
	"context"
	"slices"
	"sync"

	"github.com/nlowe/hamqtt/mqtt"
)

// Transport is a fake mqtt.Transport. The zero value is ready to use.
type Transport struct {
	mu sync.Mutex

	// StartErr, if set, is returned by Start instead of opening a session.
	StartErr error

	// AutoConnect makes Start signal a connect on the new session before returning.
	AutoConnect bool

	sessions []*Session
}

var _ mqtt.Transport = &Transport{}

func (t *Transport) Start(ctx context.Context, cfg mqtt.ClientConfig, h mqtt.EventHandler) (mqtt.Client, error) {
	t.mu.Lock()
	if t.StartErr != nil {
		t.mu.Unlock()
		return nil, t.StartErr
	}

	s := &Session{Config: cfg, handler: h}
	t.sessions = append(t.sessions, s)
	autoConnect := t.AutoConnect
	t.mu.Unlock()

	if autoConnect {
		s.Connect(ctx)
	}

	return s, nil
}

// Sessions returns every session started so far, oldest first.
func (t *Transport) Sessions() []*Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	return slices.Clone(t.sessions)
}

// Last returns the most recently started session, or nil.
func (t *Transport) Last() *Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.sessions) == 0 {
		return nil
	}

	return t.sessions[len(t.sessions)-1]
}

// Session is a fake mqtt.Client bound to the EventHandler it was started with.
type Session struct {
	Config mqtt.ClientConfig

	handler mqtt.EventHandler

	mu sync.Mutex

	publishErr   error
	subscribeErr error
	stall        chan struct{}

	published    []mqtt.Message
	enqueued     []mqtt.Message
	subscribed   []mqtt.Subscription
	disconnected bool
}

var _ mqtt.Client = &Session{}

// WriteTopic records the publication. While StallPublish is in effect it first waits for the release or for ctx.
func (s *Session) WriteTopic(ctx context.Context, topic string, options mqtt.WriteOptions, value []byte) error {
	s.mu.Lock()
	stall := s.stall
	s.mu.Unlock()

	if stall != nil {
		select {
		case <-stall:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.publishErr != nil {
		return s.publishErr
	}

	s.published = append(s.published, mqtt.Message{Topic: topic, Payload: bytes.Clone(value), Options: options})
	return nil
}

// Enqueue records the publication without ever waiting, even while StallPublish is in effect.
func (s *Session) Enqueue(_ context.Context, topic string, options mqtt.WriteOptions, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.publishErr != nil {
		return s.publishErr
	}

	m := mqtt.Message{Topic: topic, Payload: bytes.Clone(value), Options: options}
	s.published = append(s.published, m)
	s.enqueued = append(s.enqueued, m)
	return nil
}

func (s *Session) Subscribe(_ context.Context, subscriptions ...mqtt.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subscribeErr != nil {
		return s.subscribeErr
	}

	s.subscribed = append(s.subscribed, subscriptions...)
	return nil
}

func (s *Session) Disconnect(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disconnected = true
	return nil
}

// StallPublish makes WriteTopic block, like a broker that never acknowledges, until the returned func is called.
func (s *Session) StallPublish() (release func()) {
	stall := make(chan struct{})

	s.mu.Lock()
	s.stall = stall
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.stall = nil
			s.mu.Unlock()

			close(stall)
		})
	}
}

// FailPublish makes every following WriteTopic and Enqueue return err. Pass nil to succeed again.
func (s *Session) FailPublish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.publishErr = err
}

// FailSubscribe makes every following Subscribe return err. Pass nil to succeed again.
func (s *Session) FailSubscribe(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribeErr = err
}

// Connect signals that the broker accepted the session.
func (s *Session) Connect(ctx context.Context) {
	s.handler.OnConnect(ctx, s)
}

// Drop signals that the connection to the broker was lost.
func (s *Session) Drop(err error) {
	s.handler.OnDisconnect(err)
}

// Deliver hands an inbound message to the session's handler as if the broker had sent it.
func (s *Session) Deliver(topic string, payload []byte) {
	s.handler.ServeMQTT(s, topic, payload)
}

// Published returns a copy of every message written so far.
func (s *Session) Published() []mqtt.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.published)
}

// PublishedTo returns the messages written to topic, oldest first.
func (s *Session) PublishedTo(topic string) []mqtt.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []mqtt.Message
	for _, m := range s.published {
		if m.Topic == topic {
			result = append(result, m)
		}
	}

	return result
}

// Enqueued returns the messages that were written with Enqueue, oldest first. They are also part of Published.
func (s *Session) Enqueued() []mqtt.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.enqueued)
}

// Subscribed returns every subscription requested so far.
func (s *Session) Subscribed() []mqtt.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.subscribed)
}

// Disconnected reports whether Disconnect was called.
func (s *Session) Disconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.disconnected
}

// Reset forgets all recorded publications and subscriptions.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.published = nil
	s.enqueued = nil
	s.subscribed = nil
}
