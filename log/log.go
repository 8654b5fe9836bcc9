// Package log routes the structured logs of every hamqtt package through a single, swappable slog.Handler. Nothing
// is written until To is called.
package log

import (
	"context"
	"log/slog"
	"sync/atomic"
)

const (
	ComponentKey = "component"
	ErrorKey     = "error"
	EntityKey    = "entity"
	TopicKey     = "topic"
)

// Error returns a slog.Attr for the provided error. The key will be ErrorKey.
func Error(e error) slog.Attr {
	return slog.Any(ErrorKey, e)
}

// Entity returns a slog.Attr for the unique ID of an entity. The key will be EntityKey.
func Entity(uniqueID string) slog.Attr {
	return slog.String(EntityKey, uniqueID)
}

// Topic returns a slog.Attr for an MQTT Topic. The key will be TopicKey.
func Topic(topic string) slog.Attr {
	return slog.String(TopicKey, topic)
}

// sink forwards to whichever handler was most recently installed with To. Loggers derived from it with With or
// WithGroup replay their derivations, in order, onto the current handler so they survive a swap.
type sink struct {
	h *atomic.Pointer[slog.Handler]

	derive []func(slog.Handler) slog.Handler
}

func (s *sink) current() slog.Handler {
	h := s.h.Load()
	if h == nil {
		return nil
	}

	result := *h
	for _, d := range s.derive {
		result = d(result)
	}

	return result
}

func (s *sink) with(d func(slog.Handler) slog.Handler) *sink {
	derive := make([]func(slog.Handler) slog.Handler, 0, len(s.derive)+1)
	return &sink{h: s.h, derive: append(append(derive, s.derive...), d)}
}

func (s *sink) Enabled(ctx context.Context, level slog.Level) bool {
	h := s.h.Load()
	if h == nil {
		return false
	}

	return (*h).Enabled(ctx, level)
}

func (s *sink) Handle(ctx context.Context, record slog.Record) error {
	h := s.current()
	if h == nil {
		return nil
	}

	return h.Handle(ctx, record)
}

func (s *sink) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return s
	}

	return s.with(func(h slog.Handler) slog.Handler {
		return h.WithAttrs(attrs)
	})
}

func (s *sink) WithGroup(name string) slog.Handler {
	if name == "" {
		return s
	}

	return s.with(func(h slog.Handler) slog.Handler {
		return h.WithGroup(name)
	})
}

var _ slog.Handler = &sink{}

var (
	root = &sink{h: &atomic.Pointer[slog.Handler]{}}
)

// To updates all slog.Logger objects used internally by hamqtt to write logs to the provided slog.Handler, including
// loggers constructed before the call. Passing nil discards logs again.
func To(h slog.Handler) {
	if h == nil {
		root.h.Store(nil)
		return
	}

	root.h.Store(&h)
}

// ForComponent constructs a slog.Logger for the specified component (which is stored in an attribute with the key
// ComponentKey).
func ForComponent(component string) *slog.Logger {
	return slog.New(root).With(slog.String(ComponentKey, component))
}
