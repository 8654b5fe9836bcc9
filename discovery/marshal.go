package discovery

import (
	"encoding/json/jsontext"
	"encoding/json/v2"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/nlowe/hamqtt/mqtt"
)

var (
	// ErrValueRequired is the error returned by marshal functions for values that hold the type's associated Zero value
	// when marshaling the discovery payload.
	ErrValueRequired = errors.New("value is required")
	// ErrTopicRequired is the error returned by MarshalRequiredTopic and MarshalRequiredValueTopic when the provided
	// topic is empty (usually because the required value is nil or has not been assigned a topic yet).
	ErrTopicRequired = errors.New("topic is required")

	// Marshalers contains json.Marshalers for types from the standard library to make them conform to the Home
	// Assistant MQTT Device Discovery schema (e.g. render URLs as strings).
	Marshalers = json.JoinMarshalers(
		// Marshal URLs as their string representation
		json.MarshalToFunc[*url.URL](func(e *jsontext.Encoder, u *url.URL) error {
			if u == nil {
				return e.WriteToken(jsontext.Null)
			}

			return e.WriteToken(jsontext.String(u.String()))
		}),
		// Marshal durations as integer seconds
		json.MarshalToFunc[time.Duration](func(e *jsontext.Encoder, t time.Duration) error {
			return e.WriteToken(jsontext.Int(int64(t.Seconds())))
		}),
	)
)

// MarshalRequiredTopic encodes the topic for the discovery payload being built. It returns ErrTopicRequired if the
// topic is the empty string.
func MarshalRequiredTopic(name string, e *jsontext.Encoder, k string, topic string) error {
	if topic == "" {
		return fmt.Errorf("%s: %w", name, ErrTopicRequired)
	}

	return MaybeMarshalTopic(e, k, topic)
}

// MarshalRequiredValueTopic encodes the topic for the provided mqtt.Value. It returns ErrTopicRequired if the value is
// nil or has no configured topic.
func MarshalRequiredValueTopic[T any](name string, e *jsontext.Encoder, k string, v *mqtt.Value[T], prefix string) error {
	return MarshalRequiredTopic(name, e, k, v.FullyQualifiedTopic(prefix))
}

// MaybeMarshalTopic encodes the topic for the discovery payload being built if the topic string is not empty.
func MaybeMarshalTopic(e *jsontext.Encoder, k string, topic string) error {
	if topic == "" {
		return nil
	}

	return errors.Join(
		e.WriteToken(jsontext.String(k)),
		e.WriteToken(jsontext.String(topic)),
	)
}

// MarshalStd marshals the specified value using json.MarshalEncode with Marshalers. If the provided value is nil, it
// returns ErrValueRequired.
func MarshalStd[T any](name string, e *jsontext.Encoder, k string, v *T) error {
	if v == nil {
		return fmt.Errorf("%s: %w", name, ErrValueRequired)
	}

	return MaybeMarshalStd(e, k, v)
}

// MaybeMarshalStd marshals the provided value using json.MarshalEncode with Marshalers if it is not nil.
func MaybeMarshalStd[T any](e *jsontext.Encoder, k string, v *T) error {
	if v == nil {
		return nil
	}

	return errors.Join(
		e.WriteToken(jsontext.String(k)),
		json.MarshalEncode(e, v, json.WithMarshalers(Marshalers)),
	)
}

// MarshalStdComparable marshals the provided value using Marshalers. If it is equal to the type's zero value, it
// returns ErrValueRequired.
func MarshalStdComparable[T comparable](name string, e *jsontext.Encoder, k string, v T) error {
	var defaultT T
	if v == defaultT {
		return fmt.Errorf("%s: %w", name, ErrValueRequired)
	}

	return MaybeMarshalStd(e, k, &v)
}

// MaybeMarshalStdComparable marshals the provided value using Marshalers if it is not equal to the type's zero value.
func MaybeMarshalStdComparable[T comparable](e *jsontext.Encoder, k string, v T) error {
	var defaultT T
	if v == defaultT {
		return nil
	}

	return MaybeMarshalStd(e, k, &v)
}

// MarshalStdValue marshals the provided value using Marshalers even when it holds the type's zero value. Use it for
// fields like booleans where the zero value is meaningful.
func MarshalStdValue[T any](e *jsontext.Encoder, k string, v T) error {
	return MaybeMarshalStd(e, k, &v)
}
