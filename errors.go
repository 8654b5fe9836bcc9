package hamqtt

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned when a public operation is given a nil or malformed input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidState is returned when required configuration is missing or an operation is called before its
	// prerequisite step.
	ErrInvalidState = errors.New("invalid state")
	// ErrCapacityExceeded is returned by Device.Register once the registry is full.
	ErrCapacityExceeded = errors.New("entity capacity exceeded")
	// ErrConnectTimeout is returned by Device.Connect when the broker did not accept the session in time.
	ErrConnectTimeout = errors.New("timed out waiting for mqtt connection")
	// ErrAllocationFailure is reserved for exhausted fixed-size buffers. Buffers in this module grow as needed, so it
	// is never returned today; it exists so callers can match the full error set.
	ErrAllocationFailure = errors.New("allocation failure")

	// ErrNotConnected is returned by operations that need a session before Device.Connect has opened one. It matches
	// ErrInvalidState with errors.Is.
	ErrNotConnected = fmt.Errorf("not connected: %w", ErrInvalidState)
)
