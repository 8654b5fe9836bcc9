package hamqtt

import (
	"fmt"
	"log/slog"
)

// SessionState is the connection lifecycle state of a Device. It implements fmt.Stringer and slog.LogValuer.
type SessionState uint8

const (
	// Disconnected is the initial state, and the state after a lost connection, a timeout, or Device.Disconnect.
	Disconnected SessionState = iota
	// Connecting means Device.Connect started a session and is waiting for the broker to accept it.
	Connecting
	// Connected means the transport signalled a connection for the current session.
	Connected
)

func (s SessionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("invalid (%d)", uint8(s))
	}
}

func (s SessionState) LogValue() slog.Value {
	return slog.StringValue(s.String())
}
