package domain

import "fmt"

// PanelIdentity names one physical panel and its position in the composite
// layout. Immutable once a session is constructed; values come from
// configuration.
type PanelIdentity struct {
	// Name is the logical panel name used in results and log fields.
	Name string

	// Address is the BLE device address (MAC on Linux).
	Address string

	// GridX is the column of this panel's tile in the composite grid.
	GridX int

	// GridY is the row of this panel's tile in the composite grid.
	GridY int
}

// String returns "name (address) @ (x,y)".
func (p PanelIdentity) String() string {
	return fmt.Sprintf("%s (%s) @ (%d,%d)", p.Name, p.Address, p.GridX, p.GridY)
}

// SessionState is the lifecycle state of one transport session. Exactly one
// session owns its state; callers observe it only through operation results
// and the read-only State accessor.
type SessionState int

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateHandshaking
	StateReady
	StateSending
	StateAwaitingAck
	StateFaulted
)

// String returns a human-readable representation of the state.
func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateHandshaking:
		return "Handshaking"
	case StateReady:
		return "Ready"
	case StateSending:
		return "Sending"
	case StateAwaitingAck:
		return "AwaitingAck"
	case StateFaulted:
		return "Faulted"
	default:
		return "Unknown"
	}
}

// AckKind classifies a notification marker from the device.
type AckKind int

const (
	// AckReady confirms the device completed its handshake and can accept
	// a frame.
	AckReady AckKind = iota

	// AckProgress reports per-chunk progress during a transfer.
	AckProgress

	// AckDone marks a frame transfer as complete.
	AckDone

	// AckError signals the device rejected the transfer.
	AckError
)

// AckEvent is an asynchronously delivered signal from the device. The
// protocol carries no request identifiers; events correlate to the in-flight
// send by session identity alone, which is why a session allows only one
// outstanding send.
type AckEvent struct {
	Kind AckKind

	// Chunk is the acknowledged chunk index for AckProgress events.
	Chunk int

	// Code is the firmware error code for AckError events.
	Code byte
}
