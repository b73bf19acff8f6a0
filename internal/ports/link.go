package ports

import (
	"context"
	"errors"
)

// ErrWriteRejected is returned by Link.Write when the peer stack refused the
// payload, typically because it exceeds the negotiated write size. The
// session reports this as a protocol rejection rather than a dropped link.
var ErrWriteRejected = errors.New("ports: write rejected")

// Link is one established connection to a panel. It exposes exactly the two
// GATT endpoints the vendor protocol uses: a write characteristic for
// handshake commands and frame chunks, and a notify characteristic for
// status markers.
//
// A Link is exclusively owned by one transport session; implementations do
// not need to support concurrent writers.
type Link interface {
	// Write sends one payload over the control characteristic. Payloads
	// must not exceed ChunkSize.
	Write(ctx context.Context, p []byte) error

	// Subscribe registers the handler for status characteristic
	// notifications. Called once, before any Write.
	Subscribe(fn func(p []byte)) error

	// ChunkSize returns the largest usable write payload in bytes, derived
	// from the negotiated ATT MTU.
	ChunkSize() int

	// Done returns a channel closed when the link drops.
	Done() <-chan struct{}

	// Close tears down the connection. Safe to call more than once.
	Close() error
}

// LinkDialer establishes links to panels by device address.
type LinkDialer interface {
	// Dial connects to the panel at the given address and discovers its
	// control and status characteristics. The context bounds the whole
	// establishment.
	Dial(ctx context.Context, address string) (Link, error)
}
