package domain

import "errors"

// Sentinel errors for the transport layer. Callers classify failures with
// errors.Is; the wrapped message carries the specific cause.
var (
	// ErrLink is returned when the radio connection cannot be established
	// or maintained.
	ErrLink = errors.New("bklight: link error")

	// ErrHandshake is returned when the device does not complete its
	// initialization sequence. The protocol has no negative-ack for the
	// handshake, so silence within the timeout is the only failure signal.
	ErrHandshake = errors.New("bklight: handshake failed")

	// ErrEncoding is returned when a bitmap does not match the fixed
	// device contract. Never retried.
	ErrEncoding = errors.New("bklight: invalid frame for device contract")

	// ErrLayout is returned when a composite bitmap does not match the
	// configured grid geometry. Never retried.
	ErrLayout = errors.New("bklight: composite does not match grid layout")

	// ErrSessionBusy is returned when Send is called while the session is
	// not Ready. Sends are never queued inside a session.
	ErrSessionBusy = errors.New("bklight: session busy")

	// ErrProtocolRejected is returned when the device signalled or implied
	// rejection of a chunk or frame.
	ErrProtocolRejected = errors.New("bklight: protocol rejected")

	// ErrAckTimeout is returned when the completion marker does not arrive
	// within the configured ack timeout.
	ErrAckTimeout = errors.New("bklight: ack timeout")

	// ErrLinkDropped is returned when the link goes down mid-transfer.
	ErrLinkDropped = errors.New("bklight: link dropped")

	// ErrCanceled is returned when the caller cancelled an in-flight send.
	ErrCanceled = errors.New("bklight: send canceled")

	// ErrSessionClosed is returned for operations on a torn-down session.
	ErrSessionClosed = errors.New("bklight: session closed")
)

// FailureReason classifies a terminal send failure for reporting.
type FailureReason int

const (
	ReasonNone FailureReason = iota
	ReasonTimeout
	ReasonLinkDropped
	ReasonProtocolRejected
	ReasonCanceled
)

// String returns a human-readable representation of the reason.
func (r FailureReason) String() string {
	switch r {
	case ReasonNone:
		return "None"
	case ReasonTimeout:
		return "Timeout"
	case ReasonLinkDropped:
		return "LinkDropped"
	case ReasonProtocolRejected:
		return "ProtocolRejected"
	case ReasonCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

// ReasonFor maps a send error onto its failure reason.
func ReasonFor(err error) FailureReason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrAckTimeout):
		return ReasonTimeout
	case errors.Is(err, ErrCanceled):
		return ReasonCanceled
	case errors.Is(err, ErrProtocolRejected):
		return ReasonProtocolRejected
	default:
		// Link faults and anything unclassified count as a dropped link.
		return ReasonLinkDropped
	}
}
