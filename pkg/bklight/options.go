package bklight

import (
	"github.com/kacper-serewis/Bk-Light-AppBypass/internal/ports"
	"github.com/kacper-serewis/Bk-Light-AppBypass/internal/session"
	"github.com/kacper-serewis/Bk-Light-AppBypass/pkg/log"
)

// Logger is the structured logging interface from pkg/log.
type Logger = log.Logger

// Link is a live connection to one panel controller.
type Link = ports.Link

// LinkDialer opens links to panel controllers by address. The default
// dialer speaks GATT through the host Bluetooth adapter; supply your
// own for testing or alternative transports.
type LinkDialer = ports.LinkDialer

// RetryPolicy bounds the reconnect loop a session runs after a link
// fault: how many attempts, and the backoff window between them.
type RetryPolicy = session.RetryPolicy

// Option configures optional behavior of a Display.
type Option func(*options)

type options struct {
	logger Logger
	dialer LinkDialer
	retry  *RetryPolicy
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDialer sets a custom link dialer.
// If not provided, the host Bluetooth adapter is used.
func WithDialer(dialer LinkDialer) Option {
	return func(o *options) {
		o.dialer = dialer
	}
}

// WithRetryPolicy overrides the reconnect policy derived from the
// Config's ReconnectAttempts, ReconnectDelay and ReconnectMaxDelay
// fields for every session of the Display.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(o *options) {
		o.retry = &policy
	}
}
