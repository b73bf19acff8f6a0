// Package bklight re-exports the public display API from pkg/bklight
// so the module can be imported by its root path.
//
// Example usage:
//
//	cfg := bklight.DefaultConfig()
//	cfg.Panels = []bklight.PanelConfig{{Address: "AA:BB:CC:DD:EE:FF"}}
//	d, err := bklight.Open(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer d.Close()
package bklight

import (
	"github.com/kacper-serewis/Bk-Light-AppBypass/pkg/bklight"
)

// Config holds the display configuration.
type Config = bklight.Config

// PanelConfig places one addressed panel on the grid.
type PanelConfig = bklight.PanelConfig

// Display is a set of panel sessions driven as a single canvas.
type Display = bklight.Display

// FrameBuffer is a mutable RGB image sized for the display canvas.
type FrameBuffer = bklight.FrameBuffer

// CompositeResult maps panel names to their send outcomes.
type CompositeResult = bklight.CompositeResult

// Option configures optional behavior of a Display.
type Option = bklight.Option

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return bklight.DefaultConfig()
}

// Open validates the configuration and builds the display.
func Open(cfg Config, opts ...Option) (*Display, error) {
	return bklight.Open(cfg, opts...)
}

// NewFrameBuffer allocates a black frame of the given dimensions.
func NewFrameBuffer(width, height int) (*FrameBuffer, error) {
	return bklight.NewFrameBuffer(width, height)
}

// WithLogger sets a custom logger for structured logging.
func WithLogger(logger bklight.Logger) Option {
	return bklight.WithLogger(logger)
}

// WithDialer sets a custom link dialer.
func WithDialer(dialer bklight.LinkDialer) Option {
	return bklight.WithDialer(dialer)
}
