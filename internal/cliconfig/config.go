// Package cliconfig carries the CLI configuration surface: defaults,
// TOML file loading, environment overrides and flag precedence.
package cliconfig

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kacper-serewis/Bk-Light-AppBypass/internal/domain"
)

// PanelConfig places one addressed panel on the grid.
type PanelConfig struct {
	Name    string
	Address string
	GridX   int
	GridY   int
}

// Config holds CLI configuration for bklight.
type Config struct {
	Panels []PanelConfig

	TileWidth  int
	TileHeight int
	Columns    int
	Rows       int

	// ChunkSize caps the per-write payload regardless of what the
	// link negotiates.
	ChunkSize int

	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
	AckTimeout       time.Duration

	ReconnectAttempts int
	ReconnectDelay    time.Duration
	ReconnectMaxDelay time.Duration

	// FrameInterval is the minimum spacing between consecutive frames
	// pushed by the streaming surfaces (watch, serve).
	FrameInterval time.Duration

	Verbose bool
}

// DefaultConfig returns a Config with default values: a single 32x32
// panel layout with conservative timeouts.
func DefaultConfig() Config {
	return Config{
		TileWidth:         32,
		TileHeight:        32,
		Columns:           1,
		Rows:              1,
		ChunkSize:         244,
		ConnectTimeout:    10 * time.Second,
		HandshakeTimeout:  5 * time.Second,
		AckTimeout:        5 * time.Second,
		ReconnectAttempts: 3,
		ReconnectDelay:    500 * time.Millisecond,
		ReconnectMaxDelay: 10 * time.Second,
		FrameInterval:     100 * time.Millisecond,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.TileWidth < 1 || c.TileWidth > 255 || c.TileHeight < 1 || c.TileHeight > 255 {
		return fmt.Errorf("tile size must be between 1 and 255, got %dx%d", c.TileWidth, c.TileHeight)
	}
	if c.Columns < 1 || c.Rows < 1 {
		return fmt.Errorf("grid must be at least 1x1, got %dx%d", c.Columns, c.Rows)
	}
	if len(c.Panels) == 0 {
		return fmt.Errorf("at least one panel is required")
	}
	if len(c.Panels) != c.Columns*c.Rows {
		return fmt.Errorf("%d panels configured for a %dx%d grid (want %d)",
			len(c.Panels), c.Columns, c.Rows, c.Columns*c.Rows)
	}

	occupied := make(map[[2]int]string, len(c.Panels))
	for i, p := range c.Panels {
		if p.Address == "" {
			return fmt.Errorf("panel %d (%s) has no address", i, p.Name)
		}
		if p.GridX < 0 || p.GridX >= c.Columns || p.GridY < 0 || p.GridY >= c.Rows {
			return fmt.Errorf("panel %q position (%d,%d) outside %dx%d grid",
				p.Name, p.GridX, p.GridY, c.Columns, c.Rows)
		}
		cell := [2]int{p.GridX, p.GridY}
		if other, ok := occupied[cell]; ok {
			return fmt.Errorf("panels %q and %q both occupy cell (%d,%d)", other, p.Name, p.GridX, p.GridY)
		}
		occupied[cell] = p.Name
	}

	if c.ChunkSize < 1 {
		return fmt.Errorf("chunk size must be positive")
	}
	if c.ConnectTimeout <= 0 || c.HandshakeTimeout <= 0 || c.AckTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.ReconnectAttempts < 0 {
		return fmt.Errorf("reconnect attempts must not be negative")
	}
	if c.FrameInterval < 0 {
		return fmt.Errorf("frame interval must not be negative")
	}
	return nil
}

// CanvasSize returns the composite dimensions implied by the layout.
func (c *Config) CanvasSize() (w, h int) {
	return c.TileWidth * c.Columns, c.TileHeight * c.Rows
}

// Identities returns the configured panels as domain identities,
// filling in positional default names.
func (c *Config) Identities() []domain.PanelIdentity {
	ids := make([]domain.PanelIdentity, len(c.Panels))
	for i, p := range c.Panels {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("panel-%d-%d", p.GridX, p.GridY)
		}
		ids[i] = domain.PanelIdentity{Name: name, Address: p.Address, GridX: p.GridX, GridY: p.GridY}
	}
	return ids
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setIntPtr sets an int value from a pointer if present, non-negative
// and flag not changed. The pointer distinguishes an explicit zero,
// which "reconnect-attempts" uses to disable reconnects, from an
// absent key.
func (s *configSetter) setIntPtr(flag string, value *int, dst *int) {
	if value == nil || *value < 0 || s.changed[flag] {
		return
	}
	*dst = *value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setNonNegativeIntFromString parses a string to int and sets the
// destination if the value is zero or positive. A string form of an
// explicit zero is meaningful for "reconnect-attempts".
func (s *configSetter) setNonNegativeIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i < 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
