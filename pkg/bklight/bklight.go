package bklight

import (
	"context"

	"github.com/kacper-serewis/Bk-Light-AppBypass/internal/adapters/ble"
	"github.com/kacper-serewis/Bk-Light-AppBypass/internal/cliconfig"
	"github.com/kacper-serewis/Bk-Light-AppBypass/internal/domain"
	"github.com/kacper-serewis/Bk-Light-AppBypass/internal/panel"
	"github.com/kacper-serewis/Bk-Light-AppBypass/internal/session"
	"github.com/kacper-serewis/Bk-Light-AppBypass/pkg/log"
)

// Config holds the display configuration.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = cliconfig.Config

// PanelConfig places one addressed panel on the grid.
type PanelConfig = cliconfig.PanelConfig

// FrameBuffer is a mutable RGB image sized for the display canvas.
type FrameBuffer = domain.FrameBuffer

// PanelIdentity names one panel and its grid position.
type PanelIdentity = domain.PanelIdentity

// Outcome is the per-panel result of a send.
type Outcome = domain.Outcome

// CompositeResult maps panel names to their send outcomes.
type CompositeResult = domain.CompositeResult

// Sentinel errors returned by Display operations.
var (
	ErrLayout      = domain.ErrLayout
	ErrSessionBusy = domain.ErrSessionBusy
	ErrAckTimeout  = domain.ErrAckTimeout
)

// DefaultConfig returns a Config with sensible default values.
// At minimum, you must set Panels before calling Open.
func DefaultConfig() Config {
	return cliconfig.DefaultConfig()
}

// NewFrameBuffer allocates a black frame of the given dimensions.
func NewFrameBuffer(width, height int) (*FrameBuffer, error) {
	return domain.NewFrameBuffer(width, height)
}

// Display is a set of panel sessions arranged on a grid, driven as a
// single canvas.
type Display struct {
	cfg      Config
	manager  *panel.Manager
	sessions []*session.Session
	logger   Logger
}

// Open validates the configuration and builds the sessions for every
// configured panel. No BLE traffic happens until Connect.
func Open(cfg Config, opts ...Option) (*Display, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = &log.NoopLogger{}
	}
	dialer := o.dialer
	if dialer == nil {
		dialer = ble.NewDialer(logger)
	}
	retry := session.RetryPolicy{
		MaxAttempts:  cfg.ReconnectAttempts,
		InitialDelay: cfg.ReconnectDelay,
		MaxDelay:     cfg.ReconnectMaxDelay,
	}
	if o.retry != nil {
		retry = *o.retry
	}

	sessions := make([]*session.Session, 0, len(cfg.Panels))
	for _, id := range cfg.Identities() {
		sessions = append(sessions, session.New(session.Config{
			Identity: id,
			Timeouts: session.Timeouts{
				Connect:   cfg.ConnectTimeout,
				Handshake: cfg.HandshakeTimeout,
				Ack:       cfg.AckTimeout,
			},
			Retry:        retry,
			ChunkCeiling: cfg.ChunkSize,
		}, dialer, logger))
	}

	layout := panel.Layout{
		TileWidth:  cfg.TileWidth,
		TileHeight: cfg.TileHeight,
		Columns:    cfg.Columns,
		Rows:       cfg.Rows,
	}
	manager, err := panel.NewManager(layout, sessions, logger)
	if err != nil {
		for _, s := range sessions {
			s.Close()
		}
		return nil, err
	}

	return &Display{cfg: cfg, manager: manager, sessions: sessions, logger: logger}, nil
}

// Connect establishes every panel session. Each panel is attempted
// independently; the returned error joins the individual failures, and
// panels that did connect stay usable.
func (d *Display) Connect(ctx context.Context) error {
	return d.manager.Connect(ctx)
}

// SendImage slices the composite frame into per-panel tiles and sends
// them concurrently. The frame must match CanvasSize exactly.
// The result reports one outcome per configured panel.
func (d *Display) SendImage(ctx context.Context, frame *FrameBuffer) (CompositeResult, error) {
	return d.manager.SendImage(ctx, frame)
}

// CanvasSize returns the composite dimensions implied by the layout.
func (d *Display) CanvasSize() (w, h int) {
	return d.cfg.CanvasSize()
}

// ReadyCount returns how many panels are currently ready to accept a
// frame.
func (d *Display) ReadyCount() int {
	return d.manager.ReadyCount()
}

// Close tears down every session and releases their links.
func (d *Display) Close() error {
	return d.manager.Close()
}
