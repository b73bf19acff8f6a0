// Package panel treats N transport sessions as one logical display
// surface: it slices a composite bitmap into per-panel tiles, dispatches
// frames concurrently, and aggregates per-panel outcomes.
package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kacper-serewis/Bk-Light-AppBypass/internal/domain"
	"github.com/kacper-serewis/Bk-Light-AppBypass/internal/protocol"
	"github.com/kacper-serewis/Bk-Light-AppBypass/internal/session"
	"github.com/kacper-serewis/Bk-Light-AppBypass/pkg/log"
)

// Layout describes the composite grid geometry.
type Layout struct {
	TileWidth  int
	TileHeight int
	Columns    int
	Rows       int
}

// CanvasSize returns the composite dimensions in pixels.
func (l Layout) CanvasSize() (w, h int) {
	return l.TileWidth * l.Columns, l.TileHeight * l.Rows
}

// Manager owns the sessions comprising a logical display, from a single
// 1x1 panel to a tiled grid.
type Manager struct {
	layout   Layout
	encoder  protocol.Encoder
	sessions []*session.Session
	logger   log.Logger
}

// NewManager validates that the sessions cover the grid exactly: one panel
// per cell, no duplicates, no gaps.
func NewManager(layout Layout, sessions []*session.Session, logger log.Logger) (*Manager, error) {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if layout.TileWidth <= 0 || layout.TileHeight <= 0 || layout.Columns <= 0 || layout.Rows <= 0 {
		return nil, fmt.Errorf("%w: invalid layout %+v", domain.ErrLayout, layout)
	}
	if len(sessions) != layout.Columns*layout.Rows {
		return nil, fmt.Errorf("%w: %d panels configured, grid %dx%d needs %d",
			domain.ErrLayout, len(sessions), layout.Columns, layout.Rows, layout.Columns*layout.Rows)
	}

	seen := make(map[[2]int]string, len(sessions))
	for _, s := range sessions {
		id := s.Identity()
		if id.GridX < 0 || id.GridX >= layout.Columns || id.GridY < 0 || id.GridY >= layout.Rows {
			return nil, fmt.Errorf("%w: panel %s position (%d,%d) outside grid %dx%d",
				domain.ErrLayout, id.Name, id.GridX, id.GridY, layout.Columns, layout.Rows)
		}
		cell := [2]int{id.GridX, id.GridY}
		if prev, dup := seen[cell]; dup {
			return nil, fmt.Errorf("%w: panels %s and %s share cell (%d,%d)",
				domain.ErrLayout, prev, id.Name, id.GridX, id.GridY)
		}
		seen[cell] = id.Name
	}

	return &Manager{
		layout:   layout,
		encoder:  protocol.Encoder{TileWidth: layout.TileWidth, TileHeight: layout.TileHeight},
		sessions: sessions,
		logger:   logger,
	}, nil
}

// Layout returns the grid geometry.
func (m *Manager) Layout() Layout { return m.layout }

// Sessions returns the managed sessions in configuration order.
func (m *Manager) Sessions() []*session.Session { return m.sessions }

// Connect establishes every session concurrently. Individual failures do
// not abort the others; the joined error reports each panel that failed.
func (m *Manager) Connect(ctx context.Context) error {
	errs := make([]error, len(m.sessions))
	var wg sync.WaitGroup
	for i, s := range m.sessions {
		wg.Add(1)
		go func(i int, s *session.Session) {
			defer wg.Done()
			if err := s.Connect(ctx); err != nil {
				errs[i] = fmt.Errorf("panel %s: %w", s.Identity().Name, err)
			}
		}(i, s)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// ReadyCount returns how many sessions are currently Ready.
func (m *Manager) ReadyCount() int {
	n := 0
	for _, s := range m.sessions {
		if s.State() == domain.StateReady {
			n++
		}
	}
	return n
}

// SendImage slices the composite into per-panel tiles and dispatches them
// concurrently, one goroutine per panel. It waits for every dispatched
// session to reach a terminal outcome and always returns a complete
// per-panel report; a single panel's failure never raises. Panels whose
// session is not Ready at dispatch time are reported Skipped, untried.
func (m *Manager) SendImage(ctx context.Context, composite *domain.FrameBuffer) (domain.CompositeResult, error) {
	wantW, wantH := m.layout.CanvasSize()
	if composite == nil || composite.Width() != wantW || composite.Height() != wantH {
		gotW, gotH := 0, 0
		if composite != nil {
			gotW, gotH = composite.Width(), composite.Height()
		}
		return nil, fmt.Errorf("%w: composite %dx%d, grid needs %dx%d",
			domain.ErrLayout, gotW, gotH, wantW, wantH)
	}

	// Encode all tiles up front: an encoding failure is a content bug and
	// propagates before any BLE traffic.
	frames := make([]domain.EncodedFrame, len(m.sessions))
	for i, s := range m.sessions {
		id := s.Identity()
		tile := sliceTile(composite, id.GridX, id.GridY, m.layout.TileWidth, m.layout.TileHeight)
		frame, err := m.encoder.Encode(tile)
		if err != nil {
			return nil, fmt.Errorf("panel %s: %w", id.Name, err)
		}
		frames[i] = frame
	}

	outcomes := make([]domain.Outcome, len(m.sessions))
	var wg sync.WaitGroup
	for i, s := range m.sessions {
		if s.State() != domain.StateReady {
			outcomes[i] = domain.Outcome{Status: domain.Skipped}
			m.logger.Warn("panel skipped",
				log.String("panel", s.Identity().Name),
				log.String("state", s.State().String()),
			)
			continue
		}

		wg.Add(1)
		go func(i int, s *session.Session, frame domain.EncodedFrame) {
			defer wg.Done()
			err := s.Send(ctx, frame)
			switch {
			case err == nil:
				outcomes[i] = domain.Outcome{Status: domain.Delivered}
			case errors.Is(err, domain.ErrSessionBusy):
				// Lost the race with a concurrent fault; nothing was
				// written, same as not Ready at dispatch.
				outcomes[i] = domain.Outcome{Status: domain.Skipped}
			default:
				outcomes[i] = domain.Outcome{
					Status: domain.Failed,
					Reason: domain.ReasonFor(err),
					Err:    err,
				}
			}
		}(i, s, frames[i])
	}
	wg.Wait()

	result := make(domain.CompositeResult, len(m.sessions))
	for i, s := range m.sessions {
		result[s.Identity().Name] = outcomes[i]
	}

	delivered, failed, skipped := result.Counts()
	m.logger.Info("composite send complete",
		log.Int("delivered", delivered),
		log.Int("failed", failed),
		log.Int("skipped", skipped),
	)
	return result, nil
}

// Close tears down every session. Always returns the first error seen, but
// closes all sessions regardless.
func (m *Manager) Close() error {
	var first error
	for _, s := range m.sessions {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
