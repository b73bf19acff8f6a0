package panel

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kacper-serewis/Bk-Light-AppBypass/internal/domain"
	"github.com/kacper-serewis/Bk-Light-AppBypass/internal/ports"
	"github.com/kacper-serewis/Bk-Light-AppBypass/internal/protocol"
	"github.com/kacper-serewis/Bk-Light-AppBypass/internal/session"
)

// panelLink is an in-memory link whose firmware acks the handshake and
// reports done once a full frame has arrived.
type panelLink struct {
	mu       sync.Mutex
	notify   func([]byte)
	done     chan struct{}
	payload  int
	expected int
	silent   bool
	dropAt   int
	writes   int
}

func newPanelLink(expected int) *panelLink {
	return &panelLink{done: make(chan struct{}), expected: expected}
}

func (l *panelLink) Write(ctx context.Context, p []byte) error {
	l.mu.Lock()
	notify := l.notify

	if bytes.Equal(p, protocol.Hello()) {
		l.mu.Unlock()
		if notify != nil {
			notify([]byte{0x42, 0x4B, 0x81}) // ready
		}
		return nil
	}

	l.writes++
	if l.dropAt > 0 && l.writes == l.dropAt {
		l.mu.Unlock()
		l.Close()
		return errors.New("disconnected")
	}
	l.payload += len(p)
	complete := !l.silent && l.payload >= l.expected
	l.mu.Unlock()

	if complete && notify != nil {
		notify([]byte{0x42, 0x4B, 0x86}) // done
	}
	return nil
}

func (l *panelLink) Subscribe(fn func([]byte)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notify = fn
	return nil
}

func (l *panelLink) ChunkSize() int { return 128 }

func (l *panelLink) Done() <-chan struct{} { return l.done }

func (l *panelLink) Close() error {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
	return nil
}

// panelDialer serves a fixed link per address.
type panelDialer struct {
	mu    sync.Mutex
	links map[string]*panelLink
	dials int
}

func (d *panelDialer) Dial(ctx context.Context, address string) (ports.Link, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	l, ok := d.links[address]
	if !ok || l == nil {
		return nil, errors.New("device not found")
	}
	return l, nil
}

func (d *panelDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func sessionConfig(name, addr string, x, y int) session.Config {
	return session.Config{
		Identity: domain.PanelIdentity{Name: name, Address: addr, GridX: x, GridY: y},
		Timeouts: session.Timeouts{
			Connect:   200 * time.Millisecond,
			Handshake: 200 * time.Millisecond,
			Ack:       100 * time.Millisecond,
		},
		Retry: session.RetryPolicy{MaxAttempts: 1, InitialDelay: 5 * time.Millisecond, MaxDelay: 10 * time.Millisecond},
	}
}

// encodedFrameSize is the wire size of one tile frame:
// 7 byte header + pixels + 1 byte checksum.
func encodedFrameSize(w, h int) int { return 7 + w*h*3 + 1 }

func mustComposite(t *testing.T, w, h int) *domain.FrameBuffer {
	t.Helper()
	buf, err := domain.NewFrameBuffer(w, h)
	if err != nil {
		t.Fatalf("NewFrameBuffer: %v", err)
	}
	return buf
}

func TestNewManager_Validation(t *testing.T) {
	layout := Layout{TileWidth: 32, TileHeight: 32, Columns: 2, Rows: 1}
	dialer := &panelDialer{}

	tests := []struct {
		name    string
		panels  []domain.PanelIdentity
		wantErr bool
	}{
		{
			name: "valid 2x1",
			panels: []domain.PanelIdentity{
				{Name: "left", Address: "a", GridX: 0, GridY: 0},
				{Name: "right", Address: "b", GridX: 1, GridY: 0},
			},
		},
		{
			name: "duplicate cell",
			panels: []domain.PanelIdentity{
				{Name: "left", Address: "a", GridX: 0, GridY: 0},
				{Name: "also-left", Address: "b", GridX: 0, GridY: 0},
			},
			wantErr: true,
		},
		{
			name: "position outside grid",
			panels: []domain.PanelIdentity{
				{Name: "left", Address: "a", GridX: 0, GridY: 0},
				{Name: "right", Address: "b", GridX: 2, GridY: 0},
			},
			wantErr: true,
		},
		{
			name: "panel count mismatch",
			panels: []domain.PanelIdentity{
				{Name: "only", Address: "a", GridX: 0, GridY: 0},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := make([]*session.Session, 0, len(tt.panels))
			for _, id := range tt.panels {
				cfg := sessionConfig(id.Name, id.Address, id.GridX, id.GridY)
				sessions = append(sessions, session.New(cfg, dialer, nil))
			}
			_, err := NewManager(layout, sessions, nil)
			if tt.wantErr && !errors.Is(err, domain.ErrLayout) {
				t.Errorf("NewManager error = %v, want ErrLayout", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("NewManager returned unexpected error: %v", err)
			}
		})
	}
}

func TestManager_SendImage_LayoutMismatchBeforeIO(t *testing.T) {
	dialer := &panelDialer{links: map[string]*panelLink{}}
	s := session.New(sessionConfig("single", "a", 0, 0), dialer, nil)
	defer s.Close()

	m, err := NewManager(Layout{TileWidth: 32, TileHeight: 32, Columns: 1, Rows: 1}, []*session.Session{s}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	_, err = m.SendImage(context.Background(), mustComposite(t, 64, 32))
	if !errors.Is(err, domain.ErrLayout) {
		t.Fatalf("SendImage error = %v, want ErrLayout", err)
	}
	if dialer.dialCount() != 0 {
		t.Errorf("dial count = %d, want 0 (no BLE I/O before layout check)", dialer.dialCount())
	}
}

func TestManager_SendImage_SinglePanelDelivered(t *testing.T) {
	link := newPanelLink(encodedFrameSize(32, 32))
	dialer := &panelDialer{links: map[string]*panelLink{"a": link}}
	s := session.New(sessionConfig("single", "a", 0, 0), dialer, nil)
	defer s.Close()

	m, err := NewManager(Layout{TileWidth: 32, TileHeight: 32, Columns: 1, Rows: 1}, []*session.Session{s}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	composite := mustComposite(t, 32, 32)
	composite.Fill(0xFF, 0x00, 0x00)

	result, err := m.SendImage(context.Background(), composite)
	if err != nil {
		t.Fatalf("SendImage: %v", err)
	}
	if got := result["single"].Status; got != domain.Delivered {
		t.Errorf("outcome = %s, want Delivered", got)
	}
	if !result.AllDelivered() {
		t.Error("AllDelivered() = false, want true")
	}
}

func TestManager_SendImage_SkippedPanelDoesNotAffectSibling(t *testing.T) {
	left := newPanelLink(encodedFrameSize(32, 32))
	// The right panel's device is unreachable and its session stays
	// Disconnected.
	dialer := &panelDialer{links: map[string]*panelLink{"left-addr": left}}

	leftSess := session.New(sessionConfig("left", "left-addr", 0, 0), dialer, nil)
	rightSess := session.New(sessionConfig("right", "right-addr", 1, 0), dialer, nil)
	defer leftSess.Close()
	defer rightSess.Close()

	m, err := NewManager(Layout{TileWidth: 32, TileHeight: 32, Columns: 2, Rows: 1},
		[]*session.Session{leftSess, rightSess}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	// Best-effort connect: left succeeds, right fails.
	if err := m.Connect(context.Background()); err == nil {
		t.Fatal("Connect error = nil, want right panel failure")
	}
	if got := m.ReadyCount(); got != 1 {
		t.Fatalf("ReadyCount = %d, want 1", got)
	}

	start := time.Now()
	result, err := m.SendImage(context.Background(), mustComposite(t, 64, 32))
	if err != nil {
		t.Fatalf("SendImage: %v", err)
	}

	if got := result["left"].Status; got != domain.Delivered {
		t.Errorf("left outcome = %s, want Delivered", got)
	}
	if got := result["right"].Status; got != domain.Skipped {
		t.Errorf("right outcome = %s, want Skipped", got)
	}
	// A skipped panel must not delay the healthy one.
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("SendImage took %s, skipped panel stalled the send", elapsed)
	}
	if len(result) != 2 {
		t.Errorf("result has %d entries, want complete report of 2", len(result))
	}
}

func TestManager_SendImage_FailureIsolatedPerPanel(t *testing.T) {
	left := newPanelLink(encodedFrameSize(32, 32))
	right := newPanelLink(encodedFrameSize(32, 32))
	right.dropAt = 3
	dialer := &panelDialer{links: map[string]*panelLink{"la": left, "ra": right}}

	leftSess := session.New(sessionConfig("left", "la", 0, 0), dialer, nil)
	rightSess := session.New(sessionConfig("right", "ra", 1, 0), dialer, nil)
	defer leftSess.Close()
	defer rightSess.Close()

	m, err := NewManager(Layout{TileWidth: 32, TileHeight: 32, Columns: 2, Rows: 1},
		[]*session.Session{leftSess, rightSess}, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	result, err := m.SendImage(context.Background(), mustComposite(t, 64, 32))
	if err != nil {
		t.Fatalf("SendImage: %v", err)
	}

	if got := result["left"].Status; got != domain.Delivered {
		t.Errorf("left outcome = %s, want Delivered", got)
	}
	if got := result["right"]; got.Status != domain.Failed || got.Reason != domain.ReasonLinkDropped {
		t.Errorf("right outcome = %s/%s, want Failed/LinkDropped", got.Status, got.Reason)
	}
	if result.AllDelivered() {
		t.Error("AllDelivered() = true despite a failed panel")
	}
}
