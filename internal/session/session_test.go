package session

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
)

// Status characteristic markers as the firmware emits them.
var (
	readyMarker = []byte{0x42, 0x4B, 0x81}
	doneMarker  = []byte{0x42, 0x4B, 0x86}
	errMarker   = []byte{0x42, 0x4B, 0xEE, 0x03}
)

// fakeLink is an in-memory ports.Link with scripted behavior.
type fakeLink struct {
	mu        sync.Mutex
	notify    func([]byte)
	writes    [][]byte
	done      chan struct{}
	chunkSize int

	// ackHandshake replies with the ready marker to the hello command.
	ackHandshake bool
	// progressMarkers emits one progress marker per chunk write, the way
	// revision 3 firmware reports transfer progress.
	progressMarkers bool
	// doneAfter sends the done marker once this many payload bytes
	// (hello excluded) have been written. Zero disables it.
	doneAfter int
	// errAfter sends the device error marker after this many chunk
	// writes. Zero disables it.
	errAfter int
	// failWriteAt makes the Nth chunk write fail and drops the link.
	// Zero disables it.
	failWriteAt int
	// rejectWriteAt makes the Nth chunk write return ErrWriteRejected.
	// Zero disables it.
	rejectWriteAt int

	payloadBytes int
	chunkWrites  int
}

func newFakeLink() *fakeLink {
	return &fakeLink{
		done:         make(chan struct{}),
		chunkSize:    64,
		ackHandshake: true,
	}
}

func (l *fakeLink) Write(ctx context.Context, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	cp := append([]byte(nil), p...)
	l.writes = append(l.writes, cp)

	if bytes.Equal(p, protocol.Hello()) {
		notify := l.notify
		ack := l.ackHandshake
		l.mu.Unlock()
		if ack && notify != nil {
			notify(readyMarker)
		}
		return nil
	}

	l.chunkWrites++
	l.payloadBytes += len(p)
	n := l.chunkWrites
	notify := l.notify

	if l.rejectWriteAt > 0 && n == l.rejectWriteAt {
		l.mu.Unlock()
		return ports.ErrWriteRejected
	}
	if l.failWriteAt > 0 && n == l.failWriteAt {
		l.mu.Unlock()
		l.drop()
		return errors.New("write failed: not connected")
	}

	sendProgress := l.progressMarkers
	sendDone := l.doneAfter > 0 && l.payloadBytes >= l.doneAfter
	sendErr := l.errAfter > 0 && n >= l.errAfter
	l.mu.Unlock()

	if notify != nil {
		if sendProgress {
			notify([]byte{0x42, 0x4B, 0x85, byte(n), byte(n >> 8)})
		}
		if sendErr {
			notify(errMarker)
		} else if sendDone {
			notify(doneMarker)
		}
	}
	return nil
}

func (l *fakeLink) Subscribe(fn func([]byte)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notify = fn
	return nil
}

func (l *fakeLink) ChunkSize() int { return l.chunkSize }

func (l *fakeLink) Done() <-chan struct{} { return l.done }

func (l *fakeLink) Close() error {
	l.drop()
	return nil
}

func (l *fakeLink) drop() {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
}

func (l *fakeLink) writeCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.writes)
}

// fakeDialer hands out scripted links in order, then repeats the last
// entry. A nil entry makes that dial fail.
type fakeDialer struct {
	mu    sync.Mutex
	links []*fakeLink
	dials int
}

func (d *fakeDialer) Dial(ctx context.Context, address string) (ports.Link, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	i := d.dials - 1
	if i >= len(d.links) {
		i = len(d.links) - 1
	}
	if i < 0 || d.links[i] == nil {
		return nil, errors.New("device not found")
	}
	return d.links[i], nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// stateRecorder collects session state transitions.
type stateRecorder struct {
	mu     sync.Mutex
	states []domain.SessionState
}

func (r *stateRecorder) record(_, current domain.SessionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, current)
}

func (r *stateRecorder) saw(want domain.SessionState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.states {
		if s == want {
			return true
		}
	}
	return false
}

func (r *stateRecorder) count(want domain.SessionState) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.states {
		if s == want {
			n++
		}
	}
	return n
}

func testConfig(rec *stateRecorder) Config {
	cfg := Config{
		Identity: domain.PanelIdentity{Name: "left", Address: "AA:BB:CC:DD:EE:01"},
		Timeouts: Timeouts{
			Connect:   200 * time.Millisecond,
			Handshake: 200 * time.Millisecond,
			Ack:       100 * time.Millisecond,
		},
		Retry: RetryPolicy{
			MaxAttempts:  2,
			InitialDelay: 5 * time.Millisecond,
			MaxDelay:     20 * time.Millisecond,
		},
	}
	if rec != nil {
		cfg.OnStateChange = rec.record
	}
	return cfg
}

func testFrame(t *testing.T, size int) domain.EncodedFrame {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	return domain.NewEncodedFrame(data)
}

func waitForState(t *testing.T, s *Session, want domain.SessionState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("session state = %s, want %s", s.State(), want)
}

func TestSession_ConnectAndSend_Delivered(t *testing.T) {
	link := newFakeLink()
	link.doneAfter = 200
	dialer := &fakeDialer{links: []*fakeLink{link}}
	rec := &stateRecorder{}
	s := New(testConfig(rec), dialer, nil)
	defer s.Close()

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if got := s.State(); got != domain.StateReady {
		t.Fatalf("state after connect = %s, want Ready", got)
	}

	if err := s.Send(context.Background(), testFrame(t, 200)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := s.State(); got != domain.StateReady {
		t.Errorf("state after send = %s, want Ready", got)
	}

	// hello + ceil(200/64) = 4 chunk writes
	if got := link.writeCount(); got != 5 {
		t.Errorf("write count = %d, want 5", got)
	}
	for _, st := range []domain.SessionState{
		domain.StateConnecting, domain.StateHandshaking,
		domain.StateSending, domain.StateAwaitingAck,
	} {
		if !rec.saw(st) {
			t.Errorf("never observed state %s", st)
		}
	}
}

func TestSession_Send_LongFrameProgressMarkers(t *testing.T) {
	// A 32x32 tile at the 20-byte fallback chunk size is 154 chunks, each
	// answered with a progress marker: far more notifications than the ack
	// queue holds at once. The terminal done marker must still be seen.
	const frameSize = 3080

	link := newFakeLink()
	link.chunkSize = 20
	link.progressMarkers = true
	link.doneAfter = frameSize
	dialer := &fakeDialer{links: []*fakeLink{link}}
	s := New(testConfig(nil), dialer, nil)
	defer s.Close()

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := s.Send(context.Background(), testFrame(t, frameSize)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := s.State(); got != domain.StateReady {
		t.Errorf("state after send = %s, want Ready", got)
	}
	// hello + ceil(3080/20) = 155 writes
	if got := link.writeCount(); got != 155 {
		t.Errorf("write count = %d, want 155", got)
	}
}

func TestSession_Send_AckTimeout(t *testing.T) {
	// First link swallows the frame silently; replacement handshakes fine.
	silent := newFakeLink()
	replacement := newFakeLink()
	dialer := &fakeDialer{links: []*fakeLink{silent, replacement}}
	rec := &stateRecorder{}
	s := New(testConfig(rec), dialer, nil)
	defer s.Close()

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	err := s.Send(context.Background(), testFrame(t, 100))
	if !errors.Is(err, domain.ErrAckTimeout) {
		t.Fatalf("Send error = %v, want ErrAckTimeout", err)
	}
	if domain.ReasonFor(err) != domain.ReasonTimeout {
		t.Errorf("reason = %s, want Timeout", domain.ReasonFor(err))
	}

	// The fault must trigger an automatic reconnect back to Ready.
	waitForState(t, s, domain.StateReady)
	if !rec.saw(domain.StateFaulted) {
		t.Error("never observed Faulted")
	}
	if dialer.dialCount() < 2 {
		t.Errorf("dial count = %d, want at least 2 (reconnect)", dialer.dialCount())
	}
}

func TestSession_Send_LinkDroppedMidStream(t *testing.T) {
	link := newFakeLink()
	link.failWriteAt = 3
	// All reconnect attempts fail: dials return no link.
	dialer := &fakeDialer{links: []*fakeLink{link, nil}}
	rec := &stateRecorder{}
	s := New(testConfig(rec), dialer, nil)
	defer s.Close()

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	err := s.Send(context.Background(), testFrame(t, 300))
	if !errors.Is(err, domain.ErrLinkDropped) {
		t.Fatalf("Send error = %v, want ErrLinkDropped", err)
	}
	if domain.ReasonFor(err) != domain.ReasonLinkDropped {
		t.Errorf("reason = %s, want LinkDropped", domain.ReasonFor(err))
	}

	// Bounded retries: budget of 2 then Disconnected, never forever.
	waitForState(t, s, domain.StateDisconnected)
	if got := dialer.dialCount(); got != 3 {
		t.Errorf("dial count = %d, want 3 (connect + 2 reconnect attempts)", got)
	}
	if got := rec.count(domain.StateConnecting); got < 2 {
		t.Errorf("observed %d Connecting transitions, want at least 2", got)
	}
}

func TestSession_Send_DeviceRejection(t *testing.T) {
	link := newFakeLink()
	link.errAfter = 2
	dialer := &fakeDialer{links: []*fakeLink{link, nil}}
	s := New(testConfig(nil), dialer, nil)
	defer s.Close()

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	err := s.Send(context.Background(), testFrame(t, 300))
	if !errors.Is(err, domain.ErrProtocolRejected) {
		t.Fatalf("Send error = %v, want ErrProtocolRejected", err)
	}
}

func TestSession_Send_WriteRejected(t *testing.T) {
	link := newFakeLink()
	link.rejectWriteAt = 1
	dialer := &fakeDialer{links: []*fakeLink{link, nil}}
	s := New(testConfig(nil), dialer, nil)
	defer s.Close()

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	err := s.Send(context.Background(), testFrame(t, 100))
	if !errors.Is(err, domain.ErrProtocolRejected) {
		t.Fatalf("Send error = %v, want ErrProtocolRejected", err)
	}
}

func TestSession_Send_NotReadyFailsFast(t *testing.T) {
	link := newFakeLink()
	dialer := &fakeDialer{links: []*fakeLink{link}}
	s := New(testConfig(nil), dialer, nil)
	defer s.Close()

	// Never connected: must fail fast without any BLE write.
	err := s.Send(context.Background(), testFrame(t, 100))
	if !errors.Is(err, domain.ErrSessionBusy) {
		t.Fatalf("Send error = %v, want ErrSessionBusy", err)
	}
	if dialer.dialCount() != 0 {
		t.Errorf("dial count = %d, want 0", dialer.dialCount())
	}
	if link.writeCount() != 0 {
		t.Errorf("write count = %d, want 0", link.writeCount())
	}
}

func TestSession_Send_Canceled(t *testing.T) {
	link := newFakeLink()
	dialer := &fakeDialer{links: []*fakeLink{link, nil}}
	rec := &stateRecorder{}
	s := New(testConfig(rec), dialer, nil)
	defer s.Close()

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Send(ctx, testFrame(t, 100))
	if !errors.Is(err, domain.ErrCanceled) {
		t.Fatalf("Send error = %v, want ErrCanceled", err)
	}
	if domain.ReasonFor(err) != domain.ReasonCanceled {
		t.Errorf("reason = %s, want Canceled", domain.ReasonFor(err))
	}
	// Cancellation leaves the session on the normal fault path, not in an
	// undefined intermediate state.
	if !rec.saw(domain.StateFaulted) {
		t.Error("never observed Faulted after cancellation")
	}
}

func TestSession_Connect_HandshakeSilence(t *testing.T) {
	link := newFakeLink()
	link.ackHandshake = false
	dialer := &fakeDialer{links: []*fakeLink{link}}
	s := New(testConfig(nil), dialer, nil)
	defer s.Close()

	err := s.Connect(context.Background())
	if !errors.Is(err, domain.ErrHandshake) {
		t.Fatalf("Connect error = %v, want ErrHandshake", err)
	}
	if got := s.State(); got != domain.StateDisconnected {
		t.Errorf("state = %s, want Disconnected", got)
	}
}

func TestSession_Connect_DialFailure(t *testing.T) {
	dialer := &fakeDialer{links: []*fakeLink{nil}}
	s := New(testConfig(nil), dialer, nil)
	defer s.Close()

	err := s.Connect(context.Background())
	if !errors.Is(err, domain.ErrLink) {
		t.Fatalf("Connect error = %v, want ErrLink", err)
	}
	if got := s.State(); got != domain.StateDisconnected {
		t.Errorf("state = %s, want Disconnected", got)
	}
}

func TestSession_CloseStopsReconnect(t *testing.T) {
	link := newFakeLink()
	link.failWriteAt = 1
	dialer := &fakeDialer{links: []*fakeLink{link, nil}}
	s := New(testConfig(nil), dialer, nil)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	_ = s.Send(context.Background(), testFrame(t, 100))
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if got := s.State(); got != domain.StateDisconnected {
		t.Errorf("state = %s, want Disconnected", got)
	}
	if err := s.Send(context.Background(), testFrame(t, 100)); !errors.Is(err, domain.ErrSessionClosed) {
		t.Errorf("Send after Close error = %v, want ErrSessionClosed", err)
	}
}
