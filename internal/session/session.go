// Package session owns one BLE connection to one physical panel: connect,
// handshake, chunked frame streaming, ack tracking, disconnect detection,
// and bounded reconnection.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kacper-serewis/Bk-Light-AppBypass/internal/domain"
	"github.com/kacper-serewis/Bk-Light-AppBypass/internal/ports"
	"github.com/kacper-serewis/Bk-Light-AppBypass/internal/protocol"
	"github.com/kacper-serewis/Bk-Light-AppBypass/pkg/log"
)

// ackBuffer bounds the notification queue per attempt. Send drains the
// queue after every chunk write, so it only has to absorb the markers the
// firmware emits between two writes; overflow is dropped rather than
// blocking the notify callback.
const ackBuffer = 64

// fallbackChunkSize is used when the link reports no usable MTU. 20 bytes is
// the ATT 3.0 default payload and always safe.
const fallbackChunkSize = 20

// Timeouts bound the three points that must never block indefinitely.
type Timeouts struct {
	Connect   time.Duration
	Handshake time.Duration
	Ack       time.Duration
}

// RetryPolicy governs the bounded reconnect loop after a fault.
type RetryPolicy struct {
	// MaxAttempts is the reconnect attempt budget after a fault.
	MaxAttempts int

	// InitialDelay and MaxDelay shape the exponential backoff between
	// attempts.
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Config assembles a session's identity and policies.
type Config struct {
	Identity domain.PanelIdentity
	Timeouts Timeouts
	Retry    RetryPolicy

	// ChunkCeiling caps the write payload size regardless of negotiated
	// MTU. The safe bound is firmware-specific; zero means MTU only.
	ChunkCeiling int

	// OnStateChange, if set, observes every state transition. Called
	// synchronously with the session lock held; must not call back in.
	OnStateChange func(previous, current domain.SessionState)
}

// Session reliably delivers encoded frames to one physical panel and
// reports a single terminal outcome per attempt. All exported methods are
// safe for concurrent use, but only one send can be outstanding: the
// protocol correlates acks by session identity only, so overlapping sends
// would be indistinguishable on the wire.
type Session struct {
	identity domain.PanelIdentity
	dialer   ports.LinkDialer
	logger   log.Logger
	timeouts Timeouts
	retry    RetryPolicy
	ceiling  int
	onState  func(previous, current domain.SessionState)

	lifeCtx    context.Context
	lifeCancel context.CancelFunc

	mu           sync.Mutex
	state        domain.SessionState
	link         ports.Link
	acks         chan domain.AckEvent
	reconnecting bool
	closed       bool
}

// New creates a session in Disconnected. Call Connect before Send.
func New(cfg Config, dialer ports.LinkDialer, logger log.Logger) *Session {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	lifeCtx, lifeCancel := context.WithCancel(context.Background())
	return &Session{
		identity:   cfg.Identity,
		dialer:     dialer,
		logger:     logger,
		timeouts:   cfg.Timeouts,
		retry:      cfg.Retry,
		ceiling:    cfg.ChunkCeiling,
		onState:    cfg.OnStateChange,
		lifeCtx:    lifeCtx,
		lifeCancel: lifeCancel,
		state:      domain.StateDisconnected,
	}
}

// Identity returns the panel this session drives.
func (s *Session) Identity() domain.PanelIdentity { return s.identity }

// State returns the current session state.
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect establishes the link and performs the handshake. Valid from
// Disconnected or Faulted; the caller may retry on failure.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}
	switch s.state {
	case domain.StateDisconnected, domain.StateFaulted:
	default:
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: connect while %s", domain.ErrSessionBusy, st)
	}
	s.transitionLocked(domain.StateConnecting)
	s.mu.Unlock()

	link, acks, err := s.establish(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.transitionLocked(domain.StateDisconnected)
		return err
	}
	if s.closed {
		link.Close()
		return domain.ErrSessionClosed
	}
	s.link = link
	s.acks = acks
	s.transitionLocked(domain.StateReady)
	return nil
}

// Send streams one encoded frame, waits for the completion marker, and
// returns nil on delivery. It fails fast with ErrSessionBusy when the
// session is not Ready; queuing is the caller's responsibility. Any fault
// leaves the session Faulted and kicks off the reconnect loop.
func (s *Session) Send(ctx context.Context, frame domain.EncodedFrame) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}
	if s.state != domain.StateReady {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: %s is %s, not Ready", domain.ErrSessionBusy, s.identity.Name, st)
	}
	s.transitionLocked(domain.StateSending)
	link := s.link
	acks := s.acks
	s.mu.Unlock()

	// Stale markers from a previous attempt must not satisfy this one.
	drain(acks)

	attempt := uuid.NewString()
	size := link.ChunkSize()
	if s.ceiling > 0 && size > s.ceiling {
		size = s.ceiling
	}
	if size <= 0 {
		size = fallbackChunkSize
	}

	chunks := protocol.Chunks(frame.Bytes(), size)
	s.logger.Debug("frame send started",
		log.String("panel", s.identity.Name),
		log.String("attempt", attempt),
		log.Int("bytes", frame.Len()),
		log.Int("chunks", len(chunks)),
		log.Int("chunk_size", size),
	)

	completed := false
	for i, chunk := range chunks {
		select {
		case <-ctx.Done():
			return s.fault(cancelErr(ctx.Err(), i, len(chunks)))
		case <-link.Done():
			return s.fault(fmt.Errorf("%w: before chunk %d/%d", domain.ErrLinkDropped, i+1, len(chunks)))
		default:
		}

		if err := link.Write(ctx, chunk); err != nil {
			if errors.Is(err, ports.ErrWriteRejected) {
				return s.fault(fmt.Errorf("%w: chunk %d/%d: %v", domain.ErrProtocolRejected, i+1, len(chunks), err))
			}
			if ctx.Err() != nil {
				return s.fault(cancelErr(ctx.Err(), i, len(chunks)))
			}
			return s.fault(fmt.Errorf("%w: chunk %d/%d: %v", domain.ErrLinkDropped, i+1, len(chunks), err))
		}

		// Consume markers as they arrive. A long frame produces one
		// progress marker per chunk; left queued until the final chunk
		// they would overflow the buffer and lose the terminal marker.
		done, err := s.drainProgress(acks, attempt)
		if err != nil {
			return s.fault(err)
		}
		if done {
			completed = true
		}
	}

	s.setState(domain.StateAwaitingAck)
	if !completed {
		if err := s.awaitCompletion(ctx, link, acks, attempt); err != nil {
			return s.fault(err)
		}
	}

	s.setState(domain.StateReady)
	s.logger.Info("frame delivered",
		log.String("panel", s.identity.Name),
		log.String("attempt", attempt),
		log.Int("bytes", frame.Len()),
	)
	return nil
}

// Close tears the session down for good. It never reconnects afterwards.
func (s *Session) Close() error {
	s.lifeCancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.link != nil {
		s.link.Close()
		s.link = nil
	}
	s.transitionLocked(domain.StateDisconnected)
	return nil
}

// establish dials the panel and performs the handshake. Returns the live
// link and its ack stream; the caller decides the resulting state.
func (s *Session) establish(ctx context.Context) (ports.Link, chan domain.AckEvent, error) {
	dialCtx, cancel := context.WithTimeout(ctx, s.timeouts.Connect)
	defer cancel()

	link, err := s.dialer.Dial(dialCtx, s.identity.Address)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: dial %s: %v", domain.ErrLink, s.identity.Address, err)
	}

	acks := make(chan domain.AckEvent, ackBuffer)
	if err := link.Subscribe(func(p []byte) {
		ev, ok := protocol.ParseAck(p)
		if !ok {
			return
		}
		select {
		case acks <- ev:
		default:
		}
	}); err != nil {
		link.Close()
		return nil, nil, fmt.Errorf("%w: subscribe %s: %v", domain.ErrLink, s.identity.Address, err)
	}

	s.setState(domain.StateHandshaking)
	if err := link.Write(ctx, protocol.Hello()); err != nil {
		link.Close()
		return nil, nil, fmt.Errorf("%w: hello write: %v", domain.ErrHandshake, err)
	}

	// The protocol has no negative-ack for the handshake; silence within
	// the timeout is the only failure signal.
	timer := time.NewTimer(s.timeouts.Handshake)
	defer timer.Stop()
	for {
		select {
		case ev := <-acks:
			if ev.Kind == domain.AckReady {
				s.logger.Debug("handshake complete", log.String("panel", s.identity.Name))
				return link, acks, nil
			}
		case <-timer.C:
			link.Close()
			return nil, nil, fmt.Errorf("%w: no ready marker within %s", domain.ErrHandshake, s.timeouts.Handshake)
		case <-link.Done():
			link.Close()
			return nil, nil, fmt.Errorf("%w: dropped during handshake", domain.ErrLink)
		case <-ctx.Done():
			link.Close()
			return nil, nil, fmt.Errorf("%w: %v", domain.ErrLink, ctx.Err())
		}
	}
}

// drainProgress consumes buffered markers without blocking. Returns true
// once the done marker has been seen, or an error when the device
// rejected the transfer.
func (s *Session) drainProgress(acks chan domain.AckEvent, attempt string) (bool, error) {
	for {
		select {
		case ev := <-acks:
			switch ev.Kind {
			case domain.AckDone:
				return true, nil
			case domain.AckError:
				return false, fmt.Errorf("%w: device error 0x%02x", domain.ErrProtocolRejected, ev.Code)
			case domain.AckProgress:
				s.logger.Debug("chunk acknowledged",
					log.String("panel", s.identity.Name),
					log.String("attempt", attempt),
					log.Int("chunk", ev.Chunk),
				)
			}
		default:
			return false, nil
		}
	}
}

// awaitCompletion waits for the done marker after the final chunk.
func (s *Session) awaitCompletion(ctx context.Context, link ports.Link, acks chan domain.AckEvent, attempt string) error {
	timer := time.NewTimer(s.timeouts.Ack)
	defer timer.Stop()

	for {
		select {
		case ev := <-acks:
			switch ev.Kind {
			case domain.AckDone:
				return nil
			case domain.AckError:
				return fmt.Errorf("%w: device error 0x%02x", domain.ErrProtocolRejected, ev.Code)
			case domain.AckProgress:
				s.logger.Debug("chunk acknowledged",
					log.String("panel", s.identity.Name),
					log.String("attempt", attempt),
					log.Int("chunk", ev.Chunk),
				)
			}
		case <-timer.C:
			return fmt.Errorf("%w: no completion within %s", domain.ErrAckTimeout, s.timeouts.Ack)
		case <-link.Done():
			return fmt.Errorf("%w: while awaiting ack", domain.ErrLinkDropped)
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", domain.ErrCanceled, ctx.Err())
		}
	}
}

// fault records a terminal send failure, closes the link, and starts the
// reconnect loop. Returns err unchanged so callers can propagate it.
func (s *Session) fault(err error) error {
	s.mu.Lock()
	s.transitionLocked(domain.StateFaulted)
	if s.link != nil {
		s.link.Close()
		s.link = nil
	}
	start := !s.reconnecting && !s.closed
	if start {
		s.reconnecting = true
	}
	s.mu.Unlock()

	s.logger.Warn("session faulted",
		log.String("panel", s.identity.Name),
		log.Err(err),
	)

	if start {
		go s.reconnectLoop()
	}
	return err
}

// reconnectLoop drives the bounded reconnect attempts after a fault. Exhausting
// the budget leaves the session Disconnected; it never retries forever.
func (s *Session) reconnectLoop() {
	defer func() {
		s.mu.Lock()
		s.reconnecting = false
		s.mu.Unlock()
	}()

	back := newBackoff(s.retry.InitialDelay, s.retry.MaxDelay)
	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		s.mu.Lock()
		if s.closed || s.state != domain.StateFaulted {
			s.mu.Unlock()
			return
		}
		s.transitionLocked(domain.StateConnecting)
		s.mu.Unlock()

		link, acks, err := s.establish(s.lifeCtx)
		if err == nil {
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				link.Close()
				return
			}
			s.link = link
			s.acks = acks
			s.transitionLocked(domain.StateReady)
			s.mu.Unlock()
			s.logger.Info("reconnected",
				log.String("panel", s.identity.Name),
				log.Int("attempt", attempt),
			)
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.transitionLocked(domain.StateFaulted)
		s.mu.Unlock()

		s.logger.Warn("reconnect attempt failed",
			log.String("panel", s.identity.Name),
			log.Int("attempt", attempt),
			log.Int("budget", s.retry.MaxAttempts),
			log.Err(err),
		)

		if attempt < s.retry.MaxAttempts && !back.Sleep(s.lifeCtx) {
			return
		}
	}

	s.mu.Lock()
	if !s.closed && s.state == domain.StateFaulted {
		s.transitionLocked(domain.StateDisconnected)
	}
	s.mu.Unlock()
	s.logger.Error("reconnect budget exhausted",
		log.String("panel", s.identity.Name),
		log.Int("budget", s.retry.MaxAttempts),
	)
}

func (s *Session) setState(next domain.SessionState) {
	s.mu.Lock()
	s.transitionLocked(next)
	s.mu.Unlock()
}

// transitionLocked records a state change. Caller holds s.mu.
func (s *Session) transitionLocked(next domain.SessionState) {
	if s.state == next {
		return
	}
	prev := s.state
	s.state = next
	if s.onState != nil {
		s.onState(prev, next)
	}
}

func cancelErr(cause error, chunk, total int) error {
	return fmt.Errorf("%w: at chunk %d/%d: %v", domain.ErrCanceled, chunk+1, total, cause)
}

func drain(acks chan domain.AckEvent) {
	for {
		select {
		case <-acks:
		default:
			return
		}
	}
}
