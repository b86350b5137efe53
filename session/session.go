// Package session implements the FIX session-layer state machine: the
// Logon handshake, the inbound dispatch pipeline (TestMessageIndicator →
// MsgSeqNum classification → SendingTime → MsgType dispatch), and the
// administrative message builders, driven by the eventloop package's
// low-level event loop.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fixcore/codec"
	"fixcore/eventloop"
	"fixcore/seqnum"
	"fixcore/verify"
)

// State is the session's position in the Initial → AwaitingLogon →
// Established → LoggingOut/Dead state chart.
type State int

const (
	StateInitial State = iota
	StateAwaitingLogon
	StateEstablished
	StateLoggingOut
	StateDead
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateAwaitingLogon:
		return "awaiting_logon"
	case StateEstablished:
		return "established"
	case StateLoggingOut:
		return "logging_out"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Hooks are optional observers a Session reports traffic to beyond the
// required Backend. Both may be nil.
type Hooks struct {
	Audit   OutboundInboundRecorder
	Metrics Counter
}

// OutboundInboundRecorder is satisfied by audit.Writer.
type OutboundInboundRecorder interface {
	RecordOutbound(sessionName string, frame []byte)
	RecordInbound(sessionName string, frame []byte)
}

// Counter is satisfied by metrics.Session. A Session calls
// IncMessagesOutbound, IncMessagesInbound, IncHeartbeatsSent and
// IncTestRequestsSent; it does not call IncResendRequestsSent,
// IncRejectsSent or IncLogouts, so those counters are not incremented by
// a Session's traffic.
type Counter interface {
	IncMessagesOutbound()
	IncMessagesInbound()
	IncHeartbeatsSent()
	IncTestRequestsSent()
	IncResendRequestsSent()
	IncRejectsSent()
	IncLogouts()
}

// Session is one FIX session-layer state machine instance, identified by
// a UUID the way the distilled connection type was.
type Session struct {
	UUID uuid.UUID
	Name string // the counterparty/session label used for audit and metrics

	cfg       Config
	sep       byte
	backend   Backend
	transport Transport
	verifier  *verify.Checker
	seq       *seqnum.Tracker
	dec       *codec.Decoder
	loop      *eventloop.EventLoop
	history   *History

	hooks Hooks

	state State
	now   func() time.Time
}

// New constructs a Session in state Initial. The transport is not dialed
// or read from until Start is called.
func New(name string, cfg Config, backend Backend, transport Transport, hooks Hooks) *Session {
	sep := cfg.sep()
	return &Session{
		UUID:      uuid.New(),
		Name:      name,
		cfg:       cfg,
		sep:       sep,
		backend:   backend,
		transport: transport,
		verifier:  verify.NewChecker(cfg.BeginString, cfg.Environment, cfg.VerifyTestIndicator),
		seq:       seqnum.New(),
		dec:       codec.NewDecoder(codec.NoDataFields{}, sep),
		history:   NewHistory(defaultHistorySize),
		hooks:     hooks,
		state:     StateInitial,
		now:       time.Now,
	}
}

// State returns the session's current position in the state chart.
func (s *Session) State() State { return s.state }

// History returns the ring buffer of recently sent outbound frames, kept
// for diagnostic replay. It is not a substitute for a ResendRequest(2)
// round trip, which remains the only authoritative recovery path.
func (s *Session) History() *History { return s.history }

// Start performs the Logon handshake — send our Logon, block for the
// counterparty's Logon — then runs the event loop until the session
// terminates (Logout, a fatal protocol error, or ctx cancellation).
func (s *Session) Start(ctx context.Context) error {
	s.state = StateAwaitingLogon

	logon := s.buildLogon()
	if err := s.writeFrame(logon); err != nil {
		return ioError(err)
	}

	if err := s.readHandshakeLogon(); err != nil {
		return err
	}

	s.backend.OnSuccessfulHandshake()
	s.state = StateEstablished

	s.loop = eventloop.New(s.transport, s.dec, s.cfg.Heartbeat)
	return s.runEventLoop(ctx)
}

// readHandshakeLogon blocks, reading directly off the transport, until a
// complete Logon(A) message has been decoded — mirroring the distilled
// source's establish_connection, which reads exact-size chunks via the
// same fillable/add_bytes_read/try_parse cycle the steady-state loop uses,
// just without racing it against the liveness timers yet.
func (s *Session) readHandshakeLogon() error {
	for {
		dst := s.dec.Fillable()
		n, err := s.transport.Read(dst)
		if err != nil {
			return ioError(fmt.Errorf("handshake: %w", err))
		}
		s.dec.AddBytesRead(n)
		if s.dec.NumBytesRead() < s.dec.NumBytesRequired() {
			continue
		}
		ok, err := s.dec.TryParse()
		if err != nil {
			return protocolError(fmt.Errorf("handshake: %w", err))
		}
		if !ok {
			continue
		}
		break
	}

	msg := s.dec.Message()
	if string(msg.MsgType) != codec.MsgTypeLogon {
		s.dec.Clear()
		return protocolError(fmt.Errorf("expected Logon(A), got MsgType %q", msg.MsgType))
	}
	if err := s.backend.OnLogon(msg); err != nil {
		s.dec.Clear()
		return backendError(err)
	}
	s.dec.Clear()
	s.seq.IncrInbound()
	return nil
}

// runEventLoop is the steady-state Established loop: it handles each event
// surfaced by the eventloop package (decoded messages and liveness timers)
// until ctx is canceled, writing any reply the dispatch path produces. The
// event-producing goroutine it starts exits on its own once the loop is no
// longer alive (BadMessage, IOError, or Logout), or, after runEventLoop has
// returned, as soon as its next event is ready.
func (s *Session) runEventLoop(ctx context.Context) error {
	events := make(chan eventloop.Event)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for s.loop.Alive() {
			select {
			case events <- s.loop.NextEvent():
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev := <-events:
			switch ev.Kind {
			case eventloop.KindMessage:
				s.recordInbound(ev.Message.Raw)
				resp, err := s.onInboundMessage(ev.Message)
				if err != nil {
					s.backend.OnError(err)
				}
				if resp.ResetHeartbeat {
					s.loop.PingHeartbeat()
				}
				if resp.Kind == RespOutboundBytes {
					if werr := s.writeFrame(resp.Bytes); werr != nil {
						return ioError(werr)
					}
				}
				if resp.Terminate {
					s.state = StateDead
					return nil
				}

			case eventloop.KindHeartbeat:
				frame := s.buildHeartbeat(nil)
				if err := s.writeFrame(frame); err != nil {
					return ioError(err)
				}
				if s.hooks.Metrics != nil {
					s.hooks.Metrics.IncHeartbeatsSent()
				}

			case eventloop.KindTestRequest:
				frame := s.buildTestRequest(s.UUID.String())
				if err := s.writeFrame(frame); err != nil {
					return ioError(err)
				}
				if s.hooks.Metrics != nil {
					s.hooks.Metrics.IncTestRequestsSent()
				}

			case eventloop.KindLogout:
				s.state = StateDead
				frame := s.buildLogout("Hard heartbeat tolerance exceeded")
				_ = s.writeFrame(frame) // best effort: counterparty is presumed unreachable
				return protocolError(fmt.Errorf("hard heartbeat tolerance exceeded, no traffic from %s", s.cfg.TargetCompID))

			case eventloop.KindBadMessage:
				s.state = StateDead
				s.backend.OnError(ev.Err)
				return protocolError(ev.Err)

			case eventloop.KindIOError:
				s.state = StateDead
				return ioError(ev.Err)
			}
		}
	}
}

func (s *Session) writeFrame(frame []byte) error {
	if _, err := s.transport.Write(frame); err != nil {
		return err
	}
	s.backend.OnOutboundMessage(frame)
	s.history.Append(frame)
	if s.hooks.Audit != nil {
		s.hooks.Audit.RecordOutbound(s.Name, frame)
	}
	if s.hooks.Metrics != nil {
		s.hooks.Metrics.IncMessagesOutbound()
	}
	return nil
}

func (s *Session) recordInbound(frame []byte) {
	if s.hooks.Audit != nil {
		s.hooks.Audit.RecordInbound(s.Name, frame)
	}
	if s.hooks.Metrics != nil {
		s.hooks.Metrics.IncMessagesInbound()
	}
}
