// Package eventloop implements the single-threaded, cooperative low-level
// event loop that drives one FIX session: it races incoming bytes against
// three liveness timers (heartbeat, soft tolerance, hard tolerance) and
// surfaces exactly one event per call, mirroring the teacher's
// goroutine-plus-channel read/keepalive loops but replacing their
// deadline-polling with Go's timer/select idiom — the closest fit for the
// suspend-on-any-of-N-futures shape the original async event loop used.
package eventloop

import (
	"fmt"
	"io"
	"time"

	"fixcore/codec"
)

// Kind identifies which of the low-level events fired.
type Kind int

const (
	// KindMessage is a fully decoded, framed message ready for dispatch.
	KindMessage Kind = iota
	// KindBadMessage is a framing/checksum error; the loop is no longer
	// alive after this fires.
	KindBadMessage
	// KindIOError is a transport read error; the loop is no longer alive
	// after this fires.
	KindIOError
	// KindHeartbeat is the heartbeat-interval timer: the session should
	// send Heartbeat(0).
	KindHeartbeat
	// KindTestRequest is the soft-tolerance timer (2x heartbeat since the
	// last inbound reset): the session should send TestRequest(1).
	KindTestRequest
	// KindLogout is the hard-tolerance timer (3x heartbeat since the last
	// inbound reset): the counterparty is presumed dead; the session
	// should send Logout(5) and terminate. The loop is no longer alive
	// after this fires.
	KindLogout
)

func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "Message"
	case KindBadMessage:
		return "BadMessage"
	case KindIOError:
		return "IOError"
	case KindHeartbeat:
		return "Heartbeat"
	case KindTestRequest:
		return "TestRequest"
	case KindLogout:
		return "Logout"
	default:
		return "Unknown"
	}
}

// Event is the single value NextEvent produces per call, per the
// at-most-one-event invariant.
type Event struct {
	Kind    Kind
	Message codec.Message
	Err     error
}

type chunk struct {
	data []byte
	err  error
}

// EventLoop races a decoder fed by a background reader goroutine against
// the heartbeat/soft-tolerance/hard-tolerance timers. It is not safe for
// concurrent use of NextEvent from more than one goroutine, but the
// reader goroutine it owns runs independently and is safe to leave
// blocked in Read when the loop itself is torn down (it exits on the
// next read error or EOF).
type EventLoop struct {
	dec *codec.Decoder

	heartbeat     time.Duration
	softTolerance time.Duration
	hardTolerance time.Duration

	lastReset     time.Time
	lastHeartbeat time.Time
	alive         bool
	pendingClear  bool

	readCh chan chunk
	now    func() time.Time
}

// New returns an EventLoop reading from r, decoding with dec, and using
// heartbeat as the base interval (soft tolerance fires at 2x, hard
// tolerance at 3x, matching the FIX convention the session design
// specifies).
func New(r io.Reader, dec *codec.Decoder, heartbeat time.Duration) *EventLoop {
	el := &EventLoop{
		dec:           dec,
		heartbeat:     heartbeat,
		softTolerance: heartbeat * 2,
		hardTolerance: heartbeat * 3,
		alive:         true,
		readCh:        make(chan chunk, 8),
		now:           time.Now,
	}
	el.lastReset = el.now()
	el.lastHeartbeat = el.now()
	go el.readLoop(r)
	return el
}

// readLoop is the teacher's readLoop shape (go-sol's payload.go): a
// goroutine that blocks on Read and forwards whatever it gets over a
// channel, so the event loop's select can race it against timers without
// either side needing non-blocking I/O.
func (el *EventLoop) readLoop(r io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			cp := make([]byte, n)
			copy(cp, buf[:n])
			el.readCh <- chunk{data: cp}
		}
		if err != nil {
			el.readCh <- chunk{err: err}
			return
		}
	}
}

// Alive reports whether the loop can still usefully be called — false
// after a BadMessage, IOError, or Logout event.
func (el *EventLoop) Alive() bool { return el.alive }

// PingHeartbeat resets the soft/hard tolerance clock to now. The session
// calls this whenever any inbound message (not just Heartbeat) is
// successfully processed, per the FIX convention that any traffic counts
// as proof of life.
func (el *EventLoop) PingHeartbeat() {
	el.lastReset = el.now()
}

// NextEvent blocks until exactly one event is ready: a decoded message, a
// framing error, an I/O error, or one of the three timers. It must not be
// called again after an event with Kind BadMessage, IOError, or Logout.
func (el *EventLoop) NextEvent() Event {
	if el.pendingClear {
		el.dec.Clear()
		el.pendingClear = false
	}

	for {
		now := el.now()
		heartbeatTimer := time.NewTimer(maxDuration(el.lastHeartbeat.Add(el.heartbeat).Sub(now), 0))
		softTimer := time.NewTimer(maxDuration(el.lastReset.Add(el.softTolerance).Sub(now), 0))
		hardTimer := time.NewTimer(maxDuration(el.lastReset.Add(el.hardTolerance).Sub(now), 0))

		select {
		case c := <-el.readCh:
			heartbeatTimer.Stop()
			softTimer.Stop()
			hardTimer.Stop()

			if c.err != nil {
				el.alive = false
				return Event{Kind: KindIOError, Err: fmt.Errorf("event loop read: %w", c.err)}
			}

			dst := el.dec.Reserve(len(c.data))
			copy(dst, c.data)
			el.dec.AddBytesRead(len(c.data))

			if el.dec.NumBytesRead() < el.dec.NumBytesRequired() {
				continue
			}
			ok, err := el.dec.TryParse()
			if err != nil {
				el.alive = false
				return Event{Kind: KindBadMessage, Err: err}
			}
			if !ok {
				continue
			}
			el.pendingClear = true
			return Event{Kind: KindMessage, Message: el.dec.Message()}

		case <-heartbeatTimer.C:
			softTimer.Stop()
			hardTimer.Stop()
			el.lastHeartbeat = el.now()
			return Event{Kind: KindHeartbeat}

		case <-softTimer.C:
			heartbeatTimer.Stop()
			hardTimer.Stop()
			return Event{Kind: KindTestRequest}

		case <-hardTimer.C:
			heartbeatTimer.Stop()
			softTimer.Stop()
			el.alive = false
			return Event{Kind: KindLogout}
		}
	}
}

func maxDuration(d, floor time.Duration) time.Duration {
	if d < floor {
		return floor
	}
	return d
}
