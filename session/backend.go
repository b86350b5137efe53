package session

import (
	"io"

	"fixcore/codec"
)

// Backend is the application-layer collaborator a Session reports to and
// is driven by. The core session engine never interprets application
// (non-administrative) message content — it only frames, sequences, and
// verifies. Backend is the seam the rest of a trading system plugs into.
type Backend interface {
	// OnLogon is called once, during the handshake, with the
	// counterparty's Logon(A) message.  Returning an error aborts the
	// handshake.
	OnLogon(msg codec.Message) error

	// OnSuccessfulHandshake is called once the Logon exchange has
	// completed and the session has moved to Established.
	OnSuccessfulHandshake()

	// OnOutboundMessage is called after every frame this session writes
	// to the transport, administrative or application, for audit/metrics
	// purposes.
	OnOutboundMessage(frame []byte)

	// OnApplicationMessage is called for every inbound message whose
	// MsgType is not one this session dispatches itself.
	OnApplicationMessage(msg codec.Message)

	// OnInboundMessage is called for every inbound frame that clears
	// verification and sequence-number classification, administrative or
	// application alike (isApp distinguishes the two) — the single
	// observability hook for "this frame was accepted", independent of
	// OnApplicationMessage's narrower "this frame is application data"
	// role.
	OnInboundMessage(msg codec.Message, isApp bool)

	// OnResendRequest is called when the counterparty requests a replay
	// of messages in [begin, end] (end == 0 means "through the most
	// recent"). Actually resending application messages is outside the
	// session layer's scope — it is the backend's job, since only the
	// backend has access to the application message store.
	OnResendRequest(begin, end uint64)

	// OnError is called for any protocol-level problem the session
	// detects but does not necessarily terminate on (bad SendingTime,
	// handshake failures reported before teardown, etc).
	OnError(err error)
}

// Transport is the byte stream a Session reads from and writes to. Any
// io.ReadWriter works; dialing, TLS, and reconnection policy are the
// caller's responsibility — the session layer only ever sees a live
// stream.
type Transport interface {
	io.ReadWriter
}
