package session

import (
	"fmt"

	"fixcore/codec"
	"fixcore/seqnum"
)

// ResponseKind tells the driving loop what to do with the result of
// dispatching one inbound message.
type ResponseKind int

const (
	// RespNone means nothing needs to be written to the transport.
	RespNone ResponseKind = iota
	// RespOutboundBytes means Bytes holds an already-framed message to
	// write.
	RespOutboundBytes
)

// Response is returned by onInboundMessage. ResetHeartbeat is set on any
// response to a message that counts as proof of the counterparty being
// alive — which is any successfully processed inbound message, not only
// Heartbeat(0) itself — so the driving loop can call the event loop's
// PingHeartbeat. Terminate is set when the session must close (a Logout
// was sent or received).
type Response struct {
	Kind          ResponseKind
	Bytes         []byte
	ResetHeartbeat bool
	Terminate     bool
}

// onInboundMessage implements the mandatory dispatch order: verify
// BeginString, then TestMessageIndicator, then MsgSeqNum presence and classification
// (incrementing the inbound counter only on a direct match), then verify
// SendingTime, then dispatch by MsgType.
func (s *Session) onInboundMessage(msg codec.Message) (Response, error) {
	if err := s.verifier.VerifyBeginString(string(msg.BeginStr)); err != nil {
		return s.terminatingLogout(err.Error()), protocolError(err)
	}

	tmi, present := msg.Get(codec.TagTestMessageIndicator)
	if err := s.verifier.VerifyTestMessageIndicator(tmi, present); err != nil {
		return s.terminatingLogout(err.Error()), protocolError(err)
	}

	rawSeq, present := msg.Get(codec.TagMsgSeqNum)
	if !present {
		err := fmt.Errorf("missing mandatory field MsgSeqNum(34)")
		return s.terminatingLogout("Missing mandatory field MsgSeqNum(34)"), protocolError(err)
	}
	n, perr := parseSeqNum(rawSeq)
	if perr != nil {
		return s.terminatingLogout("Missing mandatory field MsgSeqNum(34)"), protocolError(perr)
	}

	switch s.seq.ValidateInbound(n) {
	case seqnum.TooLow:
		text := fmt.Sprintf("Invalid MsgSeqNum <34>, expected value %d", s.seq.NextInbound())
		return s.terminatingLogout(text), protocolError(fmt.Errorf("%s", text))
	case seqnum.Recover:
		// Deliberately does NOT call s.seq.IncrInbound(): the inbound
		// counter only advances once the missing messages have actually
		// been supplied via the resend the counterparty sends back.
		begin := s.seq.NextInbound()
		end := n - 1
		return Response{Kind: RespOutboundBytes, Bytes: s.buildResendRequest(begin, end)}, nil
	default: // seqnum.Ok
		s.seq.IncrInbound()
	}

	if sendingTime, ok := msg.Get(codec.TagSendingTime); ok {
		if err := s.verifier.VerifySendingTime(sendingTime); err != nil {
			resp := Response{
				Kind: RespOutboundBytes,
				Bytes: s.buildReject(n, codec.TagSendingTime, string(msg.MsgType), sessionRejectReasonBadSendingTime, "Bad SendingTime"),
				ResetHeartbeat: true,
			}
			return resp, backendError(err)
		}
	}

	s.backend.OnInboundMessage(msg, !isAdministrativeMsgType(string(msg.MsgType)))

	return s.dispatchByMsgType(msg)
}

// isAdministrativeMsgType reports whether msgType is one of the five
// messages this session layer fully handles itself — Logon is
// deliberately excluded here: a mid-stream Logon is reported to the
// backend as an application-visible event (see dispatchByMsgType), not
// handled internally, so it counts as "app" for observability purposes.
func isAdministrativeMsgType(msgType string) bool {
	switch msgType {
	case codec.MsgTypeHeartbeat, codec.MsgTypeTestRequest, codec.MsgTypeResendRequest, codec.MsgTypeReject, codec.MsgTypeLogout:
		return true
	default:
		return false
	}
}

func (s *Session) dispatchByMsgType(msg codec.Message) (Response, error) {
	switch string(msg.MsgType) {
	case codec.MsgTypeHeartbeat:
		return Response{Kind: RespNone, ResetHeartbeat: true}, nil

	case codec.MsgTypeTestRequest:
		testReqID, err := testReqIDFrom(msg)
		if err != nil {
			return Response{Kind: RespNone, ResetHeartbeat: true}, protocolError(err)
		}
		// Corrected reply: Heartbeat(0) echoing TestReqID(112), not a
		// second TestRequest(1) — the distilled source built this reply
		// with MsgType "1", which would never satisfy the counterparty's
		// own test-request timer.
		return Response{Kind: RespOutboundBytes, Bytes: s.buildHeartbeat([]byte(testReqID)), ResetHeartbeat: true}, nil

	case codec.MsgTypeResendRequest:
		begin, end := parseResendRange(msg)
		s.backend.OnResendRequest(begin, end)
		return Response{Kind: RespNone, ResetHeartbeat: true}, nil

	case codec.MsgTypeReject:
		text, _ := msg.Get(codec.TagText)
		return Response{Kind: RespNone, ResetHeartbeat: true}, backendError(fmt.Errorf("received Reject: %s", text))

	case codec.MsgTypeLogout:
		return Response{Kind: RespNone, ResetHeartbeat: true, Terminate: true}, nil

	case codec.MsgTypeLogon:
		// An inbound Logon outside the handshake (e.g. the counterparty
		// re-logging on) is reported to the backend like any other
		// application-visible event; the session layer does not
		// re-negotiate mid-stream.
		s.backend.OnApplicationMessage(msg)
		return Response{Kind: RespNone, ResetHeartbeat: true}, nil

	default:
		s.backend.OnApplicationMessage(msg)
		return Response{Kind: RespNone, ResetHeartbeat: true}, nil
	}
}

func (s *Session) terminatingLogout(text string) Response {
	return Response{Kind: RespOutboundBytes, Bytes: s.buildLogout(text), Terminate: true}
}

func parseSeqNum(b []byte) (uint64, error) {
	if len(b) == 0 {
		return 0, fmt.Errorf("empty MsgSeqNum")
	}
	var n uint64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("non-digit MsgSeqNum byte %q", c)
		}
		n = n*10 + uint64(c-'0')
	}
	return n, nil
}

func parseResendRange(msg codec.Message) (begin, end uint64) {
	if b, ok := msg.Get(codec.TagBeginSeqNo); ok {
		begin, _ = parseSeqNum(b)
	}
	if e, ok := msg.Get(codec.TagEndSeqNo); ok {
		end, _ = parseSeqNum(e)
	}
	return begin, end
}
