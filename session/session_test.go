package session

import (
	"bytes"
	"io"
	"testing"
	"time"

	"fixcore/codec"
	"fixcore/seqnum"
	"fixcore/verify"
)

type fakeBackend struct {
	logons     []codec.Message
	appMsgs    []codec.Message
	resends    [][2]uint64
	errors     []error
	inbound    []codec.Message
	inboundApp []bool
}

func (f *fakeBackend) OnLogon(msg codec.Message) error       { f.logons = append(f.logons, msg); return nil }
func (f *fakeBackend) OnSuccessfulHandshake()                 {}
func (f *fakeBackend) OnOutboundMessage(frame []byte)         {}
func (f *fakeBackend) OnApplicationMessage(msg codec.Message) { f.appMsgs = append(f.appMsgs, msg) }
func (f *fakeBackend) OnResendRequest(begin, end uint64)      { f.resends = append(f.resends, [2]uint64{begin, end}) }
func (f *fakeBackend) OnError(err error)                      { f.errors = append(f.errors, err) }
func (f *fakeBackend) OnInboundMessage(msg codec.Message, isApp bool) {
	f.inbound = append(f.inbound, msg)
	f.inboundApp = append(f.inboundApp, isApp)
}

func newTestSession(t *testing.T) (*Session, *fakeBackend) {
	t.Helper()
	cfg := Config{
		BeginString:         "FIX.4.4",
		SenderCompID:        "US",
		TargetCompID:        "THEM",
		Heartbeat:           30 * time.Second,
		VerifyTestIndicator: true,
		Environment:         verify.Environment{Production: true},
	}
	backend := &fakeBackend{}
	s := New("counterparty", cfg, backend, nil, Hooks{})
	s.seq = seqnum.New()
	s.seq.IncrInbound() // pretend inbound 1 already consumed by handshake Logon
	fixed := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	s.verifier.Now = func() time.Time { return fixed }
	return s, backend
}

func inboundMsg(t *testing.T, s *Session, msgType string, extra map[int]string) codec.Message {
	t.Helper()
	b := codec.NewBuilder(0x01)
	b.SetString(codec.TagSenderCompID, "THEM")
	b.SetString(codec.TagTargetCompID, "US")
	for tag, val := range extra {
		b.SetString(tag, val)
	}
	wire := b.Encode("FIX.4.4", msgType)

	dec := codec.NewDecoder(codec.NoDataFields{}, 0x01)
	n := copy(dec.Fillable(), wire)
	dec.AddBytesRead(n)
	ok, err := dec.TryParse()
	if err != nil || !ok {
		t.Fatalf("failed to build inbound message: ok=%v err=%v", ok, err)
	}
	return dec.Message()
}

func TestLogonHandshakeOrderIsConsumedBeforeDispatch(t *testing.T) {
	b := codec.NewBuilder(0x01)
	b.SetString(codec.TagSenderCompID, "THEM")
	b.SetString(codec.TagTargetCompID, "US")
	b.SetInt(codec.TagMsgSeqNum, 1)
	b.SetInt(codec.TagEncryptMethod, 0)
	b.SetInt(codec.TagHeartBtInt, 30)
	wire := b.Encode("FIX.4.4", codec.MsgTypeLogon)

	cfg := Config{BeginString: "FIX.4.4", SenderCompID: "US", TargetCompID: "THEM", Heartbeat: 30 * time.Second}
	backend := &fakeBackend{}
	transport := struct {
		io.Reader
		io.Writer
	}{bytes.NewReader(wire), io.Discard}
	s := New("counterparty", cfg, backend, transport, Hooks{})

	if err := s.readHandshakeLogon(); err != nil {
		t.Fatalf("handshake failed: %v", err)
	}
	if len(backend.logons) != 1 {
		t.Fatalf("OnLogon called %d times, want 1", len(backend.logons))
	}
	if s.seq.NextInbound() != 2 {
		t.Fatalf("NextInbound = %d, want 2 (handshake already consumed seq 1)", s.seq.NextInbound())
	}
}

func TestWrongTestMessageIndicatorProducesLogout(t *testing.T) {
	s, _ := newTestSession(t)
	msg := inboundMsg(t, s, codec.MsgTypeHeartbeat, map[int]string{
		codec.TagMsgSeqNum:            "2",
		codec.TagTestMessageIndicator: "Y",
	})

	resp, err := s.onInboundMessage(msg)
	if err == nil {
		t.Fatalf("expected an error")
	}
	if !resp.Terminate || resp.Kind != RespOutboundBytes {
		t.Fatalf("expected a terminating Logout response, got %+v", resp)
	}
}

func TestMissingMsgSeqNumProducesLogout(t *testing.T) {
	s, _ := newTestSession(t)
	b := codec.NewBuilder(0x01)
	b.SetString(codec.TagSenderCompID, "THEM")
	b.SetString(codec.TagTargetCompID, "US")
	wire := b.Encode("FIX.4.4", codec.MsgTypeHeartbeat)
	dec := codec.NewDecoder(codec.NoDataFields{}, 0x01)
	n := copy(dec.Fillable(), wire)
	dec.AddBytesRead(n)
	dec.TryParse()
	msg := dec.Message()

	resp, err := s.onInboundMessage(msg)
	if err == nil || !resp.Terminate {
		t.Fatalf("expected a terminating Logout response for missing MsgSeqNum, got resp=%+v err=%v", resp, err)
	}
}

func TestLowSeqNumProducesLogoutWithExpectedValue(t *testing.T) {
	s, _ := newTestSession(t)
	msg := inboundMsg(t, s, codec.MsgTypeHeartbeat, map[int]string{codec.TagMsgSeqNum: "1"})

	resp, err := s.onInboundMessage(msg)
	if err == nil || !resp.Terminate {
		t.Fatalf("expected terminating Logout for too-low seqnum")
	}

	dec := codec.NewDecoder(codec.NoDataFields{}, 0x01)
	n := copy(dec.Fillable(), resp.Bytes)
	dec.AddBytesRead(n)
	dec.TryParse()
	text, _ := dec.Message().Get(codec.TagText)
	if string(text) != "Invalid MsgSeqNum <34>, expected value 2" {
		t.Fatalf("Logout Text = %q, want the expected value 2 cited", text)
	}
}

func TestHighSeqNumProducesResendRequestWithoutAdvancingCounter(t *testing.T) {
	s, _ := newTestSession(t)
	msg := inboundMsg(t, s, codec.MsgTypeHeartbeat, map[int]string{codec.TagMsgSeqNum: "6"})

	resp, err := s.onInboundMessage(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Kind != RespOutboundBytes || resp.Terminate {
		t.Fatalf("expected a non-terminating ResendRequest response, got %+v", resp)
	}
	if s.seq.NextInbound() != 2 {
		t.Fatalf("NextInbound advanced to %d on Recover classification, must stay at 2 until resend arrives", s.seq.NextInbound())
	}

	dec := codec.NewDecoder(codec.NoDataFields{}, 0x01)
	n := copy(dec.Fillable(), resp.Bytes)
	dec.AddBytesRead(n)
	dec.TryParse()
	out := dec.Message()
	begin, _ := out.Get(codec.TagBeginSeqNo)
	end, _ := out.Get(codec.TagEndSeqNo)
	if string(begin) != "2" || string(end) != "5" {
		t.Fatalf("ResendRequest range = [%s,%s], want [2,5]", begin, end)
	}
}

func TestInaccurateSendingTimeProducesReject(t *testing.T) {
	s, _ := newTestSession(t)
	stale := s.now().Add(-10 * time.Second)
	msg := inboundMsg(t, s, codec.MsgTypeHeartbeat, map[int]string{
		codec.TagMsgSeqNum:   "2",
		codec.TagSendingTime: verify.FormatUTCTimestamp(stale),
	})

	resp, err := s.onInboundMessage(msg)
	if err == nil {
		t.Fatalf("expected an error for stale SendingTime")
	}
	if resp.Kind != RespOutboundBytes || resp.Terminate {
		t.Fatalf("expected a non-terminating Reject response, got %+v", resp)
	}

	dec := codec.NewDecoder(codec.NoDataFields{}, 0x01)
	n := copy(dec.Fillable(), resp.Bytes)
	dec.AddBytesRead(n)
	dec.TryParse()
	out := dec.Message()
	if string(out.MsgType) != codec.MsgTypeReject {
		t.Fatalf("MsgType = %q, want Reject", out.MsgType)
	}
	reason, _ := out.Get(codec.TagSessionRejectReason)
	if string(reason) != "10" {
		t.Fatalf("SessionRejectReason = %s, want 10", reason)
	}
	refSeq, _ := out.Get(codec.TagRefSeqNum)
	if string(refSeq) != "2" {
		t.Fatalf("RefSeqNum = %s, want 2", refSeq)
	}
	refTag, _ := out.Get(codec.TagRefTagID)
	if string(refTag) != "52" {
		t.Fatalf("RefTagID = %s, want 52", refTag)
	}
}

func TestTestRequestIsAnsweredWithHeartbeatNotAnotherTestRequest(t *testing.T) {
	s, _ := newTestSession(t)
	msg := inboundMsg(t, s, codec.MsgTypeTestRequest, map[int]string{
		codec.TagMsgSeqNum: "2",
		codec.TagTestReqID: "abc123",
	})

	resp, err := s.onInboundMessage(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Kind != RespOutboundBytes {
		t.Fatalf("expected an outbound reply")
	}

	dec := codec.NewDecoder(codec.NoDataFields{}, 0x01)
	n := copy(dec.Fillable(), resp.Bytes)
	dec.AddBytesRead(n)
	dec.TryParse()
	out := dec.Message()
	if string(out.MsgType) != codec.MsgTypeHeartbeat {
		t.Fatalf("MsgType = %q, want Heartbeat(0), not another TestRequest", out.MsgType)
	}
	echoed, ok := out.Get(codec.TagTestReqID)
	if !ok || string(echoed) != "abc123" {
		t.Fatalf("TestReqID = %q, ok=%v, want echoed value abc123", echoed, ok)
	}
}

func TestHeartbeatResetsLivenessButProducesNoReply(t *testing.T) {
	s, _ := newTestSession(t)
	msg := inboundMsg(t, s, codec.MsgTypeHeartbeat, map[int]string{codec.TagMsgSeqNum: "2"})

	resp, err := s.onInboundMessage(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Kind != RespNone || !resp.ResetHeartbeat {
		t.Fatalf("expected no reply but a liveness reset, got %+v", resp)
	}
}

func TestLogoutTerminatesWithNoReply(t *testing.T) {
	s, _ := newTestSession(t)
	msg := inboundMsg(t, s, codec.MsgTypeLogout, map[int]string{codec.TagMsgSeqNum: "2"})

	resp, err := s.onInboundMessage(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Terminate || resp.Kind != RespNone {
		t.Fatalf("expected a silent terminate, got %+v", resp)
	}
}

func TestApplicationMessageIsForwardedToBackend(t *testing.T) {
	s, backend := newTestSession(t)
	msg := inboundMsg(t, s, "D", map[int]string{codec.TagMsgSeqNum: "2"}) // NewOrderSingle

	_, err := s.onInboundMessage(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(backend.appMsgs) != 1 {
		t.Fatalf("expected 1 application message forwarded, got %d", len(backend.appMsgs))
	}
	if len(backend.inbound) != 1 || !backend.inboundApp[0] {
		t.Fatalf("expected OnInboundMessage called once with isApp=true, got inbound=%d app=%v", len(backend.inbound), backend.inboundApp)
	}
}

func TestAdministrativeMessageReachesOnInboundMessageButNotAsApp(t *testing.T) {
	s, backend := newTestSession(t)
	msg := inboundMsg(t, s, codec.MsgTypeHeartbeat, map[int]string{codec.TagMsgSeqNum: "2"})

	_, err := s.onInboundMessage(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(backend.inbound) != 1 || backend.inboundApp[0] {
		t.Fatalf("expected OnInboundMessage called once with isApp=false, got inbound=%d app=%v", len(backend.inbound), backend.inboundApp)
	}
}

func TestMismatchedBeginStringProducesTerminatingLogout(t *testing.T) {
	s, _ := newTestSession(t)
	b := codec.NewBuilder(0x01)
	b.SetString(codec.TagSenderCompID, "THEM")
	b.SetString(codec.TagTargetCompID, "US")
	b.SetInt(codec.TagMsgSeqNum, 2)
	wire := b.Encode("FIX.4.2", codec.MsgTypeHeartbeat) // session is configured for FIX.4.4
	dec := codec.NewDecoder(codec.NoDataFields{}, 0x01)
	n := copy(dec.Fillable(), wire)
	dec.AddBytesRead(n)
	dec.TryParse()
	msg := dec.Message()

	resp, err := s.onInboundMessage(msg)
	if err == nil || !resp.Terminate {
		t.Fatalf("expected a terminating Logout for mismatched BeginString, got resp=%+v err=%v", resp, err)
	}
}
