package session

import (
	"fmt"
	"time"

	"fixcore/codec"
	"fixcore/verify"
)

// Canonical administrative field order: SenderCompID(49), TargetCompID(56),
// MsgSeqNum(34), message-specific fields, SendingTime(52), then Text(58)
// last when present. BeginString(8) and MsgType(35) are supplied directly
// to Builder.Encode and always come first and third on the wire.

func (s *Session) buildLogon() []byte {
	b := codec.NewBuilder(s.sep)
	b.SetString(codec.TagSenderCompID, s.cfg.SenderCompID)
	b.SetString(codec.TagTargetCompID, s.cfg.TargetCompID)
	b.SetInt(codec.TagMsgSeqNum, int64(s.seq.IncrOutbound()))
	b.SetInt(codec.TagEncryptMethod, 0)
	b.SetInt(codec.TagHeartBtInt, int64(s.cfg.Heartbeat/time.Second))
	b.SetString(codec.TagSendingTime, verify.FormatUTCTimestamp(s.now()))
	return b.Encode(s.cfg.BeginString, codec.MsgTypeLogon)
}

func (s *Session) buildHeartbeat(testReqID []byte) []byte {
	b := codec.NewBuilder(s.sep)
	b.SetString(codec.TagSenderCompID, s.cfg.SenderCompID)
	b.SetString(codec.TagTargetCompID, s.cfg.TargetCompID)
	b.SetInt(codec.TagMsgSeqNum, int64(s.seq.IncrOutbound()))
	if len(testReqID) > 0 {
		b.Set(codec.TagTestReqID, testReqID)
	}
	b.SetString(codec.TagSendingTime, verify.FormatUTCTimestamp(s.now()))
	return b.Encode(s.cfg.BeginString, codec.MsgTypeHeartbeat)
}

func (s *Session) buildTestRequest(testReqID string) []byte {
	b := codec.NewBuilder(s.sep)
	b.SetString(codec.TagSenderCompID, s.cfg.SenderCompID)
	b.SetString(codec.TagTargetCompID, s.cfg.TargetCompID)
	b.SetInt(codec.TagMsgSeqNum, int64(s.seq.IncrOutbound()))
	b.SetString(codec.TagTestReqID, testReqID)
	b.SetString(codec.TagSendingTime, verify.FormatUTCTimestamp(s.now()))
	return b.Encode(s.cfg.BeginString, codec.MsgTypeTestRequest)
}

// buildLogout follows the corrected canonical field order — Sender,
// Target, MsgSeqNum, SendingTime, Text last — rather than the
// Sender/Target/MsgSeqNum/Text/SendingTime order the distilled source
// used, which put Text ahead of SendingTime.
func (s *Session) buildLogout(text string) []byte {
	b := codec.NewBuilder(s.sep)
	b.SetString(codec.TagSenderCompID, s.cfg.SenderCompID)
	b.SetString(codec.TagTargetCompID, s.cfg.TargetCompID)
	b.SetInt(codec.TagMsgSeqNum, int64(s.seq.IncrOutbound()))
	b.SetString(codec.TagSendingTime, verify.FormatUTCTimestamp(s.now()))
	if text != "" {
		b.SetString(codec.TagText, text)
	}
	return b.Encode(s.cfg.BeginString, codec.MsgTypeLogout)
}

// buildReject's field order after MsgSeqNum is RefSeqNum(45), RefTagID(371),
// RefMsgType(372), SessionRejectReason(373) — the order the referenced
// message's own MsgSeqNum (refSeqNum) must carry so the counterparty can
// tell which inbound message is being rejected.
func (s *Session) buildReject(refSeqNum uint64, refTagID int, refMsgType string, reason int, text string) []byte {
	b := codec.NewBuilder(s.sep)
	b.SetString(codec.TagSenderCompID, s.cfg.SenderCompID)
	b.SetString(codec.TagTargetCompID, s.cfg.TargetCompID)
	b.SetInt(codec.TagMsgSeqNum, int64(s.seq.IncrOutbound()))
	b.SetInt(codec.TagRefSeqNum, int64(refSeqNum))
	b.SetInt(codec.TagRefTagID, int64(refTagID))
	b.SetString(codec.TagRefMsgType, refMsgType)
	b.SetInt(codec.TagSessionRejectReason, int64(reason))
	b.SetString(codec.TagSendingTime, verify.FormatUTCTimestamp(s.now()))
	if text != "" {
		b.SetString(codec.TagText, text)
	}
	return b.Encode(s.cfg.BeginString, codec.MsgTypeReject)
}

func (s *Session) buildResendRequest(begin, end uint64) []byte {
	b := codec.NewBuilder(s.sep)
	b.SetString(codec.TagSenderCompID, s.cfg.SenderCompID)
	b.SetString(codec.TagTargetCompID, s.cfg.TargetCompID)
	b.SetInt(codec.TagMsgSeqNum, int64(s.seq.IncrOutbound()))
	b.SetInt(codec.TagBeginSeqNo, int64(begin))
	b.SetInt(codec.TagEndSeqNo, int64(end))
	b.SetString(codec.TagSendingTime, verify.FormatUTCTimestamp(s.now()))
	return b.Encode(s.cfg.BeginString, codec.MsgTypeResendRequest)
}

// SessionRejectReason values used by the verifier's Reject path.
// Reason 10 ("SendingTime accuracy problem") is the only one this engine
// produces itself; the rest of the FIX enumeration belongs to the
// application/dictionary layer.
const sessionRejectReasonBadSendingTime = 10

func testReqIDFrom(msg codec.Message) (string, error) {
	v, ok := msg.Get(codec.TagTestReqID)
	if !ok {
		return "", fmt.Errorf("TestRequest(1) missing mandatory TestReqID(112)")
	}
	return string(v), nil
}
