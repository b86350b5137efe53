package codec

import (
	"bytes"
	"testing"
)

func buildLogon(t *testing.T) []byte {
	t.Helper()
	b := NewBuilder(0x01)
	b.SetString(TagSenderCompID, "BUYER")
	b.SetString(TagTargetCompID, "SELLER")
	b.SetInt(TagMsgSeqNum, 1)
	b.SetString(TagSendingTime, "20260731-00:00:00.000")
	b.SetInt(TagEncryptMethod, 0)
	b.SetInt(TagHeartBtInt, 30)
	return b.Encode("FIX.4.4", MsgTypeLogon)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	wire := buildLogon(t)

	dec := NewDecoder(NoDataFields{}, 0x01)
	n := copy(dec.Fillable(), wire)
	dec.AddBytesRead(n)

	ok, err := dec.TryParse()
	if err != nil {
		t.Fatalf("TryParse error: %v", err)
	}
	if !ok {
		t.Fatalf("TryParse not ready with full message buffered")
	}

	msg := dec.Message()
	if string(msg.MsgType) != MsgTypeLogon {
		t.Fatalf("MsgType = %q, want %q", msg.MsgType, MsgTypeLogon)
	}
	if sender, ok := msg.Get(TagSenderCompID); !ok || string(sender) != "BUYER" {
		t.Fatalf("SenderCompID = %q, %v", sender, ok)
	}
	if msg.RawLen != len(wire) {
		t.Fatalf("RawLen = %d, want %d", msg.RawLen, len(wire))
	}
}

func TestBodyLengthIsZeroPaddedToSixDigits(t *testing.T) {
	wire := buildLogon(t)
	// Field 2 must be "9=NNNNNN" — exactly 6 digits between '=' and the separator.
	start := bytes.IndexByte(wire, 0x01) + 1
	if !bytes.HasPrefix(wire[start:], []byte("9=")) {
		t.Fatalf("expected BodyLength field second, got %q", wire[start:start+10])
	}
	valStart := start + 2
	sep := bytes.IndexByte(wire[valStart:], 0x01)
	if sep != 6 {
		t.Fatalf("BodyLength value is %d bytes, want exactly 6 (zero-padded)", sep)
	}
}

func TestChecksumIsComputedNotHardcoded(t *testing.T) {
	wire := buildLogon(t)
	last := bytes.LastIndexByte(wire[:len(wire)-1], 0x01)
	trailer := wire[last+1:]
	if !bytes.HasPrefix(trailer, []byte("10=")) {
		t.Fatalf("expected CheckSum field last, got %q", trailer)
	}
	checksumFieldStart := bytes.LastIndex(wire, []byte("10="))
	want := checksum(wire[:checksumFieldStart])
	gotDigits := trailer[3 : len(trailer)-1]
	if string(gotDigits) != string(formatChecksum(want)) {
		t.Fatalf("CheckSum = %s, want %s (computed modulo-256 sum)", gotDigits, formatChecksum(want))
	}
}

func TestTryParseWaitsForMoreBytesOnPartialHeader(t *testing.T) {
	wire := buildLogon(t)
	dec := NewDecoder(NoDataFields{}, 0x01)

	n := copy(dec.Fillable(), wire[:5])
	dec.AddBytesRead(n)
	ok, err := dec.TryParse()
	if err != nil || ok {
		t.Fatalf("expected incomplete parse, got ok=%v err=%v", ok, err)
	}
}

func TestTryParseSplitAcrossManyReads(t *testing.T) {
	wire := buildLogon(t)
	dec := NewDecoder(NoDataFields{}, 0x01)

	for i := 0; i < len(wire); i++ {
		n := copy(dec.Fillable(), wire[i:i+1])
		dec.AddBytesRead(n)
		ok, err := dec.TryParse()
		if err != nil {
			t.Fatalf("TryParse error at byte %d: %v", i, err)
		}
		if ok && i != len(wire)-1 {
			t.Fatalf("TryParse reported ready after only %d/%d bytes", i+1, len(wire))
		}
	}
	ok, err := dec.TryParse()
	if err != nil || !ok {
		t.Fatalf("expected complete parse after all bytes, ok=%v err=%v", ok, err)
	}
}

func TestInvalidStandardHeaderOrder(t *testing.T) {
	b := NewBuilder(0x01)
	wire := b.Encode("FIX.4.4", MsgTypeLogon)
	// Corrupt: rename the BodyLength(9) tag to 99 so the second field is no
	// longer BodyLength.
	mangled := bytes.Replace(wire, []byte("9="), []byte("99="), 1)

	dec := NewDecoder(NoDataFields{}, 0x01)
	n := copy(dec.Fillable(), mangled)
	dec.AddBytesRead(n)
	_, err := dec.TryParse()
	if err == nil {
		t.Fatalf("expected an error for a mangled header")
	}
}

func TestChecksumMismatchDetected(t *testing.T) {
	wire := buildLogon(t)
	corrupt := append([]byte{}, wire...)
	// Flip a byte inside the body without touching the framing fields.
	idx := bytes.Index(corrupt, []byte("BUYER"))
	corrupt[idx] = 'X'

	dec := NewDecoder(NoDataFields{}, 0x01)
	n := copy(dec.Fillable(), corrupt)
	dec.AddBytesRead(n)
	_, err := dec.TryParse()
	if err != ErrChecksumMismatch {
		t.Fatalf("got err=%v, want ErrChecksumMismatch", err)
	}
}

func TestClearResetsForNextMessage(t *testing.T) {
	wire := buildLogon(t)
	dec := NewDecoder(NoDataFields{}, 0x01)
	n := copy(dec.Fillable(), append(append([]byte{}, wire...), wire...))
	dec.AddBytesRead(n)

	ok, err := dec.TryParse()
	if err != nil || !ok {
		t.Fatalf("first parse failed: ok=%v err=%v", ok, err)
	}
	dec.Clear()

	ok, err = dec.TryParse()
	if err != nil || !ok {
		t.Fatalf("second (pipelined) parse failed: ok=%v err=%v", ok, err)
	}
	if string(dec.Message().MsgType) != MsgTypeLogon {
		t.Fatalf("second message MsgType wrong")
	}
}
