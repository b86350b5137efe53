package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidStandardHeader is returned when the first three fields are
	// not BeginString(8), BodyLength(9), MsgType(35) in that order.
	ErrInvalidStandardHeader = errors.New("codec: first three fields must be BeginString, BodyLength, MsgType")
	// ErrInvalidStandardTrailer is returned when the last parsed field is
	// not CheckSum(10).
	ErrInvalidStandardTrailer = errors.New("codec: last field must be CheckSum")
	// ErrChecksumMismatch is returned when the trailing CheckSum field
	// doesn't match the computed modulo-256 sum.
	ErrChecksumMismatch = errors.New("codec: checksum mismatch")
	// ErrMalformedField is returned for a field missing '=' or its
	// terminating separator within the bytes available.
	ErrMalformedField = errors.New("codec: malformed field")
)

const headerProbeBytes = 2 // minimum growth step while locating the first 3 fields

// Message is a read-only view over one decoded FIX message. It borrows its
// Fields from the Decoder's internal buffer and is only valid until the
// next call to Decoder.Clear or Decoder.AddBytesRead — callers that need a
// field's value past that point must copy it.
type Message struct {
	Fields   []Field
	MsgType  []byte
	BeginStr []byte
	RawLen   int    // total bytes this message occupied on the wire
	Raw      []byte // the exact wire bytes for this message, same lifetime as Fields
}

// Get returns the value of the first field with the given tag, or
// (nil, false) if absent.
func (m Message) Get(tag int) ([]byte, bool) {
	for _, f := range m.Fields {
		if f.Tag == tag {
			return f.Value, true
		}
	}
	return nil, false
}

type parseState int

const (
	stateHeader parseState = iota
	stateBody
	stateDone
)

// Decoder incrementally reassembles tag-value FIX messages from a byte
// stream that may arrive in arbitrarily small chunks. The caller drives it:
//
//	for {
//	    n, err := conn.Read(dec.Fillable())
//	    dec.AddBytesRead(n)
//	    ok, err := dec.TryParse()
//	    if ok { use dec.Message(); dec.Clear() }
//	}
//
// A Decoder is not safe for concurrent use; each session owns one.
type Decoder struct {
	dict Dictionary
	sep  byte

	buf      []byte
	filled   int
	required int

	state      parseState
	fields     []Field
	bodyLen    int
	headerEnd  int // offset just past BodyLength(9)'s separator
	totalLen   int // full message length once known (0 until computed)
}

// NewDecoder returns a Decoder using dict to resolve Length/Data field
// coupling and sep as the field separator (SOH in production FIX, but
// configurable so tests and the JSON/pipe-delimited debugging aids the
// teacher's console tooling favors can use a printable stand-in).
func NewDecoder(dict Dictionary, sep byte) *Decoder {
	if dict == nil {
		dict = NoDataFields{}
	}
	return &Decoder{
		dict:     dict,
		sep:      sep,
		buf:      make([]byte, 4096),
		required: headerProbeBytes,
	}
}

// Fillable returns the slice the caller should read into next. It grows the
// internal buffer as needed to satisfy NumBytesRequired.
func (d *Decoder) Fillable() []byte {
	need := d.required
	if need < d.filled+1 {
		need = d.filled + 1
	}
	if need > len(d.buf) {
		grown := make([]byte, need*2)
		copy(grown, d.buf[:d.filled])
		d.buf = grown
	}
	return d.buf[d.filled:]
}

// Reserve returns a slice of exactly n bytes to write into, growing the
// internal buffer if needed, independent of NumBytesRequired. Used by
// callers (such as the event loop) that receive data in chunks of a size
// not chosen by the Decoder itself.
func (d *Decoder) Reserve(n int) []byte {
	need := d.filled + n
	if need > len(d.buf) {
		grown := make([]byte, need*2)
		copy(grown, d.buf[:d.filled])
		d.buf = grown
	}
	return d.buf[d.filled : d.filled+n]
}

// AddBytesRead records that n more bytes were written into the slice
// returned by the most recent Fillable call. Invalidates any Message
// returned by a prior Message call.
func (d *Decoder) AddBytesRead(n int) {
	d.filled += n
}

// NumBytesRead returns the number of buffered-but-not-yet-cleared bytes.
func (d *Decoder) NumBytesRead() int { return d.filled }

// NumBytesRequired returns the minimum buffer size TryParse needs to make
// further progress. Equal to NumBytesRead when no more information is
// needed to know the requirement (e.g. waiting on arbitrary body bytes).
func (d *Decoder) NumBytesRequired() int { return d.required }

// TryParse attempts to parse one complete message out of the buffered
// bytes. It returns (true, nil) when Message is ready, (false, nil) when
// more bytes are needed (NumBytesRequired has been updated), and
// (false, err) on a framing error — the caller should treat the connection
// as no longer reliable and typically terminate the session.
func (d *Decoder) TryParse() (bool, error) {
	if d.state == stateDone {
		return true, nil
	}

	if d.headerEnd == 0 {
		ok, err := d.scanHeader()
		if err != nil || !ok {
			return false, err
		}
	}

	if d.totalLen == 0 {
		return false, nil
	}
	if d.filled < d.totalLen {
		d.required = d.totalLen
		return false, nil
	}

	if err := d.scanBody(); err != nil {
		return false, err
	}

	d.state = stateDone
	return true, nil
}

// scanHeader locates and validates BeginString(8), BodyLength(9),
// MsgType(35) in strict order, then computes the total wire length of the
// message from BodyLength's value. BodyLength counts bytes starting
// immediately after BodyLength(9)'s own separator (i.e. MsgType(35)
// onward) through the byte before CheckSum(10)'s tag, matching the
// encoder's bodyStart anchor in encoder.go — it must NOT be anchored at
// the offset after MsgType(35) has also been scanned, which would count
// the MsgType field twice.
func (d *Decoder) scanHeader() (bool, error) {
	off := 0
	var got []Field
	var bodyStart int
	for len(got) < 3 {
		f, next, ok := d.scanOneField(off)
		if !ok {
			d.required = d.filled + headerProbeBytes
			return false, nil
		}
		got = append(got, f)
		if len(got) == 2 {
			bodyStart = next // offset immediately after BodyLength(9)'s separator
		}
		off = next
	}
	if got[0].Tag != TagBeginString || got[1].Tag != TagBodyLength || got[2].Tag != TagMsgType {
		return false, ErrInvalidStandardHeader
	}
	bodyLen, err := parseUint(got[1].Value)
	if err != nil {
		return false, fmt.Errorf("%w: BodyLength: %v", ErrInvalidStandardHeader, err)
	}
	d.fields = got
	d.bodyLen = bodyLen
	d.headerEnd = off
	d.totalLen = bodyStart + bodyLen + 7 // "10=" + 3 digits + separator
	if d.filled < d.totalLen {
		d.required = d.totalLen
		return false, nil
	}
	return true, nil
}

// scanBody parses the remaining fields between headerEnd and the trailing
// CheckSum field, validates the trailer, and checks the checksum.
func (d *Decoder) scanBody() error {
	off := d.headerEnd
	checksumFieldStart := d.totalLen - 7
	for off < checksumFieldStart {
		f, next, ok := d.scanDataAwareField(off, checksumFieldStart)
		if !ok {
			return ErrMalformedField
		}
		d.fields = append(d.fields, f)
		off = next
	}

	trailer, next, ok := d.scanOneField(off)
	if !ok || next != d.totalLen {
		return ErrInvalidStandardTrailer
	}
	if trailer.Tag != TagCheckSum {
		return ErrInvalidStandardTrailer
	}
	want, err := parseUint(trailer.Value)
	if err != nil || want > 255 {
		return ErrInvalidStandardTrailer
	}
	got := int(checksum(d.buf[:checksumFieldStart]))
	if got != want {
		return ErrChecksumMismatch
	}
	d.fields = append(d.fields, trailer)
	return nil
}

// scanOneField parses a single tag=value<sep> token starting at off.
func (d *Decoder) scanOneField(off int) (Field, int, bool) {
	eq := indexByte(d.buf[off:d.filled], '=')
	if eq < 0 {
		return Field{}, 0, false
	}
	tagStart, tagEnd := off, off+eq
	tag, err := parseUint(d.buf[tagStart:tagEnd])
	if err != nil {
		return Field{}, 0, false
	}
	valStart := tagEnd + 1
	sepIdx := indexByte(d.buf[valStart:d.filled], d.sep)
	if sepIdx < 0 {
		return Field{}, 0, false
	}
	valEnd := valStart + sepIdx
	return Field{Tag: tag, Value: d.buf[valStart:valEnd]}, valEnd + 1, true
}

// scanDataAwareField is like scanOneField but consults the Dictionary: if
// the immediately preceding field was a Length field coupled to this tag,
// it reads exactly that many raw bytes for the value instead of scanning
// for the separator, since Data fields may legitimately contain the
// separator byte.
func (d *Decoder) scanDataAwareField(off, limit int) (Field, int, bool) {
	eq := indexByte(d.buf[off:min(d.filled, limit)], '=')
	if eq < 0 {
		return Field{}, 0, false
	}
	tag, err := parseUint(d.buf[off : off+eq])
	if err != nil {
		return Field{}, 0, false
	}
	valStart := off + eq + 1

	if n, isData := d.pendingDataLength(tag); isData {
		valEnd := valStart + n
		if valEnd >= min(d.filled, limit) || d.buf[valEnd] != d.sep {
			return Field{}, 0, false
		}
		return Field{Tag: tag, Value: d.buf[valStart:valEnd]}, valEnd + 1, true
	}

	sepIdx := indexByte(d.buf[valStart:min(d.filled, limit)], d.sep)
	if sepIdx < 0 {
		return Field{}, 0, false
	}
	valEnd := valStart + sepIdx
	return Field{Tag: tag, Value: d.buf[valStart:valEnd]}, valEnd + 1, true
}

// pendingDataLength reports whether the immediately-preceding parsed field
// was a Length field coupled (via the Dictionary) to tag, and if so the
// exact byte count its Data value occupies.
func (d *Decoder) pendingDataLength(tag int) (n int, ok bool) {
	if len(d.fields) == 0 {
		return 0, false
	}
	prev := d.fields[len(d.fields)-1]
	dataTag, isLenField := d.dict.DataTagFor(prev.Tag)
	if !isLenField || dataTag != tag {
		return 0, false
	}
	v, err := parseUint(prev.Value)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Message returns the most recently parsed message. Valid only between a
// TryParse that returned (true, nil) and the following Clear.
func (d *Decoder) Message() Message {
	var beginStr, msgType []byte
	for _, f := range d.fields {
		switch f.Tag {
		case TagBeginString:
			beginStr = f.Value
		case TagMsgType:
			msgType = f.Value
		}
	}
	return Message{
		Fields:   d.fields,
		MsgType:  msgType,
		BeginStr: beginStr,
		RawLen:   d.totalLen,
		Raw:      d.buf[:d.totalLen],
	}
}

// Clear discards the current message and any buffered bytes belonging to
// it, sliding any bytes read past it (the start of the next message, in
// the pipelined case) to the front of the buffer. Invalidates any prior
// Message view.
func (d *Decoder) Clear() {
	leftover := d.filled - d.totalLen
	if leftover > 0 {
		copy(d.buf, d.buf[d.totalLen:d.filled])
	}
	d.filled = leftover
	d.fields = nil
	d.bodyLen = 0
	d.headerEnd = 0
	d.totalLen = 0
	d.state = stateHeader
	d.required = headerProbeBytes
	if d.filled > 0 {
		// already-buffered pipelined bytes count toward satisfying the
		// next header scan immediately.
		d.required = d.filled + headerProbeBytes
	}
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func parseUint(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, fmt.Errorf("empty integer field")
	}
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("non-digit byte %q", c)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
