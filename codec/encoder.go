package codec

import "strconv"

// Builder accumulates fields for one outbound message and renders them to
// the tag-value wire format. It is the write-side counterpart to Decoder:
// callers append fields in the order they should appear on the wire, then
// call Encode to get the framed bytes (BeginString/BodyLength placeholder
// patched, CheckSum computed).
type Builder struct {
	sep     byte
	fields  []Field
}

// NewBuilder returns an empty Builder using sep as the field separator.
func NewBuilder(sep byte) *Builder {
	return &Builder{sep: sep}
}

// Set appends a tag=value field. Repeated calls with the same tag append
// repeated fields (FIX permits and sometimes requires repeating groups);
// callers needing "last write wins" semantics must track that themselves.
func (b *Builder) Set(tag int, value []byte) *Builder {
	b.fields = append(b.fields, Field{Tag: tag, Value: value})
	return b
}

// SetString is Set for a string value.
func (b *Builder) SetString(tag int, value string) *Builder {
	return b.Set(tag, []byte(value))
}

// SetInt is Set for a base-10 integer value.
func (b *Builder) SetInt(tag int, value int64) *Builder {
	return b.Set(tag, []byte(strconv.FormatInt(value, 10)))
}

// Encode renders the accumulated fields as a complete, framed FIX message:
// BeginString(8) and MsgType(35) as given, BodyLength(9) computed and
// zero-padded to 6 digits, CheckSum(10) computed as the modulo-256 byte
// sum of everything preceding it. beginString and msgType are written
// first and third as the standard header requires; any Set(8, ...) or
// Set(35, ...) calls are ignored in favor of the explicit arguments, since
// those two fields must never be duplicated or reordered by caller error.
func (b *Builder) Encode(beginString, msgType string) []byte {
	out := make([]byte, 0, 128)
	out = appendField(out, TagBeginString, []byte(beginString), b.sep)

	bodyLenPos := len(out)
	out = append(out, '9', '=')
	placeholderStart := len(out)
	out = append(out, '0', '0', '0', '0', '0', '0')
	out = append(out, b.sep)
	_ = bodyLenPos

	bodyStart := len(out)
	out = appendField(out, TagMsgType, []byte(msgType), b.sep)
	for _, f := range b.fields {
		if f.Tag == TagBeginString || f.Tag == TagMsgType {
			continue
		}
		out = appendField(out, f.Tag, f.Value, b.sep)
	}
	bodyLen := len(out) - bodyStart

	digits := strconv.Itoa(bodyLen)
	if len(digits) > 6 {
		// BodyLength exceeding 6 digits (≈1MB body) does not fit the
		// reserved placeholder; only the low 6 digits are written, so the
		// BodyLength of such a message is wrong.
		digits = digits[len(digits)-6:]
	}
	for i := 0; i < 6-len(digits); i++ {
		out[placeholderStart+i] = '0'
	}
	copy(out[placeholderStart+(6-len(digits)):], digits)

	sum := checksum(out)
	out = appendChecksumField(out, sum, b.sep)
	return out
}

func appendField(out []byte, tag int, value []byte, sep byte) []byte {
	out = strconv.AppendInt(out, int64(tag), 10)
	out = append(out, '=')
	out = append(out, value...)
	out = append(out, sep)
	return out
}
