// Package seqnum tracks the inbound and outbound MsgSeqNum(34) counters
// for one FIX session and classifies inbound sequence gaps.
package seqnum

// Classification is the result of validating an inbound MsgSeqNum against
// the expected next value.
type Classification int

const (
	// Ok means the inbound MsgSeqNum equals the expected next value.
	Ok Classification = iota
	// TooLow means the inbound MsgSeqNum is less than expected — a
	// protocol violation on which the session state machine sends Logout
	// and terminates. PossDupFlag(43) is not consulted.
	TooLow
	// Recover means the inbound MsgSeqNum is greater than expected: one
	// or more messages were missed and must be requested via
	// ResendRequest(2).
	Recover
)

// Tracker holds the next-expected inbound sequence number and the next
// outbound sequence number to assign, both starting at 1 per the FIX
// session-layer convention (sequence reset to an arbitrary value is the
// NewSeqNo(36)/SequenceReset(4) Non-goal — this tracker only ever
// increments).
type Tracker struct {
	nextInbound  uint64
	nextOutbound uint64
}

// New returns a Tracker with both counters starting at 1.
func New() *Tracker {
	return &Tracker{nextInbound: 1, nextOutbound: 1}
}

// NextInbound returns the sequence number expected on the next inbound
// message, without consuming it.
func (t *Tracker) NextInbound() uint64 { return t.nextInbound }

// NextOutbound returns the sequence number that will be assigned to the
// next outbound message, without consuming it.
func (t *Tracker) NextOutbound() uint64 { return t.nextOutbound }

// IncrInbound advances the inbound counter and returns the value that was
// just consumed (i.e. the value the message that triggered this call
// carried, assuming it matched NextInbound).
func (t *Tracker) IncrInbound() uint64 {
	v := t.nextInbound
	t.nextInbound++
	return v
}

// IncrOutbound advances the outbound counter and returns the value to
// stamp on the message being built.
func (t *Tracker) IncrOutbound() uint64 {
	v := t.nextOutbound
	t.nextOutbound++
	return v
}

// ValidateInbound classifies an inbound MsgSeqNum against NextInbound.
// It does not mutate the tracker — callers decide, based on the
// classification, whether and when to call IncrInbound (notably: a
// Recover classification must NOT advance the inbound counter, since the
// missing messages have not yet been supplied).
func (t *Tracker) ValidateInbound(seqNum uint64) Classification {
	switch {
	case seqNum == t.nextInbound:
		return Ok
	case seqNum < t.nextInbound:
		return TooLow
	default:
		return Recover
	}
}
