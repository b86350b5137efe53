package seqnum

import "testing"

func TestValidateInboundOk(t *testing.T) {
	tr := New()
	if got := tr.ValidateInbound(1); got != Ok {
		t.Fatalf("got %v, want Ok", got)
	}
}

func TestValidateInboundTooLow(t *testing.T) {
	tr := New()
	tr.IncrInbound() // consumes 1, next is 2
	if got := tr.ValidateInbound(1); got != TooLow {
		t.Fatalf("got %v, want TooLow", got)
	}
}

func TestValidateInboundRecover(t *testing.T) {
	tr := New()
	if got := tr.ValidateInbound(5); got != Recover {
		t.Fatalf("got %v, want Recover", got)
	}
}

func TestRecoverDoesNotAdvanceUntilExplicit(t *testing.T) {
	tr := New()
	tr.ValidateInbound(5)
	if tr.NextInbound() != 1 {
		t.Fatalf("NextInbound changed to %d from a ValidateInbound call alone", tr.NextInbound())
	}
}

func TestOutboundIncrements(t *testing.T) {
	tr := New()
	if v := tr.IncrOutbound(); v != 1 {
		t.Fatalf("first outbound = %d, want 1", v)
	}
	if v := tr.IncrOutbound(); v != 2 {
		t.Fatalf("second outbound = %d, want 2", v)
	}
}
