package verify

import (
	"testing"
	"time"
)

func TestVerifyBeginStringMismatch(t *testing.T) {
	c := NewChecker("FIX.4.4", Environment{}, true)
	if err := c.VerifyBeginString("FIX.4.2"); err == nil {
		t.Fatalf("expected an error for mismatched BeginString")
	}
}

func TestVerifyTestMessageIndicatorProductionRejectsY(t *testing.T) {
	c := NewChecker("FIX.4.4", Environment{Production: true}, true)
	err := c.VerifyTestMessageIndicator([]byte("Y"), true)
	if err == nil {
		t.Fatalf("expected rejection of TestMessageIndicator=Y in production")
	}
}

func TestVerifyTestMessageIndicatorProductionAllowTest(t *testing.T) {
	c := NewChecker("FIX.4.4", Environment{Production: true, AllowTest: true}, true)
	if err := c.VerifyTestMessageIndicator([]byte("Y"), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVerifyTestMessageIndicatorMissingAlwaysOk(t *testing.T) {
	c := NewChecker("FIX.4.4", Environment{Production: true}, true)
	if err := c.VerifyTestMessageIndicator(nil, false); err != nil {
		t.Fatalf("unexpected error for absent field: %v", err)
	}
}

func TestVerifyTestMessageIndicatorTestingEnvironmentRejectsN(t *testing.T) {
	c := NewChecker("FIX.4.4", Environment{Production: false}, true)
	if err := c.VerifyTestMessageIndicator([]byte("N"), true); err == nil {
		t.Fatalf("expected rejection of TestMessageIndicator=N in a testing environment")
	}
}

func TestVerifyTestMessageIndicatorProductionAcceptsN(t *testing.T) {
	c := NewChecker("FIX.4.4", Environment{Production: true}, true)
	if err := c.VerifyTestMessageIndicator([]byte("N"), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVerifySendingTimeWithinTolerance(t *testing.T) {
	c := NewChecker("FIX.4.4", Environment{}, true)
	fixed := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	c.Now = func() time.Time { return fixed }
	if err := c.VerifySendingTime([]byte(FormatUTCTimestamp(fixed))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVerifySendingTimeStale(t *testing.T) {
	c := NewChecker("FIX.4.4", Environment{}, true)
	fixed := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	c.Now = func() time.Time { return fixed }
	stale := fixed.Add(-5 * time.Second)
	if err := c.VerifySendingTime([]byte(FormatUTCTimestamp(stale))); err == nil {
		t.Fatalf("expected an error for a stale SendingTime")
	}
}
