// Package verify implements the session-layer content checks applied to
// every inbound message before it is dispatched: BeginString equality,
// the TestMessageIndicator(464) environment rule, and SendingTime(52)
// freshness.
package verify

import (
	"fmt"
	"time"
)

// Environment describes which side of the Testing/Production line a
// session configuration sits on, and — for Production — whether inbound
// messages carrying TestMessageIndicator(464)=Y are nonetheless accepted.
// Mirrors the Testing/Production{allow_test} distinction from the session
// configuration model.
type Environment struct {
	Production bool
	AllowTest  bool
}

// Checker implements the three verification predicates. It is stateless
// apart from the session-invariant configuration it closes over, and safe
// for concurrent use (though in practice a session uses one from a single
// goroutine).
type Checker struct {
	BeginString       string
	Env               Environment
	VerifyTestIndicator bool
	Now               func() time.Time
	MaxClockSkew      time.Duration
}

// NewChecker returns a Checker with Now defaulting to time.Now and
// MaxClockSkew defaulting to 1 second, matching the SendingTime tolerance
// named in the session design.
func NewChecker(beginString string, env Environment, verifyTestIndicator bool) *Checker {
	return &Checker{
		BeginString:         beginString,
		Env:                 env,
		VerifyTestIndicator: verifyTestIndicator,
		Now:                 time.Now,
		MaxClockSkew:        time.Second,
	}
}

// VerifyBeginString checks that an inbound BeginString(8) matches the
// session's configured FIX version exactly.
func (c *Checker) VerifyBeginString(got string) error {
	if got != c.BeginString {
		return fmt.Errorf("BeginString mismatch: got %q, want %q", got, c.BeginString)
	}
	return nil
}

// VerifyTestMessageIndicator checks TestMessageIndicator(464) against the
// session's environment. A missing field is always acceptable. When
// VerifyTestIndicator is false the check is skipped entirely (some
// counterparties never set the field and requiring it would be
// incompatible).
//
//   - value "Y" is accepted only in a Testing environment, or a
//     Production environment with AllowTest set.
//   - value "N" is accepted only in a Production environment.
func (c *Checker) VerifyTestMessageIndicator(value []byte, present bool) error {
	if !c.VerifyTestIndicator || !present {
		return nil
	}
	switch string(value) {
	case "Y":
		if c.Env.Production && !c.Env.AllowTest {
			return fmt.Errorf("TestMessageIndicator(464) was set to 'Y' but the environment is a production environment")
		}
		return nil
	case "N":
		if c.Env.Production {
			return nil
		}
		return fmt.Errorf("TestMessageIndicator(464) was set to 'N' but the environment is a testing environment")
	default:
		return fmt.Errorf("TestMessageIndicator(464) has invalid value %q", value)
	}
}

// VerifySendingTime checks that an inbound SendingTime(52), parsed as a
// FIX UTCTimestamp, is within MaxClockSkew of Now.
func (c *Checker) VerifySendingTime(value []byte) error {
	t, err := ParseUTCTimestamp(string(value))
	if err != nil {
		return fmt.Errorf("SendingTime: %w", err)
	}
	now := c.Now()
	diff := now.Sub(t)
	if diff < 0 {
		diff = -diff
	}
	if diff > c.MaxClockSkew {
		return fmt.Errorf("SendingTime %s is %s from local clock, exceeds tolerance of %s", t, diff, c.MaxClockSkew)
	}
	return nil
}

// layouts are tried in order; FIX UTCTimestamp may or may not carry
// millisecond precision.
var utcLayouts = []string{
	"20060102-15:04:05.000",
	"20060102-15:04:05",
}

// ParseUTCTimestamp parses a FIX UTCTimestamp value (e.g.
// "20260731-00:00:00.000") as UTC.
func ParseUTCTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range utcLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

// FormatUTCTimestamp renders t as a FIX UTCTimestamp with millisecond
// precision, as used when building outbound SendingTime(52) fields.
func FormatUTCTimestamp(t time.Time) string {
	return t.UTC().Format("20060102-15:04:05.000")
}
