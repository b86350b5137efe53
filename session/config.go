package session

import (
	"time"

	"fixcore/verify"
)

// Config is the immutable configuration for one FIX session. It is
// resolved once, at session construction, and never mutated for the
// lifetime of a running Session — a config change always means stopping
// the session and starting a new one with the new Config (see
// fixconfig.Watcher, which republishes Config values for the *next*
// session the Manager starts).
type Config struct {
	BeginString  string
	SenderCompID string
	TargetCompID string

	// Heartbeat is the base interval; TestRequest fires at 2x and Logout
	// at 3x, per the FIX session-layer convention.
	Heartbeat time.Duration

	Environment         verify.Environment
	VerifyTestIndicator bool

	// Separator is the field-separator byte. Production FIX always uses
	// SOH (0x01); anything else exists so tests and debug tooling can use
	// a printable stand-in.
	Separator byte
}

// sep returns c.Separator, defaulting to SOH when unset.
func (c Config) sep() byte {
	if c.Separator == 0 {
		return 0x01
	}
	return c.Separator
}
