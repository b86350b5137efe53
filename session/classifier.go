package session

import (
	"regexp"
	"strings"
)

// ReasonClassifier recognizes known Logout/Reject Text(58) reasons so the
// Manager can log and count them distinctly (duplicate session,
// unsupported version, business reject) instead of treating every
// teardown identically. Configurable patterns plus a small built-in
// fallback list, the same two-tier shape the teacher used to recognize
// BIOS reboot banners in raw console text.
type ReasonClassifier struct {
	patterns []*regexp.Regexp
}

// NewReasonClassifier compiles extraPatterns (case-insensitive substring
// matches) in addition to the built-in fallback patterns.
func NewReasonClassifier(extraPatterns []string) *ReasonClassifier {
	rc := &ReasonClassifier{patterns: make([]*regexp.Regexp, 0, len(extraPatterns))}
	for _, p := range extraPatterns {
		if re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(p)); err == nil {
			rc.patterns = append(rc.patterns, re)
		}
	}
	return rc
}

var builtinReasonPatterns = []string{
	"MsgSeqNum too low",
	"Invalid MsgSeqNum",
	"Missing mandatory field",
	"TestMessageIndicator",
	"Bad SendingTime",
	"already logged on",
}

// Classify reports whether text matches any known teardown/reject reason.
func (rc *ReasonClassifier) Classify(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range builtinReasonPatterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	for _, p := range rc.patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
