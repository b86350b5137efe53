package session

import "sync"

// defaultHistorySize bounds the outbound History ring buffer at 64KB of
// raw frames, the same default the teacher's screen buffer used for
// terminal catchup.
const defaultHistorySize = 64 * 1024

// History keeps a rolling window of recently sent outbound frames for
// diagnostic replay — e.g. dumping exactly what was sent right before a
// counterparty disconnect. It is not consulted by the protocol itself:
// the only authoritative recovery path for missed messages is the
// ResendRequest(2)/backend.OnResendRequest round trip.
type History struct {
	mu   sync.Mutex
	data []byte
	max  int
}

// NewHistory returns an empty History capped at maxBytes.
func NewHistory(maxBytes int) *History {
	return &History{data: make([]byte, 0, maxBytes), max: maxBytes}
}

// Append adds frame to the window, trimming the oldest bytes if the
// buffer would exceed its cap.
func (h *History) Append(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.data = append(h.data, frame...)
	if len(h.data) > h.max {
		excess := len(h.data) - h.max
		copy(h.data, h.data[excess:])
		h.data = h.data[:h.max]
	}
}

// Bytes returns a copy of the currently retained window.
func (h *History) Bytes() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]byte, len(h.data))
	copy(out, h.data)
	return out
}

// Reset empties the window, e.g. on a fresh handshake.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.data = h.data[:0]
}
