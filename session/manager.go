package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Dialer establishes the Transport for one connection attempt. Retried
// with backoff by Manager.runSession on failure, the same shape as the
// teacher's per-server SOL dial function.
type Dialer func(ctx context.Context) (Transport, error)

// Event is the notification type delivered to Manager.Subscribe channels
// by Manager.broadcast. Sessions started by the Manager do not call
// broadcast, so their traffic produces no Events.
type Event struct {
	Name      string
	Direction string // "inbound" or "outbound"
	Frame     []byte
}

type entry struct {
	name         string
	cfg          Config
	connected    bool
	lastError    string
	lastActivity time.Time
	cancel       context.CancelFunc
	session      *Session
}

// Manager supervises many concurrently running Sessions, each against a
// different counterparty, with exponential-backoff reconnection and
// periodic health checks — generalized from the teacher's sol.Manager,
// which did the same for many concurrent SOL-over-RMCP+ sessions.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*entry
	subMu       sync.RWMutex
	subscribers map[string][]chan Event
}

// NewManager returns an empty Manager and starts its background health
// check loop.
func NewManager() *Manager {
	m := &Manager{
		sessions:    make(map[string]*entry),
		subscribers: make(map[string][]chan Event),
	}
	go m.healthCheck()
	return m
}

// StartSession begins supervising a session under name, replacing any
// existing one with that name. backend and hooks are shared across
// reconnect attempts; a fresh Session (and fresh UUID) is created for
// each successful dial.
func (m *Manager) StartSession(name string, dial Dialer, cfg Config, backend Backend, hooks Hooks) {
	m.mu.Lock()
	if existing, ok := m.sessions[name]; ok && existing.cancel != nil {
		existing.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &entry{name: name, cfg: cfg, cancel: cancel}
	m.sessions[name] = e
	m.mu.Unlock()

	go m.runSession(ctx, e, dial, backend, hooks)
}

// StopSession cancels and removes the named session.
func (m *Manager) StopSession(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[name]; ok {
		if e.cancel != nil {
			e.cancel()
		}
		delete(m.sessions, name)
	}
}

// RestartSession stops and immediately restarts the named session with
// the Config it was last started with and the given dialer, backend and
// hooks.
func (m *Manager) RestartSession(name string, dial Dialer, backend Backend, hooks Hooks) {
	m.mu.RLock()
	e, ok := m.sessions[name]
	m.mu.RUnlock()
	if !ok {
		return
	}
	cfg := e.cfg
	m.StopSession(name)
	m.StartSession(name, dial, cfg, backend, hooks)
}

// GetSession returns the live Session for name, or nil if not currently
// connected.
func (m *Manager) GetSession(name string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[name]
	if !ok || !e.connected {
		return nil
	}
	return e.session
}

// Subscribe returns a channel that receives the Events broadcast for
// name; session traffic is not broadcast, so the channel receives nothing
// from a running session. Callers must Unsubscribe when done to avoid
// leaking the channel.
func (m *Manager) Subscribe(name string) chan Event {
	ch := make(chan Event, 64)
	m.subMu.Lock()
	m.subscribers[name] = append(m.subscribers[name], ch)
	m.subMu.Unlock()
	return ch
}

// Unsubscribe removes and closes ch.
func (m *Manager) Unsubscribe(name string, ch chan Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	subs := m.subscribers[name]
	for i, s := range subs {
		if s == ch {
			m.subscribers[name] = append(subs[:i], subs[i+1:]...)
			close(ch)
			return
		}
	}
}

func (m *Manager) broadcast(ev Event) {
	m.subMu.RLock()
	subs := m.subscribers[ev.Name]
	m.subMu.RUnlock()
	for _, ch := range subs {
		select {
		case ch <- ev:
		default: // drop for slow subscribers rather than block the session
		}
	}
}

// runSession dials, runs, and on failure retries with exponential backoff
// from 1s up to a 60s cap — resetting to 1s whenever a connection lasted
// more than 30s, so a single transient hiccup doesn't leave the session
// backing off as if every attempt were failing immediately.
func (m *Manager) runSession(ctx context.Context, e *entry, dial Dialer, backend Backend, hooks Hooks) {
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		log.Infof("session %s: dialing", e.name)
		connectTime := time.Now()
		err := m.connectAndRun(ctx, e, dial, backend, hooks)
		if err != nil {
			m.mu.Lock()
			e.connected = false
			e.lastError = err.Error()
			m.mu.Unlock()
			log.Errorf("session %s: %v", e.name, err)
		}
		if time.Since(connectTime) > 30*time.Second {
			backoff = time.Second
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
			backoff *= 2
			if backoff > 60*time.Second {
				backoff = 60 * time.Second
			}
		}
	}
}

func (m *Manager) connectAndRun(ctx context.Context, e *entry, dial Dialer, backend Backend, hooks Hooks) error {
	transport, err := dial(ctx)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	sess := New(e.name, e.cfg, backend, transport, hooks)

	m.mu.Lock()
	e.connected = true
	e.lastError = ""
	e.lastActivity = time.Now()
	e.session = sess
	m.mu.Unlock()

	log.Infof("session %s: established (uuid=%s)", e.name, sess.UUID)
	err = sess.Start(ctx)

	m.mu.Lock()
	e.connected = false
	m.mu.Unlock()

	return err
}

// healthCheck periodically logs sessions that are marked connected but
// whose entry has gone stale, the same watchdog role the teacher's
// sol.Manager.healthCheck played over its lastRecvTime clock.
func (m *Manager) healthCheck() {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.RLock()
		for name, e := range m.sessions {
			if e.connected && e.session != nil && e.session.State() == StateDead {
				log.Warnf("health check: %s session marked connected but state is dead", name)
			}
		}
		m.mu.RUnlock()
	}
}
