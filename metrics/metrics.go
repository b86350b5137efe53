// Package metrics exposes per-session FIX traffic counters through
// Prometheus, generalized from the teacher's analytics package, which
// accumulated per-server IPMI/SOL activity counts for its own dashboard.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry owns the Prometheus collectors shared by every session and
// hands out a per-session Session view over them.
type Registry struct {
	messagesOutbound  *prometheus.CounterVec
	messagesInbound   *prometheus.CounterVec
	heartbeatsSent    *prometheus.CounterVec
	testRequestsSent  *prometheus.CounterVec
	resendRequestsSent *prometheus.CounterVec
	rejectsSent       *prometheus.CounterVec
	logouts           *prometheus.CounterVec
}

// NewRegistry constructs a Registry and registers its collectors with reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		messagesOutbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fixcore_messages_outbound_total",
			Help: "Total FIX messages sent, by session.",
		}, []string{"session"}),
		messagesInbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fixcore_messages_inbound_total",
			Help: "Total FIX messages received, by session.",
		}, []string{"session"}),
		heartbeatsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fixcore_heartbeats_sent_total",
			Help: "Total Heartbeat(0) messages sent, by session.",
		}, []string{"session"}),
		testRequestsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fixcore_test_requests_sent_total",
			Help: "Total TestRequest(1) messages sent, by session.",
		}, []string{"session"}),
		resendRequestsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fixcore_resend_requests_sent_total",
			Help: "Total ResendRequest(2) messages sent, by session.",
		}, []string{"session"}),
		rejectsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fixcore_rejects_sent_total",
			Help: "Total Reject(3) messages sent, by session.",
		}, []string{"session"}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fixcore_logouts_total",
			Help: "Total Logout(5) events, by session.",
		}, []string{"session"}),
	}

	reg.MustRegister(
		r.messagesOutbound,
		r.messagesInbound,
		r.heartbeatsSent,
		r.testRequestsSent,
		r.resendRequestsSent,
		r.rejectsSent,
		r.logouts,
	)

	return r
}

// Session returns a session.Counter bound to sessionName's label.
func (r *Registry) Session(sessionName string) *Session {
	return &Session{registry: r, name: sessionName}
}

// Session is a per-session view over Registry, satisfying
// session.Counter.
type Session struct {
	registry *Registry
	name     string
}

func (s *Session) IncMessagesOutbound()   { s.registry.messagesOutbound.WithLabelValues(s.name).Inc() }
func (s *Session) IncMessagesInbound()    { s.registry.messagesInbound.WithLabelValues(s.name).Inc() }
func (s *Session) IncHeartbeatsSent()     { s.registry.heartbeatsSent.WithLabelValues(s.name).Inc() }
func (s *Session) IncTestRequestsSent()   { s.registry.testRequestsSent.WithLabelValues(s.name).Inc() }
func (s *Session) IncResendRequestsSent() { s.registry.resendRequestsSent.WithLabelValues(s.name).Inc() }
func (s *Session) IncRejectsSent()        { s.registry.rejectsSent.WithLabelValues(s.name).Inc() }
func (s *Session) IncLogouts()            { s.registry.logouts.WithLabelValues(s.name).Inc() }
