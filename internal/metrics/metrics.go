// Package metrics defines the Prometheus collectors of the account service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Login outcome labels.
const (
	OutcomeAuthenticated = "authenticated"
	OutcomeRejected      = "rejected"
	OutcomeError         = "error"
)

// Auth groups the authentication collectors. A nil *Auth records nothing.
type Auth struct {
	LoginAttempts     *prometheus.CounterVec
	SessionsCreated   prometheus.Counter
	SessionsDestroyed *prometheus.CounterVec
	GuardRejections   *prometheus.CounterVec
}

// NewAuth creates the authentication collectors and registers them with reg.
// Panics if registration fails (following prometheus convention).
func NewAuth(reg prometheus.Registerer) *Auth {
	m := &Auth{
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ecoms_login_attempts_total",
				Help: "Total number of login attempts by outcome",
			},
			[]string{"outcome"},
		),
		SessionsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ecoms_sessions_created_total",
				Help: "Total number of sessions established",
			},
		),
		SessionsDestroyed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ecoms_sessions_destroyed_total",
				Help: "Total number of sessions destroyed by cause",
			},
			[]string{"cause"},
		),
		GuardRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ecoms_guard_rejections_total",
				Help: "Total number of requests rejected by the session guard by cause",
			},
			[]string{"cause"},
		),
	}

	reg.MustRegister(m.LoginAttempts, m.SessionsCreated, m.SessionsDestroyed, m.GuardRejections)
	return m
}

// ObserveLogin counts a login attempt.
func (m *Auth) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

// SessionCreated counts an established session.
func (m *Auth) SessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
}

// SessionDestroyed counts a destroyed session.
func (m *Auth) SessionDestroyed(cause string) {
	if m == nil {
		return
	}
	m.SessionsDestroyed.WithLabelValues(cause).Inc()
}

// GuardRejected counts a request turned away by the guard.
func (m *Auth) GuardRejected(cause string) {
	if m == nil {
		return
	}
	m.GuardRejections.WithLabelValues(cause).Inc()
}
