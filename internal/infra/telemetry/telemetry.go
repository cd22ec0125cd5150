package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arklim/chat-account-api/internal/core/port"
)

const namespace = "account"

// AuthMetrics implements port.AuthMetrics with Prometheus counters.
type AuthMetrics struct {
	logins    *prometheus.CounterVec
	twoFactor *prometheus.CounterVec
	refreshes *prometheus.CounterVec
}

// NewAuthMetrics registers the authentication counters with reg.
// A nil reg falls back to the default registerer.
func NewAuthMetrics(reg prometheus.Registerer) *AuthMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &AuthMetrics{
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Login attempts partitioned by result.",
		}, []string{"result"}),
		twoFactor: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "two_factor_confirmations_total",
			Help:      "Two-factor confirmations partitioned by flow and result.",
		}, []string{"flow", "result"}),
		refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "token_refreshes_total",
			Help:      "Refresh token exchanges partitioned by result.",
		}, []string{"result"}),
	}
}

func (m *AuthMetrics) ObserveLogin(result string) {
	m.logins.WithLabelValues(result).Inc()
}

func (m *AuthMetrics) ObserveTwoFactor(flow, result string) {
	m.twoFactor.WithLabelValues(flow, result).Inc()
}

func (m *AuthMetrics) ObserveRefresh(result string) {
	m.refreshes.WithLabelValues(result).Inc()
}

var _ port.AuthMetrics = (*AuthMetrics)(nil)
