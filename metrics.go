package seravault

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors shared by an Engine, a
// SessionStore and a Custody. Use one Metrics per registry.
type Metrics struct {
	Encryptions      prometheus.Counter
	Decryptions      *prometheus.CounterVec
	Shares           prometheus.Counter
	Revocations      prometheus.Counter
	UnlockAttempts   *prometheus.CounterVec
	SessionTeardowns *prometheus.CounterVec
	SessionsActive   prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which is what tests and embedders
// without a metrics endpoint want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Encryptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "seravault",
			Name:      "encryptions_total",
			Help:      "Objects encrypted for one or more recipients.",
		}),
		Decryptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seravault",
			Name:      "decryptions_total",
			Help:      "Object decryptions by result.",
		}, []string{"result"}),
		Shares: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "seravault",
			Name:      "key_wraps_added_total",
			Help:      "Recipient key-wrap entries added by sharing.",
		}),
		Revocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "seravault",
			Name:      "key_wraps_removed_total",
			Help:      "Recipient key-wrap entries removed by unsharing.",
		}),
		UnlockAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seravault",
			Name:      "unlock_attempts_total",
			Help:      "Private-key unlock attempts by method and result.",
		}, []string{"method", "result"}),
		SessionTeardowns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seravault",
			Name:      "session_teardowns_total",
			Help:      "Key sessions wiped, by reason.",
		}, []string{"reason"}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "seravault",
			Name:      "sessions_active",
			Help:      "Key sessions currently holding decrypted key material.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Encryptions,
			m.Decryptions,
			m.Shares,
			m.Revocations,
			m.UnlockAttempts,
			m.SessionTeardowns,
			m.SessionsActive,
		)
	}
	return m
}
