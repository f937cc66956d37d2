package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the compliance registry.
type Metrics struct {
	AttestationsAdded   prometheus.Counter
	AttestationsRevoked prometheus.Counter
	EligibilityChecks   *prometheus.CounterVec
}

// New creates and registers all compliance metrics.
func New() *Metrics {
	return &Metrics{
		AttestationsAdded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aurum_attestations_added_total",
			Help: "Total attestations accepted into the registry",
		}),
		AttestationsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aurum_attestations_revoked_total",
			Help: "Total attestations revoked",
		}),
		EligibilityChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aurum_eligibility_checks_total",
			Help: "Eligibility checks by verdict",
		}, []string{"verdict"}),
	}
}

func (m *Metrics) IncrementAdded() {
	if m != nil {
		m.AttestationsAdded.Inc()
	}
}

func (m *Metrics) IncrementRevoked() {
	if m != nil {
		m.AttestationsRevoked.Inc()
	}
}

func (m *Metrics) ObserveCheck(eligible bool) {
	if m == nil {
		return
	}
	verdict := "eligible"
	if !eligible {
		verdict = "ineligible"
	}
	m.EligibilityChecks.WithLabelValues(verdict).Inc()
}
