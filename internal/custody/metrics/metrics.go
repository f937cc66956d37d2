package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the settlement bridge.
type Metrics struct {
	SettlementsConfirmed *prometheus.CounterVec
	SettlementReplays    prometheus.Counter
	ForceUnlocks         prometheus.Counter
	OldestPendingSeconds *prometheus.GaugeVec
}

// New creates and registers all bridge metrics.
func New() *Metrics {
	return &Metrics{
		SettlementsConfirmed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aurum_settlements_confirmed_total",
			Help: "Custody settlements confirmed, by receipt kind",
		}, []string{"kind"}),
		SettlementReplays: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aurum_settlement_replays_total",
			Help: "Re-delivered receipts answered from the stored confirmation",
		}),
		ForceUnlocks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aurum_force_unlocks_total",
			Help: "Confirmed asset locks reverted through the dispute path",
		}),
		OldestPendingSeconds: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aurum_settlement_oldest_pending_seconds",
			Help: "Age of the oldest withdrawal still awaiting custody, per vault",
		}, []string{"vault_id"}),
	}
}

func (m *Metrics) IncrementConfirmed(kind string) {
	if m != nil {
		m.SettlementsConfirmed.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncrementReplays() {
	if m != nil {
		m.SettlementReplays.Inc()
	}
}

func (m *Metrics) IncrementForceUnlocks() {
	if m != nil {
		m.ForceUnlocks.Inc()
	}
}

func (m *Metrics) SetOldestPending(vaultID string, seconds float64) {
	if m != nil {
		m.OldestPendingSeconds.WithLabelValues(vaultID).Set(seconds)
	}
}
