package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the vault ledger.
type Metrics struct {
	DepositsTotal          prometheus.Counter
	WithdrawalsRequested   prometheus.Counter
	WithdrawalsFulfilled   prometheus.Counter
	WithdrawalsRejected    prometheus.Counter
	WithdrawalsCancelled   prometheus.Counter
	VaultsHalted           prometheus.Counter
	TotalValueLocked       *prometheus.GaugeVec
	TotalSharesOutstanding *prometheus.GaugeVec
}

// New creates and registers all vault ledger metrics.
func New() *Metrics {
	return &Metrics{
		DepositsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aurum_deposits_total",
			Help: "Confirmed deposits booked into vaults",
		}),
		WithdrawalsRequested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aurum_withdrawals_requested_total",
			Help: "Withdrawal requests accepted into the pending queue",
		}),
		WithdrawalsFulfilled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aurum_withdrawals_fulfilled_total",
			Help: "Withdrawals fulfilled by custodial confirmation",
		}),
		WithdrawalsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aurum_withdrawals_rejected_total",
			Help: "Withdrawals rejected after custody was engaged",
		}),
		WithdrawalsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aurum_withdrawals_cancelled_total",
			Help: "Withdrawals cancelled by their holder before custody",
		}),
		VaultsHalted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aurum_vaults_halted_total",
			Help: "Vaults frozen after a detected invariant violation",
		}),
		TotalValueLocked: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aurum_vault_total_value_locked",
			Help: "Current backing asset total per vault",
		}, []string{"vault_id"}),
		TotalSharesOutstanding: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aurum_vault_total_shares",
			Help: "Current outstanding share supply per vault",
		}, []string{"vault_id"}),
	}
}

func (m *Metrics) IncrementDeposits() {
	if m != nil {
		m.DepositsTotal.Inc()
	}
}

func (m *Metrics) IncrementRequested() {
	if m != nil {
		m.WithdrawalsRequested.Inc()
	}
}

func (m *Metrics) IncrementFulfilled() {
	if m != nil {
		m.WithdrawalsFulfilled.Inc()
	}
}

func (m *Metrics) IncrementRejected() {
	if m != nil {
		m.WithdrawalsRejected.Inc()
	}
}

func (m *Metrics) IncrementCancelled() {
	if m != nil {
		m.WithdrawalsCancelled.Inc()
	}
}

func (m *Metrics) IncrementHalted() {
	if m != nil {
		m.VaultsHalted.Inc()
	}
}

func (m *Metrics) SetVaultTotals(vaultID string, tvl, shares uint64) {
	if m == nil {
		return
	}
	m.TotalValueLocked.WithLabelValues(vaultID).Set(float64(tvl))
	m.TotalSharesOutstanding.WithLabelValues(vaultID).Set(float64(shares))
}
