package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the ledger engine.
type Metrics struct {
	EntriesTotal    *prometheus.CounterVec // labels: type
	RejectedTotal   *prometheus.CounterVec // labels: reason
	StoreConflicts  prometheus.Counter
	InterestRuns    prometheus.Counter
	InterestCharged prometheus.Counter
	ForcedSells     prometheus.Counter
	RecoveryRuns    prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EntriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "paperbroker_ledger_entries_total",
			Help: "Ledger entries appended, by entry type.",
		}, []string{"type"}),
		RejectedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "paperbroker_orders_rejected_total",
			Help: "Orders rejected before commit, by reason.",
		}, []string{"reason"}),
		StoreConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "paperbroker_store_conflicts_total",
			Help: "Optimistic-concurrency conflicts retried by the executor.",
		}),
		InterestRuns: f.NewCounter(prometheus.CounterOpts{
			Name: "paperbroker_interest_runs_total",
			Help: "Interest accrual invocations that stamped a new date.",
		}),
		InterestCharged: f.NewCounter(prometheus.CounterOpts{
			Name: "paperbroker_interest_charged_total",
			Help: "Interest accrual invocations that charged interest.",
		}),
		ForcedSells: f.NewCounter(prometheus.CounterOpts{
			Name: "paperbroker_forced_sells_total",
			Help: "Sells executed by auto-liquidation.",
		}),
		RecoveryRuns: f.NewCounter(prometheus.CounterOpts{
			Name: "paperbroker_recovery_runs_total",
			Help: "Auto-liquidation sweeps started.",
		}),
	}
}
