// Package observability exposes prometheus metrics for the controller.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal counts rebalance cycles by trigger source and outcome.
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "svm_cycles_total",
		Help: "Rebalance cycles by trigger and outcome",
	}, []string{"trigger", "outcome"})

	// FallbacksTotal counts yield-policy fallbacks by reason.
	FallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "svm_allocation_fallbacks_total",
		Help: "Yield-optimized fallbacks to equal weight, by reason",
	}, []string{"reason"})

	// OperationsTotal counts executed operations by kind and status.
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "svm_operations_total",
		Help: "Rebalance operations by kind and status",
	}, []string{"kind", "status"})

	// TransactionsTotal counts submitted transactions by status.
	TransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "svm_transactions_total",
		Help: "Submitted transactions by status",
	}, []string{"status"})

	// RPCFailoversTotal counts switches away from the primary endpoint.
	RPCFailoversTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "svm_rpc_failovers_total",
		Help: "Failovers from primary to fallback RPC",
	})

	// SupervisorRestartsTotal counts loop restarts by loop name.
	SupervisorRestartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "svm_supervisor_restarts_total",
		Help: "Supervised loop restarts after a crash",
	}, []string{"loop"})

	// TotalValueNative is the pool's total value in native units.
	TotalValueNative = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "svm_total_value_native",
		Help: "Total pool value in native units",
	})

	// IdleValueNative is the undeployed balance in native units.
	IdleValueNative = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "svm_idle_value_native",
		Help: "Idle balance in native units",
	})

	// StrategyValueNative is the per-strategy deployed value.
	StrategyValueNative = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "svm_strategy_value_native",
		Help: "Deployed value per strategy in native units",
	}, []string{"strategy"})

	// WinnerAPY is the APY of the currently selected winner, zero when the
	// policy fell back.
	WinnerAPY = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "svm_winner_apy",
		Help: "Deposit APY of the selected yield winner",
	})

	// CycleDuration observes end-to-end cycle time.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "svm_cycle_duration_seconds",
		Help:    "End-to-end rebalance cycle duration",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	// ConfirmDuration observes signature confirmation latency.
	ConfirmDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "svm_confirm_duration_seconds",
		Help:    "Transaction confirmation latency",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
	})
)
