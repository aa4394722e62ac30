// Package metrics declares the prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LedgerTransactions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlm_ledger_transactions_total",
			Help: "Ledger transaction writes by op type and whether the operation id was replayed",
		},
		[]string{"op_type", "replay"},
	)

	LedgerReversals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlm_ledger_reversals_total",
			Help: "Reversal attempts by result",
		},
		[]string{"result"},
	)

	CommissionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlm_commission_outcomes_total",
			Help: "Commission distributions by kind, outcome and skip reason",
		},
		[]string{"kind", "outcome", "reason"},
	)

	CommissionPaid = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mlm_commission_paid_rub",
			Help:    "RUB paid per upline level",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 10000},
		},
		[]string{"level"},
	)

	RankChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlm_rank_changes_total",
			Help: "Rank recomputations that changed the stored rank, by new level",
		},
		[]string{"level"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlm_http_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"path", "code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mlm_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "code"},
	)
)

// ObserveHTTP records one served request.
func ObserveHTTP(path string, code int, elapsed time.Duration) {
	labels := prometheus.Labels{"path": path, "code": strconv.Itoa(code)}
	httpRequestsTotal.With(labels).Inc()
	httpRequestDuration.With(labels).Observe(elapsed.Seconds())
}

// Bool renders a label value for a flag.
func Bool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
