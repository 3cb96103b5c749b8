package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors are the engine's operational counters, exposed on the server's
// /metrics endpoint.
type Collectors struct {
	TransactionsProcessed prometheus.Counter
	RewardsCapped         prometheus.Counter
	MetricRowsUpserted    prometheus.Counter
	Runs                  *prometheus.CounterVec
}

func NewCollectors() *Collectors {
	return &Collectors{
		TransactionsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loyalsync_transactions_processed_total",
			Help: "Transactions evaluated by the aggregation loop.",
		}),
		RewardsCapped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loyalsync_rewards_capped_total",
			Help: "Transactions whose reward was truncated by a promotion cap.",
		}),
		MetricRowsUpserted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loyalsync_metric_rows_upserted_total",
			Help: "Member metric and promotion status rows written.",
		}),
		Runs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "loyalsync_runs_total",
			Help: "Aggregation passes by terminal status.",
		}, []string{"status"}),
	}
}
