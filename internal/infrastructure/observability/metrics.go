package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RepositoryCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repository_calls_total",
			Help: "Total number of repository method calls",
		},
		[]string{"method", "status"},
	)

	RepositoryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repository_duration_seconds",
			Help:    "Duration of repository method calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	SettlementProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_messages_total",
			Help: "Settlement messages processed by outcome",
		},
		[]string{"outcome"},
	)

	IndexSyncProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "index_sync_messages_total",
			Help: "Index sync messages processed by action and outcome",
		},
		[]string{"action", "outcome"},
	)
)

func InitMetrics() {
	prometheus.MustRegister(RepositoryCalls, RepositoryDuration, SettlementProcessed, IndexSyncProcessed)
}
