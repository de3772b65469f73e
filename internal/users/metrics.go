package users

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// upsertsTotal counts upserts by outcome (created, fetched, failed).
	upsertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ignews",
		Subsystem: "users",
		Name:      "upserts_total",
		Help:      "User upserts by outcome",
	}, []string{"outcome"})

	upsertDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ignews",
		Subsystem: "users",
		Name:      "upsert_duration_seconds",
		Help:      "Latency of user upserts including retries",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	upsertRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ignews",
		Subsystem: "users",
		Name:      "upsert_retries_total",
		Help:      "Store calls retried after a transient failure",
	})
)
