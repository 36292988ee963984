package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var passDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "namewatch_reconcile_duration_seconds",
	Help:    "Duration of reconciliation passes",
	Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
}, []string{"pass"})

var passSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "namewatch_reconcile_skipped",
	Help: "Number of ticks skipped because the previous pass was still running",
}, []string{"pass"})

var recordFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "namewatch_reconcile_record_failures",
	Help: "Number of records whose reconciliation failed and was left for the next tick",
}, []string{"pass"})
