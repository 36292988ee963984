package decision

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var collectorsOpen = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "namewatch_decision_collectors_open",
	Help: "Number of review prompts waiting for a moderator",
})

var collectorOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "namewatch_decision_outcomes",
	Help: "Number of closed review prompts, by outcome",
}, []string{"outcome"})
