package enforce

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var actionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "namewatch_actions",
	Help: "Number of enforcement actions completed, by type",
}, []string{"type"})

var actionErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "namewatch_action_errors",
	Help: "Number of enforcement actions abandoned on error, by type",
}, []string{"type"})

var discrepancyCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "namewatch_discrepancies",
	Help: "Number of records retired because the platform state was changed externally",
}, []string{"type"})

var triggerCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "namewatch_triggers",
	Help: "Number of member evaluations, by trigger",
}, []string{"trigger"})
