package policy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var classifyCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "namewatch_classifications",
	Help: "Number of usernames classified, by result",
}, []string{"result"})
