package escalate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var escalationCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_escalations",
	Help: "Number of violations handled, by trigger and outcome",
}, []string{"trigger", "outcome"})

var thresholdCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_escalation_thresholds",
	Help: "Number of warning point thresholds crossed",
}, []string{"set"})

var thresholdLimitedCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chatmod_escalation_thresholds_limited",
	Help: "Number of threshold command batches dropped by the rate limiter",
})
