package rules

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var rulesLoaded = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "chatmod_rules_loaded",
	Help: "Number of enabled rules currently loaded",
}, []string{"kind"})

var rulesMatched = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_rules_matched",
	Help: "Number of times a rule matched and passed its guards",
}, []string{"kind", "rule"})

var ruleActions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_rule_actions",
	Help: "Number of rule actions executed",
}, []string{"action"})
