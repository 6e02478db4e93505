package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var evaluateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "chatmod_evaluate_duration_sec",
	Help: "Total duration of admission checks",
}, []string{"kind"})

var evaluateCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_evaluate_processed",
	Help: "Number of messages checked, by outcome",
}, []string{"kind", "outcome"})

var evaluateErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_evaluate_errors",
	Help: "Number of admission checks which failed with an error",
}, []string{"kind"})

var cancelCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_cancellations",
	Help: "Number of messages cancelled, by gate",
}, []string{"kind", "gate"})

var rewriteCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_rewrites",
	Help: "Number of messages rewritten, by gate",
}, []string{"kind", "gate"})

var joinFloodCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chatmod_join_flood_flagged",
	Help: "Number of senders flagged by join flood detection",
})

var dedupeBufferSize = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "chatmod_dedupe_buffer_entries",
	Help: "Number of recent chat lines held for parrot detection",
})

var sessionsOnline = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "chatmod_sessions_online",
	Help: "Number of senders with an open session",
})
