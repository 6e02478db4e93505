package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var replayEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_replay_events",
	Help: "Number of replayed events, by type",
}, []string{"type"})

var replayFailed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chatmod_replay_failed",
	Help: "Number of replayed events which could not be processed",
})

var commandsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_commands_dispatched",
	Help: "Number of commands dispatched by rules, escalation and join flood detection",
}, []string{"console"})
