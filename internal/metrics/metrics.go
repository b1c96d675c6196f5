// Package metrics exposes Prometheus counters for game activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GamesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mafia_games_created_total",
		Help: "Number of games created.",
	})

	GamesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mafia_games_finished_total",
		Help: "Number of games finished, by winning side.",
	}, []string{"winner"})

	Steps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mafia_steps_total",
		Help: "Number of orchestrator steps executed.",
	})

	DeciderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mafia_decider_calls_total",
		Help: "Number of decider calls, by decision kind.",
	}, []string{"kind"})

	DeciderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mafia_decider_failures_total",
		Help: "Number of decider calls that fell back to a default, by decision kind.",
	}, []string{"kind"})
)
