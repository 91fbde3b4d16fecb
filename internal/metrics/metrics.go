// Package metrics defines the Prometheus collectors of the capture engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spice_turns_total",
			Help: "Total number of turns processed, by outcome",
		},
		[]string{"outcome"},
	)

	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spice_turn_duration_seconds",
			Help:    "Duration of turn processing in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
		[]string{"outcome"},
	)

	NodeVisits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spice_workflow_node_visits_total",
			Help: "Number of times each workflow node ran",
		},
		[]string{"node"},
	)

	ExternalFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spice_external_failures_total",
			Help: "Soft failures of external collaborators that fell back to a default",
		},
		[]string{"service"},
	)

	CheckpointConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spice_checkpoint_conflicts_total",
			Help: "Checkpoint writes rejected by optimistic version checks",
		},
	)

	LearnerUpserts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spice_learner_rule_upserts_total",
			Help: "Rule upserts issued by the category learner",
		},
		[]string{"result"},
	)
)
