package scheduling

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutorhub_registrations_total",
		Help: "Registration attempts by outcome.",
	}, []string{"outcome"})

	sweepTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutorhub_sweep_transitions_total",
		Help: "Sessions advanced by the background sweep, by target state.",
	}, []string{"target"})

	sweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutorhub_sweep_errors_total",
		Help: "Per-session failures during sweeps.",
	})

	sweepsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutorhub_sweeps_skipped_total",
		Help: "Sweep invocations skipped because one was already running.",
	})

	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tutorhub_sweep_duration_seconds",
		Help:    "Wall time of each sweep iteration.",
		Buckets: prometheus.DefBuckets,
	})
)
