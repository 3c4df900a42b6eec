package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// passDuration measures a full reconcile pass over all templates.
	passDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "chorecal",
		Subsystem: "reconcile",
		Name:      "pass_duration_seconds",
		Help:      "Duration of a reconcile pass in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// templatesReconciled counts per-template reconcile outcomes.
	// Labels: result (clean, repaired, failed)
	templatesReconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chorecal",
		Subsystem: "reconcile",
		Name:      "templates_total",
		Help:      "Templates reconciled, by outcome",
	}, []string{"result"})

	// occurrencesChanged counts occurrences written by reconcile passes.
	// Labels: op (inserted, deleted)
	occurrencesChanged = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chorecal",
		Subsystem: "reconcile",
		Name:      "occurrences_total",
		Help:      "Occurrences inserted or deleted by reconcile passes",
	}, []string{"op"})

	passesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chorecal",
		Subsystem: "reconcile",
		Name:      "passes_skipped_total",
		Help:      "Passes skipped because the previous one was still running",
	})
)

const (
	resultClean    = "clean"
	resultRepaired = "repaired"
	resultFailed   = "failed"
)
