// Package metrics exposes the engine's Prometheus instrumentation.
// Everything registers against the default registry and is served on
// /metrics by the router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EvaluationsTotal counts tolerance evaluations by resulting zone.
	EvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "minrisk",
		Name:      "evaluations_total",
		Help:      "Tolerance metric evaluations by resulting zone",
	}, []string{"zone"})

	// BreachesOpenedTotal counts newly opened breaches by severity.
	BreachesOpenedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "minrisk",
		Name:      "breaches_opened_total",
		Help:      "Breaches opened by severity",
	}, []string{"severity"})

	// BreachesEscalatedTotal counts amber breaches escalated to red in place.
	BreachesEscalatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "minrisk",
		Name:      "breaches_escalated_total",
		Help:      "Active breaches escalated from amber to red",
	})

	// RecalculationsTotal counts bulk recalculation requests by outcome.
	RecalculationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "minrisk",
		Name:      "recalculations_total",
		Help:      "Organization-wide recalculations by outcome",
	}, []string{"outcome"})

	// RecalcDuration measures completed organization-wide recalculations.
	RecalcDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "minrisk",
		Name:      "recalc_duration_seconds",
		Help:      "Duration of completed organization-wide recalculations",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// EscalationDeliveries counts webhook escalation attempts by status.
	EscalationDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "minrisk",
		Name:      "escalation_deliveries_total",
		Help:      "Escalation webhook deliveries by status",
	}, []string{"status"})
)
