// Package metrics exposes Prometheus instrumentation for loan origination.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for evaluations and simulations.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Decisions by status, reason code and loan type
	Decisions *prometheus.CounterVec

	// Requests refused by loan-type policy, by violation reason
	PolicyViolations *prometheus.CounterVec

	// Full evaluation latency including advisory rules
	EvaluateLatency prometheus.Histogram

	// Advisory rule findings by rule and outcome
	AdvisoryOutcomes *prometheus.CounterVec

	// Simulations by cache result ("hit" or "miss")
	Simulations *prometheus.CounterVec
}

// New registers all origination metrics with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kestrel_decisions_total",
			Help: "Total evaluation decisions by status, reason and loan type",
		}, []string{"status", "reason", "loan_type"}),

		PolicyViolations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kestrel_policy_violations_total",
			Help: "Total requests refused by loan-type policy",
		}, []string{"reason", "loan_type"}),

		EvaluateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kestrel_evaluate_duration_seconds",
			Help:    "Duration of a full application evaluation",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		AdvisoryOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kestrel_advisory_outcomes_total",
			Help: "Advisory rule results by rule and outcome",
		}, []string{"rule_id", "outcome"}),

		Simulations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kestrel_simulations_total",
			Help: "Total simulations served, by cache result",
		}, []string{"cache"}),
	}
}

// IncrementDecision records an evaluation outcome. reason is empty for approvals.
func (m *Metrics) IncrementDecision(status, reason, loanType string) {
	if m != nil {
		m.Decisions.WithLabelValues(status, reason, loanType).Inc()
	}
}

// IncrementPolicyViolation records a request refused by policy.
func (m *Metrics) IncrementPolicyViolation(reason, loanType string) {
	if m != nil {
		m.PolicyViolations.WithLabelValues(reason, loanType).Inc()
	}
}

// ObserveEvaluateLatency records the total evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}

// IncrementAdvisory records one advisory rule result.
func (m *Metrics) IncrementAdvisory(ruleID, outcome string) {
	if m != nil {
		m.AdvisoryOutcomes.WithLabelValues(ruleID, outcome).Inc()
	}
}

// IncrementSimulation records a simulation and whether the cache served it.
func (m *Metrics) IncrementSimulation(cached bool) {
	if m == nil {
		return
	}
	label := "miss"
	if cached {
		label = "hit"
	}
	m.Simulations.WithLabelValues(label).Inc()
}
