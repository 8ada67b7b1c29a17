package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncrementDecision("APPROVED", "", "PURCHASE")
	m.IncrementDecision("REJECTED", "R1", "PURCHASE")
	m.IncrementDecision("REJECTED", "R1", "PURCHASE")
	m.IncrementPolicyViolation("RATE_OUT_OF_BAND", "REMODEL")
	m.IncrementAdvisory("high-ltv", ".review")
	m.IncrementSimulation(true)
	m.IncrementSimulation(false)
	m.IncrementSimulation(false)
	m.ObserveEvaluateLatency(2 * time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Decisions.WithLabelValues("APPROVED", "", "PURCHASE")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Decisions.WithLabelValues("REJECTED", "R1", "PURCHASE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PolicyViolations.WithLabelValues("RATE_OUT_OF_BAND", "REMODEL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AdvisoryOutcomes.WithLabelValues("high-ltv", ".review")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Simulations.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Simulations.WithLabelValues("miss")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "kestrel_evaluate_duration_seconds")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementDecision("APPROVED", "", "PURCHASE")
		m.IncrementPolicyViolation("TERM_EXCEEDED", "REMODEL")
		m.ObserveEvaluateLatency(time.Millisecond)
		m.IncrementAdvisory("r", ".pass")
		m.IncrementSimulation(true)
	})
}

func TestNewTwiceOnSameRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
