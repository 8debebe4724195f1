package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ValidationMetrics counts license validation verdicts.
type ValidationMetrics struct {
	verdicts *prometheus.CounterVec
}

// NewValidationMetrics registers the validation counters on the provided registerer.
func NewValidationMetrics(reg prometheus.Registerer) *ValidationMetrics {
	if reg == nil {
		return &ValidationMetrics{}
	}
	verdicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "license_validations",
		Help: "License validation requests by verdict.",
	}, []string{"verdict"})
	reg.MustRegister(verdicts)
	return &ValidationMetrics{verdicts: verdicts}
}

// IncVerdict counts one validation outcome (valid, invalid, not_found).
func (v *ValidationMetrics) IncVerdict(verdict string) {
	if v == nil || v.verdicts == nil {
		return
	}
	v.verdicts.WithLabelValues(normalizeLabel(verdict)).Inc()
}
