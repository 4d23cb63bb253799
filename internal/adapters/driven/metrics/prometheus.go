package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/janderssonse/signservice-integration/internal/core/ports"
)

// PrometheusMetricsRecorder records metrics using Prometheus.
type PrometheusMetricsRecorder struct {
	signaturePagesTotal       *prometheus.CounterVec
	assertionValidationsTotal *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder creates a new Prometheus metrics recorder
// using the default Prometheus registry.
func NewPrometheusMetricsRecorder() *PrometheusMetricsRecorder {
	return NewPrometheusMetricsRecorderWithRegistry(prometheus.DefaultRegisterer)
}

// NewPrometheusMetricsRecorderWithRegistry creates a new Prometheus metrics recorder
// with a custom registry. Use this for testing.
func NewPrometheusMetricsRecorderWithRegistry(reg prometheus.Registerer) *PrometheusMetricsRecorder {
	signaturePagesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signservice_integration_signature_pages_prepared_total",
		Help: "Total PDF signature page preparations by outcome",
	}, []string{"policy", "outcome"})

	assertionValidationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signservice_integration_assertion_validations_total",
		Help: "Total signer assertion validations by result",
	}, []string{"idp_entity_id", "result"})

	reg.MustRegister(
		signaturePagesTotal,
		assertionValidationsTotal,
	)

	return &PrometheusMetricsRecorder{
		signaturePagesTotal:       signaturePagesTotal,
		assertionValidationsTotal: assertionValidationsTotal,
	}
}

// RecordSignaturePagePrepared records the outcome of a signature page preparation.
func (p *PrometheusMetricsRecorder) RecordSignaturePagePrepared(policy, outcome string) {
	p.signaturePagesTotal.WithLabelValues(policy, outcome).Inc()
}

// RecordAssertionValidation records a signer assertion validation. The result
// label is "success" or the error code of the failure.
func (p *PrometheusMetricsRecorder) RecordAssertionValidation(idpEntityID string, errorCode string) {
	result := "success"
	if errorCode != "" {
		result = errorCode
	}
	p.assertionValidationsTotal.WithLabelValues(idpEntityID, result).Inc()
}

// Ensure PrometheusMetricsRecorder implements ports.MetricsRecorder
var _ ports.MetricsRecorder = (*PrometheusMetricsRecorder)(nil)
