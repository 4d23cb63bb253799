package ports

// Outcomes recorded for signature page preparation.
const (
	OutcomePageInserted = "inserted"
	OutcomePageLocated  = "located"
	OutcomePageFull     = "full"
	OutcomeError        = "error"
)

// MetricsRecorder is the port interface for recording metrics.
// Implementations are adapters (PrometheusMetricsRecorder for production,
// NoopMetricsRecorder for disabled/testing).
type MetricsRecorder interface {
	// RecordSignaturePagePrepared records the outcome of a preparation.
	RecordSignaturePagePrepared(policy, outcome string)

	// RecordAssertionValidation records a sign response validation result.
	// errorCode is empty on success.
	RecordAssertionValidation(idpEntityID string, errorCode string)
}
