package services

// noopMetrics is used when no recorder is configured.
type noopMetrics struct{}

func (noopMetrics) RecordSignaturePagePrepared(policy, outcome string) {}

func (noopMetrics) RecordAssertionValidation(idpEntityID, errorCode string) {}
