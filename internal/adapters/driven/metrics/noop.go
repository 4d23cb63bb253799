package metrics

import (
	"github.com/janderssonse/signservice-integration/internal/core/ports"
)

// NoopMetricsRecorder is a no-op implementation for when metrics are disabled.
// All methods are safe to call and do nothing.
type NoopMetricsRecorder struct{}

// NewNoopMetricsRecorder creates a new no-op metrics recorder.
func NewNoopMetricsRecorder() *NoopMetricsRecorder {
	return &NoopMetricsRecorder{}
}

// RecordSignaturePagePrepared is a no-op.
func (n *NoopMetricsRecorder) RecordSignaturePagePrepared(policy, outcome string) {}

// RecordAssertionValidation is a no-op.
func (n *NoopMetricsRecorder) RecordAssertionValidation(idpEntityID string, errorCode string) {}

// Ensure NoopMetricsRecorder implements ports.MetricsRecorder
var _ ports.MetricsRecorder = (*NoopMetricsRecorder)(nil)
