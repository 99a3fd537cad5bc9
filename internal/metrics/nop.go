// Package metrics provides types.MetricsCollector implementations.
package metrics

import "github.com/Brandon-Parker9/fractal/types"

// NopMetrics is a no-op implementation of types.MetricsCollector.
// It is the default when no collector is configured.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// RecordRowsComputed does nothing.
func (n *NopMetrics) RecordRowsComputed(_ /* rank */ int, _ /* rows */ int, _ /* duration */ float64) {
}

// RecordContribution does nothing.
func (n *NopMetrics) RecordContribution(_ /* rank */ int, _ /* elements */ int, _ /* wait */ float64) {
}

// RecordRowsEncoded does nothing.
func (n *NopMetrics) RecordRowsEncoded(_ /* rows */ int) {}

// RecordTransfer does nothing.
func (n *NopMetrics) RecordTransfer(_ /* direction */ string, _ /* bytes */ int, _ /* success */ bool) {
}

// RecordRun does nothing.
func (n *NopMetrics) RecordRun(_ /* workers */ int, _ /* duration */ float64) {}

// OrNop returns m, or a NopMetrics when m is nil.
func OrNop(m types.MetricsCollector) types.MetricsCollector {
	if m == nil {
		return NewNop()
	}

	return m
}
