// Package metrics implements streamguard.Recorder against Prometheus
// collectors, adapted from the teacher's provider-call metrics collector
// and generalized to the stream-buffer's observability surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector is a Prometheus-backed streamguard.Recorder.
type Collector struct {
	bytesBuffered   *prometheus.GaugeVec
	chunksReceived  *prometheus.CounterVec
	collapses       *prometheus.CounterVec
	webhookDuration prometheus.Histogram
}

// NewCollector registers and returns a Collector. Pass a dedicated
// *prometheus.Registry in tests to avoid colliding with the global
// registry across repeated construction.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		bytesBuffered: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "total_bytes_buffered",
			Help: "Current bytes held in a stream's reconstruction buffer, by stream id.",
		}, []string{"stream_id"}),
		chunksReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_chunks_received_total",
			Help: "SSE chunks appended to a stream's buffer, by provider.",
		}, []string{"provider"}),
		collapses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_collapses_total",
			Help: "Guardrail-triggered chunk collapses, by provider.",
		}, []string{"provider"}),
		webhookDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "webhook_call_duration_seconds",
			Help:    "Latency of moderation webhook calls.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(c.bytesBuffered, c.chunksReceived, c.collapses, c.webhookDuration)
	return c
}

// ObserveBytesBuffered implements streamguard.Recorder.
func (c *Collector) ObserveBytesBuffered(streamID string, n int) {
	c.bytesBuffered.WithLabelValues(streamID).Set(float64(n))
}

// IncChunksReceived implements streamguard.Recorder.
func (c *Collector) IncChunksReceived(providerName string) {
	c.chunksReceived.WithLabelValues(providerName).Inc()
}

// IncCollapse implements streamguard.Recorder.
func (c *Collector) IncCollapse(providerName string) {
	c.collapses.WithLabelValues(providerName).Inc()
}

// ObserveWebhookDuration implements streamguard.Recorder.
func (c *Collector) ObserveWebhookDuration(seconds float64) {
	c.webhookDuration.Observe(seconds)
}
