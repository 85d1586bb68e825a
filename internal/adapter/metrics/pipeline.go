package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics holds Prometheus metrics for the upload/subset/export pipeline.
type PipelineMetrics struct {
	Operations        *prometheus.CounterVec
	ActiveSessions    prometheus.Gauge
	UploadedBytes     prometheus.Histogram
	ArtifactsExported *prometheus.CounterVec
	SessionsReaped    *prometheus.CounterVec
}

// NewPipelineMetrics creates and registers pipeline metrics on the given registry.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_operations_total",
			Help:      "Total pipeline operations, by operation and result.",
		}, []string{"operation", "result"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of live sessions in the store.",
		}),
		UploadedBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "uploaded_font_bytes",
			Help:      "Size of uploaded font files in bytes.",
			Buckets:   prometheus.ExponentialBuckets(16*1024, 2, 10),
		}),
		ArtifactsExported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_exported_total",
			Help:      "Total exported artifacts, by format.",
		}, []string{"format"}),
		SessionsReaped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_reaped_total",
			Help:      "Total sessions torn down, by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(m.Operations, m.ActiveSessions, m.UploadedBytes, m.ArtifactsExported, m.SessionsReaped)
	return m
}
