package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTPMetrics holds request metrics for the API server.
type HTTPMetrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Evaluations     *prometheus.CounterVec
}

// NewHTTPMetrics builds the API server metrics. They are not registered.
func NewHTTPMetrics() *HTTPMetrics {
	const subsystem = "http"

	return &HTTPMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "Count of API requests by route and status code.",
		}, []string{"method", "route", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "Histogram of API request latency.",
			Buckets:   prometheus.ExponentialBuckets(1e-4, 4, 8),
		}, []string{"method", "route"}),

		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Count of flag evaluations served over the API by kind and result.",
		}, []string{"kind", "result"}),
	}
}

// PrometheusCollectors returns every collector for registration.
func (m *HTTPMetrics) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Requests,
		m.RequestDuration,
		m.Evaluations,
	}
}

// NewRegistry returns a registry holding the engine collector, the HTTP
// metrics and the standard Go and process collectors.
func NewRegistry(src Source, httpMetrics *HTTPMetrics) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		NewCollector(src),
	)
	if httpMetrics != nil {
		reg.MustRegister(httpMetrics.PrometheusCollectors()...)
	}
	return reg
}
