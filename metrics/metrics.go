package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// ReportsCreatedTotal counts successfully created reports.
	ReportsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "civicreports",
		Subsystem: "lifecycle",
		Name:      "reports_created_total",
		Help:      "Total number of reports created.",
	})

	// TransitionsTotal counts status transitions by action.
	TransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civicreports",
		Subsystem: "lifecycle",
		Name:      "transitions_total",
		Help:      "Total number of report status transitions, labeled by action.",
	}, []string{"action"})

	// ResolutionFailuresTotal counts aborted creations by cause.
	ResolutionFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civicreports",
		Subsystem: "lifecycle",
		Name:      "resolution_failures_total",
		Help:      "Total number of report creations aborted by resolution failures, labeled by cause.",
	}, []string{"cause"})

	// UpstreamRequestsTotal counts advisory upstream calls by service and outcome.
	UpstreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civicreports",
		Subsystem: "upstream",
		Name:      "requests_total",
		Help:      "Total number of upstream advisory calls, labeled by service and result.",
	}, []string{"service", "result"})

	// RequestDurationSeconds is per-endpoint request latency.
	RequestDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "civicreports",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method and path.",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"method", "path", "status"})
)

// Register registers service metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			ReportsCreatedTotal,
			TransitionsTotal,
			ResolutionFailuresTotal,
			UpstreamRequestsTotal,
			RequestDurationSeconds,
		)
	})
}
