package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "charta",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"app", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "charta",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"app", "method", "path", "status"},
	)
	contextsOpened = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "charta",
			Subsystem: "mapping",
			Name:      "contexts_opened_total",
			Help:      "Session contexts opened, by mapping domain and scope.",
		},
		[]string{"domain", "scope"},
	)
	contextsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "charta",
			Subsystem: "mapping",
			Name:      "contexts_closed_total",
			Help:      "Session contexts closed, by mapping domain, scope, and outcome.",
		},
		[]string{"domain", "scope", "outcome"},
	)
	contextDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "charta",
			Subsystem: "mapping",
			Name:      "context_duration_seconds",
			Help:      "Session context lifetime from open to close in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"domain", "scope"},
	)
	engineBuilds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "charta",
			Subsystem: "engine",
			Name:      "builds_total",
			Help:      "Mapping engine builds at lifecycle start, by domain and result.",
		},
		[]string{"domain", "result"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			contextsOpened,
			contextsClosed,
			contextDuration,
			engineBuilds,
		)
	})
}

func RecordHTTPRequest(app, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(app, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(app, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordContextOpened(domain, scope string) {
	RegisterMetrics()
	contextsOpened.WithLabelValues(domain, scope).Inc()
}

func RecordContextClosed(domain, scope, outcome string, duration time.Duration) {
	RegisterMetrics()
	contextsClosed.WithLabelValues(domain, scope, outcome).Inc()
	contextDuration.WithLabelValues(domain, scope).Observe(duration.Seconds())
}

func RecordEngineBuild(domain string, err error) {
	RegisterMetrics()
	result := "ok"
	if err != nil {
		result = "error"
	}
	engineBuilds.WithLabelValues(domain, result).Inc()
}
