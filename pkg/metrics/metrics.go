package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewServerMetrics(service string) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crm",
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "crm",
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})

	prometheus.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// RelayMetrics counts audit events drained from the outbox to the
// broker.
type RelayMetrics struct {
	Delivered *prometheus.CounterVec
	Failed    *prometheus.CounterVec
}

func NewRelayMetrics(service string) *RelayMetrics {
	delivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crm",
		Subsystem: service,
		Name:      "audit_events_delivered_total",
		Help:      "Audit events published to the broker and marked sent.",
	}, []string{"topic"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crm",
		Subsystem: service,
		Name:      "audit_events_failed_total",
		Help:      "Audit event publish attempts that failed.",
	}, []string{"topic"})

	prometheus.MustRegister(delivered, failed)
	return &RelayMetrics{Delivered: delivered, Failed: failed}
}

// ArchiveMetrics counts audit events landed in the archive tables.
type ArchiveMetrics struct {
	Archived   *prometheus.CounterVec
	Duplicates prometheus.Counter
}

func NewArchiveMetrics(service string) *ArchiveMetrics {
	archived := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crm",
		Subsystem: service,
		Name:      "audit_events_archived_total",
		Help:      "Audit events written to the archive.",
	}, []string{"entity", "type"})
	duplicates := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "crm",
		Subsystem: service,
		Name:      "audit_events_duplicate_total",
		Help:      "Audit events skipped because the inbox already saw their event id.",
	})

	prometheus.MustRegister(archived, duplicates)
	return &ArchiveMetrics{Archived: archived, Duplicates: duplicates}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
