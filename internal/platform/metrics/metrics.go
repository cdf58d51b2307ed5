package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ulp-gateway/internal/upstream"
)

// Metrics holds all Prometheus metrics for the gateway.
// All methods are safe to call on a nil receiver.
type Metrics struct {
	LinkOutcomes     *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec
	HTTPLatency      *prometheus.HistogramVec
	SchemaCacheHits  prometheus.Counter
	SchemaCacheMiss  prometheus.Counter
	BulkItemsHandled *prometheus.CounterVec
}

// New creates the gateway metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LinkOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ulp_gateway_link_outcomes_total",
			Help: "Identity linking operations by operation and resulting status",
		}, []string{"operation", "status"}),
		UpstreamLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ulp_gateway_upstream_duration_seconds",
			Help:    "Latency of collaborator calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"service", "op", "outcome"}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ulp_gateway_http_request_duration_seconds",
			Help:    "Latency of inbound HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
		SchemaCacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "ulp_gateway_schema_cache_hits_total",
			Help: "Credential schema lookups served from cache",
		}),
		SchemaCacheMiss: f.NewCounter(prometheus.CounterOpts{
			Name: "ulp_gateway_schema_cache_misses_total",
			Help: "Credential schema lookups that went to the schema service",
		}),
		BulkItemsHandled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ulp_gateway_bulk_items_total",
			Help: "Roster bulk items processed by operation and outcome",
		}, []string{"operation", "outcome"}),
	}
}

// ObserveLink records the final status of an orchestration operation.
func (m *Metrics) ObserveLink(operation, status string) {
	if m == nil {
		return
	}
	m.LinkOutcomes.WithLabelValues(operation, status).Inc()
}

// ObserveUpstream records one collaborator call.
func (m *Metrics) ObserveUpstream(service, op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(upstream.CategoryOf(err))
	}
	m.UpstreamLatency.WithLabelValues(service, op, outcome).Observe(d.Seconds())
}

// ObserveHTTP records one inbound request.
func (m *Metrics) ObserveHTTP(method, route, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPLatency.WithLabelValues(method, route, code).Observe(d.Seconds())
}

// ObserveSchemaCache records a schema cache lookup.
func (m *Metrics) ObserveSchemaCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.SchemaCacheHits.Inc()
		return
	}
	m.SchemaCacheMiss.Inc()
}

// ObserveBulkItem records one roster item outcome ("ok", "skipped", "failed").
func (m *Metrics) ObserveBulkItem(operation, outcome string) {
	if m == nil {
		return
	}
	m.BulkItemsHandled.WithLabelValues(operation, outcome).Inc()
}
