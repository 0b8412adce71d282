package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus holds the collectors scraped from /metrics/prometheus
type Prometheus struct {
	registry     *prometheus.Registry
	operations   *prometheus.HistogramVec
	opErrors     *prometheus.CounterVec
	queries      *prometheus.HistogramVec
	requests     *prometheus.HistogramVec
	cascades     *prometheus.CounterVec
	cascadeDelta *prometheus.CounterVec
}

// NewPrometheus registers the warehouse collectors on a private registry
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "warehouse",
			Name:      "operation_duration_seconds",
			Help:      "Latency of service operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		opErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warehouse",
			Name:      "operation_errors_total",
			Help:      "Service operations that returned an error.",
		}, []string{"operation"}),
		queries: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "warehouse",
			Name:      "db_query_duration_seconds",
			Help:      "Latency of GORM statements by kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "warehouse",
			Name:      "http_request_duration_seconds",
			Help:      "Latency of API requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		cascades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warehouse",
			Name:      "cascade_applied_total",
			Help:      "Cascade steps applied to product aggregates.",
		}, []string{"cascade"}),
		cascadeDelta: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warehouse",
			Name:      "cascade_required_delta_total",
			Help:      "Absolute required quantity moved by cascades, split by direction.",
		}, []string{"cascade", "direction"}),
	}

	p.registry.MustRegister(
		p.operations, p.opErrors, p.queries, p.requests, p.cascades, p.cascadeDelta,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return p
}

// Handler serves the registry in the Prometheus exposition format
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

func (p *Prometheus) ObserveOperation(name string, d time.Duration, err error) {
	p.operations.WithLabelValues(name).Observe(d.Seconds())
	if err != nil {
		p.opErrors.WithLabelValues(name).Inc()
	}
}

func (p *Prometheus) ObserveQuery(kind string, d time.Duration) {
	p.queries.WithLabelValues(kind).Observe(d.Seconds())
}

func (p *Prometheus) ObserveRequest(method, route string, status int, d time.Duration) {
	p.requests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

func (p *Prometheus) CascadeApplied(cascade string, delta int64) {
	p.cascades.WithLabelValues(cascade).Inc()
	switch {
	case delta > 0:
		p.cascadeDelta.WithLabelValues(cascade, "up").Add(float64(delta))
	case delta < 0:
		p.cascadeDelta.WithLabelValues(cascade, "down").Add(float64(-delta))
	}
}
