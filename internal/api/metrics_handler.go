package api

import (
	"net/http"
	"runtime"

	"example.com/backstage/services/warehouse/internal/metrics"

	"github.com/gin-gonic/gin"
)

// MetricsHandler serves health and metrics endpoints
type MetricsHandler struct {
	service    Service
	metrics    *metrics.Metrics
	prometheus *metrics.Prometheus
}

// NewMetricsHandler creates a new metrics handler. prom may be nil.
func NewMetricsHandler(service Service, collector *metrics.Metrics, prom *metrics.Prometheus) *MetricsHandler {
	return &MetricsHandler{
		service:    service,
		metrics:    collector,
		prometheus: prom,
	}
}

// HandleGetMetrics returns all metrics
func (h *MetricsHandler) HandleGetMetrics(c *gin.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	h.metrics.SetGauge("goroutines", int64(runtime.NumGoroutine()))
	h.metrics.SetGauge("memory_alloc_bytes", int64(memStats.Alloc))

	c.JSON(http.StatusOK, h.metrics.GetAllMetrics())
}

// HandleGetHealthCheck pings the stores and reports the result
func (h *MetricsHandler) HandleGetHealthCheck(c *gin.Context) {
	checks := h.service.Ping(c.Request.Context())

	healthy := true
	for _, ok := range checks {
		if !ok {
			healthy = false
			break
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":  healthy,
		"details": checks,
	})
}

// RegisterRoutes registers the handler's routes
func (h *MetricsHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", h.HandleGetHealthCheck)
	router.GET("/metrics", h.HandleGetMetrics)
	if h.prometheus != nil {
		router.GET("/metrics/prometheus", gin.WrapH(h.prometheus.Handler()))
	}
}
