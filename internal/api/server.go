package api

import (
	"context"
	"net/http"
	"time"

	"example.com/backstage/services/warehouse/config"
	"example.com/backstage/services/warehouse/internal/metrics"
	"example.com/backstage/services/warehouse/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

// Server represents the HTTP server
type Server struct {
	config     config.Config
	router     *gin.Engine
	httpServer *http.Server
	service    Service
	tracer     tracing.Tracer
	metrics    *metrics.Metrics
	prometheus *metrics.Prometheus
}

// NewServer creates a new HTTP server. prom may be nil to skip the
// Prometheus endpoint.
func NewServer(cfg config.Config, service Service, tracer tracing.Tracer, collector *metrics.Metrics, prom *metrics.Prometheus) *Server {
	server := &Server{
		config:     cfg,
		service:    service,
		tracer:     tracer,
		metrics:    collector,
		prometheus: prom,
	}

	server.router = server.setupRouter()
	server.httpServer = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	return server
}

// Router exposes the configured engine
func (s *Server) Router() *gin.Engine {
	return s.router
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter() *gin.Engine {
	if s.config.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware())
	if s.config.Server.CorsEnabled {
		router.Use(CORSMiddleware(s.config.Server.CorsOrigins))
	}
	if s.tracer != nil {
		router.Use(NewRelicMiddleware(s.tracer.App()))
	}
	if s.config.MetricsEnabled {
		router.Use(MetricsMiddleware(s.metrics))
	}

	NewMetricsHandler(s.service, s.metrics, s.prometheus).RegisterRoutes(router)
	NewHandler(s.service, s.config.Pagination).RegisterRoutes(router)

	return router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.Server.Address).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
