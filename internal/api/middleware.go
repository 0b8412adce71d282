package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"example.com/backstage/services/warehouse/internal/metrics"
	"example.com/backstage/services/warehouse/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey = "X-Request-ID"
	apiKeyKey    = "api_key"
)

// RequestIDMiddleware adds a request ID to the context
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDKey)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(requestIDKey, requestID)
		c.Header(requestIDKey, requestID)

		c.Next()
	}
}

// CORSMiddleware handles CORS for the configured origins
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowed := ""
		for _, o := range allowedOrigins {
			if o == "*" || o == origin {
				allowed = o
				break
			}
		}

		if allowed != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", allowed)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, X-Request-ID")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PATCH, DELETE")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// LoggingMiddleware logs API requests
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		requestID, _ := c.Get(requestIDKey)
		status := c.Writer.Status()

		event := log.Info()
		switch {
		case status >= http.StatusInternalServerError:
			event = log.Error()
		case status >= http.StatusBadRequest:
			event = log.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Interface("request_id", requestID).
			Msg("API request")
	}
}

// MetricsMiddleware records request counts and latency per route
func MetricsMiddleware(collector *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		collector.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// NewRelicMiddleware returns a gin middleware for New Relic tracing.
// A nil application disables it.
func NewRelicMiddleware(app *newrelic.Application) gin.HandlerFunc {
	if app == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return nrgin.Middleware(app)
}

// Authenticator resolves a bearer secret to its API key
type Authenticator interface {
	Authenticate(ctx context.Context, secret string) (*models.APIKey, error)
}

// APIKeyAuth validates API keys from the Authorization header. With roles
// given, the key must hold one of them.
func APIKeyAuth(auth Authenticator, roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			WriteError(c, NewError("Authorization header required", http.StatusUnauthorized, "UNAUTHORIZED"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			WriteError(c, NewError("Invalid Authorization header format. Expected: 'Bearer {token}'", http.StatusUnauthorized, "UNAUTHORIZED"))
			return
		}

		apiKey, err := auth.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("Rejected API key")
			WriteError(c, err)
			return
		}

		if len(roles) > 0 && !hasRole(apiKey.Role, roles) {
			WriteError(c, NewError("Insufficient permissions", http.StatusForbidden, "FORBIDDEN"))
			return
		}

		c.Set(apiKeyKey, apiKey)
		c.Next()
	}
}

func hasRole(role models.Role, roles []models.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// APIKeyFromContext returns the key APIKeyAuth stored on the request
func APIKeyFromContext(c *gin.Context) (*models.APIKey, bool) {
	v, ok := c.Get(apiKeyKey)
	if !ok {
		return nil, false
	}
	key, ok := v.(*models.APIKey)
	return key, ok
}
