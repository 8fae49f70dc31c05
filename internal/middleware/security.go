package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/health-advisor-server/internal/logging"
)

// HeaderCorrelationID carries the per-request correlation ID.
const HeaderCorrelationID = "X-Correlation-ID"

// ContextKeyCorrelationID is the gin context key holding the correlation ID.
const ContextKeyCorrelationID = "correlation_id"

// SecurityHeaders adds security headers to all responses
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Header("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'; form-action 'self'")

		// Health data must not leak through referrers or caches.
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Cache-Control", "no-store")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		c.Next()
	}
}

// CorrelationID adds a unique correlation ID to each request and to the
// request context used by downstream logging.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(HeaderCorrelationID)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Set(ContextKeyCorrelationID, correlationID)
		c.Header(HeaderCorrelationID, correlationID)
		c.Request = c.Request.WithContext(logging.WithCorrelation(c.Request.Context(), correlationID))

		c.Next()
	}
}

// AuditLogger writes one structured entry per request. Request bodies are
// never logged.
func AuditLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		entry := logger.WithFields(logging.Sanitize(logrus.Fields{
			logging.FieldCorrelationID: c.GetString(ContextKeyCorrelationID),
			"method":                   c.Request.Method,
			"path":                     path,
			"status":                   c.Writer.Status(),
			"latency_ms":               time.Since(start).Milliseconds(),
			"client_ip":                c.ClientIP(),
			"user_agent":               c.Request.UserAgent(),
			"response_size":            c.Writer.Size(),
		}))

		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("Request completed")
		case status >= 400:
			entry.Warn("Request completed")
		default:
			entry.Info("Request completed")
		}
	}
}
