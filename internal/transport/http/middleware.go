package http

import (
	"net/http"
	"time"

	"course-content-service/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ContextKeyRequestID is the gin context key holding the request id.
const ContextKeyRequestID = "request_id"

// Authorizer checks a lecturer credential. Rejections unwrap to
// domain.ErrUnauthorized.
type Authorizer interface {
	Authorize(credential string) error
}

// RequestID reuses X-Request-ID when the client sends one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, reqID)
		c.Header("X-Request-ID", reqID)
		c.Next()
	}
}

// AccessLog writes one zerolog line per request.
func AccessLog(log zerolog.Logger) gin.HandlerFunc {
	log = log.With().Str("component", "http").Logger()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Str("request_id", c.GetString(ContextKeyRequestID)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("Request handled")
	}
}

// RequireLecturer guards lecturer-only routes with a bearer token.
func RequireLecturer(authz Authorizer, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential := auth.BearerCredential(c.GetHeader("Authorization"))
		if err := authz.Authorize(credential); err != nil {
			failWithError(c, log, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
