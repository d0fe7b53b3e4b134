package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const RequestIDHeader = "X-Request-ID"

// Logger logs one line per request and tags it with a request id, reusing the
// caller's X-Request-ID when present.
func Logger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		reqLog := log.With().Str("request_id", requestID).Logger()
		c.Request = c.Request.WithContext(reqLog.WithContext(c.Request.Context()))

		c.Next()

		status := c.Writer.Status()
		duration := time.Since(start)

		var event *zerolog.Event
		var msg string
		switch {
		case status >= 500:
			event, msg = reqLog.Error(), "server error"
		case status >= 400:
			event, msg = reqLog.Warn(), "client error"
		default:
			event, msg = reqLog.Info(), "request completed"
		}

		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration_ms", duration/time.Millisecond).
			Int("bytes", c.Writer.Size()).
			Str("ip", c.ClientIP()).
			Msg(msg)
	}
}
