package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/timmy/zip2text/internal/logger"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestLogger returns a Gin middleware that injects request-scoped log
// fields into the request context and logs each completed request.
// An incoming X-Request-ID is reused so ids can be correlated across hops.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.New().String()
		}

		ctx := logger.WithFields(c.Request.Context(), logger.Fields{
			logger.FieldRequestID: requestID,
			logger.FieldComponent: "api",
		})
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, requestID)

		logger.CtxDebug(ctx, "Request started: method=%s, path=%s, client_ip=%s",
			c.Request.Method, c.Request.URL.Path, c.ClientIP())

		c.Next()

		entry := logger.With(logger.Fields{
			logger.FieldStatus: c.Writer.Status(),
			logger.FieldSize:   c.Writer.Size(),
		}).WithSince(start)

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		switch {
		case len(c.Errors) > 0:
			entry.Error(ctx, "Request failed: method=%s, route=%s, errors=%s", c.Request.Method, route, c.Errors.String())
		case c.Writer.Status() >= 500:
			entry.Warn(ctx, "Request completed: method=%s, route=%s", c.Request.Method, route)
		default:
			entry.Info(ctx, "Request completed: method=%s, route=%s", c.Request.Method, route)
		}
	}
}
