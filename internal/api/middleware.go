package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/haasonsaas/concierge/internal/observability"
)

const requestIDHeader = "X-Request-ID"

// requestIDMiddleware propagates the caller's request id or assigns one.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(observability.AddRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// instrumentMiddleware traces, measures and logs every request.
func instrumentMiddleware(logger *slog.Logger, metrics Recorder, tracer *observability.Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		if tracer != nil {
			ctx, span := tracer.TraceHTTPRequest(c.Request.Context(), c.Request.Method, route)
			defer span.End()
			c.Request = c.Request.WithContext(ctx)
			defer func() {
				tracer.SetStatusCode(span, c.Writer.Status())
				if len(c.Errors) > 0 {
					tracer.RecordError(span, c.Errors.Last().Err)
				}
			}()
		}

		c.Next()

		status := c.Writer.Status()
		elapsed := time.Since(start)
		if metrics != nil {
			metrics.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(status), elapsed.Seconds())
		}
		logger.InfoContext(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"client_ip", c.ClientIP())
	}
}

// errorMiddleware renders the last handler error in the response envelope.
func errorMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		httpErr := asHTTPError(c.Errors.Last().Err)
		message := httpErr.Message
		if message == "" {
			message = httpErr.Error()
		}

		if httpErr.Status >= http.StatusInternalServerError {
			logger.Error("request failed", "code", httpErr.Code, "status", httpErr.Status, "path", c.Request.URL.Path, "error", httpErr.Err)
		} else {
			logger.Warn("request failed", "code", httpErr.Code, "status", httpErr.Status, "path", c.Request.URL.Path, "error", httpErr.Err)
		}

		c.JSON(httpErr.Status, envelope{Error: &errorBody{Code: httpErr.Code, Message: message}})
	}
}
