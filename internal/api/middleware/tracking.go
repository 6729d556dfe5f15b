package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Conceptual-Machines/travel-guide-api/internal/logger"
	"github.com/Conceptual-Machines/travel-guide-api/internal/metrics"
)

const (
	requestIDHeader = "X-Request-ID"
	unmatchedRoute  = "unmatched"
)

// RequestTracking tags each request with an ID, logs its outcome and records
// it per route. A caller-supplied X-Request-ID is kept when it is a UUID.
func RequestTracking(recorder metrics.Recorder) gin.HandlerFunc {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return func(c *gin.Context) {
		requestID := requestIDFrom(c.GetHeader(requestIDHeader))
		c.Set("request_id", requestID)
		c.Header(requestIDHeader, requestID)

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		status := c.Writer.Status()
		fields := requestFields(c)
		fields["status_code"] = status
		fields["duration_ms"] = duration.Milliseconds()
		if guideRequest(c) {
			fields["guide"] = true
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("Request failed with server error", nil, fields)
		case status >= http.StatusBadRequest:
			logger.Warn("Request failed with client error", fields)
		default:
			logger.Info("Request completed", fields)
		}

		recorder.RecordAPIRequest(c.Request.Context(), routeOf(c), status, duration)
	}
}

func requestIDFrom(header string) string {
	if id, err := uuid.Parse(strings.TrimSpace(header)); err == nil {
		return id.String()
	}
	return uuid.New().String()
}

// routeOf returns the matched route pattern so /guides/:id is one series
func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return unmatchedRoute
}

// guideRequest reports whether the request ran the guide pipeline
func guideRequest(c *gin.Context) bool {
	if c.Request.Method != http.MethodPost {
		return false
	}
	route := routeOf(c)
	return route == "/generate" || route == "/api/v1/guides"
}

// requestFields are the log and Sentry fields shared by every request
func requestFields(c *gin.Context) logger.Fields {
	fields := logger.WithContext(c)
	fields["route"] = routeOf(c)
	fields["client_ip"] = c.ClientIP()
	return fields
}
