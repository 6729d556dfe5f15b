package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"

	"github.com/Conceptual-Machines/travel-guide-api/internal/logger"
)

const (
	sentryFlushTimeout = 2 * time.Second
	apiPrefix          = "/api/"
)

// SentryMiddleware attaches a Sentry hub to every request
func SentryMiddleware() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         sentryFlushTimeout,
	})
}

// RecoverWithSentry turns a panic into a 500. API callers get JSON and
// browsers get a short page pointing back to the form.
func RecoverWithSentry() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			fields := requestFields(c)
			reportPanic(c, recovered, fields)
			fields["panic"] = fmt.Sprint(recovered)
			logger.Error("Panic recovered", nil, fields)

			requestID := c.GetString("request_id")
			if strings.HasPrefix(c.Request.URL.Path, apiPrefix) {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":      "Internal server error",
					"request_id": requestID,
				})
				return
			}
			c.Header("Content-Type", "text/html; charset=utf-8")
			c.AbortWithStatus(http.StatusInternalServerError)
			_, _ = fmt.Fprintf(c.Writer,
				`<p>Internal server error while building your guide (request %s).</p><p><a href="/">Back to the form</a></p>`,
				requestID)
		}()
		c.Next()
	}
}

func reportPanic(c *gin.Context, recovered interface{}, fields logger.Fields) {
	hub := sentrygin.GetHubFromContext(c)
	if hub == nil {
		return
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(c.Request)
		scope.SetContext("request", map[string]interface{}(fields))
		scope.SetTag("route", routeOf(c))
		if sessionID := c.GetString("session_id"); sessionID != "" {
			scope.SetTag("session_id", sessionID)
		}
		hub.RecoverWithContext(c.Request.Context(), recovered)
	})
}
