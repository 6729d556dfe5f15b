package api

import (
	"github.com/gin-gonic/gin"

	"github.com/Conceptual-Machines/travel-guide-api/internal/api/handlers"
	apimiddleware "github.com/Conceptual-Machines/travel-guide-api/internal/api/middleware"
	"github.com/Conceptual-Machines/travel-guide-api/internal/config"
	"github.com/Conceptual-Machines/travel-guide-api/internal/metrics"
	"github.com/Conceptual-Machines/travel-guide-api/internal/session"
	webhandlers "github.com/Conceptual-Machines/travel-guide-api/internal/web/handlers"
)

// Dependencies are the long-lived services the routes share
type Dependencies struct {
	Runner   handlers.GuideRunner
	Sessions *session.Manager
	Cookies  *session.CookieStore
	Recorder metrics.Recorder
}

func SetupRouter(cfg *config.Config, deps Dependencies, version string) *gin.Engine {
	router := gin.New()

	// Recovery middleware (must be first)
	router.Use(apimiddleware.RecoverWithSentry())

	// Sentry middleware for error tracking
	router.Use(apimiddleware.SentryMiddleware())

	// Request tracking and structured logging
	router.Use(apimiddleware.RequestTracking(deps.Recorder))

	// CORS middleware
	router.Use(apimiddleware.CORS(cfg.CORSAllowedOrigins))

	// Health check
	healthHandler := handlers.NewHealthHandler(cfg, deps.Sessions)
	router.GET("/health", healthHandler.HealthCheck)

	// Metrics endpoint
	metricsHandler := handlers.NewMetricsHandler(version, cfg, deps.Sessions)
	router.GET("/api/metrics", metricsHandler.GetMetrics)

	// Web pages (cookie session)
	webHandler := webhandlers.NewWebHandler(deps.Runner, deps.Sessions, deps.Cookies)
	router.GET("/", webHandler.Home)
	router.POST("/generate", webHandler.Generate)
	router.GET("/download", webHandler.Download)
	router.GET("/images/:index", webHandler.Image)

	// JSON API v1 (session ID in the path)
	v1 := router.Group("/api/v1")
	{
		guideHandler := handlers.NewGuideHandler(deps.Runner, deps.Sessions)
		v1.GET("/interests", guideHandler.Interests)
		v1.POST("/guides", guideHandler.Create)
		v1.GET("/guides/:id", guideHandler.Get)
		v1.GET("/guides/:id/pdf", guideHandler.PDF)
		v1.GET("/guides/:id/images/:index", guideHandler.Image)
	}

	return router
}
