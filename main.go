package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/Conceptual-Machines/travel-guide-api/internal/api"
	"github.com/Conceptual-Machines/travel-guide-api/internal/config"
	"github.com/Conceptual-Machines/travel-guide-api/internal/llm"
	"github.com/Conceptual-Machines/travel-guide-api/internal/metrics"
	"github.com/Conceptual-Machines/travel-guide-api/internal/observability"
	"github.com/Conceptual-Machines/travel-guide-api/internal/pipeline"
	"github.com/Conceptual-Machines/travel-guide-api/internal/session"
)

const sentryFlushTimeout = 2 * time.Second

// releaseVersion is set via ldflags during build
var releaseVersion = "dev"

// GetVersion returns the current release version
func GetVersion() string {
	return releaseVersion
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	// Initialize Sentry
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			Release:          "travel-guide-api@" + releaseVersion,
			EnableTracing:    true,
			TracesSampleRate: 1.0,
			EnableLogs:       true,
			Debug:            !cfg.IsProduction(),
			BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
				// Filter out sensitive data
				if event.Request != nil {
					event.Request.Headers = filterSensitiveHeaders(event.Request.Headers)
				}
				return event
			},
		}); err != nil {
			log.Printf("Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s, release: %s)", cfg.Environment, releaseVersion)
			// Flush on shutdown
			defer sentry.Flush(sentryFlushTimeout)
		}
	} else {
		log.Println("⚠️  Sentry not configured (SENTRY_DSN not set)")
	}

	ctx := context.Background()

	// Metrics: Sentry spans always, CloudWatch in production
	recorder := metrics.Multi{metrics.NewSentryMetrics()}
	if cw, err := metrics.NewClient(ctx, cfg.Environment); err == nil && cw.Enabled() {
		recorder = append(recorder, cw)
	}

	tracer := observability.InitializeLangfuse(ctx, cfg)

	providers := llm.NewProviderFactory(cfg.OpenAIAPIKey, cfg.GeminiAPIKey)
	guides := pipeline.New(providers, pipeline.OptionsFromConfig(cfg), recorder, tracer)
	log.Printf("🧭 Text models: %v, image models: %v", cfg.TextModels, cfg.ImageModels)

	sessions := session.NewManager(cfg.SessionTTL)
	cookies := session.NewCookieStore(cfg.SessionSecret, cfg.IsProduction(), cfg.SessionTTL)
	if cfg.SessionSecret == "" {
		log.Println("⚠️  SESSION_SECRET not set, browser sessions end on restart")
	}

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	router := api.SetupRouter(cfg, api.Dependencies{
		Runner:   guides,
		Sessions: sessions,
		Cookies:  cookies,
		Recorder: recorder,
	}, GetVersion())

	log.Printf("🚀 Starting server on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		sentry.CaptureException(err)
		log.Fatal("Failed to start server:", err)
	}
}

func filterSensitiveHeaders(headers map[string]string) map[string]string {
	filtered := make(map[string]string)
	sensitiveKeys := map[string]bool{
		"authorization": true,
		"cookie":        true,
		"set-cookie":    true,
		"x-api-key":     true,
	}

	for k, v := range headers {
		if sensitiveKeys[strings.ToLower(k)] {
			filtered[k] = "[REDACTED]"
		} else {
			filtered[k] = v
		}
	}
	return filtered
}
