package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

const environmentProduction = "production"

// Default model fallback chains, tried in order
var (
	DefaultTextModels        = []string{"gpt-4o", "gpt-4-turbo", "gpt-4"}
	DefaultGeminiTextModels  = []string{"gemini-2.5-flash"}
	DefaultImageModels       = []string{"gpt-image-1", "dall-e-3"}
	DefaultGeminiImageModels = []string{"imagen-3.0-generate-002"}
)

// ErrMissingOpenAIKey is returned by Validate when OPENAI_API_KEY is not set
var ErrMissingOpenAIKey = errors.New("OPENAI_API_KEY is not set: export it or add it to a .env file")

// Config holds the application configuration.
// Everything comes from the environment; there are no flags.
type Config struct {
	// Environment
	Environment string
	Port        string

	// LLM API Keys
	OpenAIAPIKey string // Required
	GeminiAPIKey string // Optional, adds Gemini models to the fallback chains

	// Generation
	TextModels      []string      // Ordered fallback chain for itinerary text
	ImageModels     []string      // Ordered fallback chain for images
	ImageSize       string        // e.g. 1024x1024
	MaxOutputTokens int           // Upper bound on itinerary length
	Temperature     float64       // Sampling temperature for itinerary text
	ModelTimeout    time.Duration // Per-attempt timeout

	// Images
	ImageRateInterval time.Duration // Minimum spacing between image calls
	ImageCacheTTL     time.Duration // How long generated images are reused

	// Sessions
	SessionTTL    time.Duration // Idle time before a session is discarded
	SessionSecret string        // Cookie signing key; random per process when empty

	// HTTP
	CORSAllowedOrigins []string

	// Observability
	SentryDSN         string // Sentry DSN for error tracking
	LangfusePublicKey string // Langfuse public key
	LangfuseSecretKey string // Langfuse secret key
	LangfuseHost      string // Langfuse host URL (cloud or self-hosted)
	LangfuseEnabled   bool   // Feature flag for Langfuse
}

func Load() *Config {
	cfg := &Config{
		Environment:        getEnv("ENVIRONMENT", "development"),
		Port:               getEnv("PORT", "8080"),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		ImageSize:          getEnv("IMAGE_SIZE", "1024x1024"),
		MaxOutputTokens:    getEnvInt("MAX_OUTPUT_TOKENS", 3000),
		Temperature:        getEnvFloat("TEMPERATURE", 0.7),
		ModelTimeout:       getEnvDuration("MODEL_TIMEOUT", 90*time.Second),
		ImageRateInterval:  getEnvDuration("IMAGE_RATE_INTERVAL", time.Second),
		ImageCacheTTL:      getEnvDuration("IMAGE_CACHE_TTL", time.Hour),
		SessionTTL:         getEnvDuration("SESSION_TTL", 2*time.Hour),
		SessionSecret:      getEnv("SESSION_SECRET", ""),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		SentryDSN:          getEnv("SENTRY_DSN", ""),
		LangfusePublicKey:  getEnv("LANGFUSE_PUBLIC_KEY", ""),
		LangfuseSecretKey:  getEnv("LANGFUSE_SECRET_KEY", ""),
		LangfuseHost:       getEnv("LANGFUSE_HOST", "https://cloud.langfuse.com"),
		LangfuseEnabled:    getEnv("LANGFUSE_ENABLED", "false") == "true",
	}

	textDefaults := DefaultTextModels
	imageDefaults := DefaultImageModels
	if cfg.GeminiAPIKey != "" {
		textDefaults = concat(textDefaults, DefaultGeminiTextModels)
		imageDefaults = concat(imageDefaults, DefaultGeminiImageModels)
	}
	cfg.TextModels = getEnvList("TEXT_MODELS", textDefaults)
	cfg.ImageModels = getEnvList("IMAGE_MODELS", imageDefaults)

	return cfg
}

// Validate fails when the service cannot start
func (c *Config) Validate() error {
	if strings.TrimSpace(c.OpenAIAPIKey) == "" {
		return ErrMissingOpenAIKey
	}
	if len(c.TextModels) == 0 {
		return errors.New("TEXT_MODELS must list at least one model")
	}
	return nil
}

// IsProduction returns true when running in production
func (c *Config) IsProduction() bool {
	return c.Environment == environmentProduction
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return defaultValue
}

// getEnvList reads a comma separated list, dropping blanks
func getEnvList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func concat(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
