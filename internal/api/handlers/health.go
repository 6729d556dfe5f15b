package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Conceptual-Machines/travel-guide-api/internal/config"
	"github.com/Conceptual-Machines/travel-guide-api/internal/session"
)

type HealthHandler struct {
	cfg      *config.Config
	sessions *session.Manager
}

func NewHealthHandler(cfg *config.Config, sessions *session.Manager) *HealthHandler {
	return &HealthHandler{cfg: cfg, sessions: sessions}
}

// HealthCheck returns the health status of the API
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	geminiStatus := "disabled"
	if h.cfg.GeminiAPIKey != "" {
		geminiStatus = "enabled"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"sessions": h.sessions.Count(),
		"models": gin.H{
			"text":  h.cfg.TextModels,
			"image": h.cfg.ImageModels,
		},
		"gemini": geminiStatus,
	})
}
