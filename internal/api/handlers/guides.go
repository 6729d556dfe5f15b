package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Conceptual-Machines/travel-guide-api/internal/logger"
	"github.com/Conceptual-Machines/travel-guide-api/internal/models"
	"github.com/Conceptual-Machines/travel-guide-api/internal/session"
)

const guidesPath = "/api/v1/guides/"

// GuideRunner runs the generation pipeline for one session
type GuideRunner interface {
	Run(ctx context.Context, sess *session.Session, req models.TripRequest) (*models.Result, error)
}

type GuideHandler struct {
	runner   GuideRunner
	sessions *session.Manager
}

func NewGuideHandler(runner GuideRunner, sessions *session.Manager) *GuideHandler {
	return &GuideHandler{runner: runner, sessions: sessions}
}

type ImageResponse struct {
	Theme string `json:"theme"`
	Kind  string `json:"kind"`
	Model string `json:"model"`
	URL   string `json:"url"`
}

type AttemptResponse struct {
	Model      string `json:"model"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type GuideResponse struct {
	SessionID   string            `json:"session_id"`
	State       string            `json:"state"`
	Model       string            `json:"model"`
	Markdown    string            `json:"markdown"`
	Itinerary   *models.Itinerary `json:"itinerary"`
	Images      []ImageResponse   `json:"images"`
	Warnings    []string          `json:"warnings"`
	Attempts    []AttemptResponse `json:"attempts"`
	DownloadURL string            `json:"download_url"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Interests lists the interest tags offered by the form
func (h *GuideHandler) Interests(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"interests": models.SpecialInterestOptions})
}

// Create runs the pipeline for a new session
func (h *GuideHandler) Create(c *gin.Context) {
	var req models.TripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body: " + err.Error()})
		return
	}

	sess, _ := h.sessions.GetOrCreate(session.NewID())
	c.Set("session_id", sess.ID)

	result, err := h.runner.Run(c.Request.Context(), sess, req)
	if err != nil {
		h.respondError(c, sess, err)
		return
	}

	c.JSON(http.StatusCreated, newGuideResponse(sess, result))
}

// Get returns the last guide produced for a session
func (h *GuideHandler) Get(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}

	result := sess.Result()
	if result == nil {
		resp := gin.H{
			"error":      "No guide has been generated for this session",
			"session_id": sess.ID,
			"state":      string(sess.State()),
		}
		if lastErr := sess.LastError(); lastErr != nil {
			resp["last_error"] = lastErr.Error()
		}
		c.JSON(http.StatusNotFound, resp)
		return
	}

	c.JSON(http.StatusOK, newGuideResponse(sess, result))
}

// PDF streams the rendered guide
func (h *GuideHandler) PDF(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}

	result := sess.Result()
	if result == nil || result.Document == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No PDF available for this session"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, result.Document.Filename))
	c.Data(http.StatusOK, "application/pdf", result.Document.Data)
}

// Image serves one generated image by position
func (h *GuideHandler) Image(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}

	img, ok := imageAt(sess.Result(), c.Param("index"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
		return
	}
	c.Data(http.StatusOK, img.MIMEType, img.Data)
}

func (h *GuideHandler) lookup(c *gin.Context) (*session.Session, bool) {
	sess, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found or expired"})
		return nil, false
	}
	c.Set("session_id", sess.ID)
	return sess, true
}

func (h *GuideHandler) respondError(c *gin.Context, sess *session.Session, err error) {
	var (
		verr    *models.ValidationError
		failure *models.GenerationFailure
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  verr.Error(),
			"fields": verr.Fields,
		})
	case errors.As(err, &failure):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":      failure.Error(),
			"session_id": sess.ID,
			"stage":      failure.Stage,
			"attempts":   attemptResponses(failure.Attempts),
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Request cancelled before the guide was finished"})
	default:
		logger.Error("Guide generation failed", err, logger.WithContext(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate guide"})
	}
}

func newGuideResponse(sess *session.Session, result *models.Result) GuideResponse {
	resp := GuideResponse{
		SessionID:   sess.ID,
		State:       string(sess.State()),
		Itinerary:   result.Itinerary,
		Images:      make([]ImageResponse, 0, len(result.Images)),
		Warnings:    result.WarningMessages(),
		Attempts:    attemptResponses(result.Attempts),
		DownloadURL: guidesPath + sess.ID + "/pdf",
		CreatedAt:   result.CreatedAt,
	}
	if result.Itinerary != nil {
		resp.Model = result.Itinerary.Model
		resp.Markdown = result.Itinerary.Raw
	}
	for i, img := range result.Images {
		resp.Images = append(resp.Images, ImageResponse{
			Theme: img.Theme,
			Kind:  img.Kind,
			Model: img.Model,
			URL:   guidesPath + sess.ID + "/images/" + strconv.Itoa(i),
		})
	}
	return resp
}

func attemptResponses(attempts []models.Attempt) []AttemptResponse {
	out := make([]AttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, AttemptResponse{
			Model:      a.Name,
			Error:      a.ErrorString(),
			DurationMS: a.Duration.Milliseconds(),
		})
	}
	return out
}

// imageAt returns the image at a decimal index of the result's image set
func imageAt(result *models.Result, index string) (models.Image, bool) {
	if result == nil {
		return models.Image{}, false
	}
	i, err := strconv.Atoi(index)
	if err != nil || i < 0 || i >= len(result.Images) {
		return models.Image{}, false
	}
	return result.Images[i], true
}
