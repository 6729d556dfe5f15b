package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"

	"github.com/Conceptual-Machines/travel-guide-api/internal/logger"
	"github.com/Conceptual-Machines/travel-guide-api/internal/models"
	"github.com/Conceptual-Machines/travel-guide-api/internal/session"
	"github.com/Conceptual-Machines/travel-guide-api/internal/web/templates"
)

const (
	downloadURL  = "/download"
	imagesPrefix = "/images/"
)

// Runner runs the generation pipeline for one session
type Runner interface {
	Run(ctx context.Context, sess *session.Session, req models.TripRequest) (*models.Result, error)
}

type WebHandler struct {
	runner   Runner
	sessions *session.Manager
	cookies  *session.CookieStore
}

func NewWebHandler(runner Runner, sessions *session.Manager, cookies *session.CookieStore) *WebHandler {
	return &WebHandler{
		runner:   runner,
		sessions: sessions,
		cookies:  cookies,
	}
}

// Home renders the trip form with the session's current input
func (h *WebHandler) Home(c *gin.Context) {
	sess, ok := h.browserSession(c)
	if !ok {
		return
	}

	data := h.formData(sess, sess.Request())
	if sess.State() == session.StateFailed {
		applyError(&data, sess.LastError())
	}
	render(c, http.StatusOK, templates.TripForm(data))
}

// Generate runs the pipeline for the submitted form
func (h *WebHandler) Generate(c *gin.Context) {
	sess, ok := h.browserSession(c)
	if !ok {
		return
	}

	if err := c.Request.ParseForm(); err != nil {
		c.String(http.StatusBadRequest, "Malformed form submission")
		return
	}
	req := session.FromForm(c.Request.PostForm)

	result, err := h.runner.Run(c.Request.Context(), sess, req)
	if err != nil {
		data := h.formData(sess, req)
		applyError(&data, err)
		render(c, statusFor(err), templates.TripForm(data))
		return
	}

	render(c, http.StatusOK, templates.TripResult(resultData(result)))
}

// Download streams the session's last PDF
func (h *WebHandler) Download(c *gin.Context) {
	sess, ok := h.browserSession(c)
	if !ok {
		return
	}

	result := sess.Result()
	if result == nil || result.Document == nil {
		c.String(http.StatusNotFound, "No guide has been generated yet")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, result.Document.Filename))
	c.Data(http.StatusOK, "application/pdf", result.Document.Data)
}

// Image serves one image of the session's last result
func (h *WebHandler) Image(c *gin.Context) {
	sess, ok := h.browserSession(c)
	if !ok {
		return
	}

	result := sess.Result()
	index, err := strconv.Atoi(c.Param("index"))
	if result == nil || err != nil || index < 0 || index >= len(result.Images) {
		c.String(http.StatusNotFound, "Image not found")
		return
	}

	img := result.Images[index]
	c.Data(http.StatusOK, img.MIMEType, img.Data)
}

// browserSession resolves the cookie to a live session, creating one when needed
func (h *WebHandler) browserSession(c *gin.Context) (*session.Session, bool) {
	id, err := h.cookies.SessionID(c.Writer, c.Request)
	if err != nil {
		logger.Error("Failed to issue session cookie", err, logger.WithContext(c))
		c.String(http.StatusInternalServerError, "Failed to start session")
		return nil, false
	}

	sess, created := h.sessions.GetOrCreate(id)
	c.Set("session_id", sess.ID)
	if created {
		logger.Debug("Session started", logger.Fields{"session_id": sess.ID})
	}
	return sess, true
}

func (h *WebHandler) formData(sess *session.Session, req models.TripRequest) templates.FormData {
	return templates.FormData{
		Request:   req,
		Options:   models.SpecialInterestOptions,
		HasResult: sess.Result() != nil,
	}
}

// applyError turns a pipeline error into form messages
func applyError(data *templates.FormData, err error) {
	if err == nil {
		return
	}

	var (
		verr    *models.ValidationError
		failure *models.GenerationFailure
	)
	switch {
	case errors.As(err, &verr):
		data.Errors = verr
	case errors.As(err, &failure):
		data.Message = "We could not generate your itinerary. Every model we tried failed."
		for _, a := range failure.Attempts {
			data.Attempts = append(data.Attempts, templates.AttemptView{Model: a.Name, Error: a.ErrorString()})
		}
	default:
		data.Message = "Something went wrong while creating your guide: " + err.Error()
	}
}

func statusFor(err error) int {
	var (
		verr    *models.ValidationError
		failure *models.GenerationFailure
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.As(err, &failure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func resultData(result *models.Result) templates.ResultData {
	data := templates.ResultData{
		Request:     result.Request,
		Warnings:    result.WarningMessages(),
		DownloadURL: downloadURL,
	}
	if result.Itinerary != nil {
		data.Model = result.Itinerary.Model
		data.Markdown = result.Itinerary.Raw
	}
	for i, img := range result.Images {
		data.Images = append(data.Images, templates.ImageView{
			Theme: img.Theme,
			URL:   imagesPrefix + strconv.Itoa(i),
		})
	}
	return data
}

func render(c *gin.Context, status int, component templ.Component) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if err := component.Render(c.Request.Context(), c.Writer); err != nil {
		logger.Error("Failed to render template", err, logger.WithContext(c))
	}
}
