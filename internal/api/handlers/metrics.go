package handlers

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Conceptual-Machines/travel-guide-api/internal/config"
	"github.com/Conceptual-Machines/travel-guide-api/internal/session"
)

const bytesPerMB = 1024 * 1024

// MetricsHandler reports process stats and how many guides are in flight
type MetricsHandler struct {
	startTime time.Time
	version   string
	cfg       *config.Config
	sessions  *session.Manager
}

func NewMetricsHandler(version string, cfg *config.Config, sessions *session.Manager) *MetricsHandler {
	return &MetricsHandler{
		startTime: time.Now(),
		version:   version,
		cfg:       cfg,
		sessions:  sessions,
	}
}

type MetricsResponse struct {
	Uptime    string          `json:"uptime"`
	Timestamp string          `json:"timestamp"`
	Version   string          `json:"version"`
	StartTime string          `json:"start_time"`
	System    SystemMetrics   `json:"system"`
	Sessions  SessionMetrics  `json:"sessions"`
	Pipeline  PipelineMetrics `json:"pipeline"`
}

type SystemMetrics struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	MemAllocMB   uint64 `json:"mem_alloc_mb"`
	MemTotalMB   uint64 `json:"mem_total_mb"`
	NumGC        uint32 `json:"num_gc"`
}

// SessionMetrics counts live sessions; InFlight are validating, generating or rendering
type SessionMetrics struct {
	Active   int                   `json:"active"`
	InFlight int                   `json:"in_flight"`
	ByState  map[session.State]int `json:"by_state"`
}

// PipelineMetrics echoes the configured model chains
type PipelineMetrics struct {
	TextModels   []string `json:"text_models"`
	ImageModels  []string `json:"image_models"`
	ImageSize    string   `json:"image_size"`
	ModelTimeout string   `json:"model_timeout"`
}

func (h *MetricsHandler) GetMetrics(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	byState := h.sessions.CountByState()
	active := 0
	for _, n := range byState {
		active += n
	}

	c.JSON(http.StatusOK, MetricsResponse{
		Uptime:    formatUptime(time.Since(h.startTime)),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
		StartTime: h.startTime.UTC().Format(time.RFC3339),
		System: SystemMetrics{
			GoVersion:    runtime.Version(),
			NumGoroutine: runtime.NumGoroutine(),
			MemAllocMB:   mem.Alloc / bytesPerMB,
			MemTotalMB:   mem.TotalAlloc / bytesPerMB,
			NumGC:        mem.NumGC,
		},
		Sessions: SessionMetrics{
			Active:   active,
			InFlight: byState[session.StateValidating] + byState[session.StateGenerating] + byState[session.StateRendering],
			ByState:  byState,
		},
		Pipeline: PipelineMetrics{
			TextModels:   h.cfg.TextModels,
			ImageModels:  h.cfg.ImageModels,
			ImageSize:    h.cfg.ImageSize,
			ModelTimeout: h.cfg.ModelTimeout.String(),
		},
	})
}

// formatUptime renders d as [Nh][Nm]S.SSs
func formatUptime(d time.Duration) string {
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	seconds := (d % time.Minute).Seconds()

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh%dm%.2fs", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm%.2fs", minutes, seconds)
	default:
		return fmt.Sprintf("%.2fs", seconds)
	}
}
