package exports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/drewmudry/captioncast/compositor"
	"github.com/drewmudry/captioncast/models"
	"github.com/drewmudry/captioncast/processing"
	"github.com/drewmudry/captioncast/tasks"
	"github.com/gin-gonic/gin"
)

// ItemSource looks up saved items for export requests.
type ItemSource interface {
	Get(ctx context.Context, id uint) (*models.Item, error)
}

// Feed streams export events, typically from Redis pub/sub.
type Feed interface {
	Subscribe(ctx context.Context) <-chan tasks.ExportEvent
}

type Handler struct {
	Queue     *Queue
	Artifacts *ArtifactService
	Items     ItemSource
	// Feed is optional; without it the events route is not mounted.
	Feed Feed
}

func NewHandler(q *Queue, artifacts *ArtifactService, items ItemSource) *Handler {
	return &Handler{Queue: q, Artifacts: artifacts, Items: items}
}

// Register mounts the export and artifact routes on r.
func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/exports", h.CreateExport)
	r.GET("/exports", h.ListExports)
	r.DELETE("/exports/:id", h.DeleteExport)
	r.POST("/exports/preview", h.Preview)
	if h.Feed != nil {
		r.GET("/exports/events", h.Events)
	}
	r.GET("/artifacts", h.ListArtifacts)
	r.GET("/artifacts/:id/download", h.DownloadArtifact)
	r.DELETE("/artifacts/:id", h.DeleteArtifact)
}

type CreateExportRequest struct {
	ItemID        *uint                `json:"item_id"`
	Title         string               `json:"title"`
	Text          string               `json:"text"`
	AudioSource   string               `json:"audio_source"`
	VideoSource   string               `json:"video_source"`
	RenderOptions models.RenderOptions `json:"render_options"`
}

type PreviewRequest struct {
	Text          string               `json:"text" binding:"required"`
	RenderOptions models.RenderOptions `json:"render_options"`
}

// CreateExport queues an export of a saved item, or of explicit text and
// audio.
func (h *Handler) CreateExport(c *gin.Context) {
	var req CreateExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	job := models.ExportJob{
		ItemID:        req.ItemID,
		Title:         strings.TrimSpace(req.Title),
		Text:          req.Text,
		AudioSource:   req.AudioSource,
		VideoSource:   req.VideoSource,
		RenderOptions: req.RenderOptions,
	}
	if req.ItemID != nil {
		if h.Items == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Item exports are not available"})
			return
		}
		item, err := h.Items.Get(ctx, *req.ItemID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
			return
		}
		if job.Text == "" {
			job.Text = item.Text
		}
		if job.AudioSource == "" {
			job.AudioSource = item.AudioKey
		}
		if job.Title == "" {
			job.Title = item.Name
		}
	}
	if job.Title == "" {
		job.Title = processing.FallbackTitle(job.Text, time.Now())
	}

	created, err := h.Queue.Enqueue(ctx, job)
	if err != nil {
		if errors.Is(err, ErrInvalidJob) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue export"})
		return
	}
	c.JSON(http.StatusAccepted, created)
}

func (h *Handler) ListExports(c *gin.Context) {
	jobs, err := h.Queue.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load export queue"})
		return
	}
	c.JSON(http.StatusOK, jobs)
}

func (h *Handler) DeleteExport(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	err := h.Queue.Remove(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true})
	case errors.Is(err, ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Export not found"})
	case errors.Is(err, ErrJobBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "Export is already processing"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove export"})
	}
}

// Events streams queue progress as server-sent events.
func (h *Handler) Events(c *gin.Context) {
	ch := h.Feed.Subscribe(c.Request.Context())
	c.Stream(func(w io.Writer) bool {
		ev, ok := <-ch
		if !ok {
			return false
		}
		c.SSEvent(ev.Type, ev)
		return true
	})
}

// Preview renders the first sentence as a PNG.
func (h *Handler) Preview(c *gin.Context) {
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Text is required"})
		return
	}
	if err := ValidateRenderOptions(req.RenderOptions); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	png, err := compositor.Preview(req.Text, compositor.FromRenderOptions(req.RenderOptions))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) ListArtifacts(c *gin.Context) {
	list, err := h.Artifacts.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load exports"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) DownloadArtifact(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	artifact, data, err := h.Artifacts.Open(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrArtifactNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Export not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read export"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	c.Data(http.StatusOK, artifact.MIMEType, data)
}

func (h *Handler) DeleteArtifact(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Artifacts.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrArtifactNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Export not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete export"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return uint(id), true
}
