package items

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/drewmudry/captioncast/audio"
	"github.com/drewmudry/captioncast/timing"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	Store   *Store
	Aligner timing.Aligner
}

func NewHandler(store *Store, aligner timing.Aligner) *Handler {
	if aligner == nil {
		aligner = timing.Uniform{}
	}
	return &Handler{Store: store, Aligner: aligner}
}

// Register mounts the item routes on r.
func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/items", h.SaveItem)
	r.GET("/items", h.ListItems)
	r.GET("/playlists", h.ListPlaylists)
	r.DELETE("/items/:id", h.DeleteItem)
	r.PATCH("/items/:id/playlist", h.MoveItem)
	r.GET("/items/:id/audio", h.GetAudio)
	r.GET("/items/:id/timings", h.GetTimings)
}

type SaveItemRequest struct {
	Text string `json:"text" binding:"required"`
	// Audio is base64 MP3 data, optionally as a data URL.
	Audio    string `json:"audio" binding:"required"`
	Title    string `json:"title"`
	Playlist string `json:"playlist"`
}

type MoveItemRequest struct {
	Playlist string `json:"playlist" binding:"required"`
}

func (h *Handler) SaveItem(c *gin.Context) {
	var req SaveItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Text and audio are required"})
		return
	}

	data, err := decodeAudio(req.Audio)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Audio must be base64 encoded"})
		return
	}

	item, err := h.Store.Save(c.Request.Context(), SaveInput{
		Text:     req.Text,
		Audio:    data,
		Title:    req.Title,
		Playlist: req.Playlist,
	})
	if err != nil {
		respondError(c, err, "Failed to save item")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "item_id": item.ID, "name": item.Name, "playlist": item.Playlist})
}

func (h *Handler) ListItems(c *gin.Context) {
	list, err := h.Store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load saved items"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) ListPlaylists(c *gin.Context) {
	groups, err := h.Store.Playlists(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load playlists"})
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (h *Handler) DeleteItem(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	if err := h.Store.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, "Failed to delete item")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) MoveItem(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	var req MoveItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Playlist is required"})
		return
	}
	if err := h.Store.Move(c.Request.Context(), id, req.Playlist); err != nil {
		respondError(c, err, "Failed to move item")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) GetAudio(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	_, data, err := h.Store.Load(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to load audio")
		return
	}
	c.Data(http.StatusOK, audio.MIMEType, data)
}

// GetTimings returns word and line timings for an item's transcript.
func (h *Handler) GetTimings(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	item, data, err := h.Store.Load(ctx, id)
	if err != nil {
		respondError(c, err, "Failed to load item")
		return
	}
	duration, err := h.Store.Probe(data)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid audio source"})
		return
	}
	words, err := h.Aligner.Align(ctx, item.Text, data, duration)
	if err != nil {
		respondError(c, err, "Failed to compute timings")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"duration": duration,
		"words":    words,
		"lines":    timing.Lines(item.Text, words),
	})
}

func itemID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
		return 0, false
	}
	return uint(id), true
}

func decodeAudio(s string) ([]byte, error) {
	if i := strings.Index(s, ","); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+1:]
	}
	return base64.StdEncoding.DecodeString(s)
}

func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
	case errors.Is(err, ErrEmptyText), errors.Is(err, ErrEmptyAudio), errors.Is(err, ErrInvalidAudio),
		errors.Is(err, timing.ErrEmptyTranscript), errors.Is(err, timing.ErrInvalidDuration):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback, "message": err.Error()})
	}
}
