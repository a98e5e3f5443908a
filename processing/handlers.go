package processing

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Service is what the generation handlers need; Generator implements it.
type Service interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	SynthesizeSpeech(ctx context.Context, text, voice string) ([]byte, error)
	GenerateTitle(ctx context.Context, text string) (string, error)
}

type Handler struct {
	Service Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{Service: svc}
}

// Register mounts the generation routes on r.
func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/text", h.GenerateText)
	r.POST("/audio", h.GenerateAudio)
	r.POST("/generate-title", h.GenerateTitle)
}

type TextRequest struct {
	Prompt string `json:"prompt"`
}

type AudioRequest struct {
	AudioInput string `json:"audioInput"`
	Voice      string `json:"voice"`
}

type TitleRequest struct {
	Text string `json:"text"`
}

func (h *Handler) GenerateText(c *gin.Context) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Prompt is required and must be a non-empty string"})
		return
	}
	text, err := h.Service.GenerateText(c.Request.Context(), req.Prompt)
	if err != nil {
		log.Printf("Text API error: %v", err)
		respondServiceError(c, err, "Failed to generate text")
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text})
}

func (h *Handler) GenerateAudio(c *gin.Context) {
	var req AudioRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.AudioInput) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrEmptySpeechInput.Error()})
		return
	}
	data, err := h.Service.SynthesizeSpeech(c.Request.Context(), req.AudioInput, req.Voice)
	if err != nil {
		log.Printf("Audio API error: %v", err)
		respondServiceError(c, err, "Audio generation failed")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="generated-audio.mp3"`)
	c.Data(http.StatusOK, "audio/mpeg", data)
}

// GenerateTitle always answers with a title; provider failures fall back
// to a dated one.
func (h *Handler) GenerateTitle(c *gin.Context) {
	var req TitleRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Text is required"})
		return
	}
	title := TitleOrFallback(c.Request.Context(), h.Service, req.Text, time.Now())
	c.JSON(http.StatusOK, gin.H{"title": title})
}

func respondServiceError(c *gin.Context, err error, msg string) {
	var se *ServiceError
	if errors.As(err, &se) && se.StatusCode >= 400 {
		c.JSON(se.StatusCode, gin.H{"error": msg, "details": se.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg, "message": err.Error()})
}
