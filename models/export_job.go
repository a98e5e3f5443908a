package models

import (
	"time"
)

// Export job statuses. A job that completes is removed from the queue,
// so there is no "complete" status.
const (
	ExportStatusQueued     = "queued"
	ExportStatusProcessing = "processing"
	ExportStatusError      = "error"
)

// RenderOptions configures how an export is rasterized and encoded.
// Zero values fall back to the compositor and adapter defaults.
type RenderOptions struct {
	Width              int     `json:"width,omitempty"`
	Height             int     `json:"height,omitempty"`
	FPS                int     `json:"fps,omitempty"`
	Container          string  `json:"container,omitempty"`
	BackgroundColor    string  `json:"background_color,omitempty"`
	GradientBackground bool    `json:"gradient_background,omitempty"`
	GradientColor1     string  `json:"gradient_color1,omitempty"`
	GradientColor2     string  `json:"gradient_color2,omitempty"`
	AnimateBackground  bool    `json:"animate_background,omitempty"`
	FontSize           float64 `json:"font_size,omitempty"`
	FontFamily         string  `json:"font_family,omitempty"`
	TextColor          string  `json:"text_color,omitempty"`
}

// ExportJob is a queued request to produce a video from text and audio.
// The autoincrement ID doubles as the queue's insertion order.
type ExportJob struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	Title         string        `gorm:"size:255" json:"title"`
	ItemID        *uint         `gorm:"index" json:"item_id,omitempty"`
	Text          string        `gorm:"type:text" json:"text"`
	AudioSource   string        `gorm:"size:255" json:"audio_source"`
	VideoSource   string        `gorm:"size:255" json:"video_source,omitempty"`
	Status        string        `gorm:"size:32;default:'queued';index" json:"status"`
	Progress      int           `gorm:"default:0" json:"progress"`
	Message       string        `gorm:"type:text" json:"message"`
	RenderOptions RenderOptions `gorm:"serializer:json;type:text" json:"render_options"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (ExportJob) TableName() string {
	return "export_jobs"
}
