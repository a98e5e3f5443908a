package models

import "time"

// ExportArtifact is the stored output of a completed export job. It lives
// independently of the queue and is only removed by the user.
type ExportArtifact struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	JobID         uint      `gorm:"index" json:"job_id"`
	Title         string    `gorm:"size:255" json:"title"`
	Filename      string    `gorm:"size:255;not null" json:"filename"`
	VideoLocation string    `gorm:"size:1024;not null" json:"video_location"`
	MIMEType      string    `gorm:"size:64" json:"mime_type"`
	Timestamp     int64     `gorm:"index" json:"timestamp"`
	CreatedAt     time.Time `json:"created_at"`
}

func (ExportArtifact) TableName() string {
	return "export_artifacts"
}

// All returns every model that the migrations manage.
func All() []interface{} {
	return []interface{}{&Item{}, &ExportJob{}, &ExportArtifact{}}
}
