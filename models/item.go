package models

import (
	"time"
)

// DefaultPlaylist is used when an item is saved without a playlist.
const DefaultPlaylist = "default"

// Item is a saved text + speech pair.
type Item struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	AudioKey  string    `gorm:"size:255;not null" json:"audio_key"`
	Playlist  string    `gorm:"size:255;not null;default:'default';index" json:"playlist"`
	CreatedAt time.Time `json:"created_at"`
}

func (Item) TableName() string {
	return "items"
}
