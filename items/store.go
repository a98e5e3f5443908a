// Package items persists saved text and narration pairs, grouped into
// playlists.
package items

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/drewmudry/captioncast/audio"
	"github.com/drewmudry/captioncast/models"
	"github.com/drewmudry/captioncast/processing"
	"github.com/drewmudry/captioncast/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("item not found")
	ErrEmptyText    = errors.New("text is required")
	ErrEmptyAudio   = errors.New("audio is required")
	ErrInvalidAudio = errors.New("audio is not a readable mp3")
)

// SaveInput is a new item. Title and Playlist are optional.
type SaveInput struct {
	Text     string
	Audio    []byte
	Title    string
	Playlist string
}

// Store keeps item metadata in the database and audio in a blob store.
type Store struct {
	db    *gorm.DB
	blobs storage.BlobStore
	// Probe returns the audio duration in seconds.
	Probe func(data []byte) (float64, error)
	now   func() time.Time
}

func NewStore(db *gorm.DB, blobs storage.BlobStore) *Store {
	return &Store{db: db, blobs: blobs, Probe: audio.Duration, now: time.Now}
}

// Save validates and stores a new item.
func (s *Store) Save(ctx context.Context, in SaveInput) (*models.Item, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, ErrEmptyText
	}
	if len(in.Audio) == 0 {
		return nil, ErrEmptyAudio
	}
	if _, err := s.Probe(in.Audio); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAudio, err)
	}

	name := strings.TrimSpace(in.Title)
	if name == "" {
		name = processing.FallbackTitle(in.Text, s.now())
	}
	playlist := strings.TrimSpace(in.Playlist)
	if playlist == "" {
		playlist = models.DefaultPlaylist
	}

	key := "audio/" + uuid.NewString() + ".mp3"
	if err := s.blobs.Put(ctx, key, audio.MIMEType, in.Audio); err != nil {
		return nil, fmt.Errorf("store audio: %w", err)
	}

	item := models.Item{Name: name, Text: in.Text, AudioKey: key, Playlist: playlist}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			log.Printf("Error removing orphaned audio %s: %v", key, delErr)
		}
		return nil, fmt.Errorf("save item: %w", err)
	}
	log.Printf("Saved item %d (%s) to playlist %s", item.ID, item.Name, item.Playlist)
	return &item, nil
}

// List returns every item, newest first.
func (s *Store) List(ctx context.Context) ([]models.Item, error) {
	var out []models.Item
	if err := s.db.WithContext(ctx).Order("created_at desc, id desc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Playlists groups items by playlist, newest first within each.
func (s *Store) Playlists(ctx context.Context) (map[string][]models.Item, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	groups := make(map[string][]models.Item)
	for _, it := range all {
		name := it.Playlist
		if name == "" {
			name = models.DefaultPlaylist
		}
		groups[name] = append(groups[name], it)
	}
	return groups, nil
}

// Playlist returns the items of one playlist, newest first.
func (s *Store) Playlist(ctx context.Context, name string) ([]models.Item, error) {
	var out []models.Item
	err := s.db.WithContext(ctx).
		Where("playlist = ?", name).
		Order("created_at desc, id desc").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns item metadata.
func (s *Store) Get(ctx context.Context, id uint) (*models.Item, error) {
	var item models.Item
	if err := s.db.WithContext(ctx).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, err
	}
	return &item, nil
}

// Load returns an item with its audio.
func (s *Store) Load(ctx context.Context, id uint) (*models.Item, []byte, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.blobs.Get(ctx, item.AudioKey)
	if err != nil {
		return nil, nil, fmt.Errorf("load audio for item %d: %w", id, err)
	}
	return item, data, nil
}

// Delete removes an item and its audio. Audio that cannot be removed is
// logged and left behind.
func (s *Store) Delete(ctx context.Context, id uint) error {
	item, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&models.Item{}, id).Error; err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, item.AudioKey); err != nil {
		log.Printf("Error deleting audio for item %d: %v", id, err)
	}
	return nil
}

// Move puts an item in another playlist.
func (s *Store) Move(ctx context.Context, id uint, playlist string) error {
	playlist = strings.TrimSpace(playlist)
	if playlist == "" {
		playlist = models.DefaultPlaylist
	}
	res := s.db.WithContext(ctx).Model(&models.Item{}).Where("id = ?", id).Update("playlist", playlist)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}
