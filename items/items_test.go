package items

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/drewmudry/captioncast/models"
	"github.com/drewmudry/captioncast/storage"
	"github.com/drewmudry/captioncast/timing"
	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) (*Store, storage.BlobStore) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	blobs := storage.NewFS(afero.NewMemMapFs())
	s := NewStore(db, blobs)
	s.Probe = func(data []byte) (float64, error) {
		if bytes.HasPrefix(data, []byte("bad")) {
			return 0, errors.New("no frames")
		}
		return 3.5, nil
	}
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s, blobs
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s, blobs := newTestStore(t)

	item, err := s.Save(ctx, SaveInput{Text: "I am calm and focused today", Audio: []byte("mp3")})
	require.NoError(t, err)
	assert.Equal(t, "I am calm and focused today", item.Name)
	assert.Equal(t, models.DefaultPlaylist, item.Playlist)
	assert.True(t, strings.HasPrefix(item.AudioKey, "audio/"))

	ok, err := blobs.Exists(ctx, item.AudioKey)
	require.NoError(t, err)
	assert.True(t, ok)

	got, data, err := s.Load(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.Text, got.Text)
	assert.Equal(t, []byte("mp3"), data)
}

func TestSaveRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.Save(ctx, SaveInput{Text: " ", Audio: []byte("mp3")})
	assert.ErrorIs(t, err, ErrEmptyText)
	_, err = s.Save(ctx, SaveInput{Text: "hi"})
	assert.ErrorIs(t, err, ErrEmptyAudio)
	_, err = s.Save(ctx, SaveInput{Text: "hi", Audio: []byte("bad data")})
	assert.ErrorIs(t, err, ErrInvalidAudio)
}

func TestPlaylistsGroupNewestFirst(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	first, err := s.Save(ctx, SaveInput{Text: "one", Audio: []byte("a"), Title: "One", Playlist: "morning"})
	require.NoError(t, err)
	second, err := s.Save(ctx, SaveInput{Text: "two", Audio: []byte("a"), Title: "Two", Playlist: "morning"})
	require.NoError(t, err)
	_, err = s.Save(ctx, SaveInput{Text: "three", Audio: []byte("a"), Title: "Three"})
	require.NoError(t, err)

	groups, err := s.Playlists(ctx)
	require.NoError(t, err)
	require.Len(t, groups["morning"], 2)
	assert.Equal(t, second.ID, groups["morning"][0].ID)
	assert.Equal(t, first.ID, groups["morning"][1].ID)
	assert.Len(t, groups[models.DefaultPlaylist], 1)

	require.NoError(t, s.Move(ctx, first.ID, "evening"))
	evening, err := s.Playlist(ctx, "evening")
	require.NoError(t, err)
	require.Len(t, evening, 1)
	assert.Equal(t, "One", evening[0].Name)

	assert.ErrorIs(t, s.Move(ctx, 999, "x"), ErrNotFound)
}

func TestDeleteRemovesAudio(t *testing.T) {
	ctx := context.Background()
	s, blobs := newTestStore(t)

	item, err := s.Save(ctx, SaveInput{Text: "bye", Audio: []byte("a")})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, item.ID))

	ok, err := blobs.Exists(ctx, item.AudioKey)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, s.Delete(ctx, item.ID), ErrNotFound)
}

func newRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.Register(r.Group("/api"))
	return r
}

func do(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandlersSaveAndTimings(t *testing.T) {
	s, _ := newTestStore(t)
	r := newRouter(NewHandler(s, nil))

	audio := "data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString([]byte("mp3"))
	w := do(r, http.MethodPost, "/api/items", gin.H{"text": "one two three\nfour five six seven", "audio": audio, "title": "Seven"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var saved struct {
		ItemID uint   `json:"item_id"`
		Name   string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	assert.Equal(t, "Seven", saved.Name)

	w = do(r, http.MethodGet, fmt.Sprintf("/api/items/%d/timings", saved.ItemID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var timings struct {
		Duration float64             `json:"duration"`
		Words    []timing.WordTiming `json:"words"`
		Lines    []timing.LineTiming `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &timings))
	assert.Equal(t, 3.5, timings.Duration)
	require.Len(t, timings.Words, 7)
	assert.InDelta(t, 0.5, timings.Words[0].End, 1e-9)
	assert.Equal(t, 3.5, timings.Words[6].End)
	require.Len(t, timings.Lines, 2)
	assert.InDelta(t, 1.5, timings.Lines[0].End, 1e-9)

	w = do(r, http.MethodGet, fmt.Sprintf("/api/items/%d/audio", saved.ItemID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "mp3", w.Body.String())
}

func TestHandlersErrors(t *testing.T) {
	s, _ := newTestStore(t)
	r := newRouter(NewHandler(s, nil))

	w := do(r, http.MethodPost, "/api/items", gin.H{"text": "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/items", gin.H{"text": "hi", "audio": "!!!"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/items/abc/audio", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodDelete, "/api/items/42", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPatch, "/api/items/42/playlist", gin.H{"playlist": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
