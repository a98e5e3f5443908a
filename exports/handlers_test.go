package exports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/drewmudry/captioncast/models"
	"github.com/drewmudry/captioncast/storage"
	"github.com/drewmudry/captioncast/tasks"
	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type itemMap map[uint]models.Item

func (m itemMap) Get(_ context.Context, id uint) (*models.Item, error) {
	it, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("item %d not found", id)
	}
	return &it, nil
}

func newExportRouter(t *testing.T) (*gin.Engine, *Queue, storage.BlobStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := newTestStore(t)
	blobs := storage.NewFS(afero.NewMemMapFs())
	q := NewQueue(store, okRunner())
	items := itemMap{1: {ID: 1, Name: "Morning", Text: "Rise. Shine.", AudioKey: "audio/1.mp3"}}

	r := gin.New()
	NewHandler(q, NewArtifactService(store, blobs), items).Register(r.Group("/api"))
	return r, q, blobs
}

func call(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
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

func TestCreateExportFromItem(t *testing.T) {
	r, q, _ := newExportRouter(t)

	w := call(r, http.MethodPost, "/api/exports", gin.H{"item_id": 1, "render_options": gin.H{"fps": 10}})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	jobs, err := q.List(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Morning", jobs[0].Title)
	assert.Equal(t, "Rise. Shine.", jobs[0].Text)
	assert.Equal(t, "audio/1.mp3", jobs[0].AudioSource)
	assert.Equal(t, 10, jobs[0].RenderOptions.FPS)
	assert.Equal(t, models.ExportStatusQueued, jobs[0].Status)

	w = call(r, http.MethodPost, "/api/exports", gin.H{"item_id": 9})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(r, http.MethodPost, "/api/exports", gin.H{"text": "no audio"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(r, http.MethodPost, "/api/exports", gin.H{"item_id": 1, "render_options": gin.H{"container": "avi", "width": 200000}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportLifecycleOverHTTP(t *testing.T) {
	r, q, blobs := newExportRouter(t)
	ctx := context.Background()

	w := call(r, http.MethodPost, "/api/exports", gin.H{"title": "vid", "text": "Hi.", "audio_source": "audio/x.mp3"})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.NoError(t, blobs.Put(ctx, "exports/vid.webm", "video/webm", []byte("webm")))
	_, err := q.Tick(ctx)
	require.NoError(t, err)

	w = call(r, http.MethodGet, "/api/exports", nil)
	var jobs []models.ExportJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &jobs))
	assert.Empty(t, jobs)

	w = call(r, http.MethodGet, "/api/artifacts", nil)
	var artifacts []models.ExportArtifact
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &artifacts))
	require.Len(t, artifacts, 1)

	w = call(r, http.MethodGet, fmt.Sprintf("/api/artifacts/%d/download", artifacts[0].ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "video/webm", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "vid.webm")

	w = call(r, http.MethodDelete, fmt.Sprintf("/api/artifacts/%d", artifacts[0].ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = call(r, http.MethodDelete, fmt.Sprintf("/api/artifacts/%d", artifacts[0].ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteProcessingExportConflicts(t *testing.T) {
	r, q, _ := newExportRouter(t)
	ctx := context.Background()
	job, err := q.Enqueue(ctx, models.ExportJob{Title: "t", Text: "Hi.", AudioSource: "a"})
	require.NoError(t, err)
	require.NoError(t, q.store.MarkProcessing(ctx, job.ID))

	w := call(r, http.MethodDelete, fmt.Sprintf("/api/exports/%d", job.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = call(r, http.MethodDelete, "/api/exports/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreviewReturnsPNG(t *testing.T) {
	r, _, _ := newExportRouter(t)
	w := call(r, http.MethodPost, "/api/exports/preview", gin.H{"text": "First. Second.", "render_options": gin.H{"width": 64, "height": 36, "font_size": 8}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	w = call(r, http.MethodPost, "/api/exports/preview", gin.H{"text": "Hi.", "render_options": gin.H{"width": 200000, "height": 200000}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = call(r, http.MethodPost, "/api/exports/preview", gin.H{"text": "Hi.", "render_options": gin.H{"text_color": "nope"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type chanFeed chan tasks.ExportEvent

func (f chanFeed) Subscribe(context.Context) <-chan tasks.ExportEvent { return f }

func TestEventsStream(t *testing.T) {
	gin.SetMode(gin.TestMode)
	feed := make(chanFeed, 2)
	feed <- tasks.ExportEvent{Type: tasks.EventQueued, JobID: 4}
	feed <- tasks.ExportEvent{Type: tasks.EventProgress, JobID: 4, Progress: 40}
	close(feed)

	h := &Handler{Feed: feed}
	r := gin.New()
	h.Register(r.Group("/api"))

	srv := httptest.NewServer(r)
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/api/exports/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, "event:"+tasks.EventQueued)
	assert.Contains(t, body, `"progress":40`)
}
