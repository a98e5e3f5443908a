package exports

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/drewmudry/captioncast/models"
	"github.com/drewmudry/captioncast/storage"
)

// ArtifactService lists, serves and deletes finished exports.
type ArtifactService struct {
	store Store
	blobs storage.BlobStore
}

func NewArtifactService(store Store, blobs storage.BlobStore) *ArtifactService {
	return &ArtifactService{store: store, blobs: blobs}
}

// List returns artifacts newest first.
func (s *ArtifactService) List(ctx context.Context) ([]models.ExportArtifact, error) {
	return s.store.ListArtifacts(ctx)
}

// Open returns an artifact with its video bytes.
func (s *ArtifactService) Open(ctx context.Context, id uint) (*models.ExportArtifact, []byte, error) {
	artifact, err := s.store.GetArtifact(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.blobs.Get(ctx, artifact.VideoLocation)
	if err != nil {
		return nil, nil, fmt.Errorf("read artifact %d: %w", id, err)
	}
	return artifact, data, nil
}

// Delete removes the artifact record and then its video. A video that
// cannot be removed is logged and left behind.
func (s *ArtifactService) Delete(ctx context.Context, id uint) error {
	artifact, err := s.store.DeleteArtifact(ctx, id)
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, artifact.VideoLocation); err != nil {
		log.Printf("[exports] delete video for artifact %d: %v", id, err)
	}
	return nil
}

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Filename builds "<title>_<unix ms>.<ext>" with every non-alphanumeric
// character of the title replaced by an underscore.
func Filename(title string, at time.Time, ext string) string {
	if strings.TrimSpace(title) == "" {
		title = "export"
	}
	return fmt.Sprintf("%s_%d.%s", unsafeFilename.ReplaceAllString(title, "_"), at.UnixMilli(), strings.TrimPrefix(ext, "."))
}
