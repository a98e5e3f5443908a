package exports

import (
	"context"
	"errors"
	"fmt"

	"github.com/drewmudry/captioncast/models"
	"gorm.io/gorm"
)

var (
	ErrJobNotFound      = errors.New("export job not found")
	ErrJobBusy          = errors.New("export job is processing")
	ErrJobNotRunnable   = errors.New("export job is not runnable")
	ErrArtifactNotFound = errors.New("export artifact not found")
)

// Store persists the export queue and its artifacts.
type Store interface {
	CreateJob(ctx context.Context, job *models.ExportJob) error
	ListJobs(ctx context.Context) ([]models.ExportJob, error)
	// NextRunnable returns the job the consumer should work on, or nil.
	NextRunnable(ctx context.Context) (*models.ExportJob, error)
	// MarkProcessing starts a queued job. It fails with ErrJobNotRunnable
	// for a job in any other state.
	MarkProcessing(ctx context.Context, id uint) error
	UpdateProgress(ctx context.Context, id uint, progress int, message string) error
	MarkError(ctx context.Context, id uint, message string) error
	// Complete removes the job and records its artifact atomically.
	Complete(ctx context.Context, id uint, artifact *models.ExportArtifact) error
	// DeleteJob removes a job that is not processing.
	DeleteJob(ctx context.Context, id uint) error

	ListArtifacts(ctx context.Context) ([]models.ExportArtifact, error)
	GetArtifact(ctx context.Context, id uint) (*models.ExportArtifact, error)
	DeleteArtifact(ctx context.Context, id uint) (*models.ExportArtifact, error)
}

// GormStore is a Store on any gorm dialect.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) CreateJob(ctx context.Context, job *models.ExportJob) error {
	return s.db.WithContext(ctx).Create(job).Error
}

// ListJobs returns jobs in queue order.
func (s *GormStore) ListJobs(ctx context.Context) ([]models.ExportJob, error) {
	var jobs []models.ExportJob
	if err := s.db.WithContext(ctx).Order("id asc").Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// NextRunnable prefers a job left processing by an interrupted consumer over
// the oldest queued one.
func (s *GormStore) NextRunnable(ctx context.Context) (*models.ExportJob, error) {
	for _, status := range []string{models.ExportStatusProcessing, models.ExportStatusQueued} {
		var job models.ExportJob
		err := s.db.WithContext(ctx).
			Where("status = ?", status).
			Order("id asc").
			First(&job).Error
		if err == nil {
			return &job, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

func (s *GormStore) MarkProcessing(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.ExportJob{}).
		Where("id = ? AND status IN ?", id, []string{models.ExportStatusQueued, models.ExportStatusProcessing}).
		Updates(map[string]interface{}{
			"status":  models.ExportStatusProcessing,
			"message": "Starting...",
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.missingOr(ctx, id, ErrJobNotRunnable)
	}
	return nil
}

// missingOr returns ErrJobNotFound when the job is gone and otherwise err.
func (s *GormStore) missingOr(ctx context.Context, id uint, err error) error {
	var n int64
	if cerr := s.db.WithContext(ctx).Model(&models.ExportJob{}).Where("id = ?", id).Count(&n).Error; cerr != nil {
		return cerr
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrJobNotFound, id)
	}
	return fmt.Errorf("%w: %d", err, id)
}

func (s *GormStore) UpdateProgress(ctx context.Context, id uint, progress int, message string) error {
	return s.update(ctx, id, map[string]interface{}{
		"progress": progress,
		"message":  message,
	})
}

func (s *GormStore) MarkError(ctx context.Context, id uint, message string) error {
	return s.update(ctx, id, map[string]interface{}{
		"status":  models.ExportStatusError,
		"message": message,
	})
}

func (s *GormStore) update(ctx context.Context, id uint, fields map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&models.ExportJob{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrJobNotFound, id)
	}
	return nil
}

func (s *GormStore) Complete(ctx context.Context, id uint, artifact *models.ExportArtifact) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.ExportJob{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %d", ErrJobNotFound, id)
		}
		artifact.JobID = id
		return tx.Create(artifact).Error
	})
}

// DeleteJob deletes in one guarded statement so a job the consumer has
// just started cannot be removed.
func (s *GormStore) DeleteJob(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND status <> ?", id, models.ExportStatusProcessing).
		Delete(&models.ExportJob{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.missingOr(ctx, id, ErrJobBusy)
	}
	return nil
}

// ListArtifacts returns artifacts newest first.
func (s *GormStore) ListArtifacts(ctx context.Context) ([]models.ExportArtifact, error) {
	var artifacts []models.ExportArtifact
	err := s.db.WithContext(ctx).Order("timestamp desc, id desc").Find(&artifacts).Error
	if err != nil {
		return nil, err
	}
	return artifacts, nil
}

func (s *GormStore) GetArtifact(ctx context.Context, id uint) (*models.ExportArtifact, error) {
	var artifact models.ExportArtifact
	if err := s.db.WithContext(ctx).First(&artifact, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrArtifactNotFound, id)
		}
		return nil, err
	}
	return &artifact, nil
}

func (s *GormStore) DeleteArtifact(ctx context.Context, id uint) (*models.ExportArtifact, error) {
	var artifact models.ExportArtifact
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&artifact, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %d", ErrArtifactNotFound, id)
			}
			return err
		}
		return tx.Delete(&artifact).Error
	})
	if err != nil {
		return nil, err
	}
	return &artifact, nil
}
