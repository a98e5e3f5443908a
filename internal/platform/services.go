package platform

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/drewmudry/captioncast/internal/config"
	"github.com/drewmudry/captioncast/storage"
	"github.com/drewmudry/captioncast/timing"
)

// Services are the shared backends both binaries need.
type Services struct {
	Blobs   storage.BlobStore
	Aligner timing.Aligner
}

// NewServices picks S3 or local blob storage and the word aligner.
func NewServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	if cfg.S3Bucket == "" {
		blobs, err := storage.NewLocal(cfg.StorageDir)
		if err != nil {
			return nil, err
		}
		log.Printf("Storing blobs under %s", cfg.StorageDir)
		return &Services{Blobs: blobs, Aligner: timing.Uniform{}}, nil
	}

	awsCfg, err := NewAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	bucket := storage.NewS3(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Prefix)
	if err := bucket.HeadBucket(ctx); err != nil {
		return nil, fmt.Errorf("bucket %s: %w", cfg.S3Bucket, err)
	}
	log.Printf("Storing blobs in s3://%s", cfg.S3Bucket)

	svc := &Services{Blobs: bucket, Aligner: timing.Uniform{}}
	if cfg.TranscribeEnabled {
		svc.Aligner = timing.NewTranscribeAligner(transcribe.NewFromConfig(awsCfg), bucket, cfg.TranscribeLanguage)
		log.Printf("Word timings from Amazon Transcribe (%s)", cfg.TranscribeLanguage)
	}
	return svc, nil
}
