package timing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/aws/aws-sdk-go-v2/service/transcribe/types"
	"github.com/aws/smithy-go"
)

// ObjectStore is the slice of the S3 blob store the aligner needs. Key maps
// a store key to the full object key, including any prefix.
type ObjectStore interface {
	Bucket() string
	Key(key string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// TranscribeAligner derives word timings from an AWS Transcribe job. The
// audio is uploaded under a content hash so repeated alignments of the same
// clip reuse the finished job.
type TranscribeAligner struct {
	client       *transcribe.Client
	store        ObjectStore
	languageCode string
	pollInterval time.Duration
}

// NewTranscribeAligner creates an aligner that stages audio in store.
func NewTranscribeAligner(client *transcribe.Client, store ObjectStore, languageCode string) *TranscribeAligner {
	if languageCode == "" {
		languageCode = "en-US"
	}
	return &TranscribeAligner{
		client:       client,
		store:        store,
		languageCode: languageCode,
		pollInterval: 5 * time.Second,
	}
}

// transcriptionResult is the subset of the Transcribe output document we read.
type transcriptionResult struct {
	Results struct {
		Items []struct {
			StartTime    string `json:"start_time,omitempty"`
			EndTime      string `json:"end_time,omitempty"`
			Type         string `json:"type"`
			Alternatives []struct {
				Content string `json:"content"`
			} `json:"alternatives"`
		} `json:"items"`
	} `json:"results"`
}

func (a *TranscribeAligner) Align(ctx context.Context, text string, audio []byte, duration float64) ([]WordTiming, error) {
	if len(Words(text)) == 0 {
		return nil, ErrEmptyTranscript
	}

	sum := sha256.Sum256(audio)
	hash := hex.EncodeToString(sum[:])
	mediaKey := "alignment/" + hash + ".mp3"
	jobName := "captioncast-" + hash[:32]
	outputKey := "alignment/" + jobName + ".json"

	exists, err := a.store.Exists(ctx, mediaKey)
	if err != nil {
		return nil, fmt.Errorf("checking staged audio: %w", err)
	}
	if !exists {
		if err := a.store.Put(ctx, mediaKey, "audio/mpeg", audio); err != nil {
			return nil, fmt.Errorf("staging audio: %w", err)
		}
	}

	if err := a.ensureJob(ctx, jobName, mediaKey, outputKey); err != nil {
		return nil, err
	}

	raw, err := a.store.Get(ctx, outputKey)
	if err != nil {
		return nil, fmt.Errorf("reading transcription result: %w", err)
	}
	recognized, err := parseTranscription(raw)
	if err != nil {
		return nil, err
	}
	log.Printf("[timing] transcribe job %s recognized %d words", jobName, len(recognized))
	return MapToTranscript(text, recognized, duration)
}

func (a *TranscribeAligner) ensureJob(ctx context.Context, jobName, mediaKey, outputKey string) error {
	found, status, err := a.jobStatus(ctx, jobName)
	if err != nil {
		return fmt.Errorf("checking transcription job status: %w", err)
	}
	if !found {
		input, err := a.jobInput(jobName, mediaKey, outputKey)
		if err != nil {
			return err
		}
		if _, err := a.client.StartTranscriptionJob(ctx, input); err != nil {
			return fmt.Errorf("start transcription job: %w", err)
		}
		log.Printf("[timing] started transcription job %s", jobName)
	}

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()
	for {
		switch status {
		case types.TranscriptionJobStatusCompleted:
			return nil
		case types.TranscriptionJobStatusFailed:
			return fmt.Errorf("transcription job %s failed", jobName)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if _, status, err = a.jobStatus(ctx, jobName); err != nil {
			return fmt.Errorf("retrieving transcription job status: %w", err)
		}
	}
}

// jobInput addresses the media and output through the store's object keys,
// since Transcribe reads and writes the bucket directly.
func (a *TranscribeAligner) jobInput(jobName, mediaKey, outputKey string) (*transcribe.StartTranscriptionJobInput, error) {
	media, err := a.store.Key(mediaKey)
	if err != nil {
		return nil, err
	}
	output, err := a.store.Key(outputKey)
	if err != nil {
		return nil, err
	}
	return &transcribe.StartTranscriptionJobInput{
		TranscriptionJobName: aws.String(jobName),
		LanguageCode:         types.LanguageCode(a.languageCode),
		MediaFormat:          types.MediaFormatMp3,
		Media:                &types.Media{MediaFileUri: aws.String(fmt.Sprintf("s3://%s/%s", a.store.Bucket(), media))},
		OutputBucketName:     aws.String(a.store.Bucket()),
		OutputKey:            aws.String(output),
	}, nil
}

func (a *TranscribeAligner) jobStatus(ctx context.Context, jobName string) (bool, types.TranscriptionJobStatus, error) {
	out, err := a.client.GetTranscriptionJob(ctx, &transcribe.GetTranscriptionJobInput{
		TranscriptionJobName: aws.String(jobName),
	})
	if err != nil {
		if isJobNotFound(err) {
			return false, "", nil
		}
		return false, "", err
	}
	return true, out.TranscriptionJob.TranscriptionJobStatus, nil
}

func isJobNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFoundException" {
		return true
	}
	return strings.Contains(err.Error(), "couldn't be found")
}

func parseTranscription(raw []byte) ([]Recognized, error) {
	var result transcriptionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding transcription result: %w", err)
	}
	var words []Recognized
	for _, item := range result.Results.Items {
		if item.Type != "pronunciation" || len(item.Alternatives) == 0 {
			continue
		}
		start, err := strconv.ParseFloat(item.StartTime, 64)
		if err != nil {
			continue
		}
		end, err := strconv.ParseFloat(item.EndTime, 64)
		if err != nil {
			continue
		}
		words = append(words, Recognized{Content: item.Alternatives[0].Content, Start: start, End: end})
	}
	return words, nil
}
