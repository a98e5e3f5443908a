// Package worker runs export jobs: it renders the transcript into frames,
// encodes them with the narration and stores the resulting video.
package worker

import (
	"context"
	"time"

	"github.com/drewmudry/captioncast/audio"
	"github.com/drewmudry/captioncast/storage"
	"github.com/drewmudry/captioncast/transcode"
)

// Encoder turns frames and audio into a video. transcode.Adapter
// implements it.
type Encoder interface {
	Encode(ctx context.Context, req transcode.EncodeRequest) (*transcode.Video, error)
	Mux(ctx context.Context, req transcode.MuxRequest) (*transcode.Video, error)
}

// Processor holds the dependencies of the export pipeline. It implements
// exports.Runner.
type Processor struct {
	Blobs   storage.BlobStore
	Encoder Encoder
	// Probe returns the audio duration in seconds.
	Probe func(data []byte) (float64, error)
	Now   func() time.Time
}

// NewProcessor creates a new worker processor.
func NewProcessor(blobs storage.BlobStore, encoder Encoder) *Processor {
	return &Processor{
		Blobs:   blobs,
		Encoder: encoder,
		Probe:   audio.Duration,
		Now:     time.Now,
	}
}
