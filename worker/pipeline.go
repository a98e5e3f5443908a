package worker

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/drewmudry/captioncast/compositor"
	"github.com/drewmudry/captioncast/exports"
	"github.com/drewmudry/captioncast/models"
	"github.com/drewmudry/captioncast/transcode"
)

// DefaultFPS keeps frame generation cheap; captions change once per
// sentence.
const DefaultFPS = 5

// Run produces the artifact for one export job.
func (p *Processor) Run(ctx context.Context, job models.ExportJob, progress exports.ProgressFunc) (*models.ExportArtifact, error) {
	log.Printf("Processing export job %d (%s)", job.ID, job.Title)
	progress(0, "Initializing...")

	audioData, err := p.Blobs.Get(ctx, job.AudioSource)
	if err != nil {
		return nil, fmt.Errorf("failed to load audio file: %w", err)
	}
	progress(10, "Audio loaded")

	var video *transcode.Video
	if job.VideoSource != "" {
		video, err = p.remux(ctx, job, audioData, progress)
	} else {
		video, err = p.render(ctx, job, audioData, progress)
	}
	if err != nil {
		return nil, err
	}

	progress(95, "Saving video...")
	now := p.Now()
	title := strings.TrimSpace(job.Title)
	if title == "" {
		title = "export"
	}
	filename := exports.Filename(title, now, video.Container)
	location := "exports/" + filename
	if err := p.Blobs.Put(ctx, location, video.MIMEType, video.Data); err != nil {
		return nil, fmt.Errorf("failed to store video: %w", err)
	}
	progress(100, "Video created!")

	return &models.ExportArtifact{
		JobID:         job.ID,
		Title:         title,
		Filename:      filename,
		VideoLocation: location,
		MIMEType:      video.MIMEType,
		Timestamp:     now.UnixMilli(),
	}, nil
}

func (p *Processor) render(ctx context.Context, job models.ExportJob, audioData []byte, progress exports.ProgressFunc) (*transcode.Video, error) {
	duration, err := p.Probe(audioData)
	if err != nil {
		return nil, fmt.Errorf("invalid audio: %w", err)
	}
	log.Printf("Audio duration for job %d: %.2fs", job.ID, duration)

	opts := job.RenderOptions
	fps := opts.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}

	progress(20, "Generating video frames...")
	copts := compositor.FromRenderOptions(opts)
	copts.OnProgress = func(done, total int) {
		progress(20+done*20/total, fmt.Sprintf("Rendered sentence %d/%d", done, total))
	}
	frames, err := compositor.Compose(ctx, job.Text, duration, fps, copts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate frames: %w", err)
	}
	total := 0
	for _, f := range frames {
		total += f.Repeat
	}
	progress(40, fmt.Sprintf("Generated %d frames", total))

	progress(50, "Writing frames to encoder...")
	return p.Encoder.Encode(ctx, transcode.EncodeRequest{
		Frames:     frames,
		Audio:      audioData,
		FPS:        fps,
		Container:  opts.Container,
		OnProgress: encodeProgress(progress),
	})
}

func (p *Processor) remux(ctx context.Context, job models.ExportJob, audioData []byte, progress exports.ProgressFunc) (*transcode.Video, error) {
	videoData, err := p.Blobs.Get(ctx, job.VideoSource)
	if err != nil {
		return nil, fmt.Errorf("failed to load video file: %w", err)
	}
	progress(50, "Muxing audio into video...")
	return p.Encoder.Mux(ctx, transcode.MuxRequest{
		Video:      videoData,
		Audio:      audioData,
		Container:  job.RenderOptions.Container,
		OnProgress: encodeProgress(progress),
	})
}

// encodeProgress maps adapter stages onto 50-90%.
func encodeProgress(progress exports.ProgressFunc) func(string, float64) {
	return func(stage string, ratio float64) {
		switch stage {
		case transcode.StageStaging:
			progress(50+int(ratio*20), "Writing frames to encoder...")
		case transcode.StageEncoding:
			progress(75+int(ratio*15), "Encoding video...")
		case transcode.StageReading:
			progress(90, "Reading output...")
		}
	}
}
