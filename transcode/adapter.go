package transcode

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"

	"github.com/drewmudry/captioncast/compositor"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"
)

const (
	audioFile    = "audio.mp3"
	framePattern = "frame_%05d.png"
)

// Stage names reported through OnProgress.
const (
	StageStaging  = "staging"
	StageEncoding = "encoding"
	StageReading  = "reading"
)

// Video is an encoded result.
type Video struct {
	Data      []byte
	MIMEType  string
	Container string
}

// EncodeRequest turns composed frames and an MP3 track into a video.
type EncodeRequest struct {
	Frames    []compositor.Frame
	Audio     []byte
	FPS       int
	Container string
	// OnProgress receives the stage and a 0-1 ratio within that stage.
	OnProgress func(stage string, ratio float64)
}

// MuxRequest pairs an already encoded video with a new audio track. The
// video stream is copied and the audio is re-encoded for the container.
type MuxRequest struct {
	Video      []byte
	Audio      []byte
	Container  string
	OnProgress func(stage string, ratio float64)
}

// Adapter shares one loaded runtime across callers and runs one job at a
// time against it.
type Adapter struct {
	engine Engine
	group  singleflight.Group

	mu      sync.Mutex
	runtime Runtime

	run sync.Mutex
}

func NewAdapter(engine Engine) *Adapter {
	return &Adapter{engine: engine}
}

// Load returns the shared runtime, loading it if needed. Concurrent callers
// wait on the same load. A failed load is not remembered.
func (a *Adapter) Load(ctx context.Context) (Runtime, error) {
	a.mu.Lock()
	rt := a.runtime
	a.mu.Unlock()
	if rt != nil {
		return rt, nil
	}

	v, err, _ := a.group.Do("load", func() (interface{}, error) {
		a.mu.Lock()
		if a.runtime != nil {
			defer a.mu.Unlock()
			return a.runtime, nil
		}
		a.mu.Unlock()

		rt, err := a.engine.Load(ctx)
		if err != nil {
			return nil, err
		}
		a.mu.Lock()
		a.runtime = rt
		a.mu.Unlock()
		return rt, nil
	})
	if err != nil {
		log.Printf("[transcode] engine load failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	return v.(Runtime), nil
}

// Encode stages every frame Repeat times as a numbered PNG, adds the audio
// and runs a single encode.
func (a *Adapter) Encode(ctx context.Context, req EncodeRequest) (*Video, error) {
	if len(req.Frames) == 0 {
		return nil, ErrNoFrames
	}
	if len(req.Audio) == 0 {
		return nil, ErrNoAudio
	}
	if req.FPS <= 0 {
		return nil, fmt.Errorf("fps must be positive, got %d", req.FPS)
	}
	c, err := LookupContainer(req.Container)
	if err != nil {
		return nil, err
	}
	report := reporter(req.OnProgress)

	rt, err := a.Load(ctx)
	if err != nil {
		return nil, err
	}
	a.run.Lock()
	defer a.run.Unlock()

	fs := rt.FS()
	output := "output" + c.Ext()
	var staged []string
	defer func() { cleanup(fs, append(staged, output)) }()

	total := 0
	for _, f := range req.Frames {
		total += f.Repeat
	}
	if total == 0 {
		return nil, ErrNoFrames
	}

	n := 0
	for _, f := range req.Frames {
		for j := 0; j < f.Repeat; j++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			name := fmt.Sprintf(framePattern, n)
			if err := afero.WriteFile(fs, name, f.PNG, 0o644); err != nil {
				return nil, fmt.Errorf("stage %s: %w", name, err)
			}
			staged = append(staged, name)
			n++
			if n%10 == 0 || n == total {
				report(StageStaging, float64(n)/float64(total))
			}
		}
	}
	if err := afero.WriteFile(fs, audioFile, req.Audio, 0o644); err != nil {
		return nil, fmt.Errorf("stage audio: %w", err)
	}
	staged = append(staged, audioFile)

	args := []string{
		"-framerate", strconv.Itoa(req.FPS),
		"-i", framePattern,
		"-i", audioFile,
		"-c:v", c.VideoCodec,
		"-c:a", c.AudioCodec,
		"-shortest",
		"-pix_fmt", "yuv420p",
		"-b:v", "1M",
		output,
	}
	duration := float64(total) / float64(req.FPS)
	return a.execute(ctx, rt, c, output, Job{Args: args, Duration: duration}, report)
}

// Mux replaces the audio of an encoded video.
func (a *Adapter) Mux(ctx context.Context, req MuxRequest) (*Video, error) {
	if len(req.Video) == 0 {
		return nil, ErrNoFrames
	}
	if len(req.Audio) == 0 {
		return nil, ErrNoAudio
	}
	c, err := LookupContainer(req.Container)
	if err != nil {
		return nil, err
	}
	report := reporter(req.OnProgress)

	rt, err := a.Load(ctx)
	if err != nil {
		return nil, err
	}
	a.run.Lock()
	defer a.run.Unlock()

	fs := rt.FS()
	input := "input" + c.Ext()
	output := "output" + c.Ext()
	var staged []string
	defer func() { cleanup(fs, append(staged, output)) }()

	for name, data := range map[string][]byte{input: req.Video, audioFile: req.Audio} {
		if err := afero.WriteFile(fs, name, data, 0o644); err != nil {
			return nil, fmt.Errorf("stage %s: %w", name, err)
		}
		staged = append(staged, name)
	}
	report(StageStaging, 1)

	args := []string{
		"-i", input,
		"-i", audioFile,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", c.AudioCodec,
		"-shortest",
		output,
	}
	return a.execute(ctx, rt, c, output, Job{Args: args}, report)
}

func (a *Adapter) execute(ctx context.Context, rt Runtime, c Container, output string, job Job, report func(string, float64)) (*Video, error) {
	report(StageEncoding, 0)
	job.OnProgress = func(r float64) { report(StageEncoding, r) }
	if err := rt.Run(ctx, job); err != nil {
		if errors.Is(err, ErrEncodeFailed) {
			return nil, err
		}
		return nil, &EncodeError{Err: err}
	}

	report(StageReading, 0)
	data, err := afero.ReadFile(rt.FS(), output)
	if err != nil {
		return nil, &EncodeError{Diagnostic: "output was not produced", Err: err}
	}
	if len(data) == 0 {
		return nil, &EncodeError{Diagnostic: "output is empty", Err: errors.New("empty output")}
	}
	report(StageReading, 1)
	return &Video{Data: data, MIMEType: c.MIMEType, Container: c.Name}, nil
}

// cleanup removes staged files. Failures are logged and otherwise ignored;
// leftovers are overwritten by the next job.
func cleanup(fs afero.Fs, names []string) {
	for _, name := range names {
		if err := fs.Remove(name); err != nil && !os.IsNotExist(err) {
			log.Printf("[transcode] cleanup %s: %v", name, err)
		}
	}
}

func reporter(fn func(string, float64)) func(string, float64) {
	if fn == nil {
		return func(string, float64) {}
	}
	return fn
}
