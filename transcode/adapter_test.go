package transcode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/drewmudry/captioncast/compositor"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuntime struct {
	fs      afero.Fs
	mu      sync.Mutex
	jobs    []Job
	staged  [][]string
	fail    error
	running int32
	overlap int32
	delay   time.Duration
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{fs: afero.NewMemMapFs()}
}

func (r *fakeRuntime) FS() afero.Fs { return r.fs }

func (r *fakeRuntime) Run(_ context.Context, job Job) error {
	if atomic.AddInt32(&r.running, 1) > 1 {
		atomic.StoreInt32(&r.overlap, 1)
	}
	defer atomic.AddInt32(&r.running, -1)
	time.Sleep(r.delay)

	names, err := afero.Glob(r.fs, "*")
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.jobs = append(r.jobs, job)
	r.staged = append(r.staged, names)
	r.mu.Unlock()

	if r.fail != nil {
		return r.fail
	}
	if job.OnProgress != nil {
		job.OnProgress(0.5)
		job.OnProgress(1)
	}
	out := job.Args[len(job.Args)-1]
	return afero.WriteFile(r.fs, out, []byte("video:"+out), 0o644)
}

type fakeEngine struct {
	loads   int32
	failN   int32
	gate    chan struct{}
	runtime *fakeRuntime
}

func (e *fakeEngine) Load(context.Context) (Runtime, error) {
	n := atomic.AddInt32(&e.loads, 1)
	if e.gate != nil {
		<-e.gate
	}
	if n <= e.failN {
		return nil, errors.New("core missing")
	}
	return e.runtime, nil
}

func frames(repeats ...int) []compositor.Frame {
	out := make([]compositor.Frame, len(repeats))
	for i, r := range repeats {
		out[i] = compositor.Frame{Index: i, PNG: []byte(fmt.Sprintf("png-%d", i)), Repeat: r}
	}
	return out
}

func TestEncodeStagesFramesAndCleansUp(t *testing.T) {
	rt := newFakeRuntime()
	a := NewAdapter(&fakeEngine{runtime: rt})

	var stages []string
	video, err := a.Encode(context.Background(), EncodeRequest{
		Frames: frames(2, 3),
		Audio:  []byte("mp3"),
		FPS:    5,
		OnProgress: func(stage string, _ float64) {
			if len(stages) == 0 || stages[len(stages)-1] != stage {
				stages = append(stages, stage)
			}
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "video/webm", video.MIMEType)
	assert.Equal(t, "webm", video.Container)
	assert.Equal(t, []byte("video:output.webm"), video.Data)
	assert.Equal(t, []string{StageStaging, StageEncoding, StageReading}, stages)

	require.Len(t, rt.jobs, 1)
	job := rt.jobs[0]
	assert.Equal(t, []string{
		"-framerate", "5", "-i", "frame_%05d.png", "-i", "audio.mp3",
		"-c:v", "libvpx", "-c:a", "libvorbis", "-shortest",
		"-pix_fmt", "yuv420p", "-b:v", "1M", "output.webm",
	}, job.Args)
	assert.Equal(t, 1.0, job.Duration)

	staged := rt.staged[0]
	assert.Len(t, staged, 6)
	assert.Contains(t, staged, "frame_00000.png")
	assert.Contains(t, staged, "frame_00004.png")
	assert.Contains(t, staged, "audio.mp3")

	third, err := afero.ReadFile(rt.fs, "frame_00002.png")
	assert.Error(t, err, "staged files are removed")
	assert.Nil(t, third)

	left, err := afero.Glob(rt.fs, "*")
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestEncodeRepeatsFrameContent(t *testing.T) {
	rt := newFakeRuntime()
	var seen []string
	rt.fail = nil
	a := NewAdapter(&fakeEngine{runtime: rt})
	hook := &inspectRuntime{fakeRuntime: rt, inspect: func(fs afero.Fs) {
		for i := 0; i < 3; i++ {
			data, err := afero.ReadFile(fs, fmt.Sprintf("frame_%05d.png", i))
			require.NoError(t, err)
			seen = append(seen, string(data))
		}
	}}
	a.runtime = hook

	_, err := a.Encode(context.Background(), EncodeRequest{Frames: frames(1, 2), Audio: []byte("a"), FPS: 1, Container: "mp4"})
	require.NoError(t, err)
	assert.Equal(t, []string{"png-0", "png-1", "png-1"}, seen)
	assert.Contains(t, strings.Join(rt.jobs[0].Args, " "), "-c:v libx264 -c:a aac")
}

type inspectRuntime struct {
	*fakeRuntime
	inspect func(afero.Fs)
}

func (r *inspectRuntime) Run(ctx context.Context, job Job) error {
	r.inspect(r.fs)
	return r.fakeRuntime.Run(ctx, job)
}

func TestEncodeFailureCarriesDiagnostic(t *testing.T) {
	rt := newFakeRuntime()
	rt.fail = &EncodeError{Diagnostic: "Unknown encoder 'libvpx'", Err: errors.New("exit status 1")}
	a := NewAdapter(&fakeEngine{runtime: rt})

	video, err := a.Encode(context.Background(), EncodeRequest{Frames: frames(1), Audio: []byte("a"), FPS: 1})
	assert.Nil(t, video)
	require.ErrorIs(t, err, ErrEncodeFailed)
	var ee *EncodeError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "Unknown encoder 'libvpx'", ee.Diagnostic)

	left, _ := afero.Glob(rt.fs, "*")
	assert.Empty(t, left)
}

func TestPlainRunErrorBecomesEncodeError(t *testing.T) {
	rt := newFakeRuntime()
	rt.fail = errors.New("killed")
	a := NewAdapter(&fakeEngine{runtime: rt})

	_, err := a.Mux(context.Background(), MuxRequest{Video: []byte("v"), Audio: []byte("a")})
	assert.ErrorIs(t, err, ErrEncodeFailed)
}

func TestLoadFailureIsNotCached(t *testing.T) {
	rt := newFakeRuntime()
	engine := &fakeEngine{runtime: rt, failN: 1}
	a := NewAdapter(engine)

	_, err := a.Encode(context.Background(), EncodeRequest{Frames: frames(1), Audio: []byte("a"), FPS: 1})
	require.ErrorIs(t, err, ErrEngineUnavailable)

	_, err = a.Encode(context.Background(), EncodeRequest{Frames: frames(1), Audio: []byte("a"), FPS: 1})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&engine.loads))

	_, err = a.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&engine.loads), "loaded runtime is reused")
}

func TestConcurrentLoadsShareOneInstance(t *testing.T) {
	engine := &fakeEngine{runtime: newFakeRuntime(), gate: make(chan struct{})}
	a := NewAdapter(engine)

	var wg sync.WaitGroup
	results := make([]Runtime, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rt, err := a.Load(context.Background())
			assert.NoError(t, err)
			results[i] = rt
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(engine.gate)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&engine.loads))
	for _, rt := range results {
		assert.Same(t, engine.runtime, rt)
	}
}

func TestRunsAreExclusive(t *testing.T) {
	rt := newFakeRuntime()
	rt.delay = 5 * time.Millisecond
	a := NewAdapter(&fakeEngine{runtime: rt})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Encode(context.Background(), EncodeRequest{Frames: frames(2), Audio: []byte("a"), FPS: 2})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(0), atomic.LoadInt32(&rt.overlap))
	assert.Len(t, rt.jobs, 4)
}

func TestMuxCopiesVideo(t *testing.T) {
	rt := newFakeRuntime()
	a := NewAdapter(&fakeEngine{runtime: rt})

	video, err := a.Mux(context.Background(), MuxRequest{Video: []byte("v"), Audio: []byte("a"), Container: "mp4"})
	require.NoError(t, err)
	assert.Equal(t, "video/mp4", video.MIMEType)
	assert.Equal(t, []string{
		"-i", "input.mp4", "-i", "audio.mp3", "-map", "0:v:0", "-map", "1:a:0",
		"-c:v", "copy", "-c:a", "aac", "-shortest", "output.mp4",
	}, rt.jobs[0].Args)
}

func TestEncodeValidatesInput(t *testing.T) {
	a := NewAdapter(&fakeEngine{runtime: newFakeRuntime()})
	ctx := context.Background()

	_, err := a.Encode(ctx, EncodeRequest{Audio: []byte("a"), FPS: 1})
	assert.ErrorIs(t, err, ErrNoFrames)

	_, err = a.Encode(ctx, EncodeRequest{Frames: frames(1), FPS: 1})
	assert.ErrorIs(t, err, ErrNoAudio)

	_, err = a.Encode(ctx, EncodeRequest{Frames: frames(1), Audio: []byte("a"), FPS: 1, Container: "avi"})
	assert.ErrorIs(t, err, ErrUnsupportedContainer)
}
