package transcode

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

const diagnosticLimit = 4096

// FFmpeg is an Engine backed by the ffmpeg binary. Each loaded runtime gets
// a private working directory that it exposes as its filesystem.
type FFmpeg struct {
	// Path is the binary to run. Empty means "ffmpeg" on $PATH.
	Path string
	// WorkDir is where runtime directories are created. Empty means the
	// system temp directory.
	WorkDir string
}

func (e FFmpeg) Load(ctx context.Context) (Runtime, error) {
	name := e.Path
	if name == "" {
		name = "ffmpeg"
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("find ffmpeg: %w", err)
	}
	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg -version: %w", err)
	}
	if first, _, _ := strings.Cut(string(out), "\n"); first != "" {
		log.Printf("[transcode] loaded %s", first)
	}

	dir, err := os.MkdirTemp(e.WorkDir, "captioncast-ffmpeg-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	return &ffmpegRuntime{
		path: path,
		dir:  dir,
		fs:   afero.NewBasePathFs(afero.NewOsFs(), dir),
	}, nil
}

type ffmpegRuntime struct {
	path string
	dir  string
	fs   afero.Fs
}

func (r *ffmpegRuntime) FS() afero.Fs { return r.fs }

func (r *ffmpegRuntime) Run(ctx context.Context, job Job) error {
	args := append([]string{"-hide_banner", "-y", "-nostats", "-progress", "pipe:1"}, job.Args...)
	cmd := exec.CommandContext(ctx, r.path, args...)
	cmd.Dir = r.dir

	stderr := &tailBuffer{limit: diagnosticLimit}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &EncodeError{Err: err}
	}
	if err := cmd.Start(); err != nil {
		return &EncodeError{Err: err}
	}
	parseProgress(stdout, job.Duration, job.OnProgress)
	if err := cmd.Wait(); err != nil {
		log.Printf("[transcode] ffmpeg failed: %s", stderr.String())
		return &EncodeError{Diagnostic: stderr.String(), Err: err}
	}
	return nil
}

// parseProgress reads ffmpeg's -progress key=value stream until EOF.
func parseProgress(r io.Reader, duration float64, fn func(float64)) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok || fn == nil {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			// Both keys are microseconds.
			us, err := strconv.ParseInt(value, 10, 64)
			if err != nil || duration <= 0 || us < 0 {
				continue
			}
			ratio := float64(us) / 1e6 / duration
			if ratio > 1 {
				ratio = 1
			}
			fn(ratio)
		case "progress":
			if value == "end" {
				fn(1)
			}
		}
	}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}
