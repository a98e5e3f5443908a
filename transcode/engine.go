// Package transcode wraps the video engine that turns rendered frames and
// narration audio into a playable container.
package transcode

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"
)

var (
	ErrEngineUnavailable    = errors.New("transcode engine unavailable")
	ErrEncodeFailed         = errors.New("encode failed")
	ErrUnsupportedContainer = errors.New("unsupported container")
	ErrNoFrames             = errors.New("no frames to encode")
	ErrNoAudio              = errors.New("no audio to encode")
)

// EncodeError carries the engine's diagnostic output for a failed run.
type EncodeError struct {
	Diagnostic string
	Err        error
}

func (e *EncodeError) Error() string {
	if e.Diagnostic == "" {
		return fmt.Sprintf("encode failed: %v", e.Err)
	}
	return fmt.Sprintf("encode failed: %v: %s", e.Err, e.Diagnostic)
}

func (e *EncodeError) Unwrap() error { return e.Err }

func (e *EncodeError) Is(target error) bool { return target == ErrEncodeFailed }

// Job is a single engine invocation. Paths in Args are relative to the
// runtime's filesystem.
type Job struct {
	Args []string
	// Duration is the expected output length in seconds, used to turn the
	// engine's position reports into a ratio.
	Duration   float64
	OnProgress func(ratio float64)
}

// Runtime is a loaded engine with its own working filesystem.
type Runtime interface {
	FS() afero.Fs
	Run(ctx context.Context, job Job) error
}

// Engine loads a Runtime.
type Engine interface {
	Load(ctx context.Context) (Runtime, error)
}
