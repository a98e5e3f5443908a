// Package timing assigns time intervals to transcript words and lines.
//
// The uniform estimator is a stand-in for forced alignment. Consumers must
// only rely on the interval contract checked by Validate: one interval per
// whitespace token, contiguous, non-overlapping, spanning [0, duration].
package timing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrEmptyTranscript = errors.New("transcript has no words")
	ErrInvalidDuration = errors.New("audio duration must be positive")
	ErrInvalidTimings  = errors.New("invalid word timings")
)

// WordTiming is the interval during which one transcript token is spoken.
type WordTiming struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Aligner produces word timings for a transcript and its audio.
type Aligner interface {
	Align(ctx context.Context, text string, audio []byte, duration float64) ([]WordTiming, error)
}

// Uniform splits the audio duration evenly across the words.
type Uniform struct{}

func (Uniform) Align(_ context.Context, text string, _ []byte, duration float64) ([]WordTiming, error) {
	return Estimate(text, duration)
}

// Words splits text into whitespace-delimited tokens.
func Words(text string) []string {
	return strings.Fields(text)
}

// Estimate returns equal-width intervals, one per word.
func Estimate(text string, duration float64) ([]WordTiming, error) {
	words := Words(text)
	if len(words) == 0 {
		return nil, ErrEmptyTranscript
	}
	if err := checkDuration(duration); err != nil {
		return nil, err
	}

	perWord := duration / float64(len(words))
	timings := make([]WordTiming, len(words))
	for i, w := range words {
		timings[i] = WordTiming{
			Word:  w,
			Start: float64(i) * perWord,
			End:   float64(i+1) * perWord,
		}
		if i > 0 {
			timings[i].Start = timings[i-1].End
		}
	}
	timings[len(timings)-1].End = duration
	return timings, nil
}

// Validate checks the interval contract against duration.
func Validate(timings []WordTiming, duration float64) error {
	if len(timings) == 0 {
		return ErrEmptyTranscript
	}
	if timings[0].Start != 0 {
		return fmt.Errorf("%w: first interval starts at %v", ErrInvalidTimings, timings[0].Start)
	}
	for i, t := range timings {
		if t.End < t.Start {
			return fmt.Errorf("%w: interval %d ends before it starts", ErrInvalidTimings, i)
		}
		if i > 0 && t.Start != timings[i-1].End {
			return fmt.Errorf("%w: gap or overlap before interval %d", ErrInvalidTimings, i)
		}
	}
	if last := timings[len(timings)-1].End; last != duration {
		return fmt.Errorf("%w: last interval ends at %v, audio is %v", ErrInvalidTimings, last, duration)
	}
	return nil
}

// ValidateWithin checks the interval contract except that the last interval
// may end before duration. The rest of the audio is trailing silence.
func ValidateWithin(timings []WordTiming, duration float64) error {
	if len(timings) == 0 {
		return ErrEmptyTranscript
	}
	last := timings[len(timings)-1].End
	if err := Validate(timings, last); err != nil {
		return err
	}
	if last > duration {
		return fmt.Errorf("%w: last interval ends at %v, audio is %v", ErrInvalidTimings, last, duration)
	}
	return nil
}

// Normalize forces aligner output onto the contract: every start is moved
// to the previous end, the first starts at zero, the last ends at duration,
// and intervals never run backwards.
func Normalize(timings []WordTiming, duration float64) []WordTiming {
	out := make([]WordTiming, len(timings))
	copy(out, timings)
	prev := 0.0
	for i := range out {
		out[i].Start = prev
		end := math.Min(out[i].End, duration)
		if end < prev {
			end = prev
		}
		out[i].End = end
		prev = end
	}
	if n := len(out); n > 0 {
		out[n-1].End = duration
	}
	return out
}

func checkDuration(d float64) error {
	if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return ErrInvalidDuration
	}
	return nil
}
