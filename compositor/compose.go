// Package compositor turns a transcript into the still frames of a caption
// video: one rendered image per sentence, each held for a share of the audio.
package compositor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"regexp"
	"strings"
)

var (
	ErrEmptyText       = errors.New("text is empty")
	ErrInvalidDuration = errors.New("duration must be positive")
	ErrInvalidFPS      = errors.New("fps must be positive")
	ErrInvalidColor    = errors.New("invalid color")
	ErrInvalidOptions  = errors.New("invalid render options")
)

// Frame is one rendered sentence and the number of video frames it fills.
type Frame struct {
	Index    int
	Sentence string
	Image    image.Image
	PNG      []byte
	Repeat   int
}

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+`)

// Sentences splits text on terminal punctuation. Text after the last
// terminator is kept as a final sentence.
func Sentences(text string) []string {
	var out []string
	last := 0
	for _, m := range sentencePattern.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[m[0]:m[1]]); s != "" {
			out = append(out, s)
		}
		last = m[1]
	}
	if rest := strings.TrimSpace(text[last:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

// TotalFrames is ceil(duration * fps), tolerant of float noise such as
// 0.1*30 = 3.0000000000000004. Any positive duration gets at least one frame.
func TotalFrames(duration float64, fps int) int {
	x := duration * float64(fps)
	if x <= 0 || math.IsNaN(x) {
		return 0
	}
	if r := math.Round(x); math.Abs(x-r) <= 1e-12*math.Max(1, x) {
		x = r
	}
	return max(int(math.Ceil(x)), 1)
}

// Repeats splits total frames across n sentences. Every sentence gets
// floor(total/n) and the last one also takes the remainder.
func Repeats(total, n int) []int {
	if n <= 0 {
		return nil
	}
	per := total / n
	out := make([]int, n)
	for i := range out {
		out[i] = per
	}
	out[n-1] = total - per*(n-1)
	return out
}

// Compose renders each sentence once and assigns it a repeat count. The
// repeat counts always sum to TotalFrames(duration, fps). Sentences that
// would receive no frames are left out.
func Compose(ctx context.Context, text string, duration float64, fps int, opts Options) ([]Frame, error) {
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return nil, ErrInvalidDuration
	}
	if fps <= 0 {
		return nil, ErrInvalidFPS
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	sentences := Sentences(text)
	if len(sentences) == 0 {
		return nil, ErrEmptyText
	}
	opts = opts.withDefaults()

	total := TotalFrames(duration, fps)
	repeats := Repeats(total, len(sentences))

	frames := make([]Frame, 0, len(sentences))
	for i, sentence := range sentences {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if repeats[i] > 0 {
			img, err := Render(sentence, i, len(sentences), opts)
			if err != nil {
				return nil, fmt.Errorf("render sentence %d: %w", i, err)
			}
			data, err := encodePNG(img)
			if err != nil {
				return nil, fmt.Errorf("encode sentence %d: %w", i, err)
			}
			frames = append(frames, Frame{
				Index:    i,
				Sentence: sentence,
				Image:    img,
				PNG:      data,
				Repeat:   repeats[i],
			})
		}
		if opts.OnProgress != nil {
			opts.OnProgress(i+1, len(sentences))
		}
	}
	return frames, nil
}

// Preview renders the first sentence of text as a PNG, 640x360 unless the
// options say otherwise.
func Preview(text string, opts Options) ([]byte, error) {
	sentences := Sentences(text)
	if len(sentences) == 0 {
		return nil, ErrEmptyText
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Width <= 0 {
		opts.Width = PreviewWidth
	}
	if opts.Height <= 0 {
		opts.Height = PreviewHeight
	}
	opts.AnimateBackground = false
	img, err := Render(sentences[0], 0, 1, opts.withDefaults())
	if err != nil {
		return nil, err
	}
	return encodePNG(img)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
