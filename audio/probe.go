// Package audio reads metadata from speech audio.
package audio

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/gopxl/beep/mp3"
)

// MIMEType is the content type of synthesized speech.
const MIMEType = "audio/mpeg"

// ErrInvalidAudio is returned when the bytes carry no usable duration.
var ErrInvalidAudio = errors.New("invalid audio source")

// Duration decodes MP3 data and returns its length in seconds.
func Duration(data []byte) (float64, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: empty audio", ErrInvalidAudio)
	}
	streamer, format, err := mp3.Decode(readSeekCloser{bytes.NewReader(data)})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAudio, err)
	}
	defer streamer.Close()

	n := streamer.Len()
	if n <= 0 || format.SampleRate <= 0 {
		return 0, fmt.Errorf("%w: no samples", ErrInvalidAudio)
	}
	return format.SampleRate.D(n).Seconds(), nil
}

// readSeekCloser keeps the reader seekable; the decoder needs Seek to
// compute the stream length.
type readSeekCloser struct {
	*bytes.Reader
}

func (readSeekCloser) Close() error { return nil }
