package timing

import (
	"strings"
	"unicode"
)

// Recognized is one word reported by a speech recognizer.
type Recognized struct {
	Content string
	Start   float64
	End     float64
}

// matchWindow bounds how far ahead of the cursor a transcript word may be
// matched, so one misrecognized word can't swallow the rest of the audio.
const matchWindow = 5

// MapToTranscript assigns recognizer timings to transcript tokens. Tokens
// are matched in order against the recognized words; tokens without a match
// get start times interpolated between their matched neighbours. The result
// satisfies Validate for any positive duration.
func MapToTranscript(text string, recognized []Recognized, duration float64) ([]WordTiming, error) {
	words := Words(text)
	if len(words) == 0 {
		return nil, ErrEmptyTranscript
	}
	if err := checkDuration(duration); err != nil {
		return nil, err
	}

	starts := make([]float64, len(words))
	known := make([]bool, len(words))

	cursor := 0
	for i, w := range words {
		target := cleanWord(w)
		if target == "" {
			continue
		}
		for j := cursor; j < len(recognized) && j < cursor+matchWindow; j++ {
			if cleanWord(recognized[j].Content) == target {
				starts[i] = recognized[j].Start
				known[i] = true
				cursor = j + 1
				break
			}
		}
	}

	if !known[0] {
		starts[0], known[0] = 0, true
	}
	interpolate(starts, known, duration)

	timings := make([]WordTiming, len(words))
	for i, w := range words {
		end := duration
		if i+1 < len(words) {
			end = starts[i+1]
		}
		timings[i] = WordTiming{Word: w, Start: starts[i], End: end}
	}
	return Normalize(timings, duration), nil
}

func interpolate(starts []float64, known []bool, duration float64) {
	n := len(starts)
	for i := 0; i < n; {
		if known[i] {
			i++
			continue
		}
		a := i - 1
		b := i
		for b < n && !known[b] {
			b++
		}
		to := duration
		if b < n {
			to = starts[b]
		}
		from := starts[a]
		span := float64(b - a)
		for k := i; k < b; k++ {
			starts[k] = from + (to-from)*float64(k-a)/span
		}
		i = b
	}
}

func cleanWord(s string) string {
	return strings.ToLower(strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}))
}
