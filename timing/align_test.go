package timing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapToTranscriptExactMatch(t *testing.T) {
	rec := []Recognized{
		{"Hello", 0.3, 0.7},
		{"world", 0.9, 1.4},
	}
	timings, err := MapToTranscript("Hello, world!", rec, 2)
	require.NoError(t, err)
	require.NoError(t, Validate(timings, 2))

	assert.Equal(t, []WordTiming{{"Hello,", 0, 0.9}, {"world!", 0.9, 2}}, timings)
}

func TestMapToTranscriptInterpolatesMisses(t *testing.T) {
	rec := []Recognized{
		{"the", 0, 0.2},
		{"fox", 2.0, 2.4},
	}
	timings, err := MapToTranscript("the quick brown fox", rec, 4)
	require.NoError(t, err)
	require.NoError(t, Validate(timings, 4))

	require.Len(t, timings, 4)
	assert.InDelta(t, 2.0/3, timings[1].Start, 1e-9)
	assert.InDelta(t, 4.0/3, timings[2].Start, 1e-9)
	assert.Equal(t, 2.0, timings[3].Start)
	assert.Equal(t, 4.0, timings[3].End)
}

func TestMapToTranscriptNothingRecognized(t *testing.T) {
	timings, err := MapToTranscript("a b c d", nil, 4)
	require.NoError(t, err)
	require.NoError(t, Validate(timings, 4))
	assert.Equal(t, 1.0, timings[1].Start)
}

func TestParseTranscription(t *testing.T) {
	raw := []byte(`{"results":{"items":[
		{"start_time":"0.1","end_time":"0.5","type":"pronunciation","alternatives":[{"content":"Hi"}]},
		{"type":"punctuation","alternatives":[{"content":"."}]}
	]}}`)
	words, err := parseTranscription(raw)
	require.NoError(t, err)
	assert.Equal(t, []Recognized{{"Hi", 0.1, 0.5}}, words)
}
