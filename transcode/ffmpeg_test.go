package transcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseProgress(t *testing.T) {
	stream := strings.Join([]string{
		"frame=10",
		"out_time_us=1000000",
		"progress=continue",
		"out_time_ms=3000000",
		"out_time_us=N/A",
		"out_time_us=9000000",
		"progress=end",
	}, "\n")

	var got []float64
	parseProgress(strings.NewReader(stream), 4, func(r float64) { got = append(got, r) })
	assert.Equal(t, []float64{0.25, 0.75, 1, 1}, got)
}

func TestTailBufferKeepsLastBytes(t *testing.T) {
	b := &tailBuffer{limit: 5}
	_, _ = b.Write([]byte("hello "))
	_, _ = b.Write([]byte("world"))
	assert.Equal(t, "world", b.String())
}

func TestLookupContainer(t *testing.T) {
	c, err := LookupContainer("")
	assert.NoError(t, err)
	assert.Equal(t, "webm", c.Name)

	c, err = LookupContainer(".MP4")
	assert.NoError(t, err)
	assert.Equal(t, ".mp4", c.Ext())
}
