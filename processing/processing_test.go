package processing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completion(content string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 0,
		"model":   "gpt-4o-mini",
		"choices": []map[string]interface{}{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]interface{}{"role": "assistant", "content": content},
		}},
	})
	return string(b)
}

type fakeAPI struct {
	status  int
	body    string
	lastReq map[string]interface{}
	path    string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.path = r.URL.Path
	raw, _ := io.ReadAll(r.Body)
	f.lastReq = nil
	_ = json.Unmarshal(raw, &f.lastReq)

	if f.status >= 400 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, f.body)
		return
	}
	if strings.HasSuffix(r.URL.Path, "/audio/speech") {
		w.Header().Set("Content-Type", "audio/mpeg")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	_, _ = io.WriteString(w, f.body)
}

func newTestGenerator(t *testing.T, api *fakeAPI) *Generator {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	g, err := NewGenerator("test-key", option.WithBaseURL(srv.URL+"/v1/"), option.WithMaxRetries(0))
	require.NoError(t, err)
	return g
}

func TestNewGeneratorRequiresKey(t *testing.T) {
	_, err := NewGenerator("")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestGenerateText(t *testing.T) {
	api := &fakeAPI{body: completion("  I am calm.\nI am focused.  ")}
	g := newTestGenerator(t, api)

	text, err := g.GenerateText(context.Background(), "affirmations please")
	require.NoError(t, err)
	assert.Equal(t, "I am calm.\nI am focused.", text)
	assert.True(t, strings.HasSuffix(api.path, "/chat/completions"))
	assert.Equal(t, "gpt-3.5-turbo", api.lastReq["model"])
	assert.EqualValues(t, 2000, api.lastReq["max_tokens"])

	msgs := api.lastReq["messages"].([]interface{})
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]interface{})["role"])
}

func TestGenerateTextSurfacesServiceError(t *testing.T) {
	api := &fakeAPI{status: http.StatusTooManyRequests, body: `{"error":{"message":"Rate limit reached","type":"requests"}}`}
	g := newTestGenerator(t, api)

	_, err := g.GenerateText(context.Background(), "hi")
	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.Equal(t, "Rate limit reached", se.Message)
}

func TestGenerateTextRejectsEmptyPrompt(t *testing.T) {
	g := newTestGenerator(t, &fakeAPI{})
	_, err := g.GenerateText(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestSynthesizeSpeech(t *testing.T) {
	api := &fakeAPI{body: "ID3-mp3-bytes"}
	g := newTestGenerator(t, api)

	data, err := g.SynthesizeSpeech(context.Background(), "Hello there", "Villain")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3-mp3-bytes"), data)
	assert.Equal(t, "alloy", api.lastReq["voice"])
	assert.Equal(t, "tts-1", api.lastReq["model"])
	assert.Equal(t, "mp3", api.lastReq["response_format"])

	_, err = g.SynthesizeSpeech(context.Background(), "Hello", "nova")
	require.NoError(t, err)
	assert.Equal(t, "nova", api.lastReq["voice"])

	_, err = g.SynthesizeSpeech(context.Background(), "", "nova")
	assert.ErrorIs(t, err, ErrEmptySpeechInput)
}

func TestGenerateTitleCleansResponse(t *testing.T) {
	api := &fakeAPI{body: completion(`{"title":"\"Title: Morning Calm Rituals.\""}`)}
	g := newTestGenerator(t, api)

	title, err := g.GenerateTitle(context.Background(), "Breathe in. Breathe out. Start the day gently.")
	require.NoError(t, err)
	assert.Equal(t, "Morning Calm Rituals", title)

	format := api.lastReq["response_format"].(map[string]interface{})
	assert.Equal(t, "json_schema", format["type"])
}

func TestGenerateTitleReplacesGenericTitle(t *testing.T) {
	api := &fakeAPI{body: completion(`{"title":"Generated Content"}`)}
	g := newTestGenerator(t, api)

	title, err := g.GenerateTitle(context.Background(), "one two three four five six seven")
	require.NoError(t, err)
	assert.Equal(t, "one two three four five", title)
}

func TestTitleOrFallback(t *testing.T) {
	now := time.Date(2024, time.March, 5, 15, 4, 0, 0, time.UTC)
	api := &fakeAPI{status: http.StatusInternalServerError, body: `{"error":{"message":"down"}}`}
	g := newTestGenerator(t, api)

	assert.Equal(t, "Content from Mar 5, 03:04 PM", TitleOrFallback(context.Background(), g, "some text", now))
	assert.Equal(t, "a fairly long opening line of", TitleOrFallback(context.Background(), nil, "a fairly long opening line of text here", now))
}

func TestCleanTitle(t *testing.T) {
	assert.Equal(t, "Hello World", CleanTitle(`"Hello World."`))
	assert.Equal(t, "Quiet Mind", CleanTitle("title: Quiet Mind"))
	assert.True(t, IsGenericTitle("ok"))
	assert.True(t, IsGenericTitle("My Generated Content"))
	assert.False(t, IsGenericTitle("Quiet Mind"))
}

func TestFallbackTitle(t *testing.T) {
	now := time.Date(2024, time.January, 2, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "Content from Jan 2, 09:30 AM", FallbackTitle("short", now))
	long := strings.Repeat("abcdefghij", 3) + " " + strings.Repeat("klmnopqrst", 3)
	assert.Equal(t, long[:50]+"...", FallbackTitle(long, now))
}

func TestNormalizeVoice(t *testing.T) {
	assert.Equal(t, "shimmer", NormalizeVoice(" Shimmer "))
	assert.Equal(t, DefaultVoice, NormalizeVoice(""))
}
