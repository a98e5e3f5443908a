package processing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/openai/openai-go/v3"
)

var ErrEmptySpeechInput = errors.New("audioInput is required and must be a non-empty string")

// DefaultVoice is used when no voice, or an unknown one, is requested.
const DefaultVoice = "alloy"

// Voices lists the accepted speech voices.
var Voices = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}

// NormalizeVoice returns voice if it is known and DefaultVoice otherwise.
func NormalizeVoice(voice string) string {
	v := strings.ToLower(strings.TrimSpace(voice))
	for _, known := range Voices {
		if v == known {
			return v
		}
	}
	return DefaultVoice
}

// SynthesizeSpeech returns MP3 narration of text.
func (g *Generator) SynthesizeSpeech(ctx context.Context, text, voice string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptySpeechInput
	}
	voice = NormalizeVoice(voice)
	log.Printf("Generating audio for text: %q with voice: %s", preview(text, 50), voice)

	resp, err := g.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          g.VoiceModel,
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, serviceError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read speech: %w", err)
	}
	if len(data) == 0 {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: "empty audio response"}
	}
	return data, nil
}
