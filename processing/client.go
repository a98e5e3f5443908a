// Package processing talks to the hosted language and speech models: text
// generation, narration synthesis and title suggestions.
package processing

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

var ErrMissingAPIKey = errors.New("OPENAI_API_KEY environment variable not set")

// ServiceError is a failed call to the model provider.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("OpenAI API error (%d): %s", e.StatusCode, e.Message)
}

// Generator wraps an OpenAI client.
type Generator struct {
	client openai.Client

	TextModel  openai.ChatModel
	TitleModel openai.ChatModel
	VoiceModel openai.SpeechModel
}

// NewGenerator creates a Generator. Extra options are passed to the client,
// which is how tests point it at a local server.
func NewGenerator(apiKey string, opts ...option.RequestOption) (*Generator, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Generator{
		client:     openai.NewClient(opts...),
		TextModel:  openai.ChatModelGPT3_5Turbo,
		TitleModel: openai.ChatModelGPT4oMini,
		VoiceModel: openai.SpeechModelTTS1,
	}, nil
}

// serviceError converts SDK errors into a ServiceError carrying the status
// code and the provider's message.
func serviceError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return &ServiceError{StatusCode: apiErr.StatusCode, Message: msg}
	}
	return &ServiceError{StatusCode: http.StatusBadGateway, Message: err.Error()}
}
