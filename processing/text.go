package processing

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
)

var ErrEmptyPrompt = errors.New("prompt is required")

const textSystemPrompt = `When generating affirmations or similar content, do not use numbered lists or bullet points. Write each statement on a new line without any numbering, bullets, or other markers. Just write the affirmations naturally, one per line.`

// GenerateText asks the chat model for text for prompt.
func (g *Generator) GenerateText(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}
	log.Printf("Generating text for prompt: %q", preview(prompt, 50))

	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(textSystemPrompt),
			openai.UserMessage(prompt),
		},
		Model:       g.TextModel,
		MaxTokens:   openai.Int(2000),
		Temperature: openai.Float(0.7),
	})
	if err != nil {
		return "", serviceError(err)
	}
	if len(completion.Choices) == 0 {
		return "", &ServiceError{StatusCode: http.StatusInternalServerError, Message: "unexpected response format from OpenAI"}
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
