package processing

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v3"
)

// TitleResponse represents the JSON response from OpenAI
type TitleResponse struct {
	Title string `json:"title" jsonschema_description:"A short, natural title of 3 to 8 words capturing the main theme of the text"`
}

// GenerateSchema generates a JSON schema for structured outputs
func GenerateSchema[T any]() interface{} {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return schema
}

// titleResponseSchema is the cached schema
var titleResponseSchema = GenerateSchema[TitleResponse]()

const titleSystemPrompt = `You are a title generator. Create short, natural, human-readable titles that capture the essence of the text. Never use quotes or generic phrases like "Generated Content".`

// GenerateTitle asks the model for a short title for text. The result is
// cleaned up, and replaced by the opening words of text when it comes back
// generic or empty.
func (g *Generator) GenerateTitle(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("text is required")
	}
	prompt := fmt.Sprintf("Based on the following text, create a short, natural, and descriptive title (3-8 words maximum). The title should capture the main theme or topic. Do not use quotes.\n\n%s", truncateRunes(text, 600))

	resp, err := getStructuredResponse[TitleResponse](ctx, g.client, g.TitleModel, titleSystemPrompt, prompt, titleResponseSchema)
	if err != nil {
		return "", err
	}
	title := CleanTitle(resp.Title)
	if IsGenericTitle(title) {
		title = OpeningWords(text, 5, 40)
	}
	log.Printf("Title generated: %s", title)
	return title, nil
}

// getStructuredResponse is a helper function to call the OpenAI API with JSON schema enforcement
func getStructuredResponse[T any](ctx context.Context, client openai.Client, model openai.ChatModel, system, prompt string, schema interface{}) (*T, error) {
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "structured_response",
		Description: openai.String("Structured data response"),
		Schema:      schema,
		Strict:      openai.Bool(true),
	}

	chatCompletion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
		Model:       model,
		Temperature: openai.Float(0.8),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
	})

	if err != nil {
		return nil, serviceError(err)
	}

	if len(chatCompletion.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	rawResponse := chatCompletion.Choices[0].Message.Content

	var structuredResponse T
	if err := json.Unmarshal([]byte(rawResponse), &structuredResponse); err != nil {
		return nil, fmt.Errorf("failed to parse OpenAI JSON response: %w\nRaw content: %s", err, rawResponse)
	}

	return &structuredResponse, nil
}

var (
	surroundingQuotes = regexp.MustCompile(`^["']|["']$`)
	titlePrefix       = regexp.MustCompile(`(?i)^Title:\s*`)
)

// CleanTitle strips quotes, a "Title:" prefix and a trailing period.
func CleanTitle(raw string) string {
	t := strings.TrimSpace(raw)
	t = surroundingQuotes.ReplaceAllString(t, "")
	t = titlePrefix.ReplaceAllString(t, "")
	t = strings.TrimSuffix(t, ".")
	return strings.TrimSpace(t)
}

// IsGenericTitle reports titles too short or bland to keep.
func IsGenericTitle(title string) bool {
	return len([]rune(title)) < 3 || strings.Contains(strings.ToLower(title), "generated content")
}

// OpeningWords joins the first n words of text, cut to limit runes with an
// ellipsis.
func OpeningWords(text string, n, limit int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	s := strings.Join(words, " ")
	if len([]rune(s)) > limit {
		return string([]rune(s)[:limit]) + "..."
	}
	return s
}

// DatedTitle is the title used when nothing better is available.
func DatedTitle(now time.Time) string {
	return "Content from " + now.Format("Jan 2, 03:04 PM")
}

// FallbackTitle names an item from its text: the first six words, or a
// dated title when those are too short to be useful.
func FallbackTitle(text string, now time.Time) string {
	name := OpeningWords(text, 6, 50)
	if len([]rune(name)) < 10 {
		return DatedTitle(now)
	}
	return name
}

// TitleGenerator is satisfied by Generator.
type TitleGenerator interface {
	GenerateTitle(ctx context.Context, text string) (string, error)
}

// TitleOrFallback never fails: a generator error, or no generator at all,
// yields a dated title.
func TitleOrFallback(ctx context.Context, gen TitleGenerator, text string, now time.Time) string {
	if gen == nil {
		return FallbackTitle(text, now)
	}
	title, err := gen.GenerateTitle(ctx, text)
	if err != nil {
		log.Printf("Title generation failed, using fallback: %v", err)
		return DatedTitle(now)
	}
	return title
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
