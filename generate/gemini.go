package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	draft "github.com/goliatone/go-draft"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-1.5-flash"

var (
	ErrMissingAPIKey = errors.New("generate: gemini API key is required")
	ErrBlocked       = errors.New("generate: blocked_by_safety")
	ErrEmptyResponse = errors.New("generate: empty_response")
	ErrInvalidJSON   = errors.New("generate: invalid_json")
	ErrMissingKeys   = errors.New("generate: missing_keys")
)

const geminiPrompt = `Create a survey for: %q
Return JSON with this shape:
{
  "title": string,
  "questions": [
    {"type":"rating","text":string,"scale":5},
    {"type":"multiple_choice","text":string,"options":[string,...]},
    {"type":"open_text","text":string}
  ]
}
Rules: 3 to 6 total questions. At least one rating, one multiple_choice and one open_text.
Keep language neutral and concise. JSON ONLY, no markdown, no prose.`

// contentGenerator is the subset of *genai.Models used by GeminiProvider.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiProvider asks a Gemini model for a JSON-only survey.
type GeminiProvider struct {
	models contentGenerator
	model  string
}

// GeminiOption configures a GeminiProvider.
type GeminiOption func(*GeminiProvider)

// WithGeminiModel overrides DefaultGeminiModel.
func WithGeminiModel(model string) GeminiOption {
	return func(p *GeminiProvider) {
		if model = strings.TrimSpace(model); model != "" {
			p.model = model
		}
	}
}

// NewGeminiProvider builds a provider backed by the Gemini API.
func NewGeminiProvider(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("generate: create gemini client: %w", err)
	}
	return newGeminiProvider(client.Models, opts...), nil
}

func newGeminiProvider(models contentGenerator, opts ...GeminiOption) *GeminiProvider {
	p := &GeminiProvider{models: models, model: DefaultGeminiModel}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func (p *GeminiProvider) Name() string { return "gemini:" + p.model }

func (p *GeminiProvider) Generate(ctx context.Context, description string) (draft.RawSurvey, error) {
	prompt := fmt.Sprintf(geminiPrompt, strings.TrimSpace(description))
	resp, err := p.models.GenerateContent(ctx, p.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return draft.RawSurvey{}, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	return decodeGeminiResponse(resp)
}

func decodeGeminiResponse(resp *genai.GenerateContentResponse) (draft.RawSurvey, error) {
	if resp == nil {
		return draft.RawSurvey{}, ErrEmptyResponse
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return draft.RawSurvey{}, fmt.Errorf("%w: %s", ErrBlocked, fb.BlockReason)
	}
	text := strings.TrimSpace(responseText(resp))
	if text == "" {
		return draft.RawSurvey{}, ErrEmptyResponse
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &keys); err != nil {
		return draft.RawSurvey{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if _, ok := keys["title"]; !ok {
		return draft.RawSurvey{}, fmt.Errorf("%w: title", ErrMissingKeys)
	}
	if _, ok := keys["questions"]; !ok {
		return draft.RawSurvey{}, fmt.Errorf("%w: questions", ErrMissingKeys)
	}

	var survey draft.RawSurvey
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	if err := dec.Decode(&survey); err != nil {
		return draft.RawSurvey{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	survey.Cached = false
	return survey, nil
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}
