package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	draft "github.com/goliatone/go-draft"
)

// GeneratePath is the generation endpoint path.
const GeneratePath = "/api/surveys/generate"

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// Client calls a remote generation endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Generate posts description to the endpoint. The returned survey carries
// Prompt set to description. Non-2xx responses yield *HTTPError.
func (c *Client) Generate(ctx context.Context, description string, fresh bool) (*draft.RawSurvey, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, ErrEmptyDescription
	}
	body, err := json.Marshal(Request{Description: description, Fresh: fresh})
	if err != nil {
		return nil, fmt.Errorf("generate: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+GeneratePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("generate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generate: request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("generate: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Message: errorMessage(payload)}
	}

	var survey draft.RawSurvey
	if err := json.Unmarshal(payload, &survey); err != nil {
		return nil, fmt.Errorf("generate: decode response: %w", err)
	}
	survey.Prompt = description
	return &survey, nil
}

// errorMessage extracts {"error": "..."} bodies, falling back to raw text.
func errorMessage(payload []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(payload))
}
