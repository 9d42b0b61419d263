// Package llm wraps the Gemini SDK behind a small structured-output client.
// Temperature binds at client creation so one pipeline run is reproducible
// across stages.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

// Prompt is one model invocation. MediaURL, when set, attaches a remote file
// part (a video URL) alongside the text.
type Prompt struct {
	Text          string
	MediaURL      string
	MediaMIMEType string
}

// Client is a configured model handle. Safe for concurrent use.
type Client struct {
	provider    string
	modelName   string
	temperature float32
	gClient     *genai.Client
}

// NewClient creates a model client. The API key comes from the argument or
// the GEMINI_API_KEY / GOOGLE_AI_API_KEY environment variables.
func NewClient(provider, modelName string, temperature float32, apiKey string) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_AI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY or ai.api_key in config")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	gClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		provider:    provider,
		modelName:   modelName,
		temperature: temperature,
		gClient:     gClient,
	}, nil
}

// Provider returns the provider tag recorded on produced rows.
func (c *Client) Provider() string { return c.provider }

// ModelName returns the model identity recorded on produced rows.
func (c *Client) ModelName() string { return c.modelName }

// Temperature returns the sampling temperature bound at creation.
func (c *Client) Temperature() float32 { return c.temperature }

// Invoke runs one generation call under the given per-call timeout. When
// schema is non-nil the call requests structured JSON output. Errors come
// back as TimeoutError, ParseError, or ServiceError.
func (c *Client) Invoke(ctx context.Context, prompt Prompt, schema *genai.Schema, timeout time.Duration) (string, error) {
	op := fmt.Sprintf("%s call", c.modelName)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	parts := []*genai.Part{{Text: prompt.Text}}
	if prompt.MediaURL != "" {
		parts = append(parts, &genai.Part{
			FileData: &genai.FileData{FileURI: prompt.MediaURL, MIMEType: prompt.MediaMIMEType},
		})
	}
	contents := []*genai.Content{{Parts: parts, Role: "user"}}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
	}
	if schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = schema
	}

	resp, err := c.gClient.Models.GenerateContent(ctx, c.modelName, contents, config)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &TimeoutError{Op: op, Timeout: timeout}
		}
		return "", &ServiceError{Op: op, Err: err}
	}

	text := resp.Text()
	if text == "" {
		return "", &ParseError{Op: op, Err: fmt.Errorf("empty response from model")}
	}
	return text, nil
}
