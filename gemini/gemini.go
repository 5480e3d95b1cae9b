package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"analyze-service/llm"

	"google.golang.org/genai"
)

const (
	DefaultModel  = "gemini-1.5-flash"
	CredentialKey = "GOOGLE_API_KEY"
)

// Client calls the Gemini API through the genai SDK. Without a key the
// client exists but is disabled; the SDK refuses to build a keyless client.
type Client struct {
	model  string
	client *genai.Client
}

// NewClient builds the provider. baseURL is the API host root (the SDK
// appends the version); empty means the public endpoint.
func NewClient(apiKey, model, baseURL string) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	c := &Client{model: strings.TrimSpace(model)}

	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return c, nil
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &http.Client{},
		HTTPOptions: genai.HTTPOptions{BaseURL: strings.TrimSpace(baseURL)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	c.client = client
	return c, nil
}

func (c *Client) Name() string {
	return "gemini"
}

func (c *Client) CredentialKey() string {
	return CredentialKey
}

func (c *Client) Enabled() bool {
	return c != nil && c.client != nil
}

func (c *Client) Generate(ctx context.Context, prompt string, params llm.Params) (string, error) {
	if !c.Enabled() {
		return "", llm.ErrNotConfigured
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), generationConfig(params))
	if err != nil {
		return "", c.mapError(ctx, err)
	}

	text := textOf(resp)
	if strings.TrimSpace(text) == "" {
		if reason := blockReason(resp); reason != "" {
			return "", fmt.Errorf("prompt blocked (%s): %w", reason, llm.ErrNoText)
		}
		return "", llm.ErrNoText
	}
	return text, nil
}

// GenerateStream forwards each chunk's text. The SDK drops body read errors
// and turns in-stream error chunks into empty responses, so a stream that
// never reports a finish reason is treated as cut off.
func (c *Client) GenerateStream(ctx context.Context, prompt string, params llm.Params, fn llm.StreamFn) error {
	if !c.Enabled() {
		return llm.ErrNotConfigured
	}

	finished := false
	var blocked genai.BlockedReason
	for resp, err := range c.client.Models.GenerateContentStream(ctx, c.model, genai.Text(prompt), generationConfig(params)) {
		if err != nil {
			return c.mapError(ctx, err)
		}
		if reason := blockReason(resp); reason != "" {
			blocked = reason
		}
		if finishReason(resp) != "" {
			finished = true
		}
		if text := textOf(resp); text != "" {
			if err := fn(text); err != nil {
				return err
			}
		}
	}

	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case blocked != "":
		return fmt.Errorf("prompt blocked (%s): %w", blocked, llm.ErrNoText)
	case !finished:
		return llm.Transport(c.Name(), errors.New("stream ended without a finish reason"))
	}
	return nil
}

func generationConfig(params llm.Params) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(params.Temperature)),
	}
	if params.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(params.MaxOutputTokens)
	}
	return cfg
}

func (c *Client) mapError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.Code
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		return llm.Status(c.Name(), status, strings.TrimSpace(apiErr.Message))
	}
	return llm.Transport(c.Name(), err)
}

// textOf joins the non-thought text parts of the first candidate
func textOf(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && !p.Thought {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

func finishReason(resp *genai.GenerateContentResponse) genai.FinishReason {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return ""
	}
	return resp.Candidates[0].FinishReason
}

func blockReason(resp *genai.GenerateContentResponse) genai.BlockedReason {
	if resp == nil || resp.PromptFeedback == nil {
		return ""
	}
	return resp.PromptFeedback.BlockReason
}
