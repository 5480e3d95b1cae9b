package openai

import (
	"context"
	"errors"
	"io"
	"strings"

	"analyze-service/llm"

	openaiapi "github.com/sashabaranov/go-openai"
)

const (
	DefaultModel  = "gpt-4o-mini"
	CredentialKey = "OPENAI_API_KEY"
)

type Client struct {
	apiKey string
	model  string
	api    *openaiapi.Client
}

// NewClient creates an OpenAI chat-completions provider. An empty baseURL
// keeps the library default endpoint.
func NewClient(apiKey, model, baseURL string) *Client {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	cfg := openaiapi.DefaultConfig(strings.TrimSpace(apiKey))
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &Client{
		apiKey: strings.TrimSpace(apiKey),
		model:  model,
		api:    openaiapi.NewClientWithConfig(cfg),
	}
}

func (c *Client) Name() string {
	return "openai"
}

func (c *Client) CredentialKey() string {
	return CredentialKey
}

func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

func (c *Client) Generate(ctx context.Context, prompt string, params llm.Params) (string, error) {
	if !c.Enabled() {
		return "", llm.ErrNotConfigured
	}

	resp, err := c.api.CreateChatCompletion(ctx, c.request(prompt, params, false))
	if err != nil {
		return "", c.upstreamErr(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", llm.ErrNoText
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) GenerateStream(ctx context.Context, prompt string, params llm.Params, fn llm.StreamFn) error {
	if !c.Enabled() {
		return llm.ErrNotConfigured
	}

	stream, err := c.api.CreateChatCompletionStream(ctx, c.request(prompt, params, true))
	if err != nil {
		return c.upstreamErr(err)
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return c.upstreamErr(err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if text := chunk.Choices[0].Delta.Content; text != "" {
			if err := fn(text); err != nil {
				return err
			}
		}
	}
}

func (c *Client) request(prompt string, params llm.Params, stream bool) openaiapi.ChatCompletionRequest {
	return openaiapi.ChatCompletionRequest{
		Model:       c.model,
		Temperature: float32(params.Temperature),
		MaxTokens:   params.MaxOutputTokens,
		Stream:      stream,
		Messages: []openaiapi.ChatCompletionMessage{
			{
				Role:    openaiapi.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	}
}

// upstreamErr keeps the HTTP status the library saw, if any
func (c *Client) upstreamErr(err error) error {
	var apiErr *openaiapi.APIError
	if errors.As(err, &apiErr) {
		return &llm.UpstreamError{Provider: c.Name(), StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *openaiapi.RequestError
	if errors.As(err, &reqErr) {
		return &llm.UpstreamError{Provider: c.Name(), StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error(), Err: err}
	}
	return llm.Transport(c.Name(), err)
}
