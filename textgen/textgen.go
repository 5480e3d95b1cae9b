package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"analyze-service/llm"
)

// Client talks to a text-generation-inference style server:
// POST /generate and POST /generate_stream.

const (
	DefaultURL    = "http://127.0.0.1:3000"
	CredentialKey = "TEXTGEN_API_KEY"
)

type parameters struct {
	Temperature  float64 `json:"temperature,omitempty"`
	MaxNewTokens int     `json:"max_new_tokens,omitempty"`
}

type generateRequest struct {
	Inputs     string     `json:"inputs"`
	Parameters parameters `json:"parameters"`
}

type generateResponse struct {
	GeneratedText string `json:"generated_text"`
	Error         string `json:"error,omitempty"`
}

type streamResponse struct {
	Token *struct {
		Text    string `json:"text"`
		Special bool   `json:"special"`
	} `json:"token,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
}

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewClient(apiKey, baseURL string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultURL
	}
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{},
	}
}

func (c *Client) Name() string {
	return "textgen"
}

func (c *Client) CredentialKey() string {
	return CredentialKey
}

func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

func (c *Client) Generate(ctx context.Context, prompt string, params llm.Params) (string, error) {
	resp, err := c.post(ctx, "/generate", prompt, params)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", llm.Transport(c.Name(), fmt.Errorf("failed to read response: %w", err))
	}

	text, err := parseGenerated(body)
	if err != nil {
		return "", llm.Status(c.Name(), resp.StatusCode, err.Error())
	}
	if strings.TrimSpace(text) == "" {
		return "", llm.ErrNoText
	}
	return text, nil
}

// parseGenerated accepts both the single-object and the list form
func parseGenerated(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []generateResponse
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return "", fmt.Errorf("failed to parse response: %w", err)
		}
		if len(list) == 0 {
			return "", nil
		}
		return list[0].GeneratedText, nil
	}

	var single generateResponse
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if single.Error != "" {
		return "", fmt.Errorf("%s", single.Error)
	}
	return single.GeneratedText, nil
}

func (c *Client) GenerateStream(ctx context.Context, prompt string, params llm.Params, fn llm.StreamFn) error {
	resp, err := c.post(ctx, "/generate_stream", prompt, params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return llm.ScanEvents(ctx, resp.Body, func(payload string) error {
		var chunk streamResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return nil
		}
		if chunk.Error != "" {
			return llm.Status(c.Name(), http.StatusBadGateway, chunk.Error)
		}
		if chunk.Token == nil || chunk.Token.Special || chunk.Token.Text == "" {
			return nil
		}
		return fn(chunk.Token.Text)
	})
}

func (c *Client) post(ctx context.Context, path, prompt string, params llm.Params) (*http.Response, error) {
	if !c.Enabled() {
		return nil, llm.ErrNotConfigured
	}

	data, err := json.Marshal(generateRequest{
		Inputs: prompt,
		Parameters: parameters{
			Temperature:  params.Temperature,
			MaxNewTokens: params.MaxOutputTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, llm.Transport(c.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		var parsed generateResponse
		if json.Unmarshal(body, &parsed) == nil && parsed.Error != "" {
			return nil, llm.Status(c.Name(), resp.StatusCode, parsed.Error)
		}
		return nil, llm.Status(c.Name(), resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}
