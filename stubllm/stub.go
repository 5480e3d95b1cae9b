package stubllm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"analyze-service/llm"

	"gopkg.in/yaml.v3"
)

// Client is a deterministic, no-network provider for local development and tests.
// Replies come from a canned list (first case-insensitive substring match wins)
// or from a generated default keyed on the prompt hash.
type Client struct {
	responses []Response
	fallback  string
}

// Response is one canned reply
type Response struct {
	Match string `yaml:"match"`
	Text  string `yaml:"text"`
}

type file struct {
	Default   string     `yaml:"default"`
	Responses []Response `yaml:"responses"`
}

func NewClient(responses ...Response) *Client {
	return &Client{responses: responses}
}

// LoadFile reads canned replies from a YAML file:
//
//	default: "..."
//	responses:
//	  - match: "kubernetes"
//	    text: "..."
func LoadFile(path string) (*Client, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stub responses: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse stub responses: %w", err)
	}
	return &Client{responses: f.Responses, fallback: f.Default}, nil
}

func (c *Client) Name() string { return "stub" }

func (c *Client) CredentialKey() string { return "" }

func (c *Client) Enabled() bool { return true }

func (c *Client) Generate(ctx context.Context, prompt string, params llm.Params) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.reply(prompt), nil
}

// GenerateStream emits the reply word by word, keeping the separators
func (c *Client) GenerateStream(ctx context.Context, prompt string, params llm.Params, fn llm.StreamFn) error {
	for _, fragment := range strings.SplitAfter(c.reply(prompt), " ") {
		if err := ctx.Err(); err != nil {
			return err
		}
		if fragment == "" {
			continue
		}
		if err := fn(fragment); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) reply(prompt string) string {
	lower := strings.ToLower(prompt)
	for _, r := range c.responses {
		if r.Match != "" && strings.Contains(lower, strings.ToLower(r.Match)) {
			return r.Text
		}
	}
	if c.fallback != "" {
		return c.fallback
	}

	sum := sha256.Sum256([]byte(prompt))
	return fmt.Sprintf("## Stub Feedback (%s)\n\nThis is a canned development response for a prompt of %d characters.",
		hex.EncodeToString(sum[:4]), len([]rune(prompt)))
}
