package stubllm

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"analyze-service/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, c *Client, prompt string) []string {
	t.Helper()
	var out []string
	require.NoError(t, c.GenerateStream(context.Background(), prompt, llm.DefaultParams(), func(s string) error {
		out = append(out, s)
		return nil
	}))
	return out
}

func TestCannedMatch(t *testing.T) {
	c := NewClient(Response{Match: "Kubernetes", Text: "Learn kubectl"})

	text, err := c.Generate(context.Background(), "I want to learn kubernetes", llm.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, "Learn kubectl", text)
	assert.Equal(t, []string{"Learn ", "kubectl"}, collect(t, c, "kubernetes please"))
}

func TestDefaultIsDeterministic(t *testing.T) {
	c := NewClient()
	first := collect(t, c, "same prompt")
	second := collect(t, c, "same prompt")

	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(strings.Join(first, ""), "## Stub Feedback ("))
	assert.NotEqual(t, strings.Join(first, ""), strings.Join(collect(t, c, "other prompt"), ""))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stub.yaml")
	content := `default: "Generic feedback"
responses:
  - match: "data analyst"
    text: "Practice SQL"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := LoadFile(path)
	require.NoError(t, err)

	text, _ := c.Generate(context.Background(), "Target: Data Analyst", llm.DefaultParams())
	assert.Equal(t, "Practice SQL", text)
	text, _ = c.Generate(context.Background(), "anything", llm.DefaultParams())
	assert.Equal(t, "Generic feedback", text)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
