package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"analyze-service/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type generateRequest struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient("test-key", "gemini-test", url)
	require.NoError(t, err)
	require.True(t, c.Enabled())
	return c
}

func collect(t *testing.T, c *Client) ([]string, error) {
	t.Helper()
	var fragments []string
	err := c.GenerateStream(context.Background(), "hi", llm.DefaultParams(), func(s string) error {
		fragments = append(fragments, s)
		return nil
	})
	return fragments, err
}

func TestGenerate(t *testing.T) {
	var gotPath, gotKey string
	var gotBody generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"Hello"},{"text":" world"}]},"finishReason":"STOP"}]}`)
	}))
	defer srv.Close()

	text, err := newTestClient(t, srv.URL).Generate(context.Background(), "hi", llm.Params{Temperature: 0.5, MaxOutputTokens: 10})
	require.NoError(t, err)

	assert.Equal(t, "Hello world", text)
	assert.Equal(t, "/v1beta/models/gemini-test:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	require.Len(t, gotBody.Contents, 1)
	assert.Equal(t, "user", gotBody.Contents[0].Role)
	assert.Equal(t, "hi", gotBody.Contents[0].Parts[0].Text)
	assert.InDelta(t, 0.5, gotBody.GenerationConfig.Temperature, 1e-6)
	assert.Equal(t, 10, gotBody.GenerationConfig.MaxOutputTokens)
}

func TestGenerate_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Generate(context.Background(), "hi", llm.DefaultParams())
	assert.ErrorIs(t, err, llm.ErrNoText)
}

func TestGenerate_Blocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Generate(context.Background(), "hi", llm.DefaultParams())
	assert.ErrorIs(t, err, llm.ErrNoText)
	assert.ErrorContains(t, err, "SAFETY")
}

func TestGenerate_UpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Generate(context.Background(), "hi", llm.DefaultParams())

	var upErr *llm.UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusTooManyRequests, upErr.StatusCode)
	assert.Equal(t, "Resource has been exhausted", upErr.Message)
}

func TestGenerate_NotConfigured(t *testing.T) {
	c, err := NewClient("", "", "http://127.0.0.1:1")
	require.NoError(t, err)
	assert.False(t, c.Enabled())
	assert.Equal(t, "GOOGLE_API_KEY", c.CredentialKey())

	_, err = c.Generate(context.Background(), "hi", llm.DefaultParams())
	assert.ErrorIs(t, err, llm.ErrNotConfigured)
	_, err = collect(t, c)
	assert.ErrorIs(t, err, llm.ErrNotConfigured)
}

func TestGenerateStream(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"Hello\"}]}}]}\r\n\r\n")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"\"}]}}]}\r\n\r\n")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\" world\"}]},\"finishReason\":\"STOP\"}]}\r\n\r\n")
	}))
	defer srv.Close()

	fragments, err := collect(t, newTestClient(t, srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "/v1beta/models/gemini-test:streamGenerateContent", gotPath)
	assert.Equal(t, "alt=sse", gotQuery)
	assert.Equal(t, []string{"Hello", " world"}, fragments)
}

func TestGenerateStream_ErrorChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"partial\"}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"error\":{\"code\":500,\"message\":\"internal\"}}\n\n")
	}))
	defer srv.Close()

	fragments, err := collect(t, newTestClient(t, srv.URL))

	var upErr *llm.UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusInternalServerError, upErr.HTTPStatus())
	assert.Equal(t, []string{"partial"}, fragments)
}

func TestGenerateStream_CutOff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"Hel\"}]}}]}\n\n")
	}))
	defer srv.Close()

	fragments, err := collect(t, newTestClient(t, srv.URL))
	assert.ErrorContains(t, err, "finish reason")
	assert.Equal(t, []string{"Hel"}, fragments)
}

func TestGenerateStream_Blocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"promptFeedback\":{\"blockReason\":\"SAFETY\"}}\n\n")
	}))
	defer srv.Close()

	fragments, err := collect(t, newTestClient(t, srv.URL))
	assert.ErrorIs(t, err, llm.ErrNoText)
	assert.Empty(t, fragments)
}

func TestGenerateStream_CallbackErrorStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"one\"}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"two\"}]},\"finishReason\":\"STOP\"}]}\n\n")
	}))
	defer srv.Close()

	gone := errors.New("client gone")
	calls := 0
	err := newTestClient(t, srv.URL).GenerateStream(context.Background(), "hi", llm.DefaultParams(), func(string) error {
		calls++
		return gone
	})
	assert.ErrorIs(t, err, gone)
	assert.Equal(t, 1, calls)
}

func TestGenerateStream_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "API key not valid", http.StatusBadRequest)
	}))
	defer srv.Close()

	fragments, err := collect(t, newTestClient(t, srv.URL))

	var upErr *llm.UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusBadRequest, upErr.StatusCode)
	assert.Equal(t, "API key not valid", upErr.Message)
	assert.Empty(t, fragments)
}
