package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"analyze-service/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerate(t *testing.T) {
	var gotAuth string
	var gotReq map[string]any
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"chatcmpl-1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Hello world"},"finish_reason":"stop"}]}`)
	})

	c := NewClient("sk-test", "gpt-test", srv.URL+"/v1")
	text, err := c.Generate(context.Background(), "hi", llm.DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, "Hello world", text)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-test", gotReq["model"])
}

func TestGenerate_EmptyChoices(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"chatcmpl-1","object":"chat.completion","choices":[]}`)
	})

	_, err := NewClient("sk-test", "", srv.URL+"/v1").Generate(context.Background(), "hi", llm.DefaultParams())
	assert.ErrorIs(t, err, llm.ErrNoText)
}

func TestGenerate_Unauthorized(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`)
	})

	_, err := NewClient("sk-bad", "", srv.URL+"/v1").Generate(context.Background(), "hi", llm.DefaultParams())

	var upErr *llm.UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusUnauthorized, upErr.StatusCode)
	assert.Equal(t, "Incorrect API key provided", upErr.Message)
}

func TestGenerateStream(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, s := range []string{"Hello", "", " world"} {
			fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", s)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var fragments []string
	err := NewClient("sk-test", "", srv.URL+"/v1").GenerateStream(context.Background(), "hi", llm.DefaultParams(), func(s string) error {
		fragments = append(fragments, s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello", " world"}, fragments)
}

func TestGenerateStream_CallbackErrorStops(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, s := range []string{"a", "b", "c"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", s)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	stop := errors.New("client gone")
	calls := 0
	err := NewClient("sk-test", "", srv.URL+"/v1").GenerateStream(context.Background(), "hi", llm.DefaultParams(), func(string) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestNotConfigured(t *testing.T) {
	c := NewClient("", "", "")
	assert.False(t, c.Enabled())
	assert.Equal(t, "OPENAI_API_KEY", c.CredentialKey())
	assert.ErrorIs(t, c.GenerateStream(context.Background(), "hi", llm.DefaultParams(), nil), llm.ErrNotConfigured)
}
