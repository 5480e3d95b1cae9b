package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"analyze-service/config"
	"analyze-service/handlers"
	"analyze-service/relay"
	"analyze-service/stubllm"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopStore struct{ handlers.JournalStore }

func testConfig() *config.Config {
	return &config.Config{
		AllowedOrigins:     "*",
		RateLimitPerMinute: 100,
		RelayMode:          "stream",
		LLMProvider:        "stub",
		JWTSecret:          "secret",
	}
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_Analyze(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := relay.New(stubllm.NewClient(stubllm.Response{Match: "hello", Text: "Hi there"}), relay.Config{})
	router := setupRouter(testConfig(), r, nil, nil)

	w := serve(router, http.MethodPost, EndPointAnalyze, `{"prompt":"hello"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t,
		"data: {\"text\":\"Hi \",\"type\":\"text-delta\"}\n\n"+
			"data: {\"text\":\"there\",\"type\":\"text-delta\"}\n\n"+
			"data: [DONE]\n\n",
		w.Body.String())

	w = serve(router, http.MethodOptions, EndPointAnalyze, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, "POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))

	w = serve(router, http.MethodGet, EndPointAnalyze, "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(router, http.MethodPost, EndPointAnalyze, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := setupRouter(testConfig(), relay.New(stubllm.NewClient(), relay.Config{}), nil, nil)

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, EndPointHealth, "").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, EndPointVersion, "").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, EndPointMetrics, "").Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, EndPointEntries, "").Code)
}

func TestRouter_StreamIsNeverCompressed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := setupRouter(testConfig(), relay.New(stubllm.NewClient(), relay.Config{}), nil, nil)

	req := httptest.NewRequest(http.MethodPost, EndPointAnalyze, strings.NewReader(`{"prompt":"hi"}`))
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.True(t, strings.HasSuffix(w.Body.String(), "data: [DONE]\n\n"))

	req = httptest.NewRequest(http.MethodGet, EndPointHealth, nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
}

func TestRouter_JournalRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := setupRouter(testConfig(), relay.New(stubllm.NewClient(), relay.Config{}), nopStore{}, nil)

	w := serve(router, http.MethodGet, EndPointEntries, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(router, http.MethodOptions, "/api/entries/abc", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestNewProvider(t *testing.T) {
	for _, name := range []string{"gemini", "openai", "textgen", "ollama", "stub"} {
		cfg := testConfig()
		cfg.LLMProvider = name
		p, err := newProvider(cfg)
		require.NoError(t, err, name)
		assert.Equal(t, name, p.Name())
	}

	cfg := testConfig()
	cfg.LLMProvider = "nope"
	_, err := newProvider(cfg)
	assert.Error(t, err)
}
