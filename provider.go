package main

import (
	"fmt"

	"analyze-service/config"
	"analyze-service/gemini"
	"analyze-service/llm"
	"analyze-service/ollama"
	"analyze-service/openai"
	"analyze-service/stubllm"
	"analyze-service/textgen"
)

// newProvider builds the configured upstream. A missing credential is not an
// error here; requests report it.
func newProvider(cfg *config.Config) (llm.Provider, error) {
	switch cfg.LLMProvider {
	case "gemini":
		return gemini.NewClient(cfg.GoogleAPIKey, cfg.GeminiModel, cfg.GeminiBaseURL)
	case "openai":
		return openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL), nil
	case "textgen":
		return textgen.NewClient(cfg.TextGenAPIKey, cfg.TextGenURL), nil
	case "ollama":
		return ollama.NewClient(cfg.OllamaHost, cfg.OllamaModel)
	case "stub":
		if cfg.StubResponsesFile != "" {
			return stubllm.LoadFile(cfg.StubResponsesFile)
		}
		return stubllm.NewClient(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}
