package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
)

// Supported LLM_PROVIDER values
var providers = map[string]bool{
	"gemini":  true,
	"openai":  true,
	"textgen": true,
	"ollama":  true,
	"stub":    true,
}

// Config holds all configuration for the analyze service
type Config struct {
	// Server configuration
	Port               string
	LogLevel           string
	AllowedOrigins     string
	RateLimitPerMinute int

	// Relay configuration
	RelayMode          string
	LLMProvider        string
	MaxPromptChars     int
	RelayTimeout       time.Duration
	LLMTemperature     float64
	LLMMaxOutputTokens int

	// Gemini configuration
	GoogleAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	// OpenAI configuration
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	// Text generation API configuration
	TextGenAPIKey string
	TextGenURL    string

	// Ollama configuration
	OllamaHost  string
	OllamaModel string

	StubResponsesFile string

	// Journal configuration
	JournalEnabled bool
	JWTSecret      string
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string

	// Analysis events
	AMQPURL          string
	EventsExchange   string
	EventsRoutingKey string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		AllowedOrigins:     getEnv("ALLOWED_ORIGINS", "*"),
		RateLimitPerMinute: getIntEnv("RATE_LIMIT_PER_MINUTE", 30),

		RelayMode:          strings.ToLower(getEnv("RELAY_MODE", "stream")),
		LLMProvider:        strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
		MaxPromptChars:     getIntEnv("MAX_PROMPT_CHARS", 10000),
		RelayTimeout:       getDurationEnv("RELAY_TIMEOUT", 2*time.Minute),
		LLMTemperature:     getFloatEnv("LLM_TEMPERATURE", 0.7),
		LLMMaxOutputTokens: getIntEnv("LLM_MAX_OUTPUT_TOKENS", 2048),

		GoogleAPIKey:  getEnv("GOOGLE_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", ""),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),

		TextGenAPIKey: getEnv("TEXTGEN_API_KEY", ""),
		TextGenURL:    getEnv("TEXTGEN_URL", ""),

		OllamaHost:  getEnv("OLLAMA_HOST", ""),
		OllamaModel: getEnv("OLLAMA_MODEL", "llama3"),

		StubResponsesFile: getEnv("STUB_RESPONSES_FILE", ""),

		JournalEnabled: getBoolEnv("JOURNAL_ENABLED", false),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "3306"),
		DBUser:         getEnv("DB_USER", "server"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "journal"),

		AMQPURL:          getEnv("AMQP_URL", ""),
		EventsExchange:   getEnv("EVENTS_EXCHANGE", "analyze"),
		EventsRoutingKey: getEnv("EVENTS_ROUTING_KEY", "analysis.completed"),
	}
}

// Validate reports settings the service cannot start with
func (c *Config) Validate() error {
	switch c.RelayMode {
	case "stream", "buffered":
	default:
		return fmt.Errorf("invalid RELAY_MODE %q: must be stream or buffered", c.RelayMode)
	}
	if !providers[c.LLMProvider] {
		return fmt.Errorf("invalid LLM_PROVIDER %q: must be one of gemini, openai, textgen, ollama, stub", c.LLMProvider)
	}
	if c.MaxPromptChars < 0 {
		return fmt.Errorf("invalid MAX_PROMPT_CHARS %d", c.MaxPromptChars)
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE %d", c.RateLimitPerMinute)
	}
	if c.JournalEnabled && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when JOURNAL_ENABLED is set")
	}
	return nil
}

// DSN returns the MySQL data source name for the journal database
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&clientFoundRows=true",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// Level parses LOG_LEVEL. An unknown name falls back to info and is reported.
func (c *Config) Level() (log.Level, error) {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(c.LogLevel)))
	if err != nil {
		return log.InfoLevel, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}
