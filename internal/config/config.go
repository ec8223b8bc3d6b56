package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application settings. It is loaded once at startup from
// the environment; nothing re-reads it per request.
type Config struct {
	Port string

	// Provider credentials. Presence of a key is what enables a provider;
	// an empty string means "not configured".
	OpenAIAPIKey     string
	AnthropicAPIKey  string
	GroqAPIKey       string
	OpenRouterAPIKey string
	PerplexityAPIKey string

	// MockLLM forces the mock provider even when real keys are present.
	MockLLM bool

	// APITimeout bounds how long the relay waits for provider progress
	// before treating the upstream as stalled.
	APITimeout time.Duration

	// StreamTimeout bounds a whole streaming exchange.
	StreamTimeout time.Duration

	// MockResponseDelay is the pause between mock fragments.
	MockResponseDelay time.Duration

	RateLimitPerMinute int
	CORSAllowOrigins   []string
	LogLevel           string
}

// Load reads configuration from the environment.
func Load() Config {
	return Config{
		Port:               getEnv("PORT", "8080"),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey:    getEnv("ANTHROPIC_API_KEY", ""),
		GroqAPIKey:         getEnv("GROQ_API_KEY", ""),
		OpenRouterAPIKey:   getEnv("OPENROUTER_API_KEY", ""),
		PerplexityAPIKey:   getEnv("PERPLEXITY_API_KEY", ""),
		MockLLM:            getEnvBool("MOCK_LLM", false),
		APITimeout:         getEnvSeconds("API_TIMEOUT", 30*time.Second),
		StreamTimeout:      getEnvSeconds("STREAM_TIMEOUT", 300*time.Second),
		MockResponseDelay:  getEnvSeconds("MOCK_RESPONSE_DELAY", 500*time.Millisecond),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		CORSAllowOrigins:   getEnvList("CORS_ALLOW_ORIGINS", []string{"http://localhost:5173", "http://localhost:8080"}),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getEnvSeconds parses a duration expressed in seconds. Fractional values
// are allowed (MOCK_RESPONSE_DELAY=0.5).
func getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 {
		return defaultValue
	}
	return time.Duration(parsed * float64(time.Second))
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
