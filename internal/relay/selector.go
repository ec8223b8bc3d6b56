package relay

import (
	"github.com/chatopsmvp/chatops-be/internal/config"
	"github.com/chatopsmvp/chatops-be/pkg/anthropic"
	"github.com/chatopsmvp/chatops-be/pkg/llm"
	"github.com/chatopsmvp/chatops-be/pkg/mockllm"
	"github.com/chatopsmvp/chatops-be/pkg/openai"
)

// Selection is the provider resolved from configuration. It is determined
// once at startup and never changes per request.
type Selection struct {
	Name   string
	Client llm.Client
}

// Select resolves the provider from configuration. Precedence when several
// keys are configured: OpenAI, Anthropic, Groq, OpenRouter, Perplexity.
// The mock provider is selected when MOCK_LLM is set or no key is present.
func Select(cfg config.Config) Selection {
	if cfg.MockLLM {
		return mockSelection(cfg)
	}

	switch {
	case cfg.OpenAIAPIKey != "":
		return Selection{
			Name: "openai",
			Client: openai.NewHTTPClient(openai.Config{
				APIKey:  cfg.OpenAIAPIKey,
				Timeout: cfg.APITimeout,
			}),
		}
	case cfg.AnthropicAPIKey != "":
		return Selection{
			Name: "anthropic",
			Client: anthropic.NewHTTPClient(anthropic.Config{
				APIKey:  cfg.AnthropicAPIKey,
				Timeout: cfg.APITimeout,
			}),
		}
	case cfg.GroqAPIKey != "":
		return Selection{
			Name: "groq",
			Client: openai.NewHTTPClient(openai.Config{
				APIKey:  cfg.GroqAPIKey,
				BaseURL: "https://api.groq.com/openai/v1",
				Model:   "llama-3.1-70b-versatile",
				Timeout: cfg.APITimeout,
			}),
		}
	case cfg.OpenRouterAPIKey != "":
		return Selection{
			Name: "openrouter",
			Client: openai.NewHTTPClient(openai.Config{
				APIKey:  cfg.OpenRouterAPIKey,
				BaseURL: "https://openrouter.ai/api/v1",
				Model:   "openai/gpt-4o-mini",
				Timeout: cfg.APITimeout,
			}),
		}
	case cfg.PerplexityAPIKey != "":
		return Selection{
			Name: "perplexity",
			Client: openai.NewHTTPClient(openai.Config{
				APIKey:  cfg.PerplexityAPIKey,
				BaseURL: "https://api.perplexity.ai",
				Model:   "sonar",
				Timeout: cfg.APITimeout,
			}),
		}
	}

	return mockSelection(cfg)
}

func mockSelection(cfg config.Config) Selection {
	return Selection{
		Name:   "mock",
		Client: mockllm.NewClient(mockllm.Config{Delay: cfg.MockResponseDelay}),
	}
}
