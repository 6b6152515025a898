package provider

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/relieflaunch/campaignkit/config"
	openai_provider "github.com/relieflaunch/campaignkit/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
	Gemini    Client = "gemini"
)

// Provider is the interface the pipeline depends on for model calls. It is
// constructed once at process start and injected into each component, so
// tests can substitute fakes.
type Provider interface {
	// CreateEmbedding returns one fixed-length vector per input text.
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
	// GenerateStructured runs a completion constrained to the given JSON
	// schema and returns the raw response text, which is expected to parse
	// as that schema.
	GenerateStructured(ctx context.Context, prompt string, schemaName string, schema json.RawMessage) (string, error)
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(client Client, cfg config.LLMConfig) (Provider, error) {
	switch client {
	case OpenAI:
		if cfg.APIKey == "" {
			return nil, errors.New("llm.api_key not set")
		}
		return openai_provider.NewOpenAIClient(
			cfg.APIKey,
			cfg.CompletionModel,
			cfg.EmbeddingModel,
			cfg.Temperature,
			cfg.MaxTokens,
			cfg.Timeout,
		), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	case Gemini:
		return nil, errors.New("gemini client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
