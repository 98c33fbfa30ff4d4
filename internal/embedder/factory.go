// Package embedder provides implementations of the rag.Embedder interface for
// converting text into dense vector embeddings. Each implementation talks to a
// different backend: AWS Bedrock (Titan), Ollama, OpenAI and Azure OpenAI.
package embedder

import (
	"context"
	"fmt"

	"github.com/54b3r/docrag-go/internal/rag"
)

// NewFromEnv constructs a rag.Embedder from environment variables. See
// ConfigFromEnv for the resolution rules.
func NewFromEnv(ctx context.Context) (rag.Embedder, *Config, error) {
	cfg := ConfigFromEnv()
	emb, err := New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return emb, cfg, nil
}

// New constructs a rag.Embedder for the given Config.
func New(ctx context.Context, cfg *Config) (rag.Embedder, error) {
	if cfg.Model == "" {
		cfg.Model = defaultModel(cfg.Backend)
	}

	switch cfg.Backend {
	case BackendBedrock:
		return NewBedrockEmbedder(ctx, &BedrockConfig{
			Profile: cfg.AWSProfile,
			Region:  cfg.AWSRegion,
			Model:   cfg.Model,
		})

	case BackendOllama:
		host := cfg.Endpoint
		if host == "" {
			host = "http://localhost:11434"
		}
		return NewOllamaEmbedder(&OllamaConfig{
			Host:  host,
			Model: cfg.Model,
		}), nil

	case BackendOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		}), nil

	case BackendAzure:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Azure:      true,
			APIVersion: cfg.AzureAPIVersion,
		}), nil

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q, valid values: bedrock, ollama, openai, azure", cfg.Backend)
	}
}
