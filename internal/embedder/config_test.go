package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEmbeddingEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_ENDPOINT", "EMBEDDING_API_KEY",
		"EMBEDDING_DIMENSIONS", "OPENAI_API_KEY", "AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT",
		"AZURE_OPENAI_API_VERSION", "OLLAMA_HOST", "AWS_PROFILE", "AWS_REGION",
	} {
		t.Setenv(k, "")
	}
}

func TestConfigFromEnv_DefaultsToBedrockTitan(t *testing.T) {
	clearEmbeddingEnv(t)

	cfg := ConfigFromEnv()

	assert.Equal(t, BackendBedrock, cfg.Backend)
	assert.Equal(t, "amazon.titan-embed-text-v1", cfg.Model)
	assert.Equal(t, "us-east-1", cfg.AWSRegion)
	assert.Empty(t, cfg.AWSProfile)
	assert.Equal(t, "bedrock:amazon.titan-embed-text-v1", Identifier(cfg))
	assert.Equal(t, 1536, DefaultDimensions(cfg))
}

func TestConfigFromEnv_BackendSpecificFallbacks(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want Config
	}{
		{
			name: "ollama uses OLLAMA_HOST",
			env:  map[string]string{"EMBEDDING_PROVIDER": "ollama", "OLLAMA_HOST": "http://gpu:11434"},
			want: Config{Backend: BackendOllama, Model: "nomic-embed-text", Endpoint: "http://gpu:11434"},
		},
		{
			name: "openai inherits OPENAI_API_KEY",
			env:  map[string]string{"EMBEDDING_PROVIDER": "openai", "OPENAI_API_KEY": "sk-test"},
			want: Config{Backend: BackendOpenAI, Model: "text-embedding-3-small", APIKey: "sk-test"},
		},
		{
			name: "explicit embedding key wins",
			env: map[string]string{
				"EMBEDDING_PROVIDER": "openai", "OPENAI_API_KEY": "sk-chat", "EMBEDDING_API_KEY": "sk-embed",
			},
			want: Config{Backend: BackendOpenAI, Model: "text-embedding-3-small", APIKey: "sk-embed"},
		},
		{
			name: "azure inherits endpoint and key",
			env: map[string]string{
				"EMBEDDING_PROVIDER": "azure", "AZURE_OPENAI_API_KEY": "az",
				"AZURE_OPENAI_ENDPOINT": "https://r.openai.azure.com", "EMBEDDING_MODEL": "embed-deploy",
			},
			want: Config{
				Backend: BackendAzure, Model: "embed-deploy", APIKey: "az",
				Endpoint: "https://r.openai.azure.com", AzureAPIVersion: "2025-04-01-preview",
			},
		},
		{
			name: "bedrock profile and dimensions",
			env: map[string]string{
				"AWS_PROFILE": "default", "AWS_REGION": "eu-west-1", "EMBEDDING_DIMENSIONS": "512",
			},
			want: Config{
				Backend: BackendBedrock, Model: "amazon.titan-embed-text-v1", Dimensions: 512,
				AWSProfile: "default", AWSRegion: "eu-west-1",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEmbeddingEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			assert.Equal(t, tc.want, *ConfigFromEnv())
		})
	}
}

func TestDefaultDimensions(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 768, DefaultDimensions(&Config{Backend: BackendOllama}))
	assert.Equal(t, 1536, DefaultDimensions(&Config{Backend: BackendAzure}))
	assert.Equal(t, 256, DefaultDimensions(&Config{Backend: BackendOllama, Dimensions: 256}))
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, err := New(ctx, &Config{Backend: "cohere"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")

	_, err = New(ctx, &Config{Backend: BackendOpenAI})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")

	_, err = New(ctx, &Config{Backend: BackendAzure, APIKey: "k"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AZURE_OPENAI_ENDPOINT")
}

func TestNew_Backends(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	emb, err := New(ctx, &Config{Backend: BackendOllama})
	require.NoError(t, err)
	require.IsType(t, &OllamaEmbedder{}, emb)
	assert.Equal(t, "nomic-embed-text", emb.(*OllamaEmbedder).model)
	assert.Equal(t, "http://localhost:11434", emb.(*OllamaEmbedder).host)

	emb, err = New(ctx, &Config{Backend: BackendOpenAI, APIKey: "sk"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIEmbedder{}, emb)
}
