package embedder

import (
	"os"
	"strconv"
)

// Supported embedding backends.
const (
	BackendBedrock = "bedrock"
	BackendOllama  = "ollama"
	BackendOpenAI  = "openai"
	BackendAzure   = "azure"
)

// Default embedding models per backend.
const (
	defaultBedrockModel = "amazon.titan-embed-text-v1"
	defaultOllamaModel  = "nomic-embed-text"
	defaultOpenAIModel  = "text-embedding-3-small"

	// defaultBedrockRegion is where the Titan embedding model is served.
	defaultBedrockRegion = "us-east-1"

	// defaultTitanDimensions is the output dimension of amazon.titan-embed-text-v1.
	defaultTitanDimensions = 1536
	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ; override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
)

// Config holds everything needed to construct an embedder. It is fixed at
// construction time; nothing here can be overridden per call.
type Config struct {
	// Backend selects the provider: bedrock, ollama, openai, azure.
	Backend string
	// Model is the embedding model identifier.
	Model string
	// Endpoint overrides the provider base URL (Ollama host, OpenAI base URL,
	// Azure resource endpoint).
	Endpoint string
	// APIKey authenticates OpenAI and Azure requests.
	APIKey string
	// Dimensions is the requested vector length (0 = model default).
	Dimensions int
	// AWSProfile is the shared-credentials profile used for Bedrock. Empty
	// uses the SDK default chain.
	AWSProfile string
	// AWSRegion is the Bedrock region.
	AWSRegion string
	// AzureAPIVersion is the Azure OpenAI API version.
	AzureAPIVersion string
}

// ConfigFromEnv resolves an embedder Config from environment variables.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER (default: bedrock)
//  2. EMBEDDING_MODEL overrides the default model for the resolved backend
//  3. EMBEDDING_API_KEY falls back to OPENAI_API_KEY / AZURE_OPENAI_API_KEY
//  4. EMBEDDING_ENDPOINT falls back to OLLAMA_HOST / AZURE_OPENAI_ENDPOINT
//  5. EMBEDDING_DIMENSIONS overrides the default dimensions
//  6. AWS_PROFILE, AWS_REGION (default: us-east-1) for bedrock
func ConfigFromEnv() *Config {
	backend := getEnvOrDefault("EMBEDDING_PROVIDER", BackendBedrock)

	cfg := &Config{
		Backend:    backend,
		Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultModel(backend)),
		Endpoint:   getEnv("EMBEDDING_ENDPOINT"),
		APIKey:     getEnv("EMBEDDING_API_KEY"),
		Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 0),
	}

	switch backend {
	case BackendBedrock:
		cfg.AWSProfile = getEnv("AWS_PROFILE")
		cfg.AWSRegion = getEnvOrDefault("AWS_REGION", defaultBedrockRegion)
	case BackendOllama:
		if cfg.Endpoint == "" {
			cfg.Endpoint = getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		}
	case BackendOpenAI:
		if cfg.APIKey == "" {
			cfg.APIKey = getEnv("OPENAI_API_KEY")
		}
	case BackendAzure:
		if cfg.APIKey == "" {
			cfg.APIKey = getEnv("AZURE_OPENAI_API_KEY")
		}
		if cfg.Endpoint == "" {
			cfg.Endpoint = getEnv("AZURE_OPENAI_ENDPOINT")
		}
		cfg.AzureAPIVersion = getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2025-04-01-preview")
	}

	return cfg
}

// Identifier returns a stable "<backend>:<model>" fingerprint for the
// embedding function. Collections record it so a query-time embedder that
// differs from the ingestion-time one is caught on open.
func Identifier(cfg *Config) string {
	return cfg.Backend + ":" + cfg.Model
}

// DefaultDimensions returns the embedding vector size for cfg. Callers that
// need to pre-configure a vector store (e.g. Qdrant collection creation)
// should use this rather than hardcoding a value.
func DefaultDimensions(cfg *Config) int {
	if cfg.Dimensions > 0 {
		return cfg.Dimensions
	}
	switch cfg.Backend {
	case BackendOllama:
		return defaultOllamaDimensions
	case BackendBedrock:
		return defaultTitanDimensions
	default:
		return defaultOpenAIDimensions
	}
}

// defaultModel returns the default embedding model for backend.
func defaultModel(backend string) string {
	switch backend {
	case BackendOllama:
		return defaultOllamaModel
	case BackendOpenAI, BackendAzure:
		return defaultOpenAIModel
	default:
		return defaultBedrockModel
	}
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
