package embedder

import (
	"fmt"
	"log/slog"
	"strings"
)

// knownChatModelPrefixes contains name fragments that identify chat/completion
// models which are NOT suitable for embedding. If EMBEDDING_MODEL matches any
// of these, a warning is emitted so the operator knows they may have
// misconfigured the pipeline.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"phi-",
	"phi3",
	"claude",
	"command-r",
	"deepseek",
	"qwen",
	"solar",
	"vicuna",
	"falcon",
	"yi-",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// Validate checks that cfg is usable before any embedder or store is built.
// It returns an error if the configuration is clearly broken (e.g. azure with
// no API key) and logs a warning if the model looks like a chat model rather
// than an embedding model.
//
// Call it at startup so operators get a clear error rather than a cryptic
// failure during the first embed call.
func Validate(cfg *Config, log *slog.Logger) error {
	switch cfg.Backend {
	case BackendBedrock:
		if cfg.AWSRegion == "" {
			log.Warn("embedder: AWS_REGION not set, using default",
				slog.String("region", defaultBedrockRegion),
			)
		}

	case BackendOllama:
		// Ollama has no credentials; the endpoint is probed on first use.

	case BackendOpenAI:
		if cfg.APIKey == "" {
			return fmt.Errorf("embedder: no OpenAI API key found, set OPENAI_API_KEY or EMBEDDING_API_KEY")
		}

	case BackendAzure:
		if cfg.APIKey == "" {
			return fmt.Errorf("embedder: no Azure API key found, set AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if cfg.Endpoint == "" {
			return fmt.Errorf("embedder: no Azure endpoint found, set AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}

	default:
		return fmt.Errorf("embedder: unknown backend %q, valid values: bedrock, ollama, openai, azure", cfg.Backend)
	}

	if cfg.Model != "" && looksLikeChatModel(cfg.Model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model; "+
			"this will likely produce poor or broken embeddings",
			slog.String("model", cfg.Model),
			slog.String("hint", "use a dedicated embedding model e.g. amazon.titan-embed-text-v1, nomic-embed-text"),
		)
	}

	return nil
}
