package embedder

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"

	"github.com/54b3r/docrag-go/internal/rag"
)

// OpenAIConfig holds the settings for constructing an OpenAIEmbedder.
type OpenAIConfig struct {
	// BaseURL overrides the API base URL. For Azure it is the resource
	// endpoint (e.g. "https://my-resource.openai.azure.com").
	BaseURL string
	// APIKey authenticates requests.
	APIKey string
	// Model is the embedding model name, or the deployment name on Azure.
	Model string
	// Dimensions is the requested vector length (0 = model default).
	Dimensions int
	// Azure routes requests through the Azure OpenAI deployment URL scheme.
	Azure bool
	// APIVersion is the Azure OpenAI API version. Ignored for OpenAI.
	APIVersion string
}

// OpenAIEmbedder implements rag.Embedder using the OpenAI embeddings API,
// either directly or through an Azure OpenAI deployment.
// It is safe for concurrent use.
type OpenAIEmbedder struct {
	client     openai.Client
	model      string
	dimensions int
}

// NewOpenAIEmbedder constructs an OpenAIEmbedder from the given config.
func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	var opts []option.RequestOption
	if cfg.Azure {
		opts = append(opts,
			azure.WithEndpoint(cfg.BaseURL, cfg.APIVersion),
			azure.WithAPIKey(cfg.APIKey),
		)
	} else {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
	}

	return &OpenAIEmbedder{
		client:     openai.NewClient(opts...),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// Embed converts a batch of texts into their corresponding embeddings.
// The returned slice is parallel to the input slice; the API may return
// items out of order so they are placed by index.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.model),
	}
	if e.dimensions > 0 {
		params.Dimensions = openai.Int(int64(e.dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embedder: request failed: %w: %w", rag.ErrProviderCommunication, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embedder: %w: expected %d embeddings, got %d",
			rag.ErrProviderCommunication, len(texts), len(resp.Data))
	}

	out := make([][]float32, len(texts))
	for _, item := range resp.Data {
		idx := int(item.Index)
		if idx < 0 || idx >= len(out) {
			return nil, fmt.Errorf("openai embedder: %w: embedding index %d out of range", rag.ErrProviderCommunication, idx)
		}
		vec := make([]float32, len(item.Embedding))
		for j, v := range item.Embedding {
			vec[j] = float32(v)
		}
		out[idx] = vec
	}
	return out, nil
}
