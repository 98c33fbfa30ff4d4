package embedder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/54b3r/docrag-go/internal/rag"
)

// bedrockInvoker is the subset of *bedrockruntime.Client used by
// BedrockEmbedder. Tests substitute a fake.
type bedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockConfig holds the settings for constructing a BedrockEmbedder.
type BedrockConfig struct {
	// Profile is the shared-credentials profile. Empty uses the default chain.
	Profile string
	// Region is the AWS region hosting the model (e.g. "us-east-1").
	Region string
	// Model is the Bedrock model ID (e.g. "amazon.titan-embed-text-v1").
	Model string
}

// BedrockEmbedder implements rag.Embedder against AWS Bedrock Titan text
// embedding models. Titan accepts a single input per request, so Embed issues
// one InvokeModel call per text. It is safe for concurrent use.
type BedrockEmbedder struct {
	client bedrockInvoker
	model  string
}

// NewBedrockEmbedder loads AWS credentials for cfg.Profile and cfg.Region and
// returns a BedrockEmbedder. Credential resolution is lazy on the SDK side;
// a missing profile surfaces here, bad credentials surface on the first Embed.
func NewBedrockEmbedder(ctx context.Context, cfg *BedrockConfig) (*BedrockEmbedder, error) {
	region := cfg.Region
	if region == "" {
		region = defaultBedrockRegion
	}
	model := cfg.Model
	if model == "" {
		model = defaultBedrockModel
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("bedrock embedder: load aws config: %w: %w", rag.ErrProviderCommunication, err)
	}

	return &BedrockEmbedder{
		client: bedrockruntime.NewFromConfig(awsCfg),
		model:  model,
	}, nil
}

// titanEmbedRequest is the JSON body sent to a Titan text embedding model.
type titanEmbedRequest struct {
	InputText string `json:"inputText"`
}

// titanEmbedResponse is the JSON body returned by a Titan text embedding model.
type titanEmbedResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

// Embed converts a batch of texts into their corresponding embeddings.
// The returned slice is parallel to the input slice.
func (e *BedrockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i, text := range texts {
		vec, err := e.embedOne(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("bedrock embedder: text %d: %w", i, err)
		}
		out = append(out, vec)
	}
	return out, nil
}

// embedOne issues a single InvokeModel call for text.
func (e *BedrockEmbedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(titanEmbedRequest{InputText: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := e.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(e.model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		return nil, fmt.Errorf("invoke model %s: %w: %w", e.model, rag.ErrProviderCommunication, err)
	}

	var result titanEmbedResponse
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w: %w", rag.ErrProviderCommunication, err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("%w: model %s returned an empty embedding", rag.ErrProviderCommunication, e.model)
	}
	return result.Embedding, nil
}
