package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// bedrockConverser is the subset of *bedrockruntime.Client used by
// BedrockChatModel. Tests substitute a fake.
type bedrockConverser interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockChatConfig holds the settings for constructing a BedrockChatModel.
type BedrockChatConfig struct {
	Region      string
	Profile     string
	ModelID     string
	MaxTokens   int
	Temperature float32
}

// BedrockChatModel implements eino's model.BaseChatModel on top of the
// Bedrock Converse API, which gives one request shape across model families.
type BedrockChatModel struct {
	client      bedrockConverser
	modelID     string
	maxTokens   int
	temperature float32
}

// NewBedrockChatModel loads AWS configuration and returns a BedrockChatModel.
func NewBedrockChatModel(ctx context.Context, cfg *BedrockChatConfig) (*BedrockChatModel, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("provider: load aws config: %w", err)
	}
	return &BedrockChatModel{
		client:      bedrockruntime.NewFromConfig(awsCfg),
		modelID:     cfg.ModelID,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Generate sends the conversation to Bedrock and returns the assistant reply.
// System messages become Converse system blocks; tool messages are not
// supported.
func (m *BedrockChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	in := &bedrockruntime.ConverseInput{ModelId: aws.String(m.modelID)}

	for _, msg := range input {
		switch msg.Role {
		case schema.System:
			in.System = append(in.System, &types.SystemContentBlockMemberText{Value: msg.Content})
		case schema.User:
			in.Messages = append(in.Messages, textMessage(types.ConversationRoleUser, msg.Content))
		case schema.Assistant:
			in.Messages = append(in.Messages, textMessage(types.ConversationRoleAssistant, msg.Content))
		default:
			return nil, fmt.Errorf("bedrock: unsupported message role %q", msg.Role)
		}
	}

	inf := &types.InferenceConfiguration{Temperature: aws.Float32(m.temperature)}
	if m.maxTokens > 0 {
		inf.MaxTokens = aws.Int32(int32(m.maxTokens))
	}
	in.InferenceConfig = inf

	out, err := m.client.Converse(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("bedrock: converse %s: %w", m.modelID, err)
	}

	reply, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, fmt.Errorf("bedrock: unexpected converse output type %T", out.Output)
	}

	var sb strings.Builder
	for _, block := range reply.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			sb.WriteString(text.Value)
		}
	}

	resp := schema.AssistantMessage(sb.String(), nil)
	if u := out.Usage; u != nil {
		resp.ResponseMeta = &schema.ResponseMeta{
			FinishReason: string(out.StopReason),
			Usage: &schema.TokenUsage{
				PromptTokens:     int(aws.ToInt32(u.InputTokens)),
				CompletionTokens: int(aws.ToInt32(u.OutputTokens)),
				TotalTokens:      int(aws.ToInt32(u.TotalTokens)),
			},
		}
	}
	return resp, nil
}

// Stream returns the full Generate result as a single-chunk stream.
func (m *BedrockChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// textMessage builds a single-block Converse message.
func textMessage(role types.ConversationRole, text string) types.Message {
	return types.Message{
		Role:    role,
		Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: text}},
	}
}
