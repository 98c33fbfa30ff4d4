package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docrag-go/internal/logging"
	"github.com/54b3r/docrag-go/internal/rag"
)

// Generator is the part of an eino chat model the Client needs.
type Generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Client sends a single prompt to a chat model and returns the reply text.
// Output is not deterministic; callers must not depend on exact wording.
type Client struct {
	model   Generator
	name    string
	timeout time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout bounds every Invoke call. Zero disables the bound.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithName sets the model label used in log lines.
func WithName(name string) ClientOption {
	return func(c *Client) { c.name = name }
}

// NewClient wraps m in a Client.
func NewClient(m Generator, opts ...ClientOption) (*Client, error) {
	if m == nil {
		return nil, fmt.Errorf("provider: model must not be nil")
	}
	c := &Client{model: m}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Invoke sends prompt as one user message and returns the reply content.
// Any failure wraps rag.ErrProviderCommunication. There are no retries.
func (c *Client) Invoke(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	log := logging.FromContext(ctx)
	start := time.Now()

	resp, err := c.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("provider: model call timed out after %s: %w: %w", c.timeout, rag.ErrProviderCommunication, err)
		}
		return "", fmt.Errorf("provider: model call failed: %w: %w", rag.ErrProviderCommunication, err)
	}
	if resp == nil {
		return "", fmt.Errorf("provider: %w: model returned nil response", rag.ErrProviderCommunication)
	}

	attrs := []any{
		slog.String("model", c.name),
		slog.Duration("duration", time.Since(start)),
		slog.Int("response_chars", len(resp.Content)),
	}
	if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
		attrs = append(attrs,
			slog.Int("prompt_tokens", resp.ResponseMeta.Usage.PromptTokens),
			slog.Int("completion_tokens", resp.ResponseMeta.Usage.CompletionTokens),
		)
	}
	log.Debug("model invoked", attrs...)

	return resp.Content, nil
}
