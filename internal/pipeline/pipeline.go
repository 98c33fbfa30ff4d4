// Package pipeline wires retrieval, prompt rendering and model invocation
// into the single linear query flow behind `docrag query`, the evaluation
// harness and the HTTP API.
//
// A query moves through fixed states:
//
//	Start → SearchDone → PromptBuilt → ModelInvoked → SourcesFormatted → Done
//
// Each transition is one direct call; there are no retries and no rollback.
// A failure in any state aborts the query and no partial Response is returned.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/54b3r/docrag-go/internal/budget"
	"github.com/54b3r/docrag-go/internal/logging"
	"github.com/54b3r/docrag-go/internal/prompt"
	"github.com/54b3r/docrag-go/internal/rag"
	"github.com/54b3r/docrag-go/internal/store"
)

// State is a step of the query flow.
type State int

const (
	StateStart State = iota
	StateSearchDone
	StatePromptBuilt
	StateModelInvoked
	StateSourcesFormatted
	StateDone
)

// String returns the state name used in log lines.
func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateSearchDone:
		return "search_done"
	case StatePromptBuilt:
		return "prompt_built"
	case StateModelInvoked:
		return "model_invoked"
	case StateSourcesFormatted:
		return "sources_formatted"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Invoker sends a rendered prompt to a language model and returns its reply.
// *provider.Client satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// Config holds the collaborators and settings for a Pipeline. Retriever and
// Model are required; everything else has a default.
type Config struct {
	// Retriever performs the similarity search.
	Retriever rag.Retriever
	// Model answers the rendered prompt.
	Model Invoker
	// Template is the query prompt template. Defaults to prompt.QueryTemplate.
	Template string
	// TopK is the number of documents to retrieve. Defaults to rag.DefaultTopK.
	TopK int
	// Out receives the progress line, the prompt and the formatted response.
	// Nil discards output.
	Out io.Writer
	// History, when set, records every completed query.
	History store.HistoryStore
	// MaxContextTokens is the prompt size above which a warning is logged.
	// Defaults to budget.DefaultMaxContextTokens.
	MaxContextTokens int
}

// Pipeline runs queries. It holds no per-query state and is safe for
// concurrent use when its collaborators are.
type Pipeline struct {
	retriever rag.Retriever
	model     Invoker
	template  string
	topK      int
	out       io.Writer
	history   store.HistoryStore
	maxTokens int
}

// Response is the result of a completed query.
type Response struct {
	// Text is the model's reply.
	Text string
	// Sources holds one document id per search result, in rank order.
	// A result with no id contributes an empty string.
	Sources []string
	// Prompt is the exact text sent to the model.
	Prompt string
	// Results are the retrieved documents in rank order.
	Results []rag.Document
}

// New validates cfg and returns a Pipeline.
func New(cfg *Config) (*Pipeline, error) {
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("pipeline: retriever must not be nil")
	}
	if cfg.Model == nil {
		return nil, fmt.Errorf("pipeline: model must not be nil")
	}
	p := &Pipeline{
		retriever: cfg.Retriever,
		model:     cfg.Model,
		template:  cfg.Template,
		topK:      cfg.TopK,
		out:       cfg.Out,
		history:   cfg.History,
		maxTokens: cfg.MaxContextTokens,
	}
	if p.template == "" {
		p.template = prompt.QueryTemplate
	}
	if p.topK <= 0 {
		p.topK = rag.DefaultTopK
	}
	if p.out == nil {
		p.out = io.Discard
	}
	if p.maxTokens <= 0 {
		p.maxTokens = budget.DefaultMaxContextTokens
	}
	return p, nil
}

// Query answers question using the top-k retrieved documents as context.
func (p *Pipeline) Query(ctx context.Context, question string) (*Response, error) {
	log := logging.FromContext(ctx).With(slog.String("component", "pipeline"))
	start := time.Now()
	state := StateStart
	advance := func(next State, attrs ...any) {
		log.Debug("pipeline transition",
			append([]any{slog.String("from", state.String()), slog.String("to", next.String())}, attrs...)...)
		state = next
	}

	fmt.Fprintf(p.out, "Querying RAG with: %s\n", question)

	results, err := p.retriever.SimilaritySearchWithScore(ctx, question, p.topK)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %s: %w", state, err)
	}
	advance(StateSearchDone, slog.Int("results", len(results)))

	contents := make([]string, len(results))
	for i, d := range results {
		contents[i] = d.Content
	}
	promptText, err := prompt.RenderQuery(p.template, prompt.JoinContext(contents), question)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %s: %w", state, err)
	}
	if tokens, over := budget.Check(promptText, p.maxTokens); over {
		log.Warn("pipeline: prompt likely exceeds model context window",
			slog.Int("estimated_tokens", tokens),
			slog.Int("max_tokens", p.maxTokens),
		)
	}
	fmt.Fprintln(p.out, promptText)
	advance(StatePromptBuilt, slog.Int("prompt_chars", len(promptText)))

	text, err := p.model.Invoke(ctx, promptText)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %s: %w", state, err)
	}
	advance(StateModelInvoked)

	resp := &Response{
		Text:    text,
		Sources: SourceIDs(results),
		Prompt:  promptText,
		Results: results,
	}
	advance(StateSourcesFormatted, slog.Int("sources", len(resp.Sources)))

	fmt.Fprintln(p.out, FormatResponse(resp))

	if p.history != nil {
		if _, err := p.history.Record(ctx, &store.Run{
			Kind:     store.KindQuery,
			Question: question,
			Response: resp.Text,
			Sources:  resp.Sources,
		}); err != nil {
			log.Warn("pipeline: failed to record history", slog.Any("error", err))
		}
	}

	advance(StateDone, slog.Duration("duration", time.Since(start)))
	return resp, nil
}

// SourceIDs returns the id metadata of each document in order. The result
// always has one entry per document; a missing id is an empty string.
func SourceIDs(docs []rag.Document) []string {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.SourceID()
	}
	return ids
}

// FormatResponse renders a Response as
//
//	Response: <text>
//	Sources: <id1>
//	<id2>
//
// with one id per line and no trailing newline.
func FormatResponse(r *Response) string {
	return "Response: " + r.Text + "\nSources: " + strings.Join(r.Sources, "\n")
}
