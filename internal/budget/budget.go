// Package budget estimates the token cost of prompts sent to the language
// model. Backends use different tokenizers, so the estimate is a
// conservative character heuristic: 1 token ≈ 4 characters of English prose.
//
// The query pipeline never trims retrieved context (the prompt must stay
// byte-exact); it only warns when a prompt is likely to overflow the model's
// context window.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input budget in tokens. It fits
	// within 8k-context models (mistral 7B, Llama 3 8B) while leaving room
	// for the output. Override via MODEL_MAX_CONTEXT_TOKENS.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// Check estimates the cost of sending prompt as a single user message and
// reports whether it exceeds maxTokens. A non-positive maxTokens uses
// DefaultMaxContextTokens.
func Check(prompt string, maxTokens int) (tokens int, over bool) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}
	tokens = EstimateMessages([]*schema.Message{schema.UserMessage(prompt)})
	return tokens, tokens > maxTokens
}

// FitContents returns the longest prefix of contents whose combined estimate
// (plus overhead tokens for the surrounding template) fits within maxTokens.
// Order is preserved; at least one entry is kept when contents is non-empty.
func FitContents(contents []string, overhead, maxTokens int) []string {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}
	total := overhead
	for i, c := range contents {
		total += Estimate(c)
		if total > maxTokens {
			if i == 0 {
				return contents[:1]
			}
			return contents[:i]
		}
	}
	return contents
}
