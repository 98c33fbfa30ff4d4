// Package prompt holds the fixed prompt templates used by the query pipeline
// and the evaluation harness, and renders them into the exact text sent to
// the language model.
//
// Rendering is a pure function of its inputs: the same context and question
// always produce byte-identical prompt text. Substitution is single pass, so
// braces inside retrieved content or a question are never re-expanded.
package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// QueryTemplate is the retrieval prompt. The leading quote line is part of
// the template; regression fixtures compare against it byte for byte.
const QueryTemplate = "\"\n" +
	"Answer the question based only on the following context:\n" +
	"\n" +
	"{context}\n" +
	"\n" +
	"---\n" +
	"\n" +
	"Answer the question based on the above context: {question}\n"

// EvalTemplate is the judge prompt used to grade an actual response against
// an expected one.
const EvalTemplate = "\"\n" +
	"Expected Response: {expected_response}\n" +
	"Actual Response: {actual_response}\n" +
	"---\n" +
	"(Answer with 'true' or 'false') Does the actual response match the expected response?\n"

// ContextSeparator is placed between retrieved document contents. The stray
// "n" and the backslash before the dashes are intentional: existing prompt
// fixtures were produced with exactly this sequence.
const ContextSeparator = "n\n\\---\n\n"

// Template variable names.
const (
	VarContext          = "context"
	VarQuestion         = "question"
	VarExpectedResponse = "expected_response"
	VarActualResponse   = "actual_response"
)

// Format substitutes vars into template using Python-style {name}
// placeholders and returns the rendered message. A placeholder with no
// matching entry in vars is an error.
func Format(template string, vars map[string]any) (*schema.Message, error) {
	tpl := prompt.FromMessages(schema.FString, schema.UserMessage(template))
	msgs, err := tpl.Format(context.Background(), vars)
	if err != nil {
		return nil, fmt.Errorf("prompt: format template: %w", err)
	}
	if len(msgs) != 1 {
		return nil, fmt.Errorf("prompt: expected 1 rendered message, got %d", len(msgs))
	}
	return msgs[0], nil
}

// RenderQuery fills template with the joined context and the user's question
// and renders it as a single chat transcript line ("Human: <content>").
func RenderQuery(template, contextText, question string) (string, error) {
	msg, err := Format(template, map[string]any{
		VarContext:  contextText,
		VarQuestion: question,
	})
	if err != nil {
		return "", err
	}
	return Transcript(msg), nil
}

// RenderEval fills the judge template with the expected and actual responses.
// Unlike RenderQuery the result is plain text with no role prefix.
func RenderEval(template, expected, actual string) (string, error) {
	msg, err := Format(template, map[string]any{
		VarExpectedResponse: expected,
		VarActualResponse:   actual,
	})
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

// JoinContext concatenates document contents in order, separated by
// ContextSeparator.
func JoinContext(contents []string) string {
	return strings.Join(contents, ContextSeparator)
}

// Transcript renders a message as "<Role>: <content>".
func Transcript(msg *schema.Message) string {
	return roleLabel(msg.Role) + ": " + msg.Content
}

// roleLabel maps an eino role to its transcript label.
func roleLabel(role schema.RoleType) string {
	switch role {
	case schema.User:
		return "Human"
	case schema.Assistant:
		return "AI"
	case schema.System:
		return "System"
	case schema.Tool:
		return "Tool"
	default:
		return string(role)
	}
}
