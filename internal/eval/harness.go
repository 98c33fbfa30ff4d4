// Package eval grades pipeline answers with a second "judge" model call.
//
// The judge is generative and therefore flaky: the same case can pass on one
// run and fail on the next. Classification of the judge's text is a pure
// function (Classify) and is unit tested; anything that calls a real model
// lives behind the integration build tag.
package eval

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"

	"github.com/54b3r/docrag-go/internal/logging"
	"github.com/54b3r/docrag-go/internal/pipeline"
	"github.com/54b3r/docrag-go/internal/prompt"
	"github.com/54b3r/docrag-go/internal/store"
)

// Querier runs the query pipeline. *pipeline.Pipeline satisfies it.
type Querier interface {
	Query(ctx context.Context, question string) (*pipeline.Response, error)
}

// Config holds the collaborators for a Harness.
type Config struct {
	// Pipeline produces the actual response.
	Pipeline Querier
	// Judge grades the actual response against the expected one.
	Judge pipeline.Invoker
	// Template is the judge prompt template. Defaults to prompt.EvalTemplate.
	Template string
	// Out receives the judge prompt and the colored verdict line. Nil discards.
	Out io.Writer
	// History, when set, records every verdict.
	History store.HistoryStore
}

// Harness runs evaluation cases.
type Harness struct {
	pipeline Querier
	judge    pipeline.Invoker
	template string
	out      io.Writer
	history  store.HistoryStore
	pass     *color.Color
	fail     *color.Color
}

// Result is the outcome of one graded question.
type Result struct {
	Question string
	Expected string
	// Actual is the pipeline's answer.
	Actual string
	// Sources are the documents cited by the pipeline.
	Sources []string
	// JudgePrompt is the exact text sent to the judge.
	JudgePrompt string
	// Judge is the normalized judge output.
	Judge   string
	Verdict Verdict
}

// NewHarness validates cfg and returns a Harness.
func NewHarness(cfg *Config) (*Harness, error) {
	if cfg.Pipeline == nil {
		return nil, fmt.Errorf("eval: pipeline must not be nil")
	}
	if cfg.Judge == nil {
		return nil, fmt.Errorf("eval: judge must not be nil")
	}
	h := &Harness{
		pipeline: cfg.Pipeline,
		judge:    cfg.Judge,
		template: cfg.Template,
		out:      cfg.Out,
		history:  cfg.History,
		pass:     color.New(color.FgHiGreen),
		fail:     color.New(color.FgHiRed),
	}
	if h.template == "" {
		h.template = prompt.EvalTemplate
	}
	if h.out == nil {
		h.out = io.Discard
	}
	return h, nil
}

// QueryAndValidate answers question through the pipeline, asks the judge
// whether the answer matches expected and classifies the judge's reply.
// A judge reply that is neither true nor false returns an
// *UnexpectedVerdictError; it is never retried.
func (h *Harness) QueryAndValidate(ctx context.Context, question, expected string) (*Result, error) {
	log := logging.FromContext(ctx).With(slog.String("component", "eval"))

	resp, err := h.pipeline.Query(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("eval: query: %w", err)
	}

	judgePrompt, err := prompt.RenderEval(h.template, expected, resp.Text)
	if err != nil {
		return nil, fmt.Errorf("eval: %w", err)
	}

	raw, err := h.judge.Invoke(ctx, judgePrompt)
	if err != nil {
		return nil, fmt.Errorf("eval: judge: %w", err)
	}
	norm := Normalize(raw)

	fmt.Fprintln(h.out, judgePrompt)

	verdict, err := Classify(raw)
	if err != nil {
		h.fail.Fprintln(h.out, "Response: "+norm)
		log.Warn("eval: judge gave no verdict", slog.String("judge", norm))
		return nil, err
	}

	if verdict == Pass {
		h.pass.Fprintln(h.out, "Response: "+norm)
	} else {
		h.fail.Fprintln(h.out, "Response: "+norm)
	}
	log.Info("eval: case graded",
		slog.String("verdict", string(verdict)),
		slog.String("expected", expected),
		slog.String("actual", resp.Text),
	)

	res := &Result{
		Question:    question,
		Expected:    expected,
		Actual:      resp.Text,
		Sources:     resp.Sources,
		JudgePrompt: judgePrompt,
		Judge:       norm,
		Verdict:     verdict,
	}

	if h.history != nil {
		if _, err := h.history.Record(ctx, &store.Run{
			Kind:     store.KindEval,
			Question: question,
			Response: resp.Text,
			Sources:  resp.Sources,
			Expected: expected,
			Verdict:  string(verdict),
		}); err != nil {
			log.Warn("eval: failed to record history", slog.Any("error", err))
		}
	}

	return res, nil
}

// Summary totals a Run.
type Summary struct {
	Results []Result
	Passed  int
	Failed  int
}

// Run grades every case in order. The first error aborts the run; results
// gathered so far are returned alongside it.
func (h *Harness) Run(ctx context.Context, cases []Case) (*Summary, error) {
	log := logging.FromContext(ctx)
	sum := &Summary{}
	for _, c := range cases {
		log.Info("eval: running case", slog.String("case", c.Name))
		res, err := h.QueryAndValidate(ctx, c.Question, c.Expected)
		if err != nil {
			return sum, fmt.Errorf("eval: case %s: %w", c.Name, err)
		}
		sum.Results = append(sum.Results, *res)
		if res.Verdict == Pass {
			sum.Passed++
		} else {
			sum.Failed++
		}
	}
	return sum, nil
}
