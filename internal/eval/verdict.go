package eval

import (
	"fmt"
	"strings"
)

// Verdict is the judge's decision for one case.
type Verdict string

const (
	// Pass means the judge said the actual response matches the expected one.
	Pass Verdict = "pass"
	// Fail means the judge said it does not.
	Fail Verdict = "fail"
)

// UnexpectedVerdictError is returned when the judge's answer contains
// neither "true" nor "false".
type UnexpectedVerdictError struct {
	// Text is the normalized judge output.
	Text string
}

// Error implements error.
func (e *UnexpectedVerdictError) Error() string {
	return fmt.Sprintf("eval: invalid evaluation result %q: cannot determine if 'true' or 'false'", e.Text)
}

// Normalize trims surrounding whitespace and lowercases judge output.
func Normalize(judgeText string) string {
	return strings.ToLower(strings.TrimSpace(judgeText))
}

// Classify maps raw judge output to a Verdict. "true" is checked before
// "false", so an answer containing both passes.
func Classify(judgeText string) (Verdict, error) {
	norm := Normalize(judgeText)
	switch {
	case strings.Contains(norm, "true"):
		return Pass, nil
	case strings.Contains(norm, "false"):
		return Fail, nil
	default:
		return "", &UnexpectedVerdictError{Text: norm}
	}
}
