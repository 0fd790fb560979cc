package grammar

import "fmt"

// SyntaxError describes the first point where the input stops matching the
// grammar.
type SyntaxError struct {
	Offset int // byte offset of the offending token
	Line   int
	Column int

	// Expected names the rule that failed to match, e.g. "asp_close_tag".
	Expected string
	// Found describes what was there instead.
	Found string
	// Reason overrides the generated message for lexical errors and
	// context checks.
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message())
}

// Message is the error text without its location.
func (e *SyntaxError) Message() string {
	if e.Reason != "" {
		return e.Reason
	}
	if e.Found == "" {
		return fmt.Sprintf("expected %s", e.Expected)
	}
	return fmt.Sprintf("expected %s, found %s", e.Expected, e.Found)
}
