package aspcheck

import "fmt"

// Stable diagnostic codes.
const (
	CodeParseError    = "parse_error"
	CodeEncodingError = "encoding_error"
	CodeIOError       = "io_error"
	CodeNoASPTags     = "no_asp_tags"
	CodeEmptyFile     = "empty_file"
)

// Position represents a location in a source file
type Position struct {
	Line   int `json:"line"`             // 1-indexed line number
	Column int `json:"column"`           // 1-indexed column number
	Offset int `json:"offset,omitempty"` // Byte offset in file
}

// IsValid returns true if the position has valid line/column
func (p *Position) IsValid() bool {
	return p != nil && p.Line > 0 && p.Column > 0
}

// Severity represents the importance level of a diagnostic
type Severity string

const (
	SeverityError   Severity = "error"   // Fails the run
	SeverityWarning Severity = "warning" // Promoted to error in strict mode
	SeverityNotice  Severity = "notice"  // Informational only
)

func (s Severity) String() string {
	return string(s)
}

// MapSeverity returns the default severity for a diagnostic code. Unknown
// codes are errors.
func MapSeverity(code string) Severity {
	switch code {
	case CodeParseError, CodeEncodingError, CodeIOError:
		return SeverityError
	case CodeNoASPTags, CodeEmptyFile:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// Diagnostic is one reportable finding about a source unit.
type Diagnostic struct {
	Code     string    `json:"code"`
	Severity Severity  `json:"severity"`
	Position *Position `json:"position,omitempty"`
	Message  string    `json:"message"`
	// Expected names the grammar rule that failed, e.g. "asp_close_tag".
	Expected string       `json:"expected,omitempty"`
	Context  *CodeContext `json:"context,omitempty"`
}

func (d Diagnostic) String() string {
	if d.Position.IsValid() {
		return fmt.Sprintf("%d:%d: %s - %s", d.Position.Line, d.Position.Column, d.Severity, d.Message)
	}
	return fmt.Sprintf("%s - %s", d.Severity, d.Message)
}

// Status classifies a ParseResult.
type Status uint8

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusSkipped:
		return "skipped"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// ParseResult is the outcome for one source unit. A Failure carries at
// least one error diagnostic; a Skipped result carries exactly one warning
// or notice.
type ParseResult struct {
	Status      Status       `json:"status"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Success returns a result without diagnostics.
func Success() ParseResult {
	return ParseResult{Status: StatusSuccess}
}

// Failure returns a failed result. It panics when no diagnostic has error
// severity, since such a result cannot be reported as failed.
func Failure(diags ...Diagnostic) ParseResult {
	r := ParseResult{Status: StatusFailure, Diagnostics: diags}
	if !r.HasErrors() {
		panic("aspcheck: Failure requires an error diagnostic")
	}
	return r
}

// Skipped returns a result for a unit that is out of scope.
func Skipped(d Diagnostic) ParseResult {
	if d.Severity == SeverityError {
		panic("aspcheck: Skipped requires a warning or notice")
	}
	return ParseResult{Status: StatusSkipped, Diagnostics: []Diagnostic{d}}
}

// HasErrors reports whether any diagnostic has error severity.
func (r ParseResult) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Valid reports whether the result satisfies its status invariant.
func (r ParseResult) Valid() bool {
	switch r.Status {
	case StatusSuccess:
		return !r.HasErrors()
	case StatusFailure:
		return r.HasErrors()
	case StatusSkipped:
		return len(r.Diagnostics) == 1 && r.Diagnostics[0].Severity != SeverityError
	}
	return false
}
