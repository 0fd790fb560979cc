package aspcheck

import (
	"fmt"
	"slices"
)

// UnitResult pairs a unit's origin with its result. Cached records whether
// the result came from the Store; it is kept outside ParseResult so cached
// and fresh results stay identical.
type UnitResult struct {
	Origin string      `json:"file"`
	Result ParseResult `json:"result"`
	Cached bool        `json:"cached,omitempty"`
}

// RunSummary is the ordered outcome of one run. It is built once after all
// workers finish and is read-only afterwards.
type RunSummary struct {
	results   []UnitResult
	succeeded int
	failed    int
	skipped   int
}

// NewRunSummary counts results, which must already be in input order.
func NewRunSummary(results []UnitResult) RunSummary {
	s := RunSummary{results: results}
	for _, r := range results {
		switch r.Result.Status {
		case StatusSuccess:
			s.succeeded++
		case StatusFailure:
			s.failed++
		case StatusSkipped:
			s.skipped++
		}
	}
	return s
}

func (s RunSummary) Succeeded() int { return s.succeeded }
func (s RunSummary) Failed() int    { return s.failed }
func (s RunSummary) Skipped() int   { return s.skipped }
func (s RunSummary) Total() int     { return len(s.results) }

// Results returns a copy of the ordered results.
func (s RunSummary) Results() []UnitResult {
	return slices.Clone(s.results)
}

// CachedCount returns how many results were served by the Store.
func (s RunSummary) CachedCount() int {
	n := 0
	for _, r := range s.results {
		if r.Cached {
			n++
		}
	}
	return n
}

// HasErrors reports whether any unit produced an error diagnostic.
func (s RunSummary) HasErrors() bool {
	return slices.ContainsFunc(s.results, func(r UnitResult) bool {
		return r.Result.HasErrors()
	})
}

// Err returns a parse AppError wrapping ErrDiagnosticsFound when the run has
// error diagnostics.
func (s RunSummary) Err() error {
	if s.HasErrors() {
		return NewParseError(fmt.Sprintf("%d of %d files failed", s.failed, len(s.results)), ErrDiagnosticsFound)
	}
	return nil
}

// ExitCode is 1 when any error diagnostic was produced and 0 otherwise.
func (s RunSummary) ExitCode() int {
	if s.HasErrors() {
		return 1
	}
	return 0
}
