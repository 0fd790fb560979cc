package lsp

import (
	"cmp"
	"slices"

	"fortio.org/safecast"
	"github.com/gophersatwork/aspcheck"
	"github.com/gophersatwork/aspcheck/grammar"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

const diagnosticSource = "aspcheck"

// ToDiagnostics converts a parse result for text into LSP diagnostics.
// Notices are dropped: they only record silenced or empty units.
func ToDiagnostics(result aspcheck.ParseResult, text string) []protocol.Diagnostic {
	var index *grammar.LineIndex
	diags := make([]protocol.Diagnostic, 0, len(result.Diagnostics))
	for _, d := range result.Diagnostics {
		if d.Severity == aspcheck.SeverityNotice {
			continue
		}
		if index == nil {
			index = grammar.NewLineIndex(text)
		}
		diags = append(diags, toDiagnostic(d, index))
	}
	slices.SortStableFunc(diags, func(a, b protocol.Diagnostic) int {
		if c := cmp.Compare(a.Range.Start.Line, b.Range.Start.Line); c != 0 {
			return c
		}
		return cmp.Compare(a.Range.Start.Character, b.Range.Start.Character)
	})
	return diags
}

func toDiagnostic(d aspcheck.Diagnostic, index *grammar.LineIndex) protocol.Diagnostic {
	severity := severityToLSP(d.Severity)
	source := diagnosticSource
	return protocol.Diagnostic{
		Range:    diagnosticRange(d.Position, index),
		Severity: &severity,
		Code:     &protocol.IntegerOrString{Value: d.Code},
		Source:   &source,
		Message:  d.Message,
	}
}

// diagnosticRange highlights the character at pos. Diagnostics without a
// position cover the start of the document.
func diagnosticRange(pos *aspcheck.Position, index *grammar.LineIndex) protocol.Range {
	if pos == nil || !pos.IsValid() {
		return protocol.Range{}
	}
	line := index.Line(pos.Line)
	start := utf16Column(line, pos.Column-1)
	end := start
	if end < utf16Column(line, pos.Column) {
		end = utf16Column(line, pos.Column)
	}

	return protocol.Range{
		Start: protocol.Position{Line: toUInteger(pos.Line - 1), Character: toUInteger(start)},
		End:   protocol.Position{Line: toUInteger(pos.Line - 1), Character: toUInteger(end)},
	}
}

func toUInteger(n int) protocol.UInteger {
	v, err := safecast.Conv[protocol.UInteger](n)
	if err != nil {
		return 0
	}
	return v
}

func severityToLSP(severity aspcheck.Severity) protocol.DiagnosticSeverity {
	switch severity {
	case aspcheck.SeverityError:
		return protocol.DiagnosticSeverityError
	case aspcheck.SeverityWarning:
		return protocol.DiagnosticSeverityWarning
	default:
		return protocol.DiagnosticSeverityInformation
	}
}

// PublishDiagnostics sends diags for uri. A nil context or notifier is a
// no-op so handlers can run outside a connection.
func PublishDiagnostics(context *glsp.Context, uri protocol.DocumentUri, diags []protocol.Diagnostic) {
	if context == nil || context.Notify == nil {
		return
	}
	if diags == nil {
		diags = []protocol.Diagnostic{}
	}
	context.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diags,
	})
}
