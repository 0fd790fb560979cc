package lsp

import (
	"testing"

	"github.com/gophersatwork/aspcheck"
	"github.com/gophersatwork/aspcheck/grammar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func TestToDiagnostics(t *testing.T) {
	t.Run("parse error", func(t *testing.T) {
		text := "<%\nDim a\nx = = 1\n%>\n"
		result := aspcheck.Failure(aspcheck.Diagnostic{
			Code:     aspcheck.CodeParseError,
			Severity: aspcheck.SeverityError,
			Position: &aspcheck.Position{Line: 3, Column: 5, Offset: 13},
			Message:  "expected expression, found '='",
		})

		diags := ToDiagnostics(result, text)
		require.Len(t, diags, 1)
		d := diags[0]
		assert.Equal(t, protocol.Position{Line: 2, Character: 4}, d.Range.Start)
		assert.Equal(t, protocol.Position{Line: 2, Character: 5}, d.Range.End)
		require.NotNil(t, d.Severity)
		assert.Equal(t, protocol.DiagnosticSeverityError, *d.Severity)
		require.NotNil(t, d.Code)
		assert.Equal(t, aspcheck.CodeParseError, d.Code.Value)
		require.NotNil(t, d.Source)
		assert.Equal(t, "aspcheck", *d.Source)
		assert.Equal(t, "expected expression, found '='", d.Message)
	})

	t.Run("warning without position", func(t *testing.T) {
		result := aspcheck.Skipped(aspcheck.Diagnostic{
			Code:     aspcheck.CodeNoASPTags,
			Severity: aspcheck.SeverityWarning,
			Message:  "No ASP tags found in file",
		})

		diags := ToDiagnostics(result, "<html></html>")
		require.Len(t, diags, 1)
		assert.Equal(t, protocol.Range{}, diags[0].Range)
		assert.Equal(t, protocol.DiagnosticSeverityWarning, *diags[0].Severity)
	})

	t.Run("notices are dropped", func(t *testing.T) {
		result := aspcheck.Skipped(aspcheck.Diagnostic{
			Code:     aspcheck.CodeEmptyFile,
			Severity: aspcheck.SeverityNotice,
			Message:  "File is empty",
		})
		diags := ToDiagnostics(result, "")
		assert.NotNil(t, diags)
		assert.Empty(t, diags)
	})

	t.Run("success", func(t *testing.T) {
		assert.Empty(t, ToDiagnostics(aspcheck.Success(), "<% x = 1 %>"))
	})

	t.Run("sorted by position", func(t *testing.T) {
		result := aspcheck.Failure(
			aspcheck.Diagnostic{Code: "b", Severity: aspcheck.SeverityError, Position: &aspcheck.Position{Line: 2, Column: 1}},
			aspcheck.Diagnostic{Code: "a", Severity: aspcheck.SeverityError, Position: &aspcheck.Position{Line: 1, Column: 3}},
		)
		diags := ToDiagnostics(result, "abc\ndef\n")
		require.Len(t, diags, 2)
		assert.Equal(t, "a", diags[0].Code.Value)
		assert.Equal(t, "b", diags[1].Code.Value)
	})
}

func TestDiagnosticRangeUsesUTF16Columns(t *testing.T) {
	index := grammar.NewLineIndex("<% s = \"😀\" = = 1 %>")
	// Column 14 is the second '=' counted in characters.
	r := diagnosticRange(&aspcheck.Position{Line: 1, Column: 14}, index)
	assert.Equal(t, protocol.UInteger(14), r.Start.Character)
	assert.Equal(t, protocol.UInteger(15), r.End.Character)
}

func TestSeverityToLSP(t *testing.T) {
	assert.Equal(t, protocol.DiagnosticSeverityError, severityToLSP(aspcheck.SeverityError))
	assert.Equal(t, protocol.DiagnosticSeverityWarning, severityToLSP(aspcheck.SeverityWarning))
	assert.Equal(t, protocol.DiagnosticSeverityInformation, severityToLSP(aspcheck.SeverityNotice))
}

func TestPublishDiagnostics(t *testing.T) {
	var (
		method string
		params *protocol.PublishDiagnosticsParams
	)
	context := &glsp.Context{Notify: func(m string, p any) {
		method = m
		params = p.(*protocol.PublishDiagnosticsParams)
	}}

	PublishDiagnostics(context, "file:///a.asp", nil)
	assert.Equal(t, protocol.ServerTextDocumentPublishDiagnostics, method)
	require.NotNil(t, params)
	assert.Equal(t, "file:///a.asp", params.URI)
	assert.NotNil(t, params.Diagnostics, "clearing sends an empty list")

	assert.NotPanics(t, func() {
		PublishDiagnostics(nil, "file:///a.asp", nil)
		PublishDiagnostics(&glsp.Context{}, "file:///a.asp", nil)
	})
}
