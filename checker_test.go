package aspcheck

import (
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pageUnit(t *testing.T, origin, text string) SourceUnit {
	t.Helper()
	unit, err := NewSource(origin, KindForPath(origin), []byte(text))
	require.NoError(t, err)
	return unit
}

func TestCheckerParse(t *testing.T) {
	strict := NewParseOptions(OptionsSpec{Strict: true, ContextLines: DefaultContextLines})
	ignoring := NewParseOptions(OptionsSpec{Strict: true, IgnoreWarnings: []string{"no-asp-tags"}})

	tests := []struct {
		name     string
		opts     ParseOptions
		origin   string
		text     string
		status   Status
		code     string
		severity Severity
	}{
		{
			name:   "valid page",
			origin: "index.asp",
			text:   "<html><body><% Response.Write \"hi\" %></body></html>",
			status: StatusSuccess,
		},
		{
			name:     "missing close tag",
			origin:   "broken.asp",
			text:     `<% Response.Write "x"`,
			status:   StatusFailure,
			code:     CodeParseError,
			severity: SeverityError,
		},
		{
			name:     "empty file",
			origin:   "empty.asp",
			text:     "",
			status:   StatusSkipped,
			code:     CodeEmptyFile,
			severity: SeverityWarning,
		},
		{
			name:     "whitespace only is empty",
			origin:   "blank.asp",
			text:     " \r\n\t\n",
			status:   StatusSkipped,
			code:     CodeEmptyFile,
			severity: SeverityWarning,
		},
		{
			name:     "no tags",
			origin:   "plain.asp",
			text:     "<html><body>static</body></html>",
			status:   StatusSkipped,
			code:     CodeNoASPTags,
			severity: SeverityWarning,
		},
		{
			name:     "no tags in strict mode",
			opts:     strict,
			origin:   "plain.asp",
			text:     "<html></html>",
			status:   StatusFailure,
			code:     CodeNoASPTags,
			severity: SeverityError,
		},
		{
			name:     "empty file in strict mode",
			opts:     strict,
			origin:   "empty.asp",
			text:     "",
			status:   StatusFailure,
			code:     CodeEmptyFile,
			severity: SeverityError,
		},
		{
			name:     "ignored warning is a notice even when strict",
			opts:     ignoring,
			origin:   "plain.asp",
			text:     "<html></html>",
			status:   StatusSkipped,
			code:     CodeNoASPTags,
			severity: SeverityNotice,
		},
		{
			name:   "script file skips the tag guard",
			origin: "job.vbs",
			text:   "Dim x\nx = 1\n",
			status: StatusSuccess,
		},
		{
			name:   "script file with delimiters is a page",
			origin: "test.vbs",
			text:   "<% MsgBox \"Hello World\" %>",
			status: StatusSuccess,
		},
		{
			name:   "script file with a delimiter inside a string",
			origin: "echo.vbs",
			text:   "Response.Write \"<%\"\n",
			status: StatusSuccess,
		},
		{
			name:   "script file starting with a directive",
			origin: "page.vbs",
			text:   "<%@ Language=\"VBScript\" %>\n<% x = 1 %>\n",
			status: StatusSuccess,
		},
		{
			name:     "close tag without any open tag",
			origin:   "stray.asp",
			text:     "<p>hello %> world</p>",
			status:   StatusFailure,
			code:     CodeParseError,
			severity: SeverityError,
		},
		{
			name:     "extra close tag after a block",
			origin:   "extra.asp",
			text:     "<% x = 1 %>\n<p>done</p>\n%>\n",
			status:   StatusFailure,
			code:     CodeParseError,
			severity: SeverityError,
		},
		{
			name:   "global.asa with server script element",
			origin: "global.asa",
			text:   "<SCRIPT LANGUAGE=\"VBScript\" RUNAT=\"Server\">\nSub Application_OnStart\nEnd Sub\n</SCRIPT>",
			status: StatusSuccess,
		},
		{
			name:     "client script does not count as server code",
			origin:   "global.asa",
			text:     "<script>var x = 1;</script>",
			status:   StatusSkipped,
			code:     CodeNoASPTags,
			severity: SeverityWarning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			if opts.Threads() == 0 {
				opts = DefaultParseOptions()
			}
			checker := NewChecker(opts, quietLogger())

			result := checker.Parse(pageUnit(t, tt.origin, tt.text))

			assert.Equal(t, tt.status, result.Status)
			assert.True(t, result.Valid())
			if tt.code == "" {
				assert.Empty(t, result.Diagnostics)
				return
			}
			require.Len(t, result.Diagnostics, 1)
			assert.Equal(t, tt.code, result.Diagnostics[0].Code)
			assert.Equal(t, tt.severity, result.Diagnostics[0].Severity)
		})
	}
}

func TestCheckerTrailingNewlines(t *testing.T) {
	checker := NewChecker(DefaultParseOptions(), quietLogger())
	for _, tail := range []string{"", "\r", "\n", "\r\n", "\n\n\n", "\r\n\r\n", "\r\r\n\n"} {
		t.Run(strconv.Quote(tail), func(t *testing.T) {
			text := "<html>\n<% Dim x %>\n</html>" + tail
			result := checker.Parse(pageUnit(t, "page.asp", text))
			assert.Equal(t, StatusSuccess, result.Status)
		})
	}
}

func TestCheckerLocation(t *testing.T) {
	checker := NewChecker(DefaultParseOptions(), quietLogger())

	result := checker.Parse(pageUnit(t, "expr.asp", "<%==incomplete expression"))

	require.Equal(t, StatusFailure, result.Status)
	d := result.Diagnostics[0]
	require.NotNil(t, d.Position)
	assert.Equal(t, 1, d.Position.Line)
	assert.Equal(t, 4, d.Position.Column)
	assert.Equal(t, 3, d.Position.Offset)
	assert.Equal(t, "expression", d.Expected)
	assert.Equal(t, "expected expression, found '='", d.Message)
}

func TestCheckerUnmatchedCloseTag(t *testing.T) {
	checker := NewChecker(DefaultParseOptions(), quietLogger())

	result := checker.Parse(pageUnit(t, "stray.asp", "<p>hello %> world</p>"))

	require.Equal(t, StatusFailure, result.Status)
	d := result.Diagnostics[0]
	require.NotNil(t, d.Position)
	assert.Equal(t, 1, d.Position.Line)
	assert.Equal(t, 10, d.Position.Column)
	assert.Equal(t, 9, d.Position.Offset)
	assert.Equal(t, "asp_open_tag", d.Expected)
	assert.Equal(t, "unmatched '%>' without an opening '<%'", d.Message)
}

func TestCheckerAttachesContext(t *testing.T) {
	text := "<html>\n<%\nDim a\nx = = 1\nDim b\n%>\n</html>\n"

	t.Run("with context lines", func(t *testing.T) {
		checker := NewChecker(DefaultParseOptions(), quietLogger())
		result := checker.Parse(pageUnit(t, "ctx.asp", text))

		require.Equal(t, StatusFailure, result.Status)
		ctx := result.Diagnostics[0].Context
		require.NotNil(t, ctx)
		assert.Equal(t, 4, ctx.FocusLine)
		require.Len(t, ctx.Lines, 5)
		assert.Equal(t, 2, ctx.Lines[0].Number)
		assert.Equal(t, "x = = 1", ctx.Lines[2].Content)
		assert.True(t, ctx.Lines[2].Focus)
	})

	t.Run("without context lines", func(t *testing.T) {
		checker := NewChecker(NewParseOptions(OptionsSpec{}), quietLogger())
		result := checker.Parse(pageUnit(t, "ctx.asp", text))

		require.Equal(t, StatusFailure, result.Status)
		assert.Nil(t, result.Diagnostics[0].Context)
	})
}

func TestCheckerIsIdempotent(t *testing.T) {
	checker := NewChecker(DefaultParseOptions(), quietLogger())
	for _, text := range []string{"<% x = %>", "<% x = 1 %>", "", "plain"} {
		unit := pageUnit(t, "a.asp", text)
		assert.Equal(t, checker.Parse(unit), checker.Parse(unit))
	}
}

func TestLoadFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"filesystem", NewFSError("failed to read source file", errors.New("permission denied")), CodeIOError},
		{"encoding", NewEncodingError("cannot decode source as utf-16le", errors.New("bad")), CodeEncodingError},
		{"plain error", errors.New("boom"), CodeIOError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := LoadFailure(tt.err)

			assert.Equal(t, StatusFailure, result.Status)
			require.Len(t, result.Diagnostics, 1)
			assert.Equal(t, tt.code, result.Diagnostics[0].Code)
			assert.Nil(t, result.Diagnostics[0].Position)
		})
	}
}
