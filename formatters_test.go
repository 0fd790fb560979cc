package aspcheck

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestSummary() RunSummary {
	return NewRunSummary([]UnitResult{
		{Origin: "site/default.asp", Result: Success()},
		{Origin: "site/cart.asp", Result: sampleFailure()},
		{Origin: "site/readme.asp", Result: Skipped(Diagnostic{Code: CodeNoASPTags, Severity: SeverityWarning, Message: msgNoASPTags})},
		{Origin: "site/blank.asp", Result: Skipped(Diagnostic{Code: CodeEmptyFile, Severity: SeverityNotice, Message: msgEmptyFile})},
		{Origin: "site/cached.asp", Result: Success(), Cached: true},
	})
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format   OutputFormat
		expected any
	}{
		{FormatASCII, &ASCIIFormatter{}},
		{FormatCI, &CIFormatter{}},
		{FormatJSON, &JSONFormatter{}},
		{FormatSARIF, &SARIFFormatter{}},
		{FormatCheckstyle, &CheckstyleFormatter{}},
		{FormatJUnit, &JUnitFormatter{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			formatter, err := NewFormatter(tt.format, FormatterOptions{})
			require.NoError(t, err)
			assert.IsType(t, tt.expected, formatter)
		})
	}

	t.Run("unresolved auto", func(t *testing.T) {
		_, err := NewFormatter(FormatAuto, FormatterOptions{})
		assert.Error(t, err)
	})
}

func TestResolveFormat(t *testing.T) {
	t.Setenv("CI", "")
	var buf bytes.Buffer

	assert.Equal(t, FormatJSON, ResolveFormat(FormatJSON, &buf))
	assert.Equal(t, FormatCI, ResolveFormat(FormatAuto, &buf), "non-terminal output")

	t.Setenv("CI", "true")
	assert.Equal(t, FormatCI, ResolveFormat(FormatAuto, &buf))
}

func TestShouldEnableColor(t *testing.T) {
	var buf bytes.Buffer
	assert.True(t, ShouldEnableColor(ColorAlways, &buf))
	assert.False(t, ShouldEnableColor(ColorNever, &buf))
	assert.False(t, ShouldEnableColor(ColorAuto, &buf))

	t.Setenv("NO_COLOR", "1")
	assert.False(t, ShouldEnableColor(ColorAuto, &buf))
}

func TestASCIIFormatter(t *testing.T) {
	formatter := &ASCIIFormatter{}
	output, err := formatter.Format(createTestSummary())
	require.NoError(t, err)
	text := string(output)

	assert.Contains(t, text, "✓ site/default.asp parsed successfully\n")
	assert.Contains(t, text, "✖ site/cart.asp:4:5: error - expected expression, found '='\n")
	assert.Contains(t, text, "> 4 | x = = 1\n")
	assert.Contains(t, text, "⚠ site/readme.asp: warning - No ASP tags found in file\n")
	assert.NotContains(t, text, "blank.asp", "notices are verbose only")
	assert.NotContains(t, text, "(cached)")
	assert.True(t, strings.HasSuffix(text, "Parsing complete: 2 succeeded, 1 failed, 2 skipped\n"))
	assert.NotContains(t, text, "\x1b[")
}

func TestASCIIFormatterOptions(t *testing.T) {
	t.Run("quiet success", func(t *testing.T) {
		output, err := (&ASCIIFormatter{Options: FormatterOptions{QuietSuccess: true}}).Format(createTestSummary())
		require.NoError(t, err)
		assert.NotContains(t, string(output), "parsed successfully")
		assert.Contains(t, string(output), "✖ site/cart.asp")
	})

	t.Run("verbose", func(t *testing.T) {
		output, err := (&ASCIIFormatter{Options: FormatterOptions{Verbose: true}}).Format(createTestSummary())
		require.NoError(t, err)
		assert.Contains(t, string(output), "ℹ site/blank.asp: notice - File is empty\n")
		assert.Contains(t, string(output), "✓ site/cached.asp parsed successfully (cached)\n")
		assert.Contains(t, string(output), "1 results served from cache\n")
	})

	t.Run("color", func(t *testing.T) {
		output, err := (&ASCIIFormatter{Options: FormatterOptions{Color: true}}).Format(createTestSummary())
		require.NoError(t, err)
		assert.Contains(t, string(output), "\x1b[")
	})
}

func TestCIFormatter(t *testing.T) {
	formatter := &CIFormatter{}
	output, err := formatter.Format(createTestSummary())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	assert.Equal(t, []string{
		"::notice file=site/default.asp::Parsed successfully",
		"::error file=site/cart.asp,line=4,col=5,title=ASP Parse ERROR::expected expression, found '='",
		"::warning file=site/readme.asp,title=ASP Parse WARNING::No ASP tags found in file",
		"::notice file=site/blank.asp,title=ASP Parse NOTICE::File is empty",
		"::notice file=site/cached.asp::Parsed successfully",
		"::notice::ASP Classic Parser: 2 files succeeded, 1 files failed",
		"::notice::ASP Classic Parser: 2 files skipped",
	}, lines)
}

func TestCIFormatterEscapesMessages(t *testing.T) {
	summary := NewRunSummary([]UnitResult{{
		Origin: "a.asp",
		Result: Failure(Diagnostic{Code: CodeIOError, Severity: SeverityError, Message: "100% broken\nsecond line"}),
	}})
	output, err := (&CIFormatter{Options: FormatterOptions{QuietSuccess: true}}).Format(summary)
	require.NoError(t, err)
	assert.Contains(t, string(output), "::error file=a.asp,title=ASP Parse ERROR::100%25 broken%0Asecond line\n")
}

func TestJSONFormatter(t *testing.T) {
	formatter := &JSONFormatter{Pretty: true}
	output, err := formatter.Format(createTestSummary())
	require.NoError(t, err)

	var result JSONOutput
	require.NoError(t, json.Unmarshal(output, &result))

	assert.Equal(t, 5, result.Summary.Total)
	assert.Equal(t, 2, result.Summary.Succeeded)
	assert.Equal(t, 1, result.Summary.Failed)
	assert.Equal(t, 2, result.Summary.Skipped)
	assert.Equal(t, 1, result.Summary.Cached)
	assert.Equal(t, "failed", result.Summary.Status)
	assert.NotEmpty(t, result.Timestamp)

	require.Len(t, result.Results, 5)
	assert.Equal(t, "site/default.asp", result.Results[0].File)
	assert.Equal(t, "success", result.Results[0].Status)
	assert.Equal(t, "failure", result.Results[1].Status)
	require.Len(t, result.Results[1].Diagnostics, 1)
	assert.Equal(t, sampleFailure().Diagnostics[0], result.Results[1].Diagnostics[0])
	assert.True(t, result.Results[4].Cached)
}

func TestJSONFormatterEmpty(t *testing.T) {
	output, err := (&JSONFormatter{}).Format(NewRunSummary(nil))
	require.NoError(t, err)

	var result JSONOutput
	require.NoError(t, json.Unmarshal(output, &result))
	assert.Equal(t, "passed", result.Summary.Status)
	assert.Empty(t, result.Results)
	assert.Contains(t, string(output), `"results":[]`)
}

func TestSARIFFormatter(t *testing.T) {
	output, err := (&SARIFFormatter{}).Format(createTestSummary())
	require.NoError(t, err)

	var sarif SARIFOutput
	require.NoError(t, json.Unmarshal(output, &sarif))

	assert.Equal(t, "2.1.0", sarif.Version)
	require.Len(t, sarif.Runs, 1)
	run := sarif.Runs[0]
	assert.Equal(t, "aspcheck", run.Tool.Driver.Name)

	var ruleIDs []string
	for _, r := range run.Tool.Driver.Rules {
		ruleIDs = append(ruleIDs, r.ID)
	}
	assert.Equal(t, []string{CodeParseError, CodeNoASPTags, CodeEmptyFile}, ruleIDs)

	require.Len(t, run.Results, 3)
	first := run.Results[0]
	assert.Equal(t, "error", first.Level)
	assert.Equal(t, "site/cart.asp", first.Locations[0].PhysicalLocation.ArtifactLocation.URI)
	require.NotNil(t, first.Locations[0].PhysicalLocation.Region)
	assert.Equal(t, 4, first.Locations[0].PhysicalLocation.Region.StartLine)
	assert.Equal(t, 5, first.Locations[0].PhysicalLocation.Region.StartColumn)

	assert.Equal(t, "warning", run.Results[1].Level)
	assert.Nil(t, run.Results[1].Locations[0].PhysicalLocation.Region)
	assert.Equal(t, "note", run.Results[2].Level)
}

func TestCheckstyleFormatter(t *testing.T) {
	output, err := (&CheckstyleFormatter{}).Format(createTestSummary())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(output), "<?xml"))

	var checkstyle CheckstyleOutput
	require.NoError(t, xml.Unmarshal(output, &checkstyle))

	require.Len(t, checkstyle.Files, 5)
	assert.Empty(t, checkstyle.Files[0].Errors)
	cart := checkstyle.Files[1]
	assert.Equal(t, "site/cart.asp", cart.Name)
	require.Len(t, cart.Errors, 1)
	assert.Equal(t, 4, cart.Errors[0].Line)
	assert.Equal(t, 5, cart.Errors[0].Column)
	assert.Equal(t, "error", cart.Errors[0].Severity)
	assert.Equal(t, "aspcheck.parse_error", cart.Errors[0].Source)
	assert.Equal(t, "info", checkstyle.Files[3].Errors[0].Severity)
}

func TestJUnitFormatter(t *testing.T) {
	output, err := (&JUnitFormatter{}).Format(createTestSummary())
	require.NoError(t, err)

	var junit JUnitTestSuites
	require.NoError(t, xml.Unmarshal(output, &junit))

	assert.Equal(t, 5, junit.Tests)
	assert.Equal(t, 1, junit.Failures)
	assert.Equal(t, 2, junit.Skipped)
	require.Len(t, junit.TestSuites, 1)
	cases := junit.TestSuites[0].TestCases
	require.Len(t, cases, 5)
	assert.Nil(t, cases[0].Failure)
	require.NotNil(t, cases[1].Failure)
	assert.Equal(t, CodeParseError, cases[1].Failure.Type)
	assert.Contains(t, cases[1].Failure.Text, "4:5: error - expected expression")
	require.NotNil(t, cases[2].Skipped)
	assert.Equal(t, msgNoASPTags, cases[2].Skipped.Message)
}

func TestFormatterContentTypes(t *testing.T) {
	tests := []struct {
		formatter   Formatter
		contentType string
	}{
		{&ASCIIFormatter{}, "text/plain"},
		{&CIFormatter{}, "text/plain"},
		{&JSONFormatter{}, "application/json"},
		{&SARIFFormatter{}, "application/sarif+json"},
		{&CheckstyleFormatter{}, "application/xml"},
		{&JUnitFormatter{}, "application/xml"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.contentType, tt.formatter.ContentType())
	}
}

func BenchmarkFormatters(b *testing.B) {
	results := make([]UnitResult, 0, 200)
	for i := range 200 {
		r := UnitResult{Origin: "site/page.asp", Result: Success()}
		if i%4 == 0 {
			r.Result = sampleFailure()
		}
		results = append(results, r)
	}
	summary := NewRunSummary(results)

	formatters := map[string]Formatter{
		"ascii": &ASCIIFormatter{},
		"ci":    &CIFormatter{},
		"json":  &JSONFormatter{},
		"sarif": &SARIFFormatter{},
		"junit": &JUnitFormatter{},
	}
	for name, f := range formatters {
		b.Run(name, func(b *testing.B) {
			for b.Loop() {
				_, err := f.Format(summary)
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
