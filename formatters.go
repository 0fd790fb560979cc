package aspcheck

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Version is reported by the CLI and in structured reports.
var Version = "dev"

// OutputFormat represents the output format type
type OutputFormat string

const (
	// FormatAuto picks ci or ascii from the environment
	FormatAuto OutputFormat = "auto"
	// FormatASCII outputs human-readable text (default on a terminal)
	FormatASCII OutputFormat = "ascii"
	// FormatCI outputs GitHub Actions workflow annotations
	FormatCI OutputFormat = "ci"
	// FormatJSON outputs machine-readable JSON
	FormatJSON OutputFormat = "json"
	// FormatSARIF outputs SARIF 2.1.0 format for CI/CD integration
	FormatSARIF OutputFormat = "sarif"
	// FormatCheckstyle outputs Checkstyle XML format
	FormatCheckstyle OutputFormat = "checkstyle"
	// FormatJUnit outputs JUnit XML format
	FormatJUnit OutputFormat = "junit"
)

// FormatterOptions are the display settings shared by the text formats.
type FormatterOptions struct {
	Color        bool
	QuietSuccess bool
	Verbose      bool
}

// Formatter interface for different output formats
type Formatter interface {
	Format(summary RunSummary) ([]byte, error)
	ContentType() string
}

// ResolveFormat replaces FormatAuto with ci when CI=true or w is not a
// terminal, and ascii otherwise.
func ResolveFormat(format OutputFormat, w io.Writer) OutputFormat {
	if format != FormatAuto {
		return format
	}
	if os.Getenv("CI") == "true" || !isTerminal(w) {
		return FormatCI
	}
	return FormatASCII
}

// NewFormatter creates a formatter for a resolved format.
func NewFormatter(format OutputFormat, opts FormatterOptions) (Formatter, error) {
	switch format {
	case FormatASCII:
		return &ASCIIFormatter{Options: opts}, nil
	case FormatCI:
		return &CIFormatter{Options: opts}, nil
	case FormatJSON:
		return &JSONFormatter{Pretty: true}, nil
	case FormatSARIF:
		return &SARIFFormatter{}, nil
	case FormatCheckstyle:
		return &CheckstyleFormatter{}, nil
	case FormatJUnit:
		return &JUnitFormatter{}, nil
	default:
		return nil, NewConfigError(fmt.Sprintf("unsupported output format: %s", format), nil)
	}
}

// CIFormatter outputs GitHub Actions workflow commands.
type CIFormatter struct {
	Options FormatterOptions
}

func (f *CIFormatter) Format(summary RunSummary) ([]byte, error) {
	var sb strings.Builder
	for _, unit := range summary.Results() {
		if unit.Result.Status == StatusSuccess {
			if !f.Options.QuietSuccess {
				fmt.Fprintf(&sb, "::notice file=%s::Parsed successfully\n", unit.Origin)
			}
			continue
		}
		for _, d := range unit.Result.Diagnostics {
			level := d.Severity.String()
			title := "ASP Parse " + strings.ToUpper(level)
			if d.Position.IsValid() {
				fmt.Fprintf(&sb, "::%s file=%s,line=%d,col=%d,title=%s::%s\n",
					level, unit.Origin, d.Position.Line, d.Position.Column, title, escapeWorkflowData(d.Message))
			} else {
				fmt.Fprintf(&sb, "::%s file=%s,title=%s::%s\n", level, unit.Origin, title, escapeWorkflowData(d.Message))
			}
		}
	}

	fmt.Fprintf(&sb, "::notice::ASP Classic Parser: %d files succeeded, %d files failed\n",
		summary.Succeeded(), summary.Failed())
	if summary.Skipped() > 0 {
		fmt.Fprintf(&sb, "::notice::ASP Classic Parser: %d files skipped\n", summary.Skipped())
	}
	return []byte(sb.String()), nil
}

func (f *CIFormatter) ContentType() string {
	return "text/plain"
}

// escapeWorkflowData escapes the characters GitHub treats specially in a
// workflow command message.
func escapeWorkflowData(s string) string {
	return strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A").Replace(s)
}

// JSONFormatter outputs the run in JSON format
type JSONFormatter struct {
	Pretty bool
}

// JSONOutput represents the JSON output structure
type JSONOutput struct {
	Summary   JSONSummary  `json:"summary"`
	Results   []JSONResult `json:"results"`
	Timestamp string       `json:"timestamp"`
}

type JSONSummary struct {
	Total     int    `json:"total"`
	Succeeded int    `json:"success"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	Cached    int    `json:"cached"`
	Status    string `json:"status"`
}

type JSONResult struct {
	File        string       `json:"file"`
	Status      string       `json:"status"`
	Cached      bool         `json:"cached,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

func (f *JSONFormatter) Format(summary RunSummary) ([]byte, error) {
	output := f.buildJSONOutput(summary)

	if f.Pretty {
		return json.MarshalIndent(output, "", "  ")
	}
	return json.Marshal(output)
}

func (f *JSONFormatter) ContentType() string {
	return "application/json"
}

func (f *JSONFormatter) buildJSONOutput(summary RunSummary) JSONOutput {
	results := make([]JSONResult, 0, summary.Total())
	for _, unit := range summary.Results() {
		results = append(results, JSONResult{
			File:        unit.Origin,
			Status:      unit.Result.Status.String(),
			Cached:      unit.Cached,
			Diagnostics: unit.Result.Diagnostics,
		})
	}

	status := "passed"
	if summary.HasErrors() {
		status = "failed"
	}

	return JSONOutput{
		Summary: JSONSummary{
			Total:     summary.Total(),
			Succeeded: summary.Succeeded(),
			Failed:    summary.Failed(),
			Skipped:   summary.Skipped(),
			Cached:    summary.CachedCount(),
			Status:    status,
		},
		Results:   results,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// SARIFFormatter outputs diagnostics in SARIF 2.1.0 format
type SARIFFormatter struct{}

// SARIF structures according to the SARIF 2.1.0 specification
type SARIFOutput struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []SARIFRun `json:"runs"`
}

type SARIFRun struct {
	Tool    SARIFTool     `json:"tool"`
	Results []SARIFResult `json:"results"`
}

type SARIFTool struct {
	Driver SARIFDriver `json:"driver"`
}

type SARIFDriver struct {
	Name           string      `json:"name"`
	InformationURI string      `json:"informationUri"`
	Version        string      `json:"version"`
	Rules          []SARIFRule `json:"rules"`
}

type SARIFRule struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	ShortDescription SARIFMessage    `json:"shortDescription"`
	DefaultConfig    SARIFRuleConfig `json:"defaultConfiguration"`
}

type SARIFMessage struct {
	Text string `json:"text"`
}

type SARIFRuleConfig struct {
	Level string `json:"level"`
}

type SARIFResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   SARIFMessage    `json:"message"`
	Locations []SARIFLocation `json:"locations"`
}

type SARIFLocation struct {
	PhysicalLocation SARIFPhysicalLocation `json:"physicalLocation"`
}

type SARIFPhysicalLocation struct {
	ArtifactLocation SARIFArtifactLocation `json:"artifactLocation"`
	Region           *SARIFRegion          `json:"region,omitempty"`
}

type SARIFArtifactLocation struct {
	URI string `json:"uri"`
}

type SARIFRegion struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
}

var ruleDescriptions = map[string]string{
	CodeParseError:    "VBScript or ASP delimiter syntax error",
	CodeEncodingError: "Source file could not be decoded",
	CodeIOError:       "Source file could not be read",
	CodeNoASPTags:     "File contains no ASP server code",
	CodeEmptyFile:     "File is empty",
}

// sarifLevel maps severities to SARIF result levels.
func sarifLevel(s Severity) string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "note"
	}
}

func (f *SARIFFormatter) Format(summary RunSummary) ([]byte, error) {
	sarif := f.buildSARIFOutput(summary)
	return json.MarshalIndent(sarif, "", "  ")
}

func (f *SARIFFormatter) ContentType() string {
	return "application/sarif+json"
}

func (f *SARIFFormatter) buildSARIFOutput(summary RunSummary) SARIFOutput {
	// Rules are listed in first-seen order so output is stable
	seen := make(map[string]bool)
	rules := make([]SARIFRule, 0)
	results := make([]SARIFResult, 0)

	for _, unit := range summary.Results() {
		for _, d := range unit.Result.Diagnostics {
			if !seen[d.Code] {
				seen[d.Code] = true
				rules = append(rules, SARIFRule{
					ID:               d.Code,
					Name:             d.Code,
					ShortDescription: SARIFMessage{Text: ruleDescriptions[d.Code]},
					DefaultConfig:    SARIFRuleConfig{Level: sarifLevel(MapSeverity(d.Code))},
				})
			}

			location := SARIFPhysicalLocation{
				ArtifactLocation: SARIFArtifactLocation{URI: filepath.ToSlash(unit.Origin)},
			}
			if d.Position.IsValid() {
				location.Region = &SARIFRegion{StartLine: d.Position.Line, StartColumn: d.Position.Column}
			}

			results = append(results, SARIFResult{
				RuleID:    d.Code,
				Level:     sarifLevel(d.Severity),
				Message:   SARIFMessage{Text: d.Message},
				Locations: []SARIFLocation{{PhysicalLocation: location}},
			})
		}
	}

	return SARIFOutput{
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json",
		Version: "2.1.0",
		Runs: []SARIFRun{
			{
				Tool: SARIFTool{
					Driver: SARIFDriver{
						Name:           "aspcheck",
						InformationURI: "https://github.com/gophersatwork/aspcheck",
						Version:        Version,
						Rules:          rules,
					},
				},
				Results: results,
			},
		},
	}
}

// CheckstyleFormatter outputs diagnostics in Checkstyle XML format
type CheckstyleFormatter struct{}

type CheckstyleOutput struct {
	XMLName xml.Name         `xml:"checkstyle"`
	Version string           `xml:"version,attr"`
	Files   []CheckstyleFile `xml:"file"`
}

type CheckstyleFile struct {
	Name   string            `xml:"name,attr"`
	Errors []CheckstyleError `xml:"error"`
}

type CheckstyleError struct {
	Line     int    `xml:"line,attr"`
	Column   int    `xml:"column,attr,omitempty"`
	Severity string `xml:"severity,attr"`
	Message  string `xml:"message,attr"`
	Source   string `xml:"source,attr"`
}

func (f *CheckstyleFormatter) Format(summary RunSummary) ([]byte, error) {
	files := make([]CheckstyleFile, 0, summary.Total())
	for _, unit := range summary.Results() {
		errors := make([]CheckstyleError, 0, len(unit.Result.Diagnostics))
		for _, d := range unit.Result.Diagnostics {
			entry := CheckstyleError{
				Line:     1,
				Severity: checkstyleSeverity(d.Severity),
				Message:  d.Message,
				Source:   "aspcheck." + d.Code,
			}
			if d.Position.IsValid() {
				entry.Line = d.Position.Line
				entry.Column = d.Position.Column
			}
			errors = append(errors, entry)
		}
		files = append(files, CheckstyleFile{Name: unit.Origin, Errors: errors})
	}

	output := CheckstyleOutput{
		Version: "8.0",
		Files:   files,
	}

	data, err := xml.MarshalIndent(output, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), data...), nil
}

func (f *CheckstyleFormatter) ContentType() string {
	return "application/xml"
}

func checkstyleSeverity(s Severity) string {
	if s == SeverityNotice {
		return "info"
	}
	return s.String()
}

// JUnitFormatter outputs one test case per unit in JUnit XML format
type JUnitFormatter struct{}

type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Skipped    int              `xml:"skipped,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

type JUnitTestSuite struct {
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Skipped   int             `xml:"skipped,attr"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

type JUnitTestCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

type JUnitFailure struct {
	Type    string `xml:"type,attr"`
	Message string `xml:"message,attr"`
	Text    string `xml:",chardata"`
}

type JUnitSkipped struct {
	Message string `xml:"message,attr"`
}

func (f *JUnitFormatter) Format(summary RunSummary) ([]byte, error) {
	cases := make([]JUnitTestCase, 0, summary.Total())
	for _, unit := range summary.Results() {
		tc := JUnitTestCase{
			Name:      unit.Origin,
			ClassName: filepath.Base(unit.Origin),
		}
		switch unit.Result.Status {
		case StatusFailure:
			var text strings.Builder
			for _, d := range unit.Result.Diagnostics {
				text.WriteString(d.String() + "\n")
			}
			first := unit.Result.Diagnostics[0]
			tc.Failure = &JUnitFailure{Type: first.Code, Message: first.Message, Text: text.String()}
		case StatusSkipped:
			tc.Skipped = &JUnitSkipped{Message: unit.Result.Diagnostics[0].Message}
		}
		cases = append(cases, tc)
	}

	suite := JUnitTestSuite{
		Name:      "ASP Classic syntax",
		Tests:     summary.Total(),
		Failures:  summary.Failed(),
		Skipped:   summary.Skipped(),
		TestCases: cases,
	}
	output := JUnitTestSuites{
		Name:       "aspcheck",
		Tests:      suite.Tests,
		Failures:   suite.Failures,
		Skipped:    suite.Skipped,
		TestSuites: []JUnitTestSuite{suite},
	}

	data, err := xml.MarshalIndent(output, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), data...), nil
}

func (f *JUnitFormatter) ContentType() string {
	return "application/xml"
}
