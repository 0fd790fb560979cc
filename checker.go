package aspcheck

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/gophersatwork/aspcheck/grammar"
)

const (
	msgNoASPTags = "No ASP tags found in file"
	msgEmptyFile = "File is empty"
)

// Checker turns one SourceUnit into a ParseResult. It holds no mutable
// state and is safe for concurrent use.
type Checker struct {
	opts   ParseOptions
	logger *slog.Logger
}

func NewChecker(opts ParseOptions, logger *slog.Logger) *Checker {
	return &Checker{
		opts:   opts,
		logger: ensureLogger(logger),
	}
}

// ensureLogger creates a default logger if none is provided
func ensureLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	return logger
}

// Options returns the options the checker was built with.
func (c *Checker) Options() ParseOptions {
	return c.opts
}

// Parse runs the pre-parse guards and then the grammar. It never returns
// an error: every outcome is captured in the result.
func (c *Checker) Parse(unit SourceUnit) ParseResult {
	if strings.TrimSpace(unit.Text) == "" {
		return c.guard(unit, CodeEmptyFile, msgEmptyFile)
	}
	if unit.Kind != KindScript && !hasServerCode(unit.Text, unit.Kind) {
		return c.guard(unit, CodeNoASPTags, msgNoASPTags)
	}

	err := parseUnit(unit)
	if err == nil {
		return Success()
	}

	var syn *grammar.SyntaxError
	if !errors.As(err, &syn) {
		return Failure(Diagnostic{Code: CodeParseError, Severity: SeverityError, Message: err.Error()})
	}
	pos := &Position{Line: syn.Line, Column: syn.Column, Offset: syn.Offset}
	d := Diagnostic{
		Code:     CodeParseError,
		Severity: SeverityError,
		Position: pos,
		Message:  syn.Message(),
		Expected: syn.Expected,
	}
	if n := c.opts.ContextLines(); n > 0 {
		d.Context = ExtractCodeContext(grammar.NewLineIndex(unit.Text), pos, n)
	}
	c.logger.Debug("Syntax error",
		slog.String("file", unit.Origin),
		slog.Int("line", pos.Line),
		slog.Int("column", pos.Column),
		slog.String("expected", syn.Expected))
	return Failure(d)
}

// parseUnit runs the grammar in the unit's mode. A .vbs file is bare
// script; when that fails on a "<%" delimiter the file was written as a
// page and is checked as one.
func parseUnit(unit SourceUnit) error {
	if unit.Kind != KindScript {
		return grammar.Parse(unit.Text, grammar.Page)
	}
	err := grammar.Parse(unit.Text, grammar.Script)
	var syn *grammar.SyntaxError
	if errors.As(err, &syn) && strings.HasPrefix(unit.Text[syn.Offset:], "<%") {
		return grammar.Parse(unit.Text, grammar.Page)
	}
	return err
}

// guard builds the result of a pre-parse check after applying the
// severity policy.
func (c *Checker) guard(unit SourceUnit, code, message string) ParseResult {
	d := Promote(Diagnostic{Code: code, Severity: MapSeverity(code), Message: message}, c.opts)
	c.logger.Debug("Pre-parse check",
		slog.String("file", unit.Origin),
		slog.String("code", code),
		slog.String("severity", d.Severity.String()))
	if d.Severity == SeverityError {
		return Failure(d)
	}
	return Skipped(d)
}

// LoadFailure converts a LoadSource error into the failed result of that
// unit, so an unreadable file is reported like any other finding.
func LoadFailure(err error) ParseResult {
	code := CodeIOError
	msg := err.Error()
	if appErr, ok := GetErrorInfo(err); ok {
		if appErr.Type == ErrorTypeEncoding {
			code = CodeEncodingError
		}
		msg = appErr.Message
		if appErr.Err != nil {
			msg += ": " + appErr.Err.Error()
		}
	}
	return Failure(Diagnostic{Code: code, Severity: SeverityError, Message: msg})
}

// hasServerCode reports whether text contains an ASP delimiter or, for
// global.asa, a server-side script element.
func hasServerCode(text string, kind UnitKind) bool {
	if strings.Contains(text, "<%") || strings.Contains(text, "%>") {
		return true
	}
	return kind == KindGlobal && grammar.HasServerScript(text)
}
