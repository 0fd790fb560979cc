package aspcheck

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// ColorMode represents when to use colors in output
type ColorMode string

const (
	// ColorAuto enables colors on a terminal unless NO_COLOR is set
	ColorAuto ColorMode = "auto"
	// ColorAlways forces colors to be enabled
	ColorAlways ColorMode = "always"
	// ColorNever disables colors
	ColorNever ColorMode = "never"
)

// ShouldEnableColor resolves mode against the destination writer.
func ShouldEnableColor(mode ColorMode, w io.Writer) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorAuto:
		if _, set := os.LookupEnv("NO_COLOR"); set {
			return false
		}
		return isTerminal(w)
	default:
		return false
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

// paint returns a color that ignores the global NoColor detection, so the
// caller's decision is what counts.
func paint(useColor bool, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if useColor {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

// ASCIIFormatter renders one line per success or diagnostic, optional code
// context, and a summary line.
type ASCIIFormatter struct {
	Options FormatterOptions
}

func (f *ASCIIFormatter) Format(summary RunSummary) ([]byte, error) {
	useColor := f.Options.Color
	successColor := paint(useColor, color.FgGreen)
	errorColor := paint(useColor, color.FgRed)
	warningColor := paint(useColor, color.FgYellow)
	noticeColor := paint(useColor, color.FgBlue)
	dimColor := paint(useColor, color.FgHiBlack)

	var sb strings.Builder
	for _, unit := range summary.Results() {
		if unit.Result.Status == StatusSuccess {
			if f.Options.QuietSuccess {
				continue
			}
			sb.WriteString(successColor.Sprint("✓"))
			sb.WriteString(" " + unit.Origin + " parsed successfully")
			if f.Options.Verbose && unit.Cached {
				sb.WriteString(dimColor.Sprint(" (cached)"))
			}
			sb.WriteString("\n")
			continue
		}

		for _, d := range unit.Result.Diagnostics {
			if d.Severity == SeverityNotice && !f.Options.Verbose {
				continue
			}
			var icon string
			var severityColor *color.Color
			switch d.Severity {
			case SeverityError:
				icon, severityColor = "✖", errorColor
			case SeverityWarning:
				icon, severityColor = "⚠", warningColor
			default:
				icon, severityColor = "ℹ", noticeColor
			}

			sb.WriteString(severityColor.Sprint(icon))
			sb.WriteString(" " + unit.Origin)
			if d.Position.IsValid() {
				fmt.Fprintf(&sb, ":%d:%d", d.Position.Line, d.Position.Column)
			}
			sb.WriteString(": ")
			sb.WriteString(severityColor.Sprint(d.Severity.String()))
			sb.WriteString(" - " + d.Message + "\n")
			if d.Context != nil {
				sb.WriteString(d.Context.Format(useColor))
			}
		}
	}

	failed := fmt.Sprint(summary.Failed())
	if summary.Failed() > 0 {
		failed = errorColor.Sprint(failed)
	}
	skipped := fmt.Sprint(summary.Skipped())
	if summary.Skipped() > 0 {
		skipped = warningColor.Sprint(skipped)
	}
	fmt.Fprintf(&sb, "Parsing complete: %s succeeded, %s failed, %s skipped\n",
		successColor.Sprint(summary.Succeeded()), failed, skipped)
	if f.Options.Verbose && summary.CachedCount() > 0 {
		sb.WriteString(dimColor.Sprintf("%d results served from cache\n", summary.CachedCount()))
	}

	return []byte(sb.String()), nil
}

func (f *ASCIIFormatter) ContentType() string {
	return "text/plain"
}
