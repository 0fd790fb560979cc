package aspcheck

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/gophersatwork/aspcheck/grammar"
)

// CodeContext represents source lines around a diagnostic
type CodeContext struct {
	Lines     []CodeLine `json:"lines"`
	FocusLine int        `json:"focus_line"` // 1-indexed
	Column    int        `json:"column"`     // 1-indexed, 0 when unknown
}

// CodeLine represents a single line of source code
type CodeLine struct {
	Number  int    `json:"number"`
	Content string `json:"content"`
	Focus   bool   `json:"focus,omitempty"`
}

// ExtractCodeContext returns up to contextLines lines on each side of
// position, taken from an already built line index.
func ExtractCodeContext(lines *grammar.LineIndex, position *Position, contextLines int) *CodeContext {
	if lines == nil || !position.IsValid() || position.Line > lines.LineCount() {
		return nil
	}

	start := max(1, position.Line-contextLines)
	end := min(lines.LineCount(), position.Line+contextLines)
	// A trailing empty line only matters when the diagnostic sits on it.
	if end > position.Line && end == lines.LineCount() && lines.Line(end) == "" {
		end--
	}

	ctx := &CodeContext{FocusLine: position.Line, Column: position.Column}
	for i := start; i <= end; i++ {
		ctx.Lines = append(ctx.Lines, CodeLine{
			Number:  i,
			Content: strings.ReplaceAll(lines.Line(i), "\t", "    "),
			Focus:   i == position.Line,
		})
	}
	return ctx
}

// Format renders the context with line numbers, a ">" marker on the focus
// line and a caret under the column.
func (c *CodeContext) Format(useColor bool) string {
	if c == nil || len(c.Lines) == 0 {
		return ""
	}

	var sb strings.Builder
	width := len(fmt.Sprintf("%d", c.Lines[len(c.Lines)-1].Number))
	focus := paint(useColor, color.FgRed)
	gutter := paint(useColor, color.FgHiBlack)

	for _, line := range c.Lines {
		marker := " "
		if line.Focus {
			marker = ">"
		}
		prefix := fmt.Sprintf("%s %*d |", marker, width, line.Number)
		if line.Focus {
			sb.WriteString(focus.Sprintf("%s %s", prefix, line.Content))
			sb.WriteString("\n")
			if c.Column > 0 {
				pad := strings.Repeat(" ", width+5)
				sb.WriteString(gutter.Sprint(pad))
				sb.WriteString(strings.Repeat(" ", caretOffset(line.Content, c.Column)))
				sb.WriteString(focus.Sprint("^"))
				sb.WriteString("\n")
			}
			continue
		}
		sb.WriteString(gutter.Sprint(prefix))
		sb.WriteString(" " + line.Content + "\n")
	}
	return sb.String()
}

// caretOffset converts a 1-based rune column to a display offset; the
// column is clamped to the line so a caret past the end sits right after
// the last character.
func caretOffset(content string, column int) int {
	n := len([]rune(content))
	return min(column-1, n)
}
