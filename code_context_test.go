package aspcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gophersatwork/aspcheck/grammar"
)

func TestExtractCodeContext(t *testing.T) {
	lines := grammar.NewLineIndex("a\nb\n\tc\nd\ne\n")

	tests := []struct {
		name     string
		position *Position
		context  int
		numbers  []int
	}{
		{"middle", &Position{Line: 3, Column: 2}, 1, []int{2, 3, 4}},
		{"clamped at start", &Position{Line: 1, Column: 1}, 2, []int{1, 2, 3}},
		{"trailing empty line dropped", &Position{Line: 5, Column: 1}, 2, []int{3, 4, 5}},
		{"zero context", &Position{Line: 2, Column: 1}, 0, []int{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ExtractCodeContext(lines, tt.position, tt.context)
			require.NotNil(t, ctx)
			var numbers []int
			for _, l := range ctx.Lines {
				numbers = append(numbers, l.Number)
				assert.Equal(t, l.Number == tt.position.Line, l.Focus)
			}
			assert.Equal(t, tt.numbers, numbers)
		})
	}

	t.Run("tabs expanded", func(t *testing.T) {
		ctx := ExtractCodeContext(lines, &Position{Line: 3, Column: 1}, 0)
		require.NotNil(t, ctx)
		assert.Equal(t, "    c", ctx.Lines[0].Content)
	})

	t.Run("invalid position", func(t *testing.T) {
		assert.Nil(t, ExtractCodeContext(lines, nil, 2))
		assert.Nil(t, ExtractCodeContext(lines, &Position{Line: 99, Column: 1}, 2))
	})
}

func TestCodeContextFormat(t *testing.T) {
	ctx := sampleFailure().Diagnostics[0].Context

	expected := "" +
		"  3 | Dim a\n" +
		"> 4 | x = = 1\n" +
		"          ^\n" +
		"  5 | Dim b\n"
	assert.Equal(t, expected, ctx.Format(false))

	colored := ctx.Format(true)
	assert.Contains(t, colored, "\x1b[")
	assert.NotEqual(t, expected, colored)

	var empty *CodeContext
	assert.Empty(t, empty.Format(false))
}
