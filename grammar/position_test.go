package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineIndexPosition(t *testing.T) {
	src := "ab\r\ncd\ref\ngh"
	li := NewLineIndex(src)

	tests := []struct {
		offset int
		line   int
		column int
	}{
		{0, 1, 1},
		{2, 1, 3},
		{4, 2, 1},
		{7, 3, 1},
		{10, 4, 1},
		{len(src), 4, 3},
		{len(src) + 5, 4, 3},
		{-1, 1, 1},
	}
	for _, tt := range tests {
		line, col := li.Position(tt.offset)
		assert.Equal(t, tt.line, line, "line for offset %d", tt.offset)
		assert.Equal(t, tt.column, col, "column for offset %d", tt.offset)
	}

	assert.Equal(t, 4, li.LineCount())
	assert.Equal(t, "cd", li.Line(2))
	assert.Equal(t, "gh", li.Line(4))
	assert.Equal(t, "", li.Line(5))
}

func TestLineIndexCountsRunes(t *testing.T) {
	src := "<p>héllo</p><%= x"
	li := NewLineIndex(src)
	_, col := li.Position(len(src))
	assert.Equal(t, 18, col)
}
