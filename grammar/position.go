package grammar

import (
	"sort"
	"unicode/utf8"
)

// LineIndex maps byte offsets to 1-based line and column numbers.
// CR, LF and CRLF all end a line. Columns count characters, not bytes.
type LineIndex struct {
	src    string
	starts []int
}

func NewLineIndex(src string) *LineIndex {
	starts := []int{0}
	for i := 0; i < len(src); i++ {
		switch src[i] {
		case '\r':
			if i+1 < len(src) && src[i+1] == '\n' {
				i++
			}
			starts = append(starts, i+1)
		case '\n':
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{src: src, starts: starts}
}

// Position converts offset into a line and column. Offsets past the end
// clamp to the end of input.
func (li *LineIndex) Position(offset int) (line, column int) {
	offset = max(0, min(offset, len(li.src)))
	i := sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > offset }) - 1
	return i + 1, utf8.RuneCountInString(li.src[li.starts[i]:offset]) + 1
}

// Line returns the text of the 1-based line n without its terminator.
func (li *LineIndex) Line(n int) string {
	if n < 1 || n > len(li.starts) {
		return ""
	}
	start := li.starts[n-1]
	end := len(li.src)
	if n < len(li.starts) {
		end = li.starts[n]
	}
	for end > start && (li.src[end-1] == '\n' || li.src[end-1] == '\r') {
		end--
	}
	return li.src[start:end]
}

// LineCount returns the number of lines, counting a trailing empty line.
func (li *LineIndex) LineCount() int {
	return len(li.starts)
}
