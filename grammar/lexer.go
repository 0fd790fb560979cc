package grammar

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

type mode int

const (
	modeHTML   mode = iota
	modeBlock       // between <% and %>
	modeScript      // inside <script runat="server">
	modeBare        // plain script file without delimiters
)

// lexer produces tokens on demand. It switches between markup and code
// modes as it crosses delimiters, so the parser sees one stream per file.
type lexer struct {
	src  string
	pos  int
	mode mode
}

func newLexer(src string, bare bool) *lexer {
	l := &lexer{src: src}
	if bare {
		l.mode = modeBare
	}
	return l
}

// inDelimitedCode reports whether a server region is open and still needs
// its closing delimiter.
func (l *lexer) inDelimitedCode() bool {
	return l.mode == modeBlock || l.mode == modeScript
}

func (l *lexer) next() Token {
	if l.mode == modeHTML {
		return l.lexHTML()
	}
	return l.lexCode()
}

func (l *lexer) emit(kind Kind, start int, space bool) Token {
	return Token{Kind: kind, Text: l.src[start:l.pos], Offset: start, End: l.pos, Space: space}
}

func (l *lexer) eof(space bool) Token {
	return Token{Kind: EOF, Offset: len(l.src), End: len(l.src), Space: space}
}

// illegal reports a lexical error at offset and exhausts the input.
func (l *lexer) illegal(offset int, msg string) Token {
	end := min(offset+1, len(l.src))
	l.pos = len(l.src)
	return Token{Kind: Illegal, Text: l.src[offset:end], Offset: offset, End: end, Err: msg}
}

func (l *lexer) peekAt(n int) byte {
	if l.pos+n < len(l.src) {
		return l.src[l.pos+n]
	}
	return 0
}

// lexHTML passes markup through up to the next server delimiter. A "%>"
// in markup has no matching "<%" and is reported where it starts.
func (l *lexer) lexHTML() Token {
	start := l.pos
	for l.pos < len(l.src) {
		i := strings.IndexAny(l.src[l.pos:], "<%")
		if i < 0 {
			l.pos = len(l.src)
			break
		}
		l.pos += i
		if l.atServerOpen() || l.atStrayClose() {
			break
		}
		l.pos++
	}

	if l.pos > start {
		return l.emit(HTML, start, false)
	}
	if l.pos >= len(l.src) {
		return l.eof(false)
	}

	rest := l.src[l.pos:]
	switch {
	case strings.HasPrefix(rest, "%>"):
		tok := l.illegal(l.pos, "unmatched '%>' without an opening '<%'")
		tok.Rule = "asp_open_tag"
		return tok
	case strings.HasPrefix(rest, "<%="):
		l.pos += 3
		l.mode = modeBlock
		return l.emit(OpenExpr, start, false)
	case strings.HasPrefix(rest, "<%@"):
		l.pos += 3
		l.mode = modeBlock
		return l.emit(OpenDirective, start, false)
	case strings.HasPrefix(rest, "<%"):
		l.pos += 2
		l.mode = modeBlock
		return l.emit(OpenBlock, start, false)
	case isIncludeStart(rest):
		return l.lexInclude()
	default:
		l.pos += serverScriptTag(rest)
		l.mode = modeScript
		return l.emit(OpenScript, start, false)
	}
}

func (l *lexer) atStrayClose() bool {
	return strings.HasPrefix(l.src[l.pos:], "%>")
}

func (l *lexer) atServerOpen() bool {
	rest := l.src[l.pos:]
	return strings.HasPrefix(rest, "<%") || isIncludeStart(rest) || serverScriptTag(rest) > 0
}

func isIncludeStart(s string) bool {
	if !strings.HasPrefix(s, "<!--") {
		return false
	}
	return hasPrefixFold(strings.TrimLeft(s[4:], " \t"), "#include")
}

// lexInclude reads <!--#include file|virtual="path"-->.
func (l *lexer) lexInclude() Token {
	start := l.pos
	l.pos += len("<!--")
	l.skipMarkupSpace()
	l.pos += len("#include")
	if !l.skipMarkupSpace() {
		return l.illegal(l.pos, "expected include_type (file or virtual) after #include")
	}

	wordStart := l.pos
	for l.pos < len(l.src) && isLetter(l.src[l.pos]) {
		l.pos++
	}
	word := l.src[wordStart:l.pos]
	if !strings.EqualFold(word, "file") && !strings.EqualFold(word, "virtual") {
		return l.illegal(wordStart, "expected include_type (file or virtual) after #include")
	}

	l.skipMarkupSpace()
	if l.peekAt(0) != '=' {
		return l.illegal(l.pos, "expected '=' in include directive")
	}
	l.pos++
	l.skipMarkupSpace()

	quote := l.peekAt(0)
	if quote != '"' && quote != '\'' {
		return l.illegal(l.pos, "expected include_path as a quoted string")
	}
	end := strings.IndexByte(l.src[l.pos+1:], quote)
	if end < 0 || strings.ContainsAny(l.src[l.pos+1:l.pos+1+end], "\r\n") {
		return l.illegal(l.pos, "unterminated include_path")
	}
	if end == 0 {
		return l.illegal(l.pos, "expected include_path, found empty string")
	}
	path := l.src[l.pos+1 : l.pos+1+end]
	l.pos += end + 2

	l.skipMarkupSpace()
	if !strings.HasPrefix(l.src[l.pos:], "-->") {
		return l.illegal(l.pos, "expected '-->' to close include directive")
	}
	l.pos += 3
	return Token{Kind: Include, Text: path, Offset: start, End: l.pos}
}

func (l *lexer) skipMarkupSpace() bool {
	start := l.pos
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.pos++
	}
	return l.pos > start
}

// HasServerScript reports whether src contains a <script runat="server">
// element that the page grammar treats as VBScript.
func HasServerScript(src string) bool {
	for i := strings.IndexByte(src, '<'); i >= 0; {
		src = src[i:]
		if serverScriptTag(src) > 0 {
			return true
		}
		src = src[1:]
		i = strings.IndexByte(src, '<')
	}
	return false
}

// serverScriptTag returns the length of a <script runat="server"> opening
// tag carrying VBScript at the start of s, or zero.
func serverScriptTag(s string) int {
	const open = "<script"
	if len(s) <= len(open) || !hasPrefixFold(s, open) || !isSpace(s[len(open)]) {
		return 0
	}
	end := strings.IndexByte(s, '>')
	if end < 0 {
		return 0
	}
	attrs := strings.ToLower(s[len(open):end])
	if attrValue(attrs, "runat") != "server" {
		return 0
	}
	if lang := attrValue(attrs, "language"); lang != "" && lang != "vbscript" {
		return 0
	}
	return end + 1
}

func attrValue(attrs, name string) string {
	from := 0
	for {
		i := strings.Index(attrs[from:], name)
		if i < 0 {
			return ""
		}
		i += from
		from = i + len(name)
		if i > 0 && !isSpace(attrs[i-1]) {
			continue
		}
		rest := strings.TrimLeft(attrs[from:], " \t\r\n")
		if !strings.HasPrefix(rest, "=") {
			continue
		}
		rest = strings.TrimLeft(rest[1:], " \t\r\n")
		if rest == "" {
			return ""
		}
		if q := rest[0]; q == '"' || q == '\'' {
			if j := strings.IndexByte(rest[1:], q); j >= 0 {
				return rest[1 : j+1]
			}
			return rest[1:]
		}
		if j := strings.IndexAny(rest, " \t\r\n/"); j >= 0 {
			return rest[:j]
		}
		return rest
	}
}

func (l *lexer) lexCode() Token {
	space := false
	for {
		for l.pos < len(l.src) && (l.src[l.pos] == ' ' || l.src[l.pos] == '\t') {
			l.pos++
			space = true
		}
		if l.pos >= len(l.src) {
			return l.eof(space)
		}
		c := l.src[l.pos]
		if c == '_' && l.continuation() {
			space = true
			continue
		}
		if c == '\'' || l.atRem() {
			l.skipComment()
			continue
		}
		break
	}

	start := l.pos
	c := l.src[l.pos]
	switch {
	case c == '\n':
		l.pos++
		return l.emit(Newline, start, space)
	case c == '\r':
		l.pos++
		if l.peekAt(0) == '\n' {
			l.pos++
		}
		return l.emit(Newline, start, space)
	case c == '%' && l.mode == modeBlock && l.peekAt(1) == '>':
		l.pos += 2
		l.mode = modeHTML
		return l.emit(CloseBlock, start, space)
	case c == '<' && l.mode == modeScript && hasPrefixFold(l.src[l.pos:], "</script"):
		end := strings.IndexByte(l.src[l.pos:], '>')
		if end < 0 {
			return l.illegal(start, "unterminated '</script>' tag")
		}
		l.pos += end + 1
		l.mode = modeHTML
		return l.emit(CloseScript, start, space)
	case c == '<' && l.peekAt(1) == '%':
		return l.illegal(start, "unexpected '<%' inside a script block")
	case c == '"':
		return l.lexString(space)
	case c == '#':
		return l.lexDate(space)
	case isDigit(c) || (c == '.' && isDigit(l.peekAt(1))):
		return l.lexNumber(space)
	case c == '&' && l.atRadix():
		return l.lexRadix(space)
	case isLetter(c):
		for l.pos < len(l.src) && isIdentChar(l.src[l.pos]) {
			l.pos++
		}
		return l.emit(Ident, start, space)
	case c == '[':
		end := strings.IndexAny(l.src[l.pos:], "]\r\n")
		if end < 0 || l.src[l.pos+end] != ']' {
			return l.illegal(start, "unterminated bracketed identifier")
		}
		l.pos += end + 1
		return l.emit(Ident, start, space)
	case c == '.':
		l.pos++
		return l.emit(Dot, start, space)
	case c == ',':
		l.pos++
		return l.emit(Comma, start, space)
	case c == '(':
		l.pos++
		return l.emit(LParen, start, space)
	case c == ')':
		l.pos++
		return l.emit(RParen, start, space)
	case c == ':':
		l.pos++
		return l.emit(Colon, start, space)
	case strings.IndexByte("+-*/\\^&=<>", c) >= 0:
		l.pos++
		n := l.peekAt(0)
		if (c == '<' && (n == '>' || n == '=')) || (c == '>' && n == '=') || (c == '=' && (n == '<' || n == '>')) {
			l.pos++
		}
		return l.emit(Operator, start, space)
	}

	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	return l.illegal(start, fmt.Sprintf("unexpected character %q", r))
}

// continuation consumes "_" followed by blanks and a line break.
func (l *lexer) continuation() bool {
	i := l.pos + 1
	for i < len(l.src) && (l.src[i] == ' ' || l.src[i] == '\t') {
		i++
	}
	switch {
	case strings.HasPrefix(l.src[i:], "\r\n"):
		i += 2
	case i < len(l.src) && (l.src[i] == '\n' || l.src[i] == '\r'):
		i++
	default:
		return false
	}
	l.pos = i
	return true
}

// atRem reports a REM comment keyword at the cursor.
func (l *lexer) atRem() bool {
	if !hasPrefixFold(l.src[l.pos:], "rem") {
		return false
	}
	if l.pos > 0 && l.src[l.pos-1] == '.' {
		return false
	}
	after := l.peekAt(3)
	return after == 0 || !isIdentChar(after)
}

// skipComment stops before the line break or the closing delimiter of the
// current region, which both still terminate the statement.
func (l *lexer) skipComment() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '\n' || c == '\r' {
			return
		}
		if l.mode == modeBlock && c == '%' && l.peekAt(1) == '>' {
			return
		}
		if l.mode == modeScript && c == '<' && hasPrefixFold(l.src[l.pos:], "</script") {
			return
		}
		l.pos++
	}
}

func (l *lexer) lexString(space bool) Token {
	start := l.pos
	l.pos++
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case '"':
			if l.peekAt(1) == '"' {
				l.pos += 2
				continue
			}
			l.pos++
			return l.emit(String, start, space)
		case '\n', '\r':
			return l.illegal(start, "unterminated string literal")
		}
		l.pos++
	}
	return l.illegal(start, "unterminated string literal")
}

func (l *lexer) lexDate(space bool) Token {
	start := l.pos
	end := strings.IndexAny(l.src[l.pos+1:], "#\r\n")
	if end <= 0 || l.src[l.pos+1+end] != '#' {
		return l.illegal(start, "unterminated date literal")
	}
	l.pos += end + 2
	return l.emit(Date, start, space)
}

func (l *lexer) lexNumber(space bool) Token {
	start := l.pos
	l.skipDigits()
	if l.peekAt(0) == '.' && isDigit(l.peekAt(1)) {
		l.pos++
		l.skipDigits()
	}
	if c := l.peekAt(0); c == 'e' || c == 'E' {
		i := 1
		if s := l.peekAt(1); s == '+' || s == '-' {
			i++
		}
		if isDigit(l.peekAt(i)) {
			l.pos += i
			l.skipDigits()
		}
	}
	return l.emit(Number, start, space)
}

func (l *lexer) skipDigits() {
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.pos++
	}
}

func (l *lexer) atRadix() bool {
	switch l.peekAt(1) {
	case 'h', 'H':
		return isHexDigit(l.peekAt(2))
	case 'o', 'O':
		return isOctDigit(l.peekAt(2))
	}
	return false
}

func (l *lexer) lexRadix(space bool) Token {
	start := l.pos
	hex := l.peekAt(1) == 'h' || l.peekAt(1) == 'H'
	l.pos += 2
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if (hex && !isHexDigit(c)) || (!hex && !isOctDigit(c)) {
			break
		}
		l.pos++
	}
	if l.peekAt(0) == '&' {
		l.pos++
	}
	return l.emit(Number, start, space)
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func isLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func isOctDigit(c byte) bool {
	return '0' <= c && c <= '7'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '_'
}
