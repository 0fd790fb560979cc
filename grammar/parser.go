package grammar

import "strings"

// Mode selects how the input starts.
type Mode int

const (
	// Page is markup with embedded <% %> blocks (.asp, .asa, .inc).
	Page Mode = iota
	// Script is bare VBScript without delimiters (.vbs).
	Script
)

// Parse checks src against the ASP/VBScript grammar. It returns nil when
// the whole input matches, or a *SyntaxError for the first mismatch.
func Parse(src string, mode Mode) error {
	return newParser(src, mode).parseFile()
}

type scope int

const (
	scopeFor scope = iota
	scopeDo
	scopeSub
	scopeFunction
	scopeProperty
	scopeClass
)

type parser struct {
	src    string
	lx     *lexer
	tok    Token
	ahead  []Token
	scopes []scope
}

func newParser(src string, mode Mode) *parser {
	p := &parser{src: src, lx: newLexer(src, mode == Script)}
	p.advance()
	return p
}

func (p *parser) advance() {
	if len(p.ahead) > 0 {
		p.tok = p.ahead[0]
		p.ahead = p.ahead[1:]
		return
	}
	p.tok = p.lx.next()
}

func (p *parser) peek() Token {
	if len(p.ahead) == 0 {
		p.ahead = append(p.ahead, p.lx.next())
	}
	return p.ahead[0]
}

func (p *parser) errorAt(tok Token, rule, reason string) error {
	line, col := NewLineIndex(p.src).Position(tok.Offset)
	return &SyntaxError{
		Offset:   tok.Offset,
		Line:     line,
		Column:   col,
		Expected: rule,
		Found:    tok.describe(),
		Reason:   reason,
	}
}

// expected reports that the current token cannot start rule.
func (p *parser) expected(rule string) error {
	if p.tok.Kind == Illegal {
		if p.tok.Rule != "" {
			rule = p.tok.Rule
		}
		return p.errorAt(p.tok, rule, p.tok.Err)
	}
	return p.errorAt(p.tok, rule, "")
}

// unexpectedEOF prefers a missing closing delimiter over the missing rule,
// since the delimiter is what the input lacks first.
func (p *parser) unexpectedEOF(rule string) error {
	switch p.lx.mode {
	case modeBlock:
		return p.expected("asp_close_tag")
	case modeScript:
		return p.expected("script_close_tag")
	}
	return p.expected(rule)
}

func (p *parser) isKw(word string) bool {
	return p.tok.Kind == Ident && strings.EqualFold(p.tok.Text, word)
}

func (p *parser) isOp(op string) bool {
	return p.tok.Kind == Operator && p.tok.Text == op
}

func (p *parser) atEnd(word string) bool {
	if !p.isKw("end") {
		return false
	}
	next := p.peek()
	return next.Kind == Ident && strings.EqualFold(next.Text, word)
}

func (p *parser) expectKw(word string) error {
	if !p.isKw(word) {
		return p.expected(word)
	}
	p.advance()
	return nil
}

func (p *parser) expectKind(kind Kind, rule string) error {
	if p.tok.Kind != kind {
		return p.expected(rule)
	}
	p.advance()
	return nil
}

func (p *parser) expectOp(op string) error {
	if !p.isOp(op) {
		return p.expected("'" + op + "'")
	}
	p.advance()
	return nil
}

func (p *parser) expectEnd(word string) error {
	if !p.atEnd(word) {
		return p.expected("end_" + word)
	}
	p.advance()
	p.advance()
	return nil
}

func (p *parser) expectName() error {
	if p.tok.Kind != Ident || IsReserved(p.tok.Text) {
		return p.expected("identifier")
	}
	p.advance()
	return nil
}

func (p *parser) expectMember() error {
	if p.tok.Kind != Ident {
		return p.expected("member_name")
	}
	p.advance()
	return nil
}

func (p *parser) in(s scope) bool {
	for _, open := range p.scopes {
		if open == s {
			return true
		}
	}
	return false
}

func (p *parser) push(s scope) { p.scopes = append(p.scopes, s) }
func (p *parser) pop()         { p.scopes = p.scopes[:len(p.scopes)-1] }

func (p *parser) parseFile() error {
	return p.parseBlock("", nil)
}

// separator consumes one token or output block that may sit between
// statements and reports whether it did.
func (p *parser) separator() (bool, error) {
	switch p.tok.Kind {
	case Newline, Colon, HTML, Include, OpenBlock, CloseBlock, OpenScript, CloseScript:
		p.advance()
		return true, nil
	case OpenExpr:
		return true, p.parseOutput()
	case OpenDirective:
		return true, p.parseDirective()
	}
	return false, nil
}

// parseBlock parses statements until done reports a terminator. rule names
// the terminator for errors at end of input; an empty rule means the block
// may run to the end.
func (p *parser) parseBlock(rule string, done func() bool) error {
	for {
		ok, err := p.separator()
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if p.tok.Kind == EOF {
			if rule == "" && !p.lx.inDelimitedCode() {
				return nil
			}
			return p.unexpectedEOF(rule)
		}
		if done != nil && done() {
			return nil
		}
		if err := p.parseStatement(); err != nil {
			return err
		}
		if err := p.endOfStatement(); err != nil {
			return err
		}
	}
}

func (p *parser) endOfStatement() error {
	switch p.tok.Kind {
	case Newline, Colon, CloseBlock, CloseScript, EOF:
		return nil
	}
	return p.expected("end_of_statement")
}

func (p *parser) atLineEnd() bool {
	switch p.tok.Kind {
	case Newline, CloseBlock, CloseScript, EOF:
		return true
	}
	return false
}

// parseOutput reads <%= expression %>.
func (p *parser) parseOutput() error {
	p.advance()
	if err := p.parseExpr(); err != nil {
		return err
	}
	for p.tok.Kind == Newline {
		p.advance()
	}
	return p.expectKind(CloseBlock, "asp_close_tag")
}

// parseDirective reads <%@ Name=Value ... %>.
func (p *parser) parseDirective() error {
	p.advance()
	attrs := 0
	for {
		for p.tok.Kind == Newline {
			p.advance()
		}
		if p.tok.Kind != Ident {
			break
		}
		p.advance()
		if err := p.expectOp("="); err != nil {
			return err
		}
		switch p.tok.Kind {
		case String, Ident, Number:
			p.advance()
		default:
			return p.expected("directive_value")
		}
		attrs++
	}
	if attrs == 0 {
		return p.expected("directive_attribute")
	}
	return p.expectKind(CloseBlock, "asp_close_tag")
}
