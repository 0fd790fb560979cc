package grammar

import "strings"

func (p *parser) parseStatement() error {
	if p.tok.Kind == Dot {
		return p.parseAssignOrCall()
	}
	if p.tok.Kind != Ident {
		return p.expected("statement")
	}

	switch strings.ToLower(p.tok.Text) {
	case "dim":
		p.advance()
		return p.parseVarList()
	case "redim":
		return p.parseReDim()
	case "const":
		p.advance()
		return p.parseConstList()
	case "public", "private":
		return p.parseMemberDecl()
	case "set", "let":
		p.advance()
		return p.parseAssignment()
	case "call":
		p.advance()
		return p.parseTarget()
	case "if":
		return p.parseIf()
	case "select":
		return p.parseSelect()
	case "for":
		return p.parseFor()
	case "do":
		return p.parseDo()
	case "while":
		return p.parseWhile()
	case "exit":
		return p.parseExit()
	case "sub", "function":
		return p.parseProcedure()
	case "property":
		return p.parseProperty()
	case "class":
		return p.parseClass()
	case "with":
		return p.parseWith()
	case "on":
		return p.parseOnError()
	case "option":
		p.advance()
		return p.expectKw("explicit")
	case "erase":
		p.advance()
		return p.expectName()
	case "stop":
		p.advance()
		return nil
	}

	if IsReserved(p.tok.Text) {
		return p.expected("statement")
	}
	return p.parseAssignOrCall()
}

// parseAssignOrCall handles the statements that start with a name:
// assignments, calls with parenthesized arguments and calls with a bare
// argument list such as Response.Write "x", y.
func (p *parser) parseAssignOrCall() error {
	if err := p.parseTarget(); err != nil {
		return err
	}
	switch {
	case p.isOp("="):
		p.advance()
		return p.parseExpr()
	case p.tok.Kind == Comma:
		return p.parseArgTail()
	case p.canStartArgument():
		if err := p.parseExpr(); err != nil {
			return err
		}
		return p.parseArgTail()
	}
	// Foo (a) & b: the parenthesized group was the first operand.
	if _, ok := p.binaryPrec(); ok {
		if err := p.parseBinaryTail(precImp); err != nil {
			return err
		}
		return p.parseArgTail()
	}
	return nil
}

func (p *parser) parseArgTail() error {
	for p.tok.Kind == Comma {
		p.advance()
		if p.canStartArgument() {
			if err := p.parseExpr(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *parser) parseAssignment() error {
	if err := p.parseTarget(); err != nil {
		return err
	}
	if err := p.expectOp("="); err != nil {
		return err
	}
	return p.parseExpr()
}

func (p *parser) parseVarList() error {
	for {
		if err := p.expectName(); err != nil {
			return err
		}
		if p.tok.Kind == LParen {
			if err := p.parseBounds(); err != nil {
				return err
			}
		}
		if p.tok.Kind != Comma {
			return nil
		}
		p.advance()
	}
}

// parseBounds reads a fixed array declaration; VBScript only accepts
// integer constants here.
func (p *parser) parseBounds() error {
	p.advance()
	if p.tok.Kind != RParen {
		for {
			if err := p.expectKind(Number, "integer_constant"); err != nil {
				return err
			}
			if p.tok.Kind != Comma {
				break
			}
			p.advance()
		}
	}
	return p.expectKind(RParen, "')'")
}

func (p *parser) parseReDim() error {
	p.advance()
	if p.isKw("preserve") {
		p.advance()
	}
	for {
		if err := p.expectName(); err != nil {
			return err
		}
		if err := p.expectKind(LParen, "'('"); err != nil {
			return err
		}
		for {
			if err := p.parseExpr(); err != nil {
				return err
			}
			if p.tok.Kind != Comma {
				break
			}
			p.advance()
		}
		if err := p.expectKind(RParen, "')'"); err != nil {
			return err
		}
		if p.tok.Kind != Comma {
			return nil
		}
		p.advance()
	}
}

func (p *parser) parseConstList() error {
	for {
		if err := p.expectName(); err != nil {
			return err
		}
		if err := p.expectOp("="); err != nil {
			return err
		}
		if err := p.parseExpr(); err != nil {
			return err
		}
		if p.tok.Kind != Comma {
			return nil
		}
		p.advance()
	}
}

// parseMemberDecl handles the Public and Private prefixes.
func (p *parser) parseMemberDecl() error {
	p.advance()
	if p.isKw("default") {
		p.advance()
		if !p.isKw("function") && !p.isKw("sub") && !p.isKw("property") {
			return p.expected("procedure")
		}
	}
	switch {
	case p.isKw("sub"), p.isKw("function"):
		return p.parseProcedure()
	case p.isKw("property"):
		return p.parseProperty()
	case p.isKw("const"):
		p.advance()
		return p.parseConstList()
	}
	return p.parseVarList()
}

func (p *parser) canDeclareProcedure() bool {
	return len(p.scopes) == 0 || (len(p.scopes) == 1 && p.scopes[0] == scopeClass)
}

func (p *parser) parseProcedure() error {
	kind, word := scopeSub, "sub"
	if p.isKw("function") {
		kind, word = scopeFunction, "function"
	}
	if !p.canDeclareProcedure() {
		return p.errorAt(p.tok, "statement", "procedure declarations cannot be nested")
	}
	p.advance()
	if err := p.expectName(); err != nil {
		return err
	}
	if err := p.parseParams(); err != nil {
		return err
	}
	if err := p.endOfStatement(); err != nil {
		return err
	}
	return p.parseBody(kind, word)
}

func (p *parser) parseProperty() error {
	if !p.in(scopeClass) || !p.canDeclareProcedure() {
		return p.errorAt(p.tok, "statement", "property declarations are only valid inside a class")
	}
	p.advance()
	if !p.isKw("get") && !p.isKw("let") && !p.isKw("set") {
		return p.expected("property_accessor")
	}
	p.advance()
	if err := p.expectName(); err != nil {
		return err
	}
	if err := p.parseParams(); err != nil {
		return err
	}
	if err := p.endOfStatement(); err != nil {
		return err
	}
	return p.parseBody(scopeProperty, "property")
}

func (p *parser) parseBody(s scope, word string) error {
	p.push(s)
	err := p.parseBlock("end_"+word, func() bool { return p.atEnd(word) })
	p.pop()
	if err != nil {
		return err
	}
	return p.expectEnd(word)
}

func (p *parser) parseParams() error {
	if p.tok.Kind != LParen {
		return nil
	}
	p.advance()
	if p.tok.Kind == RParen {
		p.advance()
		return nil
	}
	for {
		if p.isKw("byval") || p.isKw("byref") {
			p.advance()
		}
		if err := p.expectName(); err != nil {
			return err
		}
		if p.tok.Kind == LParen {
			p.advance()
			if err := p.expectKind(RParen, "')'"); err != nil {
				return err
			}
		}
		if p.tok.Kind != Comma {
			break
		}
		p.advance()
	}
	return p.expectKind(RParen, "')'")
}

func (p *parser) parseClass() error {
	if len(p.scopes) > 0 {
		return p.errorAt(p.tok, "statement", "class declarations must be at the top level")
	}
	p.advance()
	if err := p.expectName(); err != nil {
		return err
	}
	if err := p.endOfStatement(); err != nil {
		return err
	}

	p.push(scopeClass)
	defer p.pop()
	for {
		ok, err := p.separator()
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if p.tok.Kind == EOF {
			return p.unexpectedEOF("end_class")
		}
		if p.atEnd("class") {
			break
		}
		if err := p.parseClassMember(); err != nil {
			return err
		}
		if err := p.endOfStatement(); err != nil {
			return err
		}
	}
	return p.expectEnd("class")
}

func (p *parser) parseClassMember() error {
	switch {
	case p.isKw("dim"):
		p.advance()
		return p.parseVarList()
	case p.isKw("public"), p.isKw("private"):
		return p.parseMemberDecl()
	case p.isKw("sub"), p.isKw("function"):
		return p.parseProcedure()
	case p.isKw("property"):
		return p.parseProperty()
	case p.isKw("const"):
		p.advance()
		return p.parseConstList()
	}
	return p.expected("class_member")
}

func (p *parser) parseIf() error {
	p.advance()
	if err := p.parseExpr(); err != nil {
		return err
	}
	if err := p.expectKw("then"); err != nil {
		return err
	}
	if p.atLineEnd() {
		return p.parseIfBlock()
	}
	return p.parseIfLine()
}

func (p *parser) parseIfBlock() error {
	branchEnd := func() bool {
		return p.isKw("elseif") || p.isKw("else") || p.atEnd("if")
	}
	if err := p.parseBlock("end_if", branchEnd); err != nil {
		return err
	}
	for p.isKw("elseif") {
		p.advance()
		if err := p.parseExpr(); err != nil {
			return err
		}
		if err := p.expectKw("then"); err != nil {
			return err
		}
		if err := p.parseBlock("end_if", branchEnd); err != nil {
			return err
		}
	}
	if p.isKw("else") {
		p.advance()
		if err := p.parseBlock("end_if", func() bool { return p.atEnd("if") }); err != nil {
			return err
		}
	}
	return p.expectEnd("if")
}

// parseIfLine reads the single-line form: If c Then a : b Else d.
func (p *parser) parseIfLine() error {
	if err := p.parseLineStatements(); err != nil {
		return err
	}
	if p.isKw("else") {
		p.advance()
		return p.parseLineStatements()
	}
	return nil
}

func (p *parser) parseLineStatements() error {
	for {
		if err := p.parseStatement(); err != nil {
			return err
		}
		if p.tok.Kind != Colon {
			break
		}
		p.advance()
		if p.atLineEnd() || p.isKw("else") {
			return nil
		}
	}
	if p.atLineEnd() || p.isKw("else") {
		return nil
	}
	return p.expected("end_of_statement")
}

func (p *parser) parseSelect() error {
	p.advance()
	if err := p.expectKw("case"); err != nil {
		return err
	}
	if err := p.parseExpr(); err != nil {
		return err
	}
	if err := p.endOfStatement(); err != nil {
		return err
	}

	caseEnd := func() bool { return p.isKw("case") || p.atEnd("select") }
	for {
		ok, err := p.separator()
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if p.tok.Kind == EOF {
			return p.unexpectedEOF("end_select")
		}
		if p.atEnd("select") {
			break
		}
		if err := p.expectKw("case"); err != nil {
			return err
		}
		if p.isKw("else") {
			p.advance()
			if err := p.parseBlock("end_select", func() bool { return p.atEnd("select") }); err != nil {
				return err
			}
			break
		}
		if err := p.parseCaseList(); err != nil {
			return err
		}
		if err := p.endOfStatement(); err != nil {
			return err
		}
		if err := p.parseBlock("end_select", caseEnd); err != nil {
			return err
		}
	}
	return p.expectEnd("select")
}

func (p *parser) parseCaseList() error {
	for {
		if p.isKw("is") {
			p.advance()
			if p.tok.Kind != Operator || !comparisonOps[p.tok.Text] {
				return p.expected("comparison_operator")
			}
			p.advance()
			if err := p.parseExpr(); err != nil {
				return err
			}
		} else {
			if err := p.parseExpr(); err != nil {
				return err
			}
			if p.isKw("to") {
				p.advance()
				if err := p.parseExpr(); err != nil {
					return err
				}
			}
		}
		if p.tok.Kind != Comma {
			return nil
		}
		p.advance()
	}
}

func (p *parser) parseFor() error {
	p.advance()
	if p.isKw("each") {
		p.advance()
		if err := p.expectName(); err != nil {
			return err
		}
		if err := p.expectKw("in"); err != nil {
			return err
		}
		if err := p.parseExpr(); err != nil {
			return err
		}
	} else {
		if err := p.expectName(); err != nil {
			return err
		}
		if err := p.expectOp("="); err != nil {
			return err
		}
		if err := p.parseExpr(); err != nil {
			return err
		}
		if err := p.expectKw("to"); err != nil {
			return err
		}
		if err := p.parseExpr(); err != nil {
			return err
		}
		if p.isKw("step") {
			p.advance()
			if err := p.parseExpr(); err != nil {
				return err
			}
		}
	}
	if err := p.endOfStatement(); err != nil {
		return err
	}

	p.push(scopeFor)
	err := p.parseBlock("next", func() bool { return p.isKw("next") })
	p.pop()
	if err != nil {
		return err
	}
	p.advance()
	if p.tok.Kind == Ident && !IsReserved(p.tok.Text) {
		p.advance()
	}
	return nil
}

func (p *parser) parseDo() error {
	p.advance()
	tested := false
	if p.isKw("while") || p.isKw("until") {
		p.advance()
		if err := p.parseExpr(); err != nil {
			return err
		}
		tested = true
	}
	if err := p.endOfStatement(); err != nil {
		return err
	}

	p.push(scopeDo)
	err := p.parseBlock("loop", func() bool { return p.isKw("loop") })
	p.pop()
	if err != nil {
		return err
	}
	p.advance()
	if !tested && (p.isKw("while") || p.isKw("until")) {
		p.advance()
		return p.parseExpr()
	}
	return nil
}

func (p *parser) parseWhile() error {
	p.advance()
	if err := p.parseExpr(); err != nil {
		return err
	}
	if err := p.endOfStatement(); err != nil {
		return err
	}
	if err := p.parseBlock("wend", func() bool { return p.isKw("wend") }); err != nil {
		return err
	}
	p.advance()
	return nil
}

var exitTargets = map[string]scope{
	"for":      scopeFor,
	"do":       scopeDo,
	"sub":      scopeSub,
	"function": scopeFunction,
	"property": scopeProperty,
}

func (p *parser) parseExit() error {
	exit := p.tok
	p.advance()
	if p.tok.Kind != Ident {
		return p.expected("exit_target")
	}
	target, ok := exitTargets[strings.ToLower(p.tok.Text)]
	if !ok {
		return p.expected("exit_target")
	}
	if !p.in(target) {
		return p.errorAt(exit, "statement", "invalid 'exit' statement")
	}
	p.advance()
	return nil
}

func (p *parser) parseWith() error {
	p.advance()
	if err := p.parseExpr(); err != nil {
		return err
	}
	if err := p.endOfStatement(); err != nil {
		return err
	}
	if err := p.parseBlock("end_with", func() bool { return p.atEnd("with") }); err != nil {
		return err
	}
	return p.expectEnd("with")
}

// parseOnError accepts the two forms VBScript supports: Resume Next and
// GoTo 0.
func (p *parser) parseOnError() error {
	p.advance()
	if err := p.expectKw("error"); err != nil {
		return err
	}
	switch {
	case p.isKw("resume"):
		p.advance()
		return p.expectKw("next")
	case p.isKw("goto"):
		p.advance()
		if p.tok.Kind != Number || p.tok.Text != "0" {
			return p.expected("0")
		}
		p.advance()
		return nil
	}
	return p.expected("resume_next_or_goto_0")
}
