package grammar

import "strings"

// Operator precedence, lowest first.
const (
	precImp = iota + 1
	precEqv
	precXor
	precOr
	precAnd
	precNot
	precCompare
	precConcat
	precAdd
	precMod
	precIntDiv
	precMul
	precUnary
	precPow
)

var comparisonOps = map[string]bool{
	"=": true, "<>": true, "<": true, ">": true,
	"<=": true, ">=": true, "=<": true, "=>": true,
}

var symbolPrec = map[string]int{
	"^": precPow,
	"*": precMul, "/": precMul,
	"\\": precIntDiv,
	"+":  precAdd, "-": precAdd,
	"&": precConcat,
}

var keywordPrec = map[string]int{
	"mod": precMod,
	"is":  precCompare,
	"and": precAnd,
	"or":  precOr,
	"xor": precXor,
	"eqv": precEqv,
	"imp": precImp,
}

// binaryPrec returns the precedence of the current token as a binary
// operator.
func (p *parser) binaryPrec() (int, bool) {
	switch p.tok.Kind {
	case Operator:
		if comparisonOps[p.tok.Text] {
			return precCompare, true
		}
		prec, ok := symbolPrec[p.tok.Text]
		return prec, ok
	case Ident:
		prec, ok := keywordPrec[strings.ToLower(p.tok.Text)]
		return prec, ok
	}
	return 0, false
}

func (p *parser) parseExpr() error {
	return p.parseBinary(precImp)
}

func (p *parser) parseBinary(min int) error {
	if err := p.parseUnary(); err != nil {
		return err
	}
	return p.parseBinaryTail(min)
}

func (p *parser) parseBinaryTail(min int) error {
	for {
		prec, ok := p.binaryPrec()
		if !ok || prec < min {
			return nil
		}
		p.advance()
		// ^ is left associative in VBScript, like every other operator.
		if err := p.parseBinary(prec + 1); err != nil {
			return err
		}
	}
}

func (p *parser) parseUnary() error {
	switch {
	case p.isKw("not"):
		p.advance()
		return p.parseBinary(precCompare)
	case p.isOp("-"), p.isOp("+"):
		p.advance()
		return p.parseBinary(precPow)
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() error {
	switch p.tok.Kind {
	case Number, String, Date:
		p.advance()
		return nil
	case LParen:
		p.advance()
		if err := p.parseExpr(); err != nil {
			return err
		}
		if err := p.expectKind(RParen, "')'"); err != nil {
			return err
		}
		return p.parsePostfix()
	case Dot:
		return p.parseTarget()
	case Ident:
		switch strings.ToLower(p.tok.Text) {
		case "true", "false", "nothing", "null", "empty":
			p.advance()
			return nil
		case "new":
			p.advance()
			return p.expectName()
		}
		if IsReserved(p.tok.Text) {
			return p.expected("expression")
		}
		return p.parseTarget()
	}
	return p.expected("expression")
}

// parseTarget reads a name or a With-relative member, followed by any
// member accesses and argument lists.
func (p *parser) parseTarget() error {
	switch {
	case p.tok.Kind == Dot:
		p.advance()
		if err := p.expectMember(); err != nil {
			return err
		}
	case p.tok.Kind == Ident && !IsReserved(p.tok.Text):
		p.advance()
	default:
		return p.expected("identifier")
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() error {
	for {
		switch {
		case p.tok.Kind == LParen:
			if err := p.parseCallArgs(); err != nil {
				return err
			}
		case p.tok.Kind == Dot && !p.tok.Space:
			p.advance()
			if err := p.expectMember(); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// parseCallArgs reads a parenthesized argument list. Arguments may be
// omitted, as in Foo(, 2).
func (p *parser) parseCallArgs() error {
	p.advance()
	for {
		if p.tok.Kind != Comma && p.tok.Kind != RParen {
			if err := p.parseExpr(); err != nil {
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

// canStartArgument reports whether the current token can begin an
// argument of a call statement without parentheses.
func (p *parser) canStartArgument() bool {
	switch p.tok.Kind {
	case Number, String, Date, LParen, Dot:
		return true
	case Operator:
		return p.tok.Text == "-" || p.tok.Text == "+"
	case Ident:
		switch strings.ToLower(p.tok.Text) {
		case "true", "false", "nothing", "null", "empty", "new", "not":
			return true
		}
		return !IsReserved(p.tok.Text)
	}
	return false
}
