package grammar

import (
	"fmt"
	"strings"
)

// Kind identifies the lexical class of a Token
type Kind int

const (
	EOF Kind = iota
	Illegal
	HTML          // literal markup between server blocks
	Include       // <!--#include file="..."-->
	OpenBlock     // <%
	OpenExpr      // <%=
	OpenDirective // <%@
	CloseBlock    // %>
	OpenScript    // <script runat="server">
	CloseScript   // </script>
	Newline
	Colon
	Ident
	Number
	String
	Date
	Dot
	Comma
	LParen
	RParen
	Operator
)

var kindNames = map[Kind]string{
	EOF:           "end of input",
	Illegal:       "illegal token",
	HTML:          "markup",
	Include:       "include directive",
	OpenBlock:     "'<%'",
	OpenExpr:      "'<%='",
	OpenDirective: "'<%@'",
	CloseBlock:    "'%>'",
	OpenScript:    "'<script>'",
	CloseScript:   "'</script>'",
	Newline:       "end of line",
	Colon:         "':'",
	Ident:         "identifier",
	Number:        "number",
	String:        "string literal",
	Date:          "date literal",
	Dot:           "'.'",
	Comma:         "','",
	LParen:        "'('",
	RParen:        "')'",
	Operator:      "operator",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token is a lexeme with its byte span in the source.
type Token struct {
	Kind   Kind
	Text   string
	Offset int
	End    int
	// Space reports whether blanks separate this token from the previous one.
	Space bool
	// Err carries the lexer's explanation for Illegal tokens.
	Err string
	// Rule, when set on an Illegal token, names the rule the lexer was
	// looking for and replaces the parser's own expectation.
	Rule string
}

// describe renders the token for "found ..." messages.
func (t Token) describe() string {
	switch t.Kind {
	case Ident, Operator:
		return fmt.Sprintf("'%s'", t.Text)
	default:
		return t.Kind.String()
	}
}

// reserved words cannot name variables or procedures.
var reserved = map[string]bool{
	"and": true, "byref": true, "byval": true, "call": true, "case": true,
	"class": true, "const": true, "dim": true, "do": true, "each": true,
	"else": true, "elseif": true, "empty": true, "end": true, "eqv": true,
	"erase": true, "exit": true, "false": true, "for": true, "function": true,
	"goto": true, "if": true, "imp": true, "in": true, "is": true,
	"let": true, "loop": true, "mod": true, "new": true, "next": true,
	"not": true, "nothing": true, "null": true, "on": true, "option": true,
	"or": true, "preserve": true, "private": true, "property": true, "public": true,
	"redim": true, "rem": true, "resume": true, "select": true, "set": true,
	"stop": true, "sub": true, "then": true, "to": true, "true": true,
	"until": true, "wend": true, "while": true, "with": true, "xor": true,
}

// IsReserved reports whether word is a VBScript reserved word.
func IsReserved(word string) bool {
	return reserved[strings.ToLower(word)]
}
