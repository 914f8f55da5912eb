// Package binding parses binding expressions: field keys joined with '+'
// (AND) and '|' (OR), grouped with parentheses. OR binds loosest.
//
//	Or      := And ('|' And)*
//	And     := Primary ('+' Primary)*
//	Primary := '(' Or ')' | FieldName
//
// The whole input must be consumed: trailing text such as "a)" or "a b" is a
// parse error, not ignored.
package binding

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	qerrors "github.com/nonibytes/qfilter/qfilter/errors"
)

// Parse parses a binding expression into an AST.
func Parse(input string) (Expr, error) {
	p := &parser{input: input}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	p.skipWhitespace()
	if p.pos < len(p.input) {
		r, _ := utf8.DecodeRuneInString(p.input[p.pos:])
		return nil, qerrors.ParseError(fmt.Sprintf("unexpected character %q", r), p.pos)
	}
	return expr, nil
}

type parser struct {
	input string
	// pos only moves forward.
	pos int
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.match(byte(OpOr)) {
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: OpOr, Left: left, Right: right}
	}

	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for p.match(byte(OpAnd)) {
		p.pos++
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: OpAnd, Left: left, Right: right}
	}

	return left, nil
}

func (p *parser) parsePrimary() (Expr, error) {
	p.skipWhitespace()

	if p.pos < len(p.input) && p.input[p.pos] == '(' {
		open := p.pos
		p.pos++
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.match(')') {
			return nil, qerrors.ParseError(fmt.Sprintf("missing closing parenthesis for '(' at %d", open), p.pos)
		}
		p.pos++
		return expr, nil
	}

	return p.parseField()
}

func (p *parser) parseField() (Expr, error) {
	start := p.pos
	for p.pos < len(p.input) {
		r, size := utf8.DecodeRuneInString(p.input[p.pos:])
		if isFieldTerminator(r) {
			break
		}
		p.pos += size
	}
	if start == p.pos {
		return nil, qerrors.ParseError("expected field name", p.pos)
	}
	return Field{Name: p.input[start:p.pos]}, nil
}

// match skips whitespace and reports whether the next byte is c.
func (p *parser) match(c byte) bool {
	p.skipWhitespace()
	return p.pos < len(p.input) && p.input[p.pos] == c
}

func (p *parser) skipWhitespace() {
	for p.pos < len(p.input) {
		r, size := utf8.DecodeRuneInString(p.input[p.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		p.pos += size
	}
}

func isFieldTerminator(r rune) bool {
	return r == rune(OpAnd) || r == rune(OpOr) || r == ')' || unicode.IsSpace(r)
}
