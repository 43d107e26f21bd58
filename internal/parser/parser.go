// Package parser builds procedure-body ASTs from lexer tokens.
package parser

import (
	"fmt"

	"avulto/internal/ast"
	"avulto/internal/constant"
	"avulto/internal/dmerr"
	"avulto/internal/dmpath"
	"avulto/internal/interpolation"
	"avulto/internal/lexer"
	"avulto/internal/source"
)

// Parser is a recursive-descent parser over a token slice. The slice may
// or may not end in an EOF token.
type Parser struct {
	toks []lexer.Token
	pos  int
	// ternary counts open "?" branches, where a:b is never a field access.
	ternary int
}

// New returns a parser positioned at the first token.
func New(toks []lexer.Token) *Parser {
	return &Parser{toks: toks}
}

// ParseBody parses a sequence of statements.
func ParseBody(toks []lexer.Token) ([]ast.Statement, error) {
	return New(toks).statementsUntil(false)
}

// ParseExpr parses toks as exactly one expression.
func ParseExpr(toks []lexer.Token) (ast.Expression, error) {
	p := New(toks)
	e, err := p.Expression()
	if err != nil {
		return nil, err
	}
	if !p.AtEnd() {
		return nil, p.unexpected(p.peek())
	}
	return e, nil
}

// ParseExpression lexes and parses a standalone expression.
func ParseExpression(file, src string) (ast.Expression, error) {
	toks, err := lexer.ScanAll(file, src)
	if err != nil {
		return nil, err
	}
	return ParseExpr(toks)
}

// ParseStatements lexes src with indentation rules and parses it as a body.
func ParseStatements(file, src string) ([]ast.Statement, error) {
	toks, err := lexer.Tokens(file, src)
	if err != nil {
		return nil, err
	}
	return ParseBody(toks)
}

// AtEnd reports whether every token has been consumed.
func (p *Parser) AtEnd() bool {
	return p.peek().Kind == lexer.EOF
}

func (p *Parser) peekN(n int) lexer.Token {
	if i := p.pos + n; i < len(p.toks) {
		return p.toks[i]
	}
	var loc source.Location
	if len(p.toks) > 0 {
		loc = p.toks[len(p.toks)-1].Loc
	}
	return lexer.Token{Kind: lexer.EOF, Loc: loc}
}

func (p *Parser) peek() lexer.Token { return p.peekN(0) }

func (p *Parser) next() lexer.Token {
	tok := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return tok
}

func (p *Parser) accept(punct string) bool {
	if p.peek().Is(punct) {
		p.pos++
		return true
	}
	return false
}

func (p *Parser) acceptIdent(name string) bool {
	if p.peek().IsIdent(name) {
		p.pos++
		return true
	}
	return false
}

func (p *Parser) expect(punct string) (lexer.Token, error) {
	tok := p.peek()
	if !tok.Is(punct) {
		return tok, dmerr.Parse(tok.Loc, "expected %q, found %s", punct, describe(tok))
	}
	p.pos++
	return tok, nil
}

func (p *Parser) ident() (lexer.Token, error) {
	tok := p.peek()
	if tok.Kind != lexer.Ident {
		return tok, dmerr.Parse(tok.Loc, "expected identifier, found %s", describe(tok))
	}
	p.pos++
	return tok, nil
}

func (p *Parser) unexpected(tok lexer.Token) error {
	return dmerr.Parse(tok.Loc, "unexpected %s", describe(tok))
}

func describe(tok lexer.Token) string {
	switch tok.Kind {
	case lexer.EOF, lexer.FileEnd:
		return "end of input"
	case lexer.Punct:
		if tok.Virtual {
			switch tok.Text {
			case ";":
				return "end of line"
			case "{":
				return "indented block"
			case "}":
				return "end of block"
			}
		}
		return fmt.Sprintf("%q", tok.Text)
	default:
		return fmt.Sprintf("%s %s", tok.Kind, tok)
	}
}

// endOfStatement reports whether the next token terminates a statement.
func (p *Parser) endOfStatement() bool {
	tok := p.peek()
	return tok.Kind == lexer.EOF || tok.Is(";") || tok.Is("}")
}

// pathSegments reads ident ("/" ident)*, with an optional leading "/".
func (p *Parser) pathSegments() ([]string, error) {
	p.accept("/")
	first, err := p.ident()
	if err != nil {
		return nil, err
	}
	segs := []string{first.Text}
	for p.peek().Is("/") && p.peekN(1).Kind == lexer.Ident {
		p.pos++
		segs = append(segs, p.next().Text)
	}
	return segs, nil
}

// varModifiers are keywords that may precede a variable's type.
var varModifiers = map[string]bool{
	"static": true, "global": true, "const": true, "tmp": true, "final": true,
}

// SplitVarSegments separates var/<modifiers>/<type>/<name> segments
// (without the leading "var") into modifiers, type path and name.
func SplitVarSegments(segs []string) (mods []string, typ dmpath.Path, name string) {
	if len(segs) == 0 {
		return nil, dmpath.Root(), ""
	}
	rest := segs[:len(segs)-1]
	for len(rest) > 0 && varModifiers[rest[0]] {
		mods = append(mods, rest[0])
		rest = rest[1:]
	}
	return mods, dmpath.FromSegments(rest), segs[len(segs)-1]
}

// skipBalanced skips from an opening bracket to its partner.
func (p *Parser) skipBalanced(open, close string) error {
	start, err := p.expect(open)
	if err != nil {
		return err
	}
	depth := 1
	for depth > 0 {
		tok := p.next()
		switch {
		case tok.Kind == lexer.EOF:
			return dmerr.Parse(start.Loc, "unbalanced %q", open)
		case tok.Is(open):
			depth++
		case tok.Is(close):
			depth--
		}
	}
	return nil
}

// skipAsClause skips "as type|type" filters.
func (p *Parser) skipAsClause() []string {
	if !p.acceptIdent("as") {
		return nil
	}
	var types []string
	for {
		tok := p.peek()
		if tok.Kind != lexer.Ident {
			return types
		}
		types = append(types, tok.Text)
		p.pos++
		if !p.accept("|") {
			return types
		}
	}
}

func stringConstant(tok lexer.Token) (ast.Expression, error) {
	if tok.Literal {
		return &ast.Constant{Base: ast.At(tok.Loc), Value: constant.String(tok.Text)}, nil
	}
	if !interpolation.HasExpressions(tok.Text) {
		return &ast.Constant{Base: ast.At(tok.Loc), Value: constant.String(interpolation.Decode(tok.Text))}, nil
	}
	segs, err := interpolation.Split(tok.Text)
	if err != nil {
		return nil, dmerr.Parse(tok.Loc, "%v", err)
	}
	parts := make([]ast.StringPart, 0, len(segs))
	for _, seg := range segs {
		if !seg.IsExpr {
			parts = append(parts, ast.StringPart{Text: seg.Text})
			continue
		}
		toks, err := lexer.ScanAt(tok.Loc, seg.Expr)
		if err != nil {
			return nil, err
		}
		e, err := ParseExpr(toks)
		if err != nil {
			return nil, err
		}
		parts = append(parts, ast.StringPart{Expr: e})
	}
	return &ast.InterpString{Base: ast.At(tok.Loc), Parts: parts}, nil
}
