package lexer

import (
	"avulto/internal/dmerr"
	"avulto/internal/source"
)

// condEval is a small evaluator for #if / #elif expressions: numbers,
// defined(NAME), macro names, parentheses, ! and -, arithmetic,
// comparisons and the logical operators.
type condEval struct {
	toks    []Token
	pos     int
	defines map[string][]Token
	loc     source.Location
	depth   int
}

func (e *condEval) peek() Token {
	if e.pos < len(e.toks) {
		return e.toks[e.pos]
	}
	return Token{Kind: EOF}
}

func (e *condEval) accept(p string) bool {
	if e.peek().Is(p) {
		e.pos++
		return true
	}
	return false
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (e *condEval) or() (float64, error) {
	l, err := e.and()
	if err != nil {
		return 0, err
	}
	for e.accept("||") {
		r, err := e.and()
		if err != nil {
			return 0, err
		}
		l = boolf(l != 0 || r != 0)
	}
	return l, nil
}

func (e *condEval) and() (float64, error) {
	l, err := e.compare()
	if err != nil {
		return 0, err
	}
	for e.accept("&&") {
		r, err := e.compare()
		if err != nil {
			return 0, err
		}
		l = boolf(l != 0 && r != 0)
	}
	return l, nil
}

func (e *condEval) compare() (float64, error) {
	l, err := e.sum()
	if err != nil {
		return 0, err
	}
	for {
		op := e.peek()
		if op.Kind != Punct {
			return l, nil
		}
		switch op.Text {
		case "==", "!=", "<>", "<", ">", "<=", ">=":
		default:
			return l, nil
		}
		e.pos++
		r, err := e.sum()
		if err != nil {
			return 0, err
		}
		switch op.Text {
		case "==":
			l = boolf(l == r)
		case "!=", "<>":
			l = boolf(l != r)
		case "<":
			l = boolf(l < r)
		case ">":
			l = boolf(l > r)
		case "<=":
			l = boolf(l <= r)
		case ">=":
			l = boolf(l >= r)
		}
	}
}

func (e *condEval) sum() (float64, error) {
	l, err := e.unary()
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case e.accept("+"):
			r, err := e.unary()
			if err != nil {
				return 0, err
			}
			l += r
		case e.accept("-"):
			r, err := e.unary()
			if err != nil {
				return 0, err
			}
			l -= r
		default:
			return l, nil
		}
	}
}

func (e *condEval) unary() (float64, error) {
	switch {
	case e.accept("!"):
		v, err := e.unary()
		return boolf(v == 0), err
	case e.accept("-"):
		v, err := e.unary()
		return -v, err
	}
	return e.primary()
}

func (e *condEval) primary() (float64, error) {
	tok := e.peek()
	switch {
	case tok.Kind == Number:
		e.pos++
		return tok.Num, nil
	case tok.Is("("):
		e.pos++
		v, err := e.or()
		if err != nil {
			return 0, err
		}
		if !e.accept(")") {
			return 0, dmerr.Parse(e.loc, "missing ) in #if")
		}
		return v, nil
	case tok.IsIdent("defined"):
		e.pos++
		paren := e.accept("(")
		name := e.peek()
		if name.Kind != Ident {
			return 0, dmerr.Parse(e.loc, "defined() expects a name")
		}
		e.pos++
		if paren && !e.accept(")") {
			return 0, dmerr.Parse(e.loc, "missing ) after defined")
		}
		_, ok := e.defines[name.Text]
		return boolf(ok), nil
	case tok.Kind == Ident:
		e.pos++
		body, ok := e.defines[tok.Text]
		if !ok || len(body) == 0 || e.depth > 16 {
			return 0, nil
		}
		sub := &condEval{toks: body, defines: e.defines, loc: e.loc, depth: e.depth + 1}
		return sub.or()
	}
	return 0, dmerr.Parse(e.loc, "unexpected %s in #if", tok)
}
