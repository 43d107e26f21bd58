package dme

import (
	"strings"

	"avulto/internal/ast"
	"avulto/internal/constant"
	"avulto/internal/dmerr"
	"avulto/internal/dmpath"
	"avulto/internal/lexer"
	"avulto/internal/parser"
	"avulto/internal/source"
)

// treeParser reads the object tree: nested path blocks holding var
// declarations, value overrides and proc definitions. Proc bodies are
// captured as token slices and handed to the procedure parser later.
type treeParser struct {
	env  *Environment
	toks []lexer.Token
	pos  int
}

func (tp *treeParser) peekN(n int) lexer.Token {
	if i := tp.pos + n; i < len(tp.toks) {
		return tp.toks[i]
	}
	return lexer.Token{Kind: lexer.EOF}
}

func (tp *treeParser) peek() lexer.Token { return tp.peekN(0) }

func (tp *treeParser) accept(punct string) bool {
	if tp.peek().Is(punct) {
		tp.pos++
		return true
	}
	return false
}

func (tp *treeParser) unexpected(tok lexer.Token, want string) error {
	return dmerr.Parse(tok.Loc, "expected %s, found %s", want, tok)
}

func (tp *treeParser) run() error {
	return tp.block(nil, false)
}

// block reads items until the closing brace of an inner block, or the end
// of input at the top level.
func (tp *treeParser) block(prefix []string, inner bool) error {
	for {
		tok := tp.peek()
		switch {
		case tok.Kind == lexer.EOF:
			if inner {
				return dmerr.Parse(tok.Loc, "unexpected end of input in block")
			}
			return nil
		case tok.Is("}"):
			if !inner {
				return dmerr.Parse(tok.Loc, "unmatched }")
			}
			tp.pos++
			return nil
		case tok.Is(";"):
			tp.pos++
			continue
		case tok.Is("{"):
			tp.pos++
			if err := tp.block(prefix, true); err != nil {
				return err
			}
			continue
		}
		if err := tp.item(prefix); err != nil {
			return err
		}
	}
}

// item reads one path line and whatever follows it.
func (tp *treeParser) item(prefix []string) error {
	start := tp.peek()
	segs := append([]string(nil), prefix...)
	if tp.accept("/") {
		// A leading slash is absolute even inside a block.
		segs = segs[:0]
	}
	for {
		tok := tp.peek()
		if tok.Kind != lexer.Ident {
			return tp.unexpected(tok, "path segment")
		}
		tp.pos++
		name := tok.Text
		if name == "operator" {
			name += tp.operatorSuffix()
		}
		segs = append(segs, name)
		if !tp.peek().Is("/") || tp.peekN(1).Kind != lexer.Ident {
			break
		}
		tp.pos++
	}

	switch next := tp.peek(); {
	case next.Is("{"):
		tp.pos++
		if keywordIndex(segs, "var") < 0 && keywordIndex(segs, "proc") < 0 && keywordIndex(segs, "verb") < 0 {
			tp.env.declare(dmpath.FromSegments(segs), start.Loc)
		}
		return tp.block(segs, true)
	case next.Is("("):
		return tp.procDef(segs, start)
	}
	if idx := keywordIndex(segs, "var"); idx >= 0 {
		return tp.varDef(segs, idx, start)
	}
	if keywordIndex(segs, "proc") >= 0 || keywordIndex(segs, "verb") >= 0 {
		return tp.unexpected(tp.peek(), "( after proc name")
	}
	if tp.accept("=") {
		return tp.override(segs, start)
	}
	if !tp.atEnd() {
		return tp.unexpected(tp.peek(), "end of line")
	}
	tp.env.declare(dmpath.FromSegments(segs), start.Loc)
	return nil
}

// operatorSuffix reads the symbol of an operator overload such as
// operator+= or operator[].
func (tp *treeParser) operatorSuffix() string {
	var b strings.Builder
	for tok := tp.peek(); tok.Kind == lexer.Punct && !tok.Is("(") && !tok.Virtual; tok = tp.peek() {
		b.WriteString(tok.Text)
		tp.pos++
	}
	return b.String()
}

func (tp *treeParser) atEnd() bool {
	tok := tp.peek()
	return tok.Kind == lexer.EOF || tok.Is(";") || tok.Is("}")
}

func keywordIndex(segs []string, kw string) int {
	for i, s := range segs {
		if s == kw {
			return i
		}
	}
	return -1
}

func (tp *treeParser) varDef(segs []string, idx int, start lexer.Token) error {
	rest := segs[idx+1:]
	if len(rest) == 0 {
		return tp.unexpected(tp.peek(), "variable name")
	}
	mods, typ, name := parser.SplitVarSegments(rest)
	for tp.peek().Is("[") {
		if err := tp.skipBalanced(); err != nil {
			return err
		}
		if typ.IsRoot() {
			typ = dmpath.MustNew("/list")
		}
	}
	tp.skipAs()

	decl := &VarDecl{
		Name:     name,
		Type:     typ,
		Tag:      Declared,
		Flags:    mods,
		Location: start.Loc,
		ascribed: true,
	}
	if tp.accept("=") {
		if err := tp.initializer(decl); err != nil {
			return err
		}
	}
	if !tp.atEnd() {
		return tp.unexpected(tp.peek(), "end of var declaration")
	}
	owner := tp.env.declare(dmpath.FromSegments(segs[:idx]), start.Loc)
	decl.Owner = owner.Path
	owner.setVar(decl)
	return nil
}

func (tp *treeParser) override(segs []string, start lexer.Token) error {
	decl := &VarDecl{
		Name:     segs[len(segs)-1],
		Type:     dmpath.Root(),
		Location: start.Loc,
	}
	if err := tp.initializer(decl); err != nil {
		return err
	}
	if !tp.atEnd() {
		return tp.unexpected(tp.peek(), "end of line")
	}
	owner := tp.env.declare(dmpath.FromSegments(segs[:len(segs)-1]), start.Loc)
	decl.Owner = owner.Path
	owner.setVar(decl)
	return nil
}

// initializer parses the value after "=" and folds it when possible.
func (tp *treeParser) initializer(decl *VarDecl) error {
	toks := tp.captureExpr()
	if len(toks) == 0 {
		return tp.unexpected(tp.peek(), "value")
	}
	expr, err := parser.ParseExpr(toks)
	if err != nil {
		return err
	}
	decl.Expr = expr
	decl.Value, decl.Const = ast.Fold(expr, nil)
	if !decl.Const {
		decl.Value = constant.Null()
	}
	tp.skipAs()
	return nil
}

// captureExpr takes the tokens of an expression up to the end of the
// line or a trailing "as" clause.
func (tp *treeParser) captureExpr() []lexer.Token {
	start := tp.pos
	depth := 0
	for ; tp.pos < len(tp.toks); tp.pos++ {
		tok := tp.toks[tp.pos]
		if tok.Kind == lexer.EOF {
			break
		}
		if tok.Kind == lexer.Punct && !tok.Virtual {
			switch tok.Text {
			case "(", "[", "{":
				depth++
				continue
			case ")", "]", "}":
				if depth > 0 {
					depth--
					continue
				}
			}
		}
		if depth > 0 {
			continue
		}
		if tok.Is(";") || tok.Is("}") || (tok.Is("{") && tok.Virtual) || tok.IsIdent("as") {
			break
		}
	}
	return tp.toks[start:tp.pos]
}

func (tp *treeParser) skipBalanced() error {
	open := tp.peek()
	depth := 0
	for {
		tok := tp.peek()
		switch {
		case tok.Kind == lexer.EOF:
			return dmerr.Parse(open.Loc, "unbalanced %s", open)
		case tok.Is("(") || tok.Is("["):
			depth++
		case tok.Is(")") || tok.Is("]"):
			depth--
		}
		tp.pos++
		if depth == 0 {
			return nil
		}
	}
}

// skipAs drops "as type|type" clauses.
func (tp *treeParser) skipAs() []string {
	if !tp.peek().IsIdent("as") {
		return nil
	}
	tp.pos++
	var types []string
	for tp.peek().Kind == lexer.Ident {
		types = append(types, tp.peek().Text)
		tp.pos++
		if !tp.accept("|") {
			break
		}
	}
	return types
}

func (tp *treeParser) procDef(segs []string, start lexer.Token) error {
	name := segs[len(segs)-1]
	owner := segs[:len(segs)-1]
	decl := &ProcDecl{Name: name, Location: start.Loc}
	if n := len(owner); n > 0 && (owner[n-1] == "proc" || owner[n-1] == "verb") {
		decl.Declared = true
		decl.Verb = owner[n-1] == "verb"
		owner = owner[:n-1]
	}
	if keywordIndex(owner, "proc") >= 0 || keywordIndex(owner, "verb") >= 0 || keywordIndex(owner, "var") >= 0 {
		return dmerr.Parse(start.Loc, "malformed proc declaration %s", strings.Join(segs, "/"))
	}

	params, err := tp.params()
	if err != nil {
		return err
	}
	decl.Params = params
	tp.skipAs()

	if tp.accept("{") {
		body, err := tp.captureBody()
		if err != nil {
			return err
		}
		decl.tokens = body
		decl.hasBody = true
	} else if !tp.atEnd() {
		return tp.unexpected(tp.peek(), "proc body")
	}

	td := tp.env.declare(dmpath.FromSegments(owner), start.Loc)
	decl.Owner = td.Path
	td.addProc(decl)
	return nil
}

// captureBody returns the tokens up to the brace matching one already
// consumed, and consumes that brace.
func (tp *treeParser) captureBody() ([]lexer.Token, error) {
	open := tp.toks[tp.pos-1]
	start := tp.pos
	depth := 1
	for ; tp.pos < len(tp.toks); tp.pos++ {
		tok := tp.toks[tp.pos]
		switch {
		case tok.Kind == lexer.EOF:
			return nil, dmerr.Parse(open.Loc, "unterminated proc body")
		case tok.Is("{"):
			depth++
		case tok.Is("}"):
			depth--
			if depth == 0 {
				body := append([]lexer.Token(nil), tp.toks[start:tp.pos]...)
				tp.pos++
				return body, nil
			}
		}
	}
	return nil, dmerr.Parse(open.Loc, "unterminated proc body")
}

// params reads a parenthesised parameter list.
func (tp *treeParser) params() ([]Param, error) {
	open := tp.peek()
	tp.pos++
	var (
		out   []Param
		group []lexer.Token
		depth int
	)
	for {
		tok := tp.peek()
		if tok.Kind == lexer.EOF {
			return nil, dmerr.Parse(open.Loc, "unterminated parameter list")
		}
		tp.pos++
		switch {
		case tok.Is("(") || tok.Is("[") || tok.Is("{"):
			depth++
		case (tok.Is(")") || tok.Is("]") || tok.Is("}")) && depth > 0:
			depth--
		case tok.Is(")"):
			if len(group) > 0 {
				p, err := parseParam(group)
				if err != nil {
					return nil, err
				}
				out = append(out, p)
			}
			return out, nil
		case tok.Is(",") && depth == 0:
			p, err := parseParam(group)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
			group = nil
			continue
		}
		group = append(group, tok)
	}
}

// parseParam handles var/type/name = default as type forms.
func parseParam(toks []lexer.Token) (Param, error) {
	if len(toks) == 0 {
		return Param{}, dmerr.Parse(source.Location{}, "empty parameter")
	}
	if len(toks) == 1 && toks[0].Is("...") {
		return Param{Name: "...", Type: dmpath.Root()}, nil
	}

	sub := &treeParser{toks: toks}
	var segs []string
	sub.accept("/")
	for sub.peek().Kind == lexer.Ident && !sub.peek().IsIdent("as") {
		segs = append(segs, sub.peek().Text)
		sub.pos++
		if !sub.accept("/") {
			break
		}
	}
	if len(segs) > 0 && segs[0] == "var" {
		segs = segs[1:]
	}
	if len(segs) == 0 {
		return Param{}, sub.unexpected(sub.peek(), "parameter name")
	}
	_, typ, name := parser.SplitVarSegments(segs)
	p := Param{Name: name, Type: typ}

	for sub.peek().Is("[") {
		if err := sub.skipBalanced(); err != nil {
			return Param{}, err
		}
	}
	if sub.accept("=") {
		def := sub.captureExpr()
		e, err := parser.ParseExpr(def)
		if err != nil {
			return Param{}, err
		}
		p.Default = e
	}
	p.As = sub.skipAs()
	if sub.peek().IsIdent("in") {
		// in <list> constrains verb arguments; it is not kept.
		sub.pos = len(sub.toks)
	}
	if sub.pos < len(sub.toks) {
		return Param{}, sub.unexpected(sub.peek(), "end of parameter")
	}
	return p, nil
}
