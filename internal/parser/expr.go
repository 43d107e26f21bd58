package parser

import (
	"strings"

	"avulto/internal/ast"
	"avulto/internal/constant"
	"avulto/internal/dmerr"
	"avulto/internal/dmpath"
	"avulto/internal/lexer"
)

type binaryEntry struct {
	text string
	op   ast.BinaryOperator
}

// binaryLevels lists infix operators from loosest to tightest binding.
var binaryLevels = [][]binaryEntry{
	{{"||", ast.Or}},
	{{"&&", ast.And}},
	{{"|", ast.BitOr}},
	{{"^", ast.BitXor}},
	{{"&", ast.BitAnd}},
	{{"==", ast.Eq}, {"!=", ast.NotEq}, {"<>", ast.NotEq}, {"~=", ast.Equiv}, {"~!", ast.NotEquiv}},
	{{"<", ast.Less}, {">", ast.Greater}, {"<=", ast.LessEq}, {">=", ast.GreaterEq}},
	{{"in", ast.In}, {"to", ast.To}},
	{{"<<", ast.LShift}, {">>", ast.RShift}},
	{{"+", ast.Add}, {"-", ast.Sub}},
	{{"*", ast.Mul}, {"/", ast.Div}, {"%", ast.Mod}, {"%%", ast.FloatMod}},
	{{"**", ast.Pow}},
}

// levelIn is the binding level of "in" and "to"; operands of a trailing
// "in" clause are parsed one level tighter.
const levelIn = 7

func binaryAt(level int, tok lexer.Token) (ast.BinaryOperator, bool) {
	if tok.Kind != lexer.Punct && tok.Kind != lexer.Ident {
		return 0, false
	}
	for _, e := range binaryLevels[level] {
		if tok.Text == e.text {
			return e.op, true
		}
	}
	return 0, false
}

// Expression parses one expression, including assignments.
func (p *Parser) Expression() (ast.Expression, error) {
	return p.assign()
}

func (p *Parser) assign() (ast.Expression, error) {
	lhs, err := p.ternaryExpr()
	if err != nil {
		return nil, err
	}
	tok := p.peek()
	if tok.Kind != lexer.Punct {
		return lhs, nil
	}
	op, ok := ast.AssignOperatorFor(tok.Text)
	if !ok {
		return lhs, nil
	}
	p.pos++
	rhs, err := p.assign()
	if err != nil {
		return nil, err
	}
	return &ast.AssignOp{Base: ast.At(lhs.Loc()), Op: op, Lhs: lhs, Rhs: rhs}, nil
}

func (p *Parser) ternaryExpr() (ast.Expression, error) {
	cond, err := p.binary(0)
	if err != nil {
		return nil, err
	}
	if !p.accept("?") {
		return cond, nil
	}
	p.ternary++
	then, err := p.ternaryExpr()
	p.ternary--
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(":"); err != nil {
		return nil, err
	}
	els, err := p.ternaryExpr()
	if err != nil {
		return nil, err
	}
	return &ast.TernaryOp{Base: ast.At(cond.Loc()), Cond: cond, If: then, Else: els}, nil
}

func (p *Parser) binary(level int) (ast.Expression, error) {
	if level == len(binaryLevels) {
		return p.unary()
	}
	lhs, err := p.binary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		op, ok := binaryAt(level, p.peek())
		if !ok {
			return lhs, nil
		}
		p.pos++
		next := level + 1
		if op == ast.Pow {
			next = level
		}
		rhs, err := p.binary(next)
		if err != nil {
			return nil, err
		}
		lhs = &ast.BinaryOp{Base: ast.At(lhs.Loc()), Op: op, Lhs: lhs, Rhs: rhs}
	}
}

var prefixOps = map[string]ast.UnaryOperator{
	"-":  ast.Neg,
	"!":  ast.Not,
	"~":  ast.BitNot,
	"++": ast.PreIncr,
	"--": ast.PreDecr,
}

func (p *Parser) unary() (ast.Expression, error) {
	tok := p.peek()
	if tok.Kind == lexer.Punct {
		if op, ok := prefixOps[tok.Text]; ok {
			p.pos++
			x, err := p.unary()
			if err != nil {
				return nil, err
			}
			return &ast.UnaryOp{Base: ast.At(tok.Loc), Op: op, Expr: x}, nil
		}
	}
	return p.postfix()
}

func (p *Parser) postfix() (ast.Expression, error) {
	x, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		switch {
		case (tok.Is(".") || tok.Is("?.")) && p.peekN(1).Kind == lexer.Ident:
			p.pos++
			x, err = p.member(x, p.next().Text, tok.Is("?."))
		case tok.Is(":") && !tok.Space && p.ternary == 0 &&
			p.peekN(1).Kind == lexer.Ident && !p.peekN(1).Space:
			p.pos++
			x, err = p.member(x, p.next().Text, false)
		case tok.Is("::") && p.peekN(1).Kind == lexer.Ident:
			p.pos++
			x = &ast.StaticField{Base: ast.At(x.Loc()), Expr: x, Name: p.next().Text}
		case tok.Is("["):
			p.pos++
			var idx ast.Expression
			idx, err = p.Expression()
			if err == nil {
				_, err = p.expect("]")
			}
			x = &ast.Index{Base: ast.At(x.Loc()), Expr: x, Index: idx}
		case (tok.Is("++") || tok.Is("--")) && !tok.LineStart:
			p.pos++
			op := ast.PostIncr
			if tok.Text == "--" {
				op = ast.PostDecr
			}
			x = &ast.UnaryOp{Base: ast.At(x.Loc()), Op: op, Expr: x}
		default:
			return x, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// member finishes x.name, turning it into a call when arguments follow.
func (p *Parser) member(x ast.Expression, name string, safe bool) (ast.Expression, error) {
	if p.peek().Is("(") {
		args, err := p.args()
		if err != nil {
			return nil, err
		}
		return &ast.Call{Base: ast.At(x.Loc()), Target: x, Name: name, Args: args, Safe: safe}, nil
	}
	return &ast.Field{Base: ast.At(x.Loc()), Expr: x, Name: name, Safe: safe}, nil
}

func (p *Parser) args() ([]ast.Expression, error) {
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	if p.accept(")") {
		return nil, nil
	}
	var out []ast.Expression
	for {
		e, err := p.Expression()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		if p.accept(",") {
			continue
		}
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
		return out, nil
	}
}

func (p *Parser) term() (ast.Expression, error) {
	tok := p.next()
	at := ast.At(tok.Loc)

	switch tok.Kind {
	case lexer.Number:
		return &ast.Constant{Base: at, Value: constant.Number(tok.Num)}, nil
	case lexer.String:
		return stringConstant(tok)
	case lexer.Resource:
		return &ast.Constant{Base: at, Value: constant.Resource(tok.Text)}, nil
	case lexer.Ident:
		return p.identTerm(tok)
	case lexer.Punct:
		switch tok.Text {
		case "(":
			e, err := p.Expression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(")"); err != nil {
				return nil, err
			}
			return e, nil
		case "/":
			prefab, err := p.prefab(tok)
			if err != nil {
				return nil, err
			}
			if len(prefab.Vars) == 0 {
				return &ast.Constant{Base: at, Value: constant.Path(prefab.Path)}, nil
			}
			return prefab, nil
		case ".":
			if p.peek().Is("(") {
				args, err := p.args()
				if err != nil {
					return nil, err
				}
				return &ast.SelfCall{Base: at, Args: args}, nil
			}
			if next := p.peek(); next.Kind == lexer.Ident && !next.Space && p.peekN(1).Is("/") {
				// .proc/name and .verb/name relative references
				segs, err := p.pathSegments()
				if err != nil {
					return nil, err
				}
				return &ast.Constant{Base: at, Value: constant.Raw("." + strings.Join(segs, "/"))}, nil
			}
			return &ast.Identifier{Base: at, Name: "."}, nil
		case "..":
			if p.peek().Is("(") {
				args, err := p.args()
				if err != nil {
					return nil, err
				}
				return &ast.ParentCall{Base: at, Args: args}, nil
			}
			return &ast.Identifier{Base: at, Name: ".."}, nil
		}
	}
	return nil, p.unexpected(tok)
}

func (p *Parser) identTerm(tok lexer.Token) (ast.Expression, error) {
	at := ast.At(tok.Loc)
	call := p.peek().Is("(")

	switch tok.Text {
	case "null":
		return &ast.Constant{Base: at, Value: constant.Null()}, nil
	case "new":
		return p.newExpr(tok)
	case "list":
		if call {
			return p.listExpr(tok)
		}
	case "locate":
		if call {
			args, err := p.args()
			if err != nil {
				return nil, err
			}
			in, err := p.inClause()
			if err != nil {
				return nil, err
			}
			return &ast.Locate{Base: at, Args: args, In: in}, nil
		}
	case "input":
		if call {
			args, err := p.args()
			if err != nil {
				return nil, err
			}
			types := p.skipAsClause()
			in, err := p.inClause()
			if err != nil {
				return nil, err
			}
			return &ast.Input{Base: at, Args: args, Types: types, In: in}, nil
		}
	case "pick":
		if call {
			return p.pickExpr(tok)
		}
	case "call", "call_ext":
		if call {
			callee, err := p.args()
			if err != nil {
				return nil, err
			}
			var args []ast.Expression
			if p.peek().Is("(") {
				if args, err = p.args(); err != nil {
					return nil, err
				}
			}
			if tok.Text == "call_ext" {
				if len(callee) != 2 {
					return nil, dmerr.Parse(tok.Loc, "call_ext expects a library and a function")
				}
				return &ast.ExternalCall{Base: at, Library: callee[0], Function: callee[1], Args: args}, nil
			}
			return &ast.DynamicCall{Base: at, Callee: callee, Args: args}, nil
		}
	}

	if call {
		args, err := p.args()
		if err != nil {
			return nil, err
		}
		return &ast.Call{Base: at, Name: tok.Text, Args: args}, nil
	}
	return &ast.Identifier{Base: at, Name: tok.Text}, nil
}

// inClause parses an optional trailing "in <expr>".
func (p *Parser) inClause() (ast.Expression, error) {
	if !p.acceptIdent("in") {
		return nil, nil
	}
	return p.binary(levelIn + 1)
}

func (p *Parser) listExpr(tok lexer.Token) (ast.Expression, error) {
	args, err := p.args()
	if err != nil {
		return nil, err
	}
	list := &ast.List{Base: ast.At(tok.Loc)}
	for _, a := range args {
		if as, ok := a.(*ast.AssignOp); ok && as.Op == ast.Assign {
			list.Entries = append(list.Entries, ast.ListEntry{Key: as.Lhs, Value: as.Rhs})
			continue
		}
		list.Entries = append(list.Entries, ast.ListEntry{Value: a})
	}
	return list, nil
}

func (p *Parser) pickExpr(tok lexer.Token) (ast.Expression, error) {
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	pick := &ast.Pick{Base: ast.At(tok.Loc)}
	for !p.accept(")") {
		e, err := p.Expression()
		if err != nil {
			return nil, err
		}
		entry := ast.PickEntry{Value: e}
		if p.accept(";") {
			v, err := p.Expression()
			if err != nil {
				return nil, err
			}
			entry = ast.PickEntry{Weight: e, Value: v}
		}
		pick.Entries = append(pick.Entries, entry)
		if !p.accept(",") && !p.peek().Is(")") {
			return nil, p.unexpected(p.peek())
		}
	}
	return pick, nil
}

func (p *Parser) newExpr(tok lexer.Token) (ast.Expression, error) {
	at := ast.At(tok.Loc)
	next := p.peek()
	switch {
	case next.Is("/"):
		p.pos++
		prefab, err := p.prefab(next)
		if err != nil {
			return nil, err
		}
		n := &ast.NewPrefab{Base: at, Prefab: prefab}
		if p.peek().Is("(") {
			if n.Args, err = p.args(); err != nil {
				return nil, err
			}
		}
		return n, nil
	case next.Is("("):
		args, err := p.args()
		if err != nil {
			return nil, err
		}
		return &ast.NewImplicit{Base: at, Args: args}, nil
	case next.Kind == lexer.Ident && next.Text != "in":
		p.pos++
		var typ ast.Expression = &ast.Identifier{Base: ast.At(next.Loc), Name: next.Text}
		for (p.peek().Is(".") || p.peek().Is(":")) && p.peekN(1).Kind == lexer.Ident {
			p.pos++
			name := p.next()
			typ = &ast.Field{Base: ast.At(typ.Loc()), Expr: typ, Name: name.Text}
		}
		n := &ast.NewExpr{Base: at, Type: typ}
		if p.peek().Is("(") {
			var err error
			if n.Args, err = p.args(); err != nil {
				return nil, err
			}
		}
		return n, nil
	}
	return &ast.NewImplicit{Base: at}, nil
}

// prefab parses a path literal whose leading "/" has been consumed, with
// an optional {name = value; ...} override block.
func (p *Parser) prefab(slash lexer.Token) (*ast.Prefab, error) {
	first := p.peek()
	if first.Kind != lexer.Ident {
		return nil, dmerr.Parse(slash.Loc, "expected path after /")
	}
	p.pos++
	segs := []string{first.Text}
	for p.peek().Is("/") && !p.peek().Space && p.peekN(1).Kind == lexer.Ident && !p.peekN(1).Space {
		p.pos++
		segs = append(segs, p.next().Text)
	}
	prefab := &ast.Prefab{Base: ast.At(slash.Loc), Path: dmpath.Trusted("/" + strings.Join(segs, "/"))}

	if brace := p.peek(); !brace.Is("{") || brace.Virtual || brace.Space {
		return prefab, nil
	}
	p.pos++
	for {
		for p.accept(";") {
		}
		if p.accept("}") {
			return prefab, nil
		}
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect("="); err != nil {
			return nil, err
		}
		v, err := p.Expression()
		if err != nil {
			return nil, err
		}
		prefab.Vars = append(prefab.Vars, ast.PrefabVar{Name: name.Text, Value: v})
		if !p.peek().Is(";") && !p.peek().Is("}") {
			return nil, p.unexpected(p.peek())
		}
	}
}
