package parser

import (
	"avulto/internal/ast"
	"avulto/internal/dmerr"
	"avulto/internal/dmpath"
	"avulto/internal/lexer"
)

// statementsUntil parses statements until "}" (when closer is set, the
// brace is consumed) or the end of input.
func (p *Parser) statementsUntil(closer bool) ([]ast.Statement, error) {
	var out []ast.Statement
	for {
		tok := p.peek()
		switch {
		case tok.Is(";"):
			p.pos++
			continue
		case tok.Is("}"):
			if closer {
				p.pos++
				return out, nil
			}
			return nil, p.unexpected(tok)
		case tok.Kind == lexer.EOF:
			if closer {
				return nil, dmerr.Parse(tok.Loc, "unexpected end of input, expected \"}\"")
			}
			return out, nil
		case tok.Is("{"):
			// A bare block only scopes; flatten it.
			p.pos++
			inner, err := p.statementsUntil(true)
			if err != nil {
				return nil, err
			}
			out = append(out, inner...)
			continue
		}
		st, err := p.statement()
		if err != nil {
			return nil, err
		}
		if st != nil {
			out = append(out, st)
		}
		if !p.endOfStatement() && !p.peek().Is("{") {
			return nil, p.unexpected(p.peek())
		}
	}
}

// block parses a braced body, or a single statement on the same line.
func (p *Parser) block() ([]ast.Statement, error) {
	if p.accept("{") {
		return p.statementsUntil(true)
	}
	if p.endOfStatement() {
		return nil, nil
	}
	st, err := p.statement()
	if err != nil || st == nil {
		return nil, err
	}
	return []ast.Statement{st}, nil
}

// condition parses "(" expr ")".
func (p *Parser) condition() (ast.Expression, error) {
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	e, err := p.Expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}
	return e, nil
}

func (p *Parser) statement() (ast.Statement, error) {
	tok := p.peek()
	at := ast.At(tok.Loc)

	if tok.Kind == lexer.Ident && p.peekN(1).Is(":") && !p.peekN(1).Space {
		if after := p.peekN(2); after.Is("{") || after.Is(";") || after.Is("}") || after.Kind == lexer.EOF {
			p.pos += 2
			body, err := p.block()
			if err != nil {
				return nil, err
			}
			return &ast.Label{Base: at, Name: tok.Text, Body: body}, nil
		}
	}

	if tok.Kind == lexer.Ident {
		switch tok.Text {
		case "var":
			p.pos++
			return p.varStatement(tok)
		case "return":
			p.pos++
			st := &ast.Return{Base: at}
			if !p.endOfStatement() {
				v, err := p.Expression()
				if err != nil {
					return nil, err
				}
				st.Value = v
			}
			return st, nil
		case "if":
			p.pos++
			return p.ifStatement(tok)
		case "while":
			p.pos++
			cond, err := p.condition()
			if err != nil {
				return nil, err
			}
			body, err := p.block()
			if err != nil {
				return nil, err
			}
			return &ast.While{Base: at, Cond: cond, Body: body}, nil
		case "do":
			p.pos++
			body, err := p.block()
			if err != nil {
				return nil, err
			}
			p.skipSeparators("while")
			if !p.acceptIdent("while") {
				return nil, dmerr.Parse(p.peek().Loc, "expected while after do block, found %s", describe(p.peek()))
			}
			cond, err := p.condition()
			if err != nil {
				return nil, err
			}
			return &ast.DoWhile{Base: at, Body: body, Cond: cond}, nil
		case "for":
			p.pos++
			return p.forStatement(tok)
		case "switch":
			p.pos++
			return p.switchStatement(tok)
		case "break", "continue", "goto":
			p.pos++
			var label string
			if next := p.peek(); next.Kind == lexer.Ident && !p.endOfStatement() {
				label = next.Text
				p.pos++
			}
			switch tok.Text {
			case "break":
				return &ast.Break{Base: at, Label: label}, nil
			case "continue":
				return &ast.Continue{Base: at, Label: label}, nil
			}
			if label == "" {
				return nil, dmerr.Parse(tok.Loc, "goto without a label")
			}
			return &ast.Goto{Base: at, Label: label}, nil
		case "del":
			p.pos++
			v, err := p.Expression()
			if err != nil {
				return nil, err
			}
			return &ast.Del{Base: at, Value: v}, nil
		case "spawn":
			p.pos++
			st := &ast.Spawn{Base: at}
			if p.peek().Is("(") {
				if p.peekN(1).Is(")") {
					p.pos += 2
				} else {
					d, err := p.condition()
					if err != nil {
						return nil, err
					}
					st.Delay = d
				}
			}
			body, err := p.block()
			if err != nil {
				return nil, err
			}
			st.Body = body
			return st, nil
		case "try":
			p.pos++
			return p.tryStatement(tok)
		case "throw":
			p.pos++
			v, err := p.Expression()
			if err != nil {
				return nil, err
			}
			return &ast.Throw{Base: at, Value: v}, nil
		case "CRASH":
			if p.peekN(1).Is("(") {
				p.pos++
				st := &ast.Crash{Base: at}
				if p.peekN(1).Is(")") {
					p.pos += 2
					return st, nil
				}
				v, err := p.condition()
				if err != nil {
					return nil, err
				}
				st.Value = v
				return st, nil
			}
		case "set":
			if p.peekN(1).Kind == lexer.Ident {
				p.pos++
				return p.setting(tok)
			}
		}
	}

	x, err := p.Expression()
	if err != nil {
		return nil, err
	}
	return &ast.ExprStmt{Base: ast.At(x.Loc()), X: x}, nil
}

// skipSeparators consumes ";" tokens when the keyword follows them, so a
// continuation such as else can sit on its own line.
func (p *Parser) skipSeparators(keyword string) {
	i := p.pos
	for i < len(p.toks) && p.toks[i].Is(";") {
		i++
	}
	if i < len(p.toks) && p.toks[i].IsIdent(keyword) {
		p.pos = i
	}
}

func (p *Parser) varStatement(tok lexer.Token) (ast.Statement, error) {
	if p.accept("{") {
		// var { a = 1; b }
		vs := &ast.Vars{Base: ast.At(tok.Loc)}
		for {
			for p.accept(";") {
			}
			if p.accept("}") {
				break
			}
			d, err := p.varDecl()
			if err != nil {
				return nil, err
			}
			vs.Decls = append(vs.Decls, d)
		}
		return vs, nil
	}

	// var/list/a, b declares b without a type.
	var decls []*ast.Var
	for {
		d, err := p.varDecl()
		if err != nil {
			return nil, err
		}
		decls = append(decls, d)
		if !p.accept(",") {
			break
		}
	}
	if len(decls) == 1 {
		return decls[0], nil
	}
	return &ast.Vars{Base: ast.At(tok.Loc), Decls: decls}, nil
}

func (p *Parser) varDecl() (*ast.Var, error) {
	start := p.peek()
	segs, err := p.pathSegments()
	if err != nil {
		return nil, err
	}
	_, typ, name := SplitVarSegments(segs)
	d := &ast.Var{Base: ast.At(start.Loc), Name: name, Type: typ}
	for p.peek().Is("[") {
		if err := p.skipBalanced("[", "]"); err != nil {
			return nil, err
		}
		if typ.IsRoot() {
			d.Type = dmpath.Trusted("/list")
		}
	}
	p.skipAsClause()
	if p.accept("=") {
		v, err := p.Expression()
		if err != nil {
			return nil, err
		}
		d.Value = v
	}
	p.skipAsClause()
	return d, nil
}

func (p *Parser) ifStatement(tok lexer.Token) (ast.Statement, error) {
	st := &ast.If{Base: ast.At(tok.Loc)}
	for {
		cond, err := p.condition()
		if err != nil {
			return nil, err
		}
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		st.Arms = append(st.Arms, ast.IfArm{Cond: cond, Body: body})

		p.skipSeparators("else")
		if !p.acceptIdent("else") {
			return st, nil
		}
		if !p.acceptIdent("if") {
			body, err := p.block()
			if err != nil {
				return nil, err
			}
			if body == nil {
				body = []ast.Statement{}
			}
			st.Else = body
			return st, nil
		}
	}
}

func (p *Parser) forStatement(tok lexer.Token) (ast.Statement, error) {
	at := ast.At(tok.Loc)
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	if p.accept(")") {
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		return &ast.ForInfinite{Base: at, Body: body}, nil
	}

	var st ast.Statement
	var err error
	if p.acceptIdent("var") {
		st, err = p.forVar(at)
	} else {
		st, err = p.forExpr(at)
	}
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	switch s := st.(type) {
	case *ast.ForList:
		s.Body = body
	case *ast.ForRange:
		s.Body = body
	case *ast.ForLoop:
		s.Body = body
	}
	return st, nil
}

// forVar handles loops that declare their variable.
func (p *Parser) forVar(at ast.Base) (ast.Statement, error) {
	segs, err := p.pathSegments()
	if err != nil {
		return nil, err
	}
	_, typ, name := SplitVarSegments(segs)
	p.skipAsClause()

	if p.acceptIdent("in") {
		return p.forIn(at, name, typ, true)
	}
	if p.peek().Is(")") {
		return &ast.ForList{Base: at, Name: name, VarType: typ, Declare: true}, nil
	}
	if !p.accept("=") {
		return nil, p.unexpected(p.peek())
	}
	init, err := p.Expression()
	if err != nil {
		return nil, err
	}
	if b, ok := init.(*ast.BinaryOp); ok && b.Op == ast.To {
		return p.forRange(at, name, typ, true, b.Lhs, b.Rhs)
	}
	decl := &ast.Var{Base: at, Name: name, Type: typ, Value: init}
	return p.forClauses(at, decl)
}

// forExpr handles loops over an existing variable and C-style loops.
func (p *Parser) forExpr(at ast.Base) (ast.Statement, error) {
	if p.peek().Is(";") {
		return p.forClauses(at, nil)
	}
	e, err := p.Expression()
	if err != nil {
		return nil, err
	}
	switch x := e.(type) {
	case *ast.BinaryOp:
		// "in" and "to" bind equally, so i in 1 to 5 groups as (i in 1) to 5.
		if in, ok := x.Lhs.(*ast.BinaryOp); ok && x.Op == ast.To && in.Op == ast.In {
			if id, ok := in.Lhs.(*ast.Identifier); ok {
				return p.forRange(at, id.Name, dmpath.Root(), false, in.Rhs, x.Rhs)
			}
		}
		if id, ok := x.Lhs.(*ast.Identifier); ok && x.Op == ast.In {
			if to, ok := x.Rhs.(*ast.BinaryOp); ok && to.Op == ast.To {
				return p.forRange(at, id.Name, dmpath.Root(), false, to.Lhs, to.Rhs)
			}
			return &ast.ForList{Base: at, Name: id.Name, In: x.Rhs}, nil
		}
	case *ast.AssignOp:
		if id, ok := x.Lhs.(*ast.Identifier); ok && x.Op == ast.Assign {
			if to, ok := x.Rhs.(*ast.BinaryOp); ok && to.Op == ast.To {
				return p.forRange(at, id.Name, dmpath.Root(), false, to.Lhs, to.Rhs)
			}
		}
	case *ast.Identifier:
		if p.peek().Is(")") {
			return &ast.ForList{Base: at, Name: x.Name}, nil
		}
	}
	return p.forClauses(at, &ast.ExprStmt{Base: ast.At(e.Loc()), X: e})
}

func (p *Parser) forIn(at ast.Base, name string, typ dmpath.Path, declare bool) (ast.Statement, error) {
	in, err := p.Expression()
	if err != nil {
		return nil, err
	}
	if to, ok := in.(*ast.BinaryOp); ok && to.Op == ast.To {
		return p.forRange(at, name, typ, declare, to.Lhs, to.Rhs)
	}
	return &ast.ForList{Base: at, Name: name, VarType: typ, Declare: declare, In: in}, nil
}

func (p *Parser) forRange(at ast.Base, name string, typ dmpath.Path, declare bool, start, end ast.Expression) (ast.Statement, error) {
	st := &ast.ForRange{Base: at, Name: name, VarType: typ, Declare: declare, Start: start, End: end}
	if p.acceptIdent("step") {
		step, err := p.Expression()
		if err != nil {
			return nil, err
		}
		st.Step = step
	}
	return st, nil
}

// forClauses parses the rest of for(init; test; inc) once init is known.
// Commas are accepted in place of semicolons.
func (p *Parser) forClauses(at ast.Base, init ast.Statement) (ast.Statement, error) {
	st := &ast.ForLoop{Base: at, Init: init}
	sep := func() bool { return p.accept(";") || p.accept(",") }
	if !sep() {
		if p.peek().Is(")") {
			return st, nil
		}
		return nil, p.unexpected(p.peek())
	}
	if !p.peek().Is(";") && !p.peek().Is(",") && !p.peek().Is(")") {
		test, err := p.Expression()
		if err != nil {
			return nil, err
		}
		st.Test = test
	}
	if !sep() {
		return st, nil
	}
	if !p.peek().Is(")") {
		inc, err := p.Expression()
		if err != nil {
			return nil, err
		}
		st.Inc = &ast.ExprStmt{Base: ast.At(inc.Loc()), X: inc}
	}
	return st, nil
}

func (p *Parser) switchStatement(tok lexer.Token) (ast.Statement, error) {
	v, err := p.condition()
	if err != nil {
		return nil, err
	}
	st := &ast.Switch{Base: ast.At(tok.Loc), Value: v}
	if _, err := p.expect("{"); err != nil {
		return nil, err
	}
	for {
		for p.accept(";") {
		}
		switch {
		case p.accept("}"):
			return st, nil
		case p.acceptIdent("if"):
			cases, err := p.switchCases()
			if err != nil {
				return nil, err
			}
			body, err := p.block()
			if err != nil {
				return nil, err
			}
			st.Cases = append(st.Cases, ast.SwitchCase{Cases: cases, Body: body})
		case p.acceptIdent("else"):
			body, err := p.block()
			if err != nil {
				return nil, err
			}
			if body == nil {
				body = []ast.Statement{}
			}
			st.Default = body
		default:
			return nil, p.unexpected(p.peek())
		}
	}
}

// switchCases parses the (a, b to c) list of an if inside a switch.
func (p *Parser) switchCases() ([]ast.Case, error) {
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	var cases []ast.Case
	for {
		e, err := p.Expression()
		if err != nil {
			return nil, err
		}
		if b, ok := e.(*ast.BinaryOp); ok && b.Op == ast.To {
			cases = append(cases, ast.Case{Start: b.Lhs, End: b.Rhs})
		} else {
			cases = append(cases, ast.Case{Start: e})
		}
		if p.accept(",") {
			continue
		}
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
		return cases, nil
	}
}

func (p *Parser) tryStatement(tok lexer.Token) (ast.Statement, error) {
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	st := &ast.TryCatch{Base: ast.At(tok.Loc), Try: body}
	p.skipSeparators("catch")
	if !p.acceptIdent("catch") {
		return nil, dmerr.Parse(p.peek().Loc, "expected catch after try block, found %s", describe(p.peek()))
	}
	if p.accept("(") {
		if !p.accept(")") {
			p.acceptIdent("var")
			segs, err := p.pathSegments()
			if err != nil {
				return nil, err
			}
			_, st.CatchType, st.CatchVar = SplitVarSegments(segs)
			if _, err := p.expect(")"); err != nil {
				return nil, err
			}
		}
	}
	if st.Catch, err = p.block(); err != nil {
		return nil, err
	}
	return st, nil
}

func (p *Parser) setting(tok lexer.Token) (ast.Statement, error) {
	name := p.next()
	st := &ast.Setting{Base: ast.At(tok.Loc), Name: name.Text}
	switch {
	case p.accept("="):
	case p.acceptIdent("in"):
		st.Mode = ast.SettingIn
	default:
		return nil, p.unexpected(p.peek())
	}
	v, err := p.Expression()
	if err != nil {
		return nil, err
	}
	st.Value = v
	return st, nil
}
