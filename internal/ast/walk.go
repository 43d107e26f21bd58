package ast

import "avulto/internal/source"

// Handler is invoked for a visited node. Returning an error stops the walk
// and the error is returned to the caller of Walk unchanged.
type Handler func(n Node, loc source.Location) error

// Visitor maps node kinds to handlers. Kinds without a handler are
// traversed silently. A Visitor is built once and may be reused.
type Visitor struct {
	handlers [numKinds]Handler
}

// NewVisitor returns a visitor with no handlers.
func NewVisitor() *Visitor { return &Visitor{} }

// On registers h for kind, replacing any previous handler.
func (v *Visitor) On(kind Kind, h Handler) *Visitor {
	if kind >= 0 && kind < numKinds {
		v.handlers[kind] = h
	}
	return v
}

// OnAll registers h for every kind.
func (v *Visitor) OnAll(h Handler) *Visitor {
	for k := range v.handlers {
		v.handlers[k] = h
	}
	return v
}

// Handles reports whether a handler is registered for kind.
func (v *Visitor) Handles(kind Kind) bool {
	return kind >= 0 && kind < numKinds && v.handlers[kind] != nil
}

func (v *Visitor) visit(n Node) error {
	if h := v.handlers[n.Kind()]; h != nil {
		return h(n, n.Loc())
	}
	return nil
}

// Walk visits stmts and everything beneath them in pre-order, in the order
// the nodes appear in the source. Each node is visited exactly once.
func Walk(stmts []Statement, v *Visitor) error {
	w := walker{v: v}
	return w.stmts(stmts)
}

// WalkExpr is Walk for a single expression tree.
func WalkExpr(e Expression, v *Visitor) error {
	w := walker{v: v}
	return w.expr(e)
}

// Inspect calls fn for every node under stmts in walk order.
func Inspect(stmts []Statement, fn func(Node) error) error {
	return Walk(stmts, NewVisitor().OnAll(func(n Node, _ source.Location) error {
		return fn(n)
	}))
}

type walker struct {
	v *Visitor
}

func (w walker) stmts(list []Statement) error {
	for _, s := range list {
		if err := w.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (w walker) exprs(list ...Expression) error {
	for _, e := range list {
		if err := w.expr(e); err != nil {
			return err
		}
	}
	return nil
}

func (w walker) stmt(s Statement) error {
	if s == nil {
		return nil
	}
	if err := w.v.visit(s); err != nil {
		return err
	}

	switch n := s.(type) {
	case *ExprStmt:
		return w.expr(n.X)
	case *Return:
		return w.expr(n.Value)
	case *Var:
		return w.expr(n.Value)
	case *Vars:
		for _, d := range n.Decls {
			if err := w.stmt(d); err != nil {
				return err
			}
		}
	case *If:
		for _, arm := range n.Arms {
			if err := w.expr(arm.Cond); err != nil {
				return err
			}
			if err := w.stmts(arm.Body); err != nil {
				return err
			}
		}
		return w.stmts(n.Else)
	case *While:
		if err := w.expr(n.Cond); err != nil {
			return err
		}
		return w.stmts(n.Body)
	case *DoWhile:
		if err := w.stmts(n.Body); err != nil {
			return err
		}
		return w.expr(n.Cond)
	case *ForInfinite:
		return w.stmts(n.Body)
	case *ForLoop:
		if err := w.stmt(n.Init); err != nil {
			return err
		}
		if err := w.expr(n.Test); err != nil {
			return err
		}
		if err := w.stmt(n.Inc); err != nil {
			return err
		}
		return w.stmts(n.Body)
	case *ForList:
		if err := w.expr(n.In); err != nil {
			return err
		}
		return w.stmts(n.Body)
	case *ForRange:
		if err := w.exprs(n.Start, n.End, n.Step); err != nil {
			return err
		}
		return w.stmts(n.Body)
	case *Switch:
		if err := w.expr(n.Value); err != nil {
			return err
		}
		for _, c := range n.Cases {
			for _, m := range c.Cases {
				if err := w.exprs(m.Start, m.End); err != nil {
					return err
				}
			}
			if err := w.stmts(c.Body); err != nil {
				return err
			}
		}
		return w.stmts(n.Default)
	case *Label:
		return w.stmts(n.Body)
	case *Del:
		return w.expr(n.Value)
	case *Spawn:
		if err := w.expr(n.Delay); err != nil {
			return err
		}
		return w.stmts(n.Body)
	case *TryCatch:
		if err := w.stmts(n.Try); err != nil {
			return err
		}
		return w.stmts(n.Catch)
	case *Throw:
		return w.expr(n.Value)
	case *Crash:
		return w.expr(n.Value)
	case *Setting:
		return w.expr(n.Value)
	}
	return nil
}

func (w walker) expr(e Expression) error {
	if e == nil {
		return nil
	}
	if err := w.v.visit(e); err != nil {
		return err
	}

	switch n := e.(type) {
	case *List:
		for _, entry := range n.Entries {
			if err := w.exprs(entry.Key, entry.Value); err != nil {
				return err
			}
		}
	case *BinaryOp:
		return w.exprs(n.Lhs, n.Rhs)
	case *AssignOp:
		return w.exprs(n.Lhs, n.Rhs)
	case *TernaryOp:
		return w.exprs(n.Cond, n.If, n.Else)
	case *UnaryOp:
		return w.expr(n.Expr)
	case *InterpString:
		for _, p := range n.Parts {
			if err := w.expr(p.Expr); err != nil {
				return err
			}
		}
	case *Locate:
		if err := w.exprs(n.Args...); err != nil {
			return err
		}
		return w.expr(n.In)
	case *Prefab:
		for _, pv := range n.Vars {
			if err := w.expr(pv.Value); err != nil {
				return err
			}
		}
	case *Index:
		return w.exprs(n.Expr, n.Index)
	case *Field:
		return w.expr(n.Expr)
	case *StaticField:
		return w.expr(n.Expr)
	case *Call:
		if err := w.expr(n.Target); err != nil {
			return err
		}
		return w.exprs(n.Args...)
	case *SelfCall:
		return w.exprs(n.Args...)
	case *ParentCall:
		return w.exprs(n.Args...)
	case *ExternalCall:
		if err := w.exprs(n.Library, n.Function); err != nil {
			return err
		}
		return w.exprs(n.Args...)
	case *DynamicCall:
		if err := w.exprs(n.Callee...); err != nil {
			return err
		}
		return w.exprs(n.Args...)
	case *NewPrefab:
		if n.Prefab != nil {
			if err := w.expr(n.Prefab); err != nil {
				return err
			}
		}
		return w.exprs(n.Args...)
	case *NewImplicit:
		return w.exprs(n.Args...)
	case *NewExpr:
		if err := w.expr(n.Type); err != nil {
			return err
		}
		return w.exprs(n.Args...)
	case *Input:
		if err := w.exprs(n.Args...); err != nil {
			return err
		}
		return w.expr(n.In)
	case *Pick:
		for _, p := range n.Entries {
			if err := w.exprs(p.Weight, p.Value); err != nil {
				return err
			}
		}
	}
	return nil
}
