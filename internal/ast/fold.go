package ast

import (
	"math"

	"avulto/internal/constant"
)

// Resolver supplies values for identifiers met while folding. It reports
// false for names it does not know.
type Resolver func(name string) (constant.Value, bool)

// Fold evaluates e at compile time. It reports false when e depends on
// anything other than literals and names known to resolve.
func Fold(e Expression, resolve Resolver) (constant.Value, bool) {
	f := folder{resolve: resolve}
	return f.fold(e)
}

type folder struct {
	resolve Resolver
}

func (f folder) fold(e Expression) (constant.Value, bool) {
	switch n := e.(type) {
	case nil:
		return constant.Value{}, false
	case *Constant:
		return n.Value, true
	case *Identifier:
		if f.resolve == nil {
			return constant.Value{}, false
		}
		return f.resolve(n.Name)
	case *Prefab:
		if len(n.Vars) > 0 {
			return constant.Value{}, false
		}
		return constant.Path(n.Path), true
	case *List:
		return f.list(n)
	case *UnaryOp:
		v, ok := f.fold(n.Expr)
		if !ok {
			return v, false
		}
		return unary(n.Op, v)
	case *BinaryOp:
		l, ok := f.fold(n.Lhs)
		if !ok {
			return l, false
		}
		r, ok := f.fold(n.Rhs)
		if !ok {
			return r, false
		}
		return binary(n.Op, l, r)
	case *TernaryOp:
		c, ok := f.fold(n.Cond)
		if !ok {
			return c, false
		}
		if c.Truthy() {
			return f.fold(n.If)
		}
		return f.fold(n.Else)
	}
	return constant.Value{}, false
}

func (f folder) list(n *List) (constant.Value, bool) {
	entries := make([]constant.Entry, 0, len(n.Entries))
	for _, e := range n.Entries {
		v, ok := f.fold(e.Value)
		if !ok {
			return v, false
		}
		if e.Key == nil {
			entries = append(entries, constant.Item(v))
			continue
		}
		// list(a = 1) keys by the bare name.
		if id, isIdent := e.Key.(*Identifier); isIdent {
			entries = append(entries, constant.Pair(constant.String(id.Name), v))
			continue
		}
		k, ok := f.fold(e.Key)
		if !ok {
			return k, false
		}
		entries = append(entries, constant.Pair(k, v))
	}
	return constant.List(entries...), true
}

func unary(op UnaryOperator, v constant.Value) (constant.Value, bool) {
	if op == Not {
		return truth(!v.Truthy()), true
	}
	n, ok := v.AsNumber()
	if !ok {
		return constant.Value{}, false
	}
	switch op {
	case Neg:
		return constant.Number(-n), true
	case BitNot:
		return constant.Number(float64(^int32(n) & 0xFFFFFF)), true
	}
	return constant.Value{}, false
}

func truth(b bool) constant.Value {
	if b {
		return constant.Int(1)
	}
	return constant.Int(0)
}

func binary(op BinaryOperator, l, r constant.Value) (constant.Value, bool) {
	switch op {
	case And:
		if !l.Truthy() {
			return l, true
		}
		return r, true
	case Or:
		if l.Truthy() {
			return l, true
		}
		return r, true
	case Eq:
		return truth(l.Equal(r)), true
	case NotEq:
		return truth(!l.Equal(r)), true
	}

	if ls, ok := l.AsString(); ok && l.Kind() == constant.KindString {
		rs, ok := r.AsString()
		if !ok || r.Kind() != constant.KindString {
			return constant.Value{}, false
		}
		switch op {
		case Add:
			return constant.String(ls + rs), true
		case Less:
			return truth(ls < rs), true
		case Greater:
			return truth(ls > rs), true
		case LessEq:
			return truth(ls <= rs), true
		case GreaterEq:
			return truth(ls >= rs), true
		}
		return constant.Value{}, false
	}

	a, ok := l.AsNumber()
	if !ok {
		return constant.Value{}, false
	}
	b, ok := r.AsNumber()
	if !ok {
		return constant.Value{}, false
	}
	switch op {
	case Add:
		return constant.Number(a + b), true
	case Sub:
		return constant.Number(a - b), true
	case Mul:
		return constant.Number(a * b), true
	case Div:
		if b == 0 {
			return constant.Value{}, false
		}
		return constant.Number(a / b), true
	case Pow:
		return constant.Number(math.Pow(a, b)), true
	case Mod:
		if int64(b) == 0 {
			return constant.Value{}, false
		}
		return constant.Number(float64(int64(a) % int64(b))), true
	case FloatMod:
		if b == 0 {
			return constant.Value{}, false
		}
		return constant.Number(math.Mod(a, b)), true
	case Less:
		return truth(a < b), true
	case Greater:
		return truth(a > b), true
	case LessEq:
		return truth(a <= b), true
	case GreaterEq:
		return truth(a >= b), true
	case BitAnd:
		return constant.Number(float64(int64(a) & int64(b))), true
	case BitOr:
		return constant.Number(float64(int64(a) | int64(b))), true
	case BitXor:
		return constant.Number(float64(int64(a) ^ int64(b))), true
	case LShift:
		return constant.Number(float64(int64(a) << uint(b))), true
	case RShift:
		return constant.Number(float64(int64(a) >> uint(b))), true
	}
	return constant.Value{}, false
}
