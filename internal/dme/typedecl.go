package dme

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"avulto/internal/ast"
	"avulto/internal/constant"
	"avulto/internal/dmerr"
	"avulto/internal/dmpath"
	"avulto/internal/lexer"
	"avulto/internal/parser"
	"avulto/internal/source"
)

// ErrEmptyProc is returned when walking a proc that was declared without a
// body.
var ErrEmptyProc = errors.New("proc has no body")

// VarTag records how a variable entry came to live on a type.
type VarTag int

const (
	// Declared entries introduce the variable's type ascription.
	Declared VarTag = iota
	// Modified entries only change the value of an inherited variable.
	Modified
)

func (t VarTag) String() string {
	if t == Modified {
		return "modified"
	}
	return "declared"
}

// VarDecl is one variable entry on a type.
type VarDecl struct {
	Name string
	// Type is the ascription from the declaring ancestor; the root path
	// when untyped.
	Type dmpath.Path
	// Value holds the folded initializer. It is null when Const is false.
	Value constant.Value
	Const bool
	// Expr is the initializer as written, nil when there is none.
	Expr     ast.Expression
	Tag      VarTag
	Flags    []string
	Location source.Location
	Owner    dmpath.Path

	ascribed bool
}

// HasFlag reports whether the declaration carried a modifier such as
// "static" or "const".
func (v *VarDecl) HasFlag(flag string) bool {
	for _, f := range v.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Param is a proc parameter.
type Param struct {
	Name    string
	Type    dmpath.Path
	Default ast.Expression
	As      []string
}

// ProcDecl is one definition of a proc on a type. Bodies are parsed on
// first use unless the environment was loaded eagerly; Body is safe for
// concurrent use.
type ProcDecl struct {
	Name     string
	Owner    dmpath.Path
	Location source.Location
	Params   []Param
	Verb     bool
	// Declared is set when the definition used proc/ or verb/.
	Declared bool

	mu      sync.Mutex
	tokens  []lexer.Token
	hasBody bool
	parsed  bool
	body    []ast.Statement
	err     error
}

// HasBody reports whether the definition had a block.
func (p *ProcDecl) HasBody() bool { return p.hasBody }

// Parsed reports whether the body has been materialized.
func (p *ProcDecl) Parsed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.parsed
}

// Body returns the parsed statements, parsing them on the first call.
func (p *ProcDecl) Body() ([]ast.Statement, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.parsed {
		p.body, p.err = parser.ParseBody(p.tokens)
		if p.err != nil {
			p.err = fmt.Errorf("parse proc %s/%s: %w", p.Owner.Rel(), p.Name, p.err)
		}
		p.parsed = true
		p.tokens = nil
	}
	return p.body, p.err
}

// VarFilter selects variable names. The zero value selects every name
// visible on the type; set flags are combined as a union.
type VarFilter struct {
	Declared   bool
	Modified   bool
	Unmodified bool
}

// ProcFilter selects proc names the same way VarFilter does.
type ProcFilter struct {
	Declared bool
	Modified bool
}

// TypeDecl is one node of the type tree.
type TypeDecl struct {
	Path     dmpath.Path
	Location source.Location

	env      *Environment
	id       int
	parent   int
	children []int
	// implicit is set until the type is named by a line of its own.
	implicit bool

	vars      map[string]*VarDecl
	varOrder  []string
	procs     map[string][]*ProcDecl
	procOrder []string
}

func newTypeDecl(env *Environment, id, parent int, p dmpath.Path, loc source.Location) *TypeDecl {
	return &TypeDecl{
		Path:     p,
		Location: loc,
		env:      env,
		id:       id,
		parent:   parent,
		vars:     make(map[string]*VarDecl),
		procs:    make(map[string][]*ProcDecl),
	}
}

func (t *TypeDecl) String() string { return t.Path.Rel() }

// Parent returns the nearest ancestor, or nil for the root.
func (t *TypeDecl) Parent() *TypeDecl {
	if t.parent < 0 {
		return nil
	}
	return t.env.types[t.parent]
}

// Children returns direct subtypes in declaration order.
func (t *TypeDecl) Children() []*TypeDecl {
	out := make([]*TypeDecl, len(t.children))
	for i, id := range t.children {
		out[i] = t.env.types[id]
	}
	return out
}

func (t *TypeDecl) chain(fn func(*TypeDecl) bool) {
	for cur := t; cur != nil; cur = cur.Parent() {
		if !fn(cur) {
			return
		}
	}
}

// setVar records v on t. A value given without var/ for a name t itself
// declares only updates the value and keeps the ascription.
func (t *TypeDecl) setVar(v *VarDecl) {
	prev, ok := t.vars[v.Name]
	if !ok {
		t.varOrder = append(t.varOrder, v.Name)
	}
	if ok && prev.ascribed && !v.ascribed {
		prev.Value, prev.Const, prev.Expr, prev.Location = v.Value, v.Const, v.Expr, v.Location
		return
	}
	t.vars[v.Name] = v
}

func (t *TypeDecl) addProc(p *ProcDecl) {
	if _, ok := t.procs[p.Name]; !ok {
		t.procOrder = append(t.procOrder, p.Name)
	}
	t.procs[p.Name] = append(t.procs[p.Name], p)
}

// VarNames lists variable names selected by f, sorted.
func (t *TypeDecl) VarNames(f VarFilter) []string {
	seen := make(map[string]bool)
	if f == (VarFilter{}) {
		t.chain(func(cur *TypeDecl) bool {
			for _, name := range cur.varOrder {
				seen[name] = true
			}
			return true
		})
		return sortedKeys(seen)
	}

	for name, v := range t.vars {
		if (f.Declared && v.Tag == Declared) || (f.Modified && v.Tag == Modified) {
			seen[name] = true
		}
	}
	if f.Unmodified {
		if parent := t.Parent(); parent != nil {
			for _, name := range parent.VarNames(VarFilter{}) {
				if _, local := t.vars[name]; !local {
					seen[name] = true
				}
			}
		}
	}
	return sortedKeys(seen)
}

// VarDecl returns the nearest entry for name, starting at t.
func (t *TypeDecl) VarDecl(name string) (*VarDecl, error) {
	var found *VarDecl
	t.chain(func(cur *TypeDecl) bool {
		found = cur.vars[name]
		return found == nil
	})
	if found == nil {
		return nil, dmerr.NotFound("var", name)
	}
	return found, nil
}

// Value returns the resolved constant value of name.
func (t *TypeDecl) Value(name string) (constant.Value, error) {
	v, err := t.VarDecl(name)
	if err != nil {
		return constant.Value{}, err
	}
	return v.Value, nil
}

// SetVar overrides the value of an inherited or local variable. The entry
// is tagged modified unless t itself declares the variable.
func (t *TypeDecl) SetVar(name string, value constant.Value) error {
	if local, ok := t.vars[name]; ok {
		local.Value, local.Const, local.Expr = value, true, nil
		return nil
	}
	inherited, err := t.VarDecl(name)
	if err != nil {
		return err
	}
	t.setVar(&VarDecl{
		Name:     name,
		Type:     inherited.Type,
		Value:    value,
		Const:    true,
		Tag:      Modified,
		Flags:    inherited.Flags,
		Location: source.Builtins,
		Owner:    t.Path,
	})
	return nil
}

// ProcNames lists proc names selected by f, sorted.
func (t *TypeDecl) ProcNames(f ProcFilter) []string {
	seen := make(map[string]bool)
	if f == (ProcFilter{}) {
		t.chain(func(cur *TypeDecl) bool {
			for _, name := range cur.procOrder {
				seen[name] = true
			}
			return true
		})
		return sortedKeys(seen)
	}
	for name, decls := range t.procs {
		declared := false
		for _, d := range decls {
			declared = declared || d.Declared
		}
		if (f.Declared && declared) || (f.Modified && !declared) {
			seen[name] = true
		}
	}
	return sortedKeys(seen)
}

// ProcDecls lists every definition of name visible from t: t's own
// definitions first, most recent first, then each ancestor's in turn.
func (t *TypeDecl) ProcDecls(name string) []*ProcDecl {
	var out []*ProcDecl
	t.chain(func(cur *TypeDecl) bool {
		decls := cur.procs[name]
		for i := len(decls) - 1; i >= 0; i-- {
			out = append(out, decls[i])
		}
		return true
	})
	return out
}

// Proc returns the definition of name that applies to t.
func (t *TypeDecl) Proc(name string) (*ProcDecl, error) {
	decls := t.ProcDecls(name)
	if len(decls) == 0 {
		return nil, dmerr.NotFound("proc", t.Path.Rel()+"/"+name)
	}
	return decls[0], nil
}

// WalkProc walks the body of the proc name that applies to t.
func (t *TypeDecl) WalkProc(name string, v *ast.Visitor) error {
	proc, err := t.Proc(name)
	if err != nil {
		return err
	}
	if !proc.HasBody() {
		return ErrEmptyProc
	}
	body, err := proc.Body()
	if err != nil {
		return err
	}
	return ast.Walk(body, v)
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
