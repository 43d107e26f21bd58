// Package dme loads DM environments into a type tree.
//
// An Environment owns every TypeDecl in an arena indexed by absolute path.
// Parent links are arena indices, so the tree has no owning cycles. Loading
// is all or nothing: any lexical, preprocessor or grammar error aborts the
// load and no Environment is returned.
//
// Lookups are safe for concurrent use. SetVar is not, and must not race
// with readers.
package dme

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"avulto/internal/ast"
	"avulto/internal/dmerr"
	"avulto/internal/dmpath"
	"avulto/internal/lexer"
	"avulto/internal/source"

	"github.com/rs/zerolog/log"
)

// ProcParsing selects when proc bodies are parsed.
type ProcParsing int

const (
	// ProcsLazy parses a body the first time it is requested.
	ProcsLazy ProcParsing = iota
	// ProcsEager parses every body during the load.
	ProcsEager
)

// ParseProcParsing maps "lazy" and "eager" to a mode.
func ParseProcParsing(s string) (ProcParsing, error) {
	switch s {
	case "", "lazy":
		return ProcsLazy, nil
	case "eager":
		return ProcsEager, nil
	}
	return ProcsLazy, fmt.Errorf("unknown proc parsing mode %q", s)
}

type options struct {
	procs    ProcParsing
	defines  map[string]string
	readFile lexer.ReadFileFunc
}

// Option configures a load.
type Option func(*options)

// WithProcParsing sets the proc parsing mode. The default is lazy.
func WithProcParsing(mode ProcParsing) Option {
	return func(o *options) { o.procs = mode }
}

// WithDefine adds a preprocessor definition.
func WithDefine(name, value string) Option {
	return func(o *options) {
		if o.defines == nil {
			o.defines = make(map[string]string)
		}
		o.defines[name] = value
	}
}

// WithFS reads source files from fsys instead of the operating system.
func WithFS(fsys fs.FS) Option {
	return func(o *options) {
		o.readFile = func(name string) ([]byte, error) { return fs.ReadFile(fsys, name) }
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Environment is a parsed type tree.
type Environment struct {
	types     []*TypeDecl
	index     map[string]int
	includes  []string
	resources []string
}

func newEnvironment() *Environment {
	e := &Environment{index: make(map[string]int)}
	e.ensure(dmpath.Root(), source.Builtins)
	e.seedBuiltins()
	return e
}

// Load reads file and everything it includes.
func Load(ctx context.Context, file string, opts ...Option) (*Environment, error) {
	return LoadSources(ctx, []string{file}, opts...)
}

// LoadSources merges several root files into one environment.
func LoadSources(ctx context.Context, files []string, opts ...Option) (*Environment, error) {
	o := buildOptions(opts)
	e := newEnvironment()
	start := time.Now()
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := lexer.LexFile(file, lexer.Options{ReadFile: o.readFile, Defines: o.defines})
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
		if err := e.add(res); err != nil {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}
	if err := e.finish(o); err != nil {
		return nil, err
	}
	log.Debug().
		Strs("files", files).
		Int("types", e.Len()).
		Int("includes", len(e.includes)).
		Dur("elapsed", time.Since(start)).
		Msg("Parsed environment")
	return e, nil
}

// Parse builds an environment from in-memory source. Includes are resolved
// relative to name.
func Parse(name, src string, opts ...Option) (*Environment, error) {
	o := buildOptions(opts)
	res, err := lexer.LexString(name, src, lexer.Options{ReadFile: o.readFile, Defines: o.defines})
	if err != nil {
		return nil, err
	}
	e := newEnvironment()
	if err := e.add(res); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if err := e.finish(o); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Environment) add(res *lexer.Result) error {
	e.includes = append(e.includes, res.Includes...)
	e.resources = append(e.resources, res.Resources...)
	tp := &treeParser{env: e, toks: res.Tokens}
	return tp.run()
}

func (e *Environment) finish(o options) error {
	e.resolveTags()
	if o.procs != ProcsEager {
		return nil
	}
	for _, td := range e.types {
		for _, name := range td.procOrder {
			for _, proc := range td.procs[name] {
				if _, err := proc.Body(); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// resolveTags decides, for each value given without a var/ keyword,
// whether it modifies an inherited variable.
func (e *Environment) resolveTags() {
	for _, td := range e.types {
		for _, name := range td.varOrder {
			v := td.vars[name]
			if v.ascribed {
				v.Tag = Declared
				continue
			}
			var decl *VarDecl
			if parent := td.Parent(); parent != nil {
				parent.chain(func(cur *TypeDecl) bool {
					if d, ok := cur.vars[name]; ok && d.ascribed {
						decl = d
						return false
					}
					return true
				})
			}
			if decl == nil {
				log.Debug().Str("type", td.Path.Rel()).Str("var", name).Msg("Value given for undeclared var")
				v.Tag = Declared
				continue
			}
			v.Tag = Modified
			v.Type = decl.Type
			v.Flags = decl.Flags
		}
	}
}

// ensure returns the node for p, creating it and any missing ancestors.
func (e *Environment) ensure(p dmpath.Path, loc source.Location) *TypeDecl {
	if id, ok := e.index[p.Abs()]; ok {
		return e.types[id]
	}
	parent := -1
	if !p.IsRoot() {
		parent = e.ensure(p.Parent(), loc).id
	}
	td := newTypeDecl(e, len(e.types), parent, p, loc)
	td.implicit = !loc.IsBuiltin()
	e.types = append(e.types, td)
	e.index[p.Abs()] = td.id
	if parent >= 0 {
		e.types[parent].children = append(e.types[parent].children, td.id)
	}
	return td
}

// declare is ensure for a path named directly in source. The first such
// mention becomes the type's location.
func (e *Environment) declare(p dmpath.Path, loc source.Location) *TypeDecl {
	td := e.ensure(p, loc)
	if td.implicit {
		td.Location = loc
		td.implicit = false
	}
	return td
}

// Len returns the number of types, built-ins included.
func (e *Environment) Len() int { return len(e.types) }

// Includes lists the code files read, in inclusion order.
func (e *Environment) Includes() []string { return e.includes }

// Resources lists non-code files named by #include, such as maps.
func (e *Environment) Resources() []string { return e.resources }

// Root returns the universal root type.
func (e *Environment) Root() *TypeDecl { return e.types[0] }

// TypeDecl returns the node for p in any of its written forms.
func (e *Environment) TypeDecl(p dmpath.Path) (*TypeDecl, error) {
	id, ok := e.index[p.Abs()]
	if !ok {
		return nil, dmerr.NotFound("path", p.Rel())
	}
	return e.types[id], nil
}

// Lookup parses s and returns its node.
func (e *Environment) Lookup(s string) (*TypeDecl, error) {
	p, err := dmpath.New(s)
	if err != nil {
		return nil, err
	}
	return e.TypeDecl(p)
}

// Has reports whether p names a type in the tree.
func (e *Environment) Has(p dmpath.Path) bool {
	_, ok := e.index[p.Abs()]
	return ok
}

// TypesOf returns p and all of its descendants. Callers must not depend
// on the order.
func (e *Environment) TypesOf(p dmpath.Path) ([]dmpath.Path, error) {
	subs, err := e.SubtypesOf(p)
	if err != nil {
		return nil, err
	}
	return append([]dmpath.Path{e.types[e.index[p.Abs()]].Path}, subs...), nil
}

// SubtypesOf returns the strict descendants of p in declaration order.
func (e *Environment) SubtypesOf(p dmpath.Path) ([]dmpath.Path, error) {
	td, err := e.TypeDecl(p)
	if err != nil {
		return nil, err
	}
	var out []dmpath.Path
	for _, cand := range e.types[td.id+1:] {
		if td.Path.ParentOf(cand.Path, true) {
			out = append(out, cand.Path)
		}
	}
	return out, nil
}

// Paths returns every path in declaration order, built-ins first.
func (e *Environment) Paths() []dmpath.Path {
	out := make([]dmpath.Path, len(e.types))
	for i, td := range e.types {
		out[i] = td.Path
	}
	return out
}

// PathsPrefixed returns prefix and its descendants, sorted by written form.
func (e *Environment) PathsPrefixed(prefix dmpath.Path) []dmpath.Path {
	var out []dmpath.Path
	for _, td := range e.types {
		if td.Path.IsPrefixedBy(prefix) {
			out = append(out, td.Path)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rel() < out[j].Rel() })
	return out
}

// WalkProc walks the body of proc as seen from the type at p.
func (e *Environment) WalkProc(p dmpath.Path, proc string, v *ast.Visitor) error {
	td, err := e.TypeDecl(p)
	if err != nil {
		return err
	}
	return td.WalkProc(proc, v)
}
