// Package lint runs static checks over environments and maps. Checks are
// declared in HCL rule files.
package lint

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"avulto/internal/ast"
	"avulto/internal/constant"
	"avulto/internal/dmerr"
	"avulto/internal/dmpath"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/rs/zerolog/log"
	"github.com/zclconf/go-cty/cty"
)

// Severity orders findings.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Error:
		return "error"
	}
	return "warning"
}

// ParseSeverity accepts info, warning or error. Empty means warning.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(s) {
	case "info":
		return Info, nil
	case "", "warning":
		return Warning, nil
	case "error":
		return Error, nil
	}
	return Warning, fmt.Errorf("unknown severity %q", s)
}

// hclRuleFile is the top-level structure of a rule file.
type hclRuleFile struct {
	Calls []*hclCallRule `hcl:"forbid_call,block"`
	Nodes []*hclNodeRule `hcl:"forbid_node,block"`
	Vars  []*hclVarRule  `hcl:"var_check,block"`
	Tiles []*hclTileRule `hcl:"tile_check,block"`
}

type hclCallRule struct {
	Name     string   `hcl:"name,label"`
	Procs    []string `hcl:"procs"`
	Types    []string `hcl:"types,optional"`
	Message  string   `hcl:"message,optional"`
	Severity string   `hcl:"severity,optional"`
}

type hclNodeRule struct {
	Name     string   `hcl:"name,label"`
	Kinds    []string `hcl:"kinds"`
	Types    []string `hcl:"types,optional"`
	Message  string   `hcl:"message,optional"`
	Severity string   `hcl:"severity,optional"`
}

type hclVarRule struct {
	Name     string     `hcl:"name,label"`
	Types    []string   `hcl:"types"`
	Var      string     `hcl:"var"`
	Required bool       `hcl:"required,optional"`
	Expect   *cty.Value `hcl:"expect,optional"`
	Forbid   *cty.Value `hcl:"forbid,optional"`
	Message  string     `hcl:"message,optional"`
	Severity string     `hcl:"severity,optional"`
}

type hclTileRule struct {
	Name     string   `hcl:"name,label"`
	Single   []string `hcl:"single,optional"`
	Forbid   []string `hcl:"forbid,optional"`
	Message  string   `hcl:"message,optional"`
	Severity string   `hcl:"severity,optional"`
}

// meta is shared by every rule.
type meta struct {
	Name     string
	Message  string
	Severity Severity
}

// CallRule flags calls to any of Procs made from procs of Types.
type CallRule struct {
	meta
	Procs map[string]bool
	Types []dmpath.Path
}

// NodeRule flags statements or expressions of the given kinds.
type NodeRule struct {
	meta
	Kinds []ast.Kind
	Types []dmpath.Path
}

// VarRule checks the resolved value of Var on every subtype of Types.
// Required demands that each type carry its own entry.
type VarRule struct {
	meta
	Types    []dmpath.Path
	Var      string
	Required bool
	Expect   *constant.Value
	Forbid   *constant.Value
}

// TileRule checks map tiles: at most one prefab under each Single path,
// no prefab under any Forbid path.
type TileRule struct {
	meta
	Single []dmpath.Path
	Forbid []dmpath.Path
}

// RuleSet is a decoded rule file.
type RuleSet struct {
	Calls []*CallRule
	Nodes []*NodeRule
	Vars  []*VarRule
	Tiles []*TileRule
}

// Len counts every rule.
func (rs *RuleSet) Len() int {
	return len(rs.Calls) + len(rs.Nodes) + len(rs.Vars) + len(rs.Tiles)
}

// LoadRules reads an HCL rule file.
func LoadRules(path string) (*RuleSet, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, dmerr.IO("read", path, err)
	}
	rs, err := ParseRules(path, src)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("file", path).Int("rules", rs.Len()).Msg("Loaded lint rules")
	return rs, nil
}

// ParseRules decodes rule file source.
func ParseRules(filename string, src []byte) (*RuleSet, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse rule file %s: %w", filename, diags)
	}

	var parsed hclRuleFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode rule file %s: %w", filename, diags)
	}

	rs := &RuleSet{}
	seen := make(map[string]bool)
	var errs []error
	check := func(name, sev, msg string) meta {
		if seen[name] {
			errs = append(errs, fmt.Errorf("duplicate rule %q", name))
		}
		seen[name] = true
		s, err := ParseSeverity(sev)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %q: %w", name, err))
		}
		return meta{Name: name, Message: msg, Severity: s}
	}
	paths := func(rule string, in []string) []dmpath.Path {
		out := make([]dmpath.Path, 0, len(in))
		for _, s := range in {
			p, err := dmpath.New(s)
			if err != nil {
				errs = append(errs, fmt.Errorf("rule %q: %w", rule, err))
				continue
			}
			out = append(out, p)
		}
		return out
	}
	value := func(rule string, v *cty.Value) *constant.Value {
		if v == nil {
			return nil
		}
		c, err := toConstant(*v)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %q: %w", rule, err))
			return nil
		}
		return &c
	}

	for _, r := range parsed.Calls {
		procs := make(map[string]bool, len(r.Procs))
		for _, p := range r.Procs {
			procs[p] = true
		}
		rs.Calls = append(rs.Calls, &CallRule{
			meta:  check(r.Name, r.Severity, r.Message),
			Procs: procs,
			Types: paths(r.Name, r.Types),
		})
	}
	for _, r := range parsed.Nodes {
		rule := &NodeRule{meta: check(r.Name, r.Severity, r.Message), Types: paths(r.Name, r.Types)}
		for _, k := range r.Kinds {
			kind, ok := ast.ParseKind(k)
			if !ok {
				errs = append(errs, fmt.Errorf("rule %q: unknown node kind %q", r.Name, k))
				continue
			}
			rule.Kinds = append(rule.Kinds, kind)
		}
		rs.Nodes = append(rs.Nodes, rule)
	}
	for _, r := range parsed.Vars {
		rs.Vars = append(rs.Vars, &VarRule{
			meta:     check(r.Name, r.Severity, r.Message),
			Types:    paths(r.Name, r.Types),
			Var:      r.Var,
			Required: r.Required,
			Expect:   value(r.Name, r.Expect),
			Forbid:   value(r.Name, r.Forbid),
		})
	}
	for _, r := range parsed.Tiles {
		rs.Tiles = append(rs.Tiles, &TileRule{
			meta:   check(r.Name, r.Severity, r.Message),
			Single: paths(r.Name, r.Single),
			Forbid: paths(r.Name, r.Forbid),
		})
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid rule file %s: %w", filename, err)
	}
	return rs, nil
}

// toConstant converts an HCL value to a DM constant. Strings starting
// with a slash are type paths; booleans become 1 and 0.
func toConstant(v cty.Value) (constant.Value, error) {
	if v.IsNull() {
		return constant.Null(), nil
	}
	if !v.IsKnown() {
		return constant.Value{}, errors.New("value is not known")
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		s := v.AsString()
		if strings.HasPrefix(s, "/") {
			p, err := dmpath.New(s)
			if err != nil {
				return constant.Value{}, err
			}
			return constant.Path(p), nil
		}
		return constant.String(s), nil

	case ty == cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return constant.Number(f), nil

	case ty == cty.Bool:
		if v.True() {
			return constant.Int(1), nil
		}
		return constant.Int(0), nil

	case ty.IsListType() || ty.IsTupleType():
		var entries []constant.Entry
		it := v.ElementIterator()
		for it.Next() {
			_, elem := it.Element()
			c, err := toConstant(elem)
			if err != nil {
				return constant.Value{}, err
			}
			entries = append(entries, constant.Item(c))
		}
		return constant.List(entries...), nil

	case ty.IsObjectType() || ty.IsMapType():
		var entries []constant.Entry
		it := v.ElementIterator()
		for it.Next() {
			key, elem := it.Element()
			c, err := toConstant(elem)
			if err != nil {
				return constant.Value{}, fmt.Errorf("in key %q: %w", key.AsString(), err)
			}
			entries = append(entries, constant.Pair(constant.String(key.AsString()), c))
		}
		return constant.List(entries...), nil
	}
	return constant.Value{}, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
}
