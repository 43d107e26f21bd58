package lint

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"avulto/internal/ast"
	"avulto/internal/dme"
	"avulto/internal/dmerr"
	"avulto/internal/dmm"
	"avulto/internal/dmpath"
	"avulto/internal/source"

	"github.com/rs/zerolog/log"
)

// Finding is one reported problem.
type Finding struct {
	Rule     string
	Severity Severity
	Message  string
	Location source.Location
	// Subject names what was checked: a type path, proc or map tile.
	Subject string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: %s: [%s] %s: %s", f.Location, f.Severity, f.Rule, f.Subject, f.Message)
}

// parseRule names findings for proc bodies that fail to parse.
const parseRule = "parse"

func (m meta) finding(loc source.Location, subject, fallback string) Finding {
	msg := m.Message
	if msg == "" {
		msg = fallback
	}
	return Finding{Rule: m.Name, Severity: m.Severity, Message: msg, Location: loc, Subject: subject}
}

func inScope(p dmpath.Path, scope []dmpath.Path) bool {
	if len(scope) == 0 {
		return true
	}
	for _, s := range scope {
		if p.IsPrefixedBy(s) {
			return true
		}
	}
	return false
}

// CheckEnvironment runs the proc and var rules over env.
func (rs *RuleSet) CheckEnvironment(env *dme.Environment) ([]Finding, error) {
	var findings []Finding
	if len(rs.Calls) > 0 || len(rs.Nodes) > 0 {
		for _, p := range env.Paths() {
			td, err := env.TypeDecl(p)
			if err != nil {
				return nil, err
			}
			found, err := rs.checkProcs(td)
			if err != nil {
				return nil, err
			}
			findings = append(findings, found...)
		}
	}
	for _, rule := range rs.Vars {
		found, err := rule.check(env)
		if err != nil {
			return nil, err
		}
		findings = append(findings, found...)
	}

	sortFindings(findings)
	log.Debug().Int("findings", len(findings)).Msg("Checked environment")
	return findings, nil
}

// checkProcs walks the bodies of the procs td defines itself.
func (rs *RuleSet) checkProcs(td *dme.TypeDecl) ([]Finding, error) {
	var calls []*CallRule
	for _, r := range rs.Calls {
		if inScope(td.Path, r.Types) {
			calls = append(calls, r)
		}
	}
	var nodes []*NodeRule
	for _, r := range rs.Nodes {
		if inScope(td.Path, r.Types) {
			nodes = append(nodes, r)
		}
	}
	if len(calls) == 0 && len(nodes) == 0 {
		return nil, nil
	}

	var findings []Finding
	var subject string
	checks := make(map[ast.Kind][]ast.Handler)
	if len(calls) > 0 {
		checks[ast.KindCall] = append(checks[ast.KindCall], func(n ast.Node, loc source.Location) error {
			call := n.(*ast.Call)
			for _, r := range calls {
				if r.Procs[call.Name] {
					findings = append(findings, r.finding(loc, subject, fmt.Sprintf("call to %s is not allowed", call.Name)))
				}
			}
			return nil
		})
	}
	for _, r := range nodes {
		r := r
		for _, k := range r.Kinds {
			checks[k] = append(checks[k], func(n ast.Node, loc source.Location) error {
				findings = append(findings, r.finding(loc, subject, fmt.Sprintf("%s is not allowed", n.Kind())))
				return nil
			})
		}
	}
	// A visitor holds one handler per kind.
	v := ast.NewVisitor()
	for k, hs := range checks {
		hs := hs
		v.On(k, func(n ast.Node, loc source.Location) error {
			for _, h := range hs {
				if err := h(n, loc); err != nil {
					return err
				}
			}
			return nil
		})
	}

	for _, name := range td.ProcNames(dme.ProcFilter{Declared: true, Modified: true}) {
		for _, pd := range td.ProcDecls(name) {
			if !pd.Owner.Equal(td.Path) || !pd.HasBody() {
				continue
			}
			subject = td.Path.Rel() + "/proc/" + name
			body, err := pd.Body()
			if err != nil {
				var perr *dmerr.ParseError
				if !errors.As(err, &perr) {
					return nil, err
				}
				findings = append(findings, Finding{
					Rule: parseRule, Severity: Error, Message: perr.Msg, Location: perr.Loc, Subject: subject,
				})
				continue
			}
			if err := ast.Walk(body, v); err != nil {
				return nil, fmt.Errorf("walk %s: %w", subject, err)
			}
		}
	}
	return findings, nil
}

func (r *VarRule) check(env *dme.Environment) ([]Finding, error) {
	var findings []Finding
	seen := make(map[string]bool)
	for _, scope := range r.Types {
		for _, p := range env.PathsPrefixed(scope) {
			if seen[p.Abs()] {
				continue
			}
			seen[p.Abs()] = true
			td, err := env.TypeDecl(p)
			if err != nil {
				return nil, err
			}
			subject := p.Rel()

			decl, err := td.VarDecl(r.Var)
			if errors.Is(err, dmerr.ErrNotFound) {
				findings = append(findings, r.finding(td.Location, subject, fmt.Sprintf("var %s is not defined", r.Var)))
				continue
			}
			if err != nil {
				return nil, err
			}

			if r.Required && !decl.Owner.Equal(p) {
				findings = append(findings, r.finding(td.Location, subject, fmt.Sprintf("var %s must be set on the type itself", r.Var)))
			}
			loc := decl.Location
			if !decl.Owner.Equal(p) {
				loc = td.Location
			}
			if r.Expect != nil && !(decl.Const && decl.Value.Equal(*r.Expect)) {
				findings = append(findings, r.finding(loc, subject, fmt.Sprintf("var %s is %s, want %s", r.Var, describe(decl), r.Expect)))
			}
			if r.Forbid != nil && decl.Const && decl.Value.Equal(*r.Forbid) {
				findings = append(findings, r.finding(loc, subject, fmt.Sprintf("var %s must not be %s", r.Var, r.Forbid)))
			}
		}
	}
	return findings, nil
}

func describe(decl *dme.VarDecl) string {
	if !decl.Const {
		return "not constant"
	}
	return decl.Value.String()
}

// CheckMap runs the tile rules over m. Each distinct tile content is
// reported once, at its first coordinate.
func (rs *RuleSet) CheckMap(m *dmm.Map) []Finding {
	if len(rs.Tiles) == 0 {
		return nil
	}
	var findings []Finding
	for _, tile := range m.Tiles() {
		coords := m.CoordsOf(tile)
		if len(coords) == 0 {
			continue
		}
		first := coords[0]
		loc := source.Location{File: m.Name()}
		subject := fmt.Sprintf("%s %q", first, tile.Key())
		if len(coords) > 1 {
			subject = fmt.Sprintf("%s %q and %d more", first, tile.Key(), len(coords)-1)
		}

		for _, r := range rs.Tiles {
			for _, p := range r.Single {
				if n := len(tile.Find(p)); n > 1 {
					findings = append(findings, r.finding(loc, subject, fmt.Sprintf("%d prefabs under %s, want at most one", n, p)))
				}
			}
			for _, p := range r.Forbid {
				for _, i := range tile.Find(p) {
					path, _ := tile.PrefabPath(i)
					findings = append(findings, r.finding(loc, subject, fmt.Sprintf("%s is not allowed on maps", path)))
				}
			}
		}
	}
	log.Debug().Str("map", m.Name()).Int("findings", len(findings)).Msg("Checked map")
	return findings
}

// Failed reports whether any finding is at least min.
func Failed(findings []Finding, min Severity) bool {
	return slices.ContainsFunc(findings, func(f Finding) bool { return f.Severity >= min })
}

func sortFindings(fs []Finding) {
	slices.SortStableFunc(fs, func(a, b Finding) int {
		if c := cmp.Compare(a.Location.File, b.Location.File); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Location.Line, b.Location.Line); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Location.Column, b.Location.Column); c != 0 {
			return c
		}
		return cmp.Compare(a.Rule, b.Rule)
	})
}
