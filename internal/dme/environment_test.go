package dme

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	"avulto/internal/ast"
	"avulto/internal/constant"
	"avulto/internal/dmerr"
	"avulto/internal/dmpath"
	"avulto/internal/source"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T, opts ...Option) *Environment {
	t.Helper()
	env, err := Load(context.Background(), filepath.Join("testdata", "testenv.dme"), opts...)
	require.NoError(t, err)
	return env
}

func lookup(t *testing.T, env *Environment, path string) *TypeDecl {
	t.Helper()
	td, err := env.Lookup(path)
	require.NoError(t, err)
	return td
}

func rels(paths []dmpath.Path) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = p.Rel()
	}
	return out
}

func TestInheritedAndOverriddenValues(t *testing.T) {
	env := loadFixture(t)

	testCases := []struct {
		path string
		want constant.Value
	}{
		{"/obj/foo", constant.Int(3)},
		{"/obj/foo/bar", constant.Int(4)},
		{"/obj/foo/baz", constant.Int(3)},
	}
	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			decl, err := lookup(t, env, tc.path).VarDecl("a")
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(decl.Value), "got %s", decl.Value)
			assert.True(t, decl.Const)
		})
	}
}

func TestMissingType(t *testing.T) {
	env := loadFixture(t)
	_, err := env.Lookup("/missing_type")
	require.Error(t, err)
	assert.ErrorIs(t, err, dmerr.ErrNotFound)
	assert.EqualError(t, err, "cannot find path /missing_type")
}

func TestLookupAcceptsAbsoluteForm(t *testing.T) {
	env := loadFixture(t)
	a := lookup(t, env, "/obj/foo")
	b := lookup(t, env, "/datum/atom/movable/obj/foo")
	assert.Same(t, a, b)
}

func TestVarNames(t *testing.T) {
	env := loadFixture(t)
	foo := lookup(t, env, "/obj/foo")
	bar := lookup(t, env, "/obj/foo/bar")
	baz := lookup(t, env, "/obj/foo/baz")

	local := VarFilter{Declared: true, Modified: true}
	assert.Equal(t, []string{"a", "icon", "icon_state"}, foo.VarNames(local))
	assert.Equal(t, []string{"a"}, foo.VarNames(VarFilter{Declared: true}))
	assert.Equal(t, []string{"icon", "icon_state"}, foo.VarNames(VarFilter{Modified: true}))
	assert.Equal(t, []string{"a"}, bar.VarNames(VarFilter{Modified: true}))
	assert.Empty(t, bar.VarNames(VarFilter{Declared: true}))
	assert.Empty(t, baz.VarNames(local))

	all := bar.VarNames(VarFilter{})
	assert.Subset(t, all, []string{"a", "icon", "name", "layer", "tag"})

	unmodified := bar.VarNames(VarFilter{Unmodified: true})
	assert.Contains(t, unmodified, "icon")
	assert.NotContains(t, unmodified, "a")
}

func TestVarDeclTagging(t *testing.T) {
	env := loadFixture(t)

	bar, err := lookup(t, env, "/obj/foo/bar").VarDecl("a")
	require.NoError(t, err)
	assert.Equal(t, Modified, bar.Tag)
	assert.Equal(t, "/obj/foo/bar", bar.Owner.Rel())

	icon, err := lookup(t, env, "/obj/foo").VarDecl("icon")
	require.NoError(t, err)
	assert.Equal(t, Modified, icon.Tag)
	assert.Equal(t, "/icon", icon.Type.Rel(), "ascription comes from /atom")
	assert.True(t, constant.Resource("foo.dmi").Equal(icon.Value))

	inherited, err := lookup(t, env, "/obj/foo/baz").VarDecl("a")
	require.NoError(t, err)
	assert.Equal(t, "/obj/foo", inherited.Owner.Rel())
	assert.Equal(t, Declared, inherited.Tag)

	_, err = lookup(t, env, "/obj/foo").VarDecl("nope")
	assert.ErrorIs(t, err, dmerr.ErrNotFound)
}

func TestOverrideOnDeclaringTypeKeepsAscription(t *testing.T) {
	testCases := []struct {
		name string
		fsys fstest.MapFS
		want constant.Value
	}{
		{
			name: "same block",
			fsys: fstest.MapFS{
				"env.dme": {Data: []byte("/obj/foo{var/list/a = 3; a = 5}\n/obj/foo/bar{a = 6}\n")},
			},
			want: constant.Int(5),
		},
		{
			name: "reopened in another file",
			fsys: fstest.MapFS{
				"env.dme": {Data: []byte("#include \"a.dm\"\n#include \"b.dm\"\n")},
				"a.dm":    {Data: []byte("/obj/foo\n\tvar/list/a = 3\n/obj/foo/bar\n\ta = 6\n")},
				"b.dm":    {Data: []byte("/obj/foo\n\ta = 7\n")},
			},
			want: constant.Int(7),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env, err := Load(context.Background(), "env.dme", WithFS(tc.fsys))
			require.NoError(t, err)

			foo := lookup(t, env, "/obj/foo")
			decl, err := foo.VarDecl("a")
			require.NoError(t, err)
			assert.Equal(t, Declared, decl.Tag)
			assert.Equal(t, "/list", decl.Type.Rel())
			assert.True(t, tc.want.Equal(decl.Value), "got %s", decl.Value)
			assert.Equal(t, []string{"a"}, foo.VarNames(VarFilter{Declared: true}))

			bar := lookup(t, env, "/obj/foo/bar")
			override, err := bar.VarDecl("a")
			require.NoError(t, err)
			assert.Equal(t, Modified, override.Tag)
			assert.Equal(t, "/list", override.Type.Rel())
			assert.True(t, constant.Int(6).Equal(override.Value))
			assert.Equal(t, []string{"a"}, bar.VarNames(VarFilter{Modified: true}))
			assert.Empty(t, bar.VarNames(VarFilter{Declared: true}))
		})
	}
}

func TestVarDeclarationForms(t *testing.T) {
	env := loadFixture(t)
	widget := lookup(t, env, "/datum/widget")

	max, err := widget.VarDecl("MAX")
	require.NoError(t, err)
	assert.True(t, max.HasFlag("const"))
	assert.True(t, constant.Int(8).Equal(max.Value))

	registry, err := widget.VarDecl("registry")
	require.NoError(t, err)
	assert.True(t, registry.HasFlag("static"))
	assert.Equal(t, "/list", registry.Type.Rel())
	assert.True(t, constant.List().Equal(registry.Value))

	parts, err := widget.VarDecl("parts")
	require.NoError(t, err)
	assert.Equal(t, "/list", parts.Type.Rel())
	assert.Nil(t, parts.Expr)
	assert.True(t, parts.Value.IsNull())

	label, err := lookup(t, env, "/datum/widget/gadget").Value("label")
	require.NoError(t, err)
	assert.True(t, constant.String("gadget").Equal(label))
}

func TestProcs(t *testing.T) {
	env := loadFixture(t)
	foo := lookup(t, env, "/obj/foo")
	bar := lookup(t, env, "/obj/foo/bar")

	assert.Equal(t, []string{"proc1", "proc2"}, foo.ProcNames(ProcFilter{Declared: true}))
	assert.Equal(t, []string{"proc1"}, bar.ProcNames(ProcFilter{Modified: true}))
	assert.Subset(t, foo.ProcNames(ProcFilter{}), []string{"New", "Move", "proc1", "proc2"})

	decls := bar.ProcDecls("proc1")
	require.Len(t, decls, 2)
	assert.Equal(t, "/obj/foo/bar", decls[0].Owner.Rel())
	assert.False(t, decls[0].Declared)
	assert.Equal(t, "/obj/foo", decls[1].Owner.Rel())
	assert.True(t, decls[1].Declared)

	proc2, err := foo.Proc("proc2")
	require.NoError(t, err)
	require.Len(t, proc2.Params, 2)
	assert.Equal(t, "M", proc2.Params[0].Name)
	assert.Equal(t, "/mob", proc2.Params[0].Type.Rel())
	assert.Equal(t, "count", proc2.Params[1].Name)
	assert.IsType(t, &ast.Constant{}, proc2.Params[1].Default)

	inspect, err := lookup(t, env, "/datum/widget").Proc("inspect")
	require.NoError(t, err)
	assert.True(t, inspect.Verb)

	_, err = foo.Proc("nope")
	assert.ErrorIs(t, err, dmerr.ErrNotFound)
}

func TestHierarchyQueries(t *testing.T) {
	env := loadFixture(t)
	foo := dmpath.MustNew("/obj/foo")

	subs, err := env.SubtypesOf(foo)
	require.NoError(t, err)
	assert.Equal(t, []string{"/obj/foo/bar", "/obj/foo/baz"}, rels(subs))

	all, err := env.TypesOf(foo)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/obj/foo", "/obj/foo/bar", "/obj/foo/baz"}, rels(all))

	assert.Equal(t, []string{"/obj/foo", "/obj/foo/bar", "/obj/foo/baz"}, rels(env.PathsPrefixed(foo)))

	_, err = env.SubtypesOf(dmpath.MustNew("/missing_type"))
	assert.ErrorIs(t, err, dmerr.ErrNotFound)
}

func TestTypesOfProperties(t *testing.T) {
	env := loadFixture(t)
	for _, root := range []string{"/", "/datum", "/atom", "/obj", "/obj/foo", "/datum/widget"} {
		t.Run(root, func(t *testing.T) {
			x := dmpath.MustNew(root)
			all, err := env.TypesOf(x)
			require.NoError(t, err)
			subs, err := env.SubtypesOf(x)
			require.NoError(t, err)

			assert.Contains(t, rels(all), x.Rel())
			var rest []string
			for _, p := range all {
				if !p.Equal(x) {
					rest = append(rest, p.Rel())
				}
			}
			assert.ElementsMatch(t, rest, rels(subs))
			for _, y := range subs {
				assert.True(t, x.ParentOf(y, true), "%s should be a parent of %s", x, y)
			}
		})
	}
}

func TestParentLinks(t *testing.T) {
	env := loadFixture(t)
	bar := lookup(t, env, "/obj/foo/bar")
	assert.Equal(t, "/obj/foo", bar.Parent().Path.Rel())
	assert.Equal(t, "/atom/movable", lookup(t, env, "/obj").Parent().Path.Rel())
	assert.Nil(t, env.Root().Parent())

	for _, td := range env.types[1:] {
		require.NotNil(t, td.Parent(), td.Path.Rel())
	}

	var children []string
	for _, c := range lookup(t, env, "/obj/foo").Children() {
		children = append(children, c.Path.Rel())
	}
	assert.Equal(t, []string{"/obj/foo/bar", "/obj/foo/baz"}, children)
}

func TestBuiltinsAndIncludes(t *testing.T) {
	env := loadFixture(t)
	assert.True(t, lookup(t, env, "/obj").Location.IsBuiltin())
	assert.True(t, lookup(t, env, "/world").Location.IsBuiltin())
	assert.False(t, lookup(t, env, "/obj/foo").Location.IsBuiltin())
	assert.Equal(t, 7, lookup(t, env, "/obj/foo").Location.Line)

	assert.Len(t, env.Includes(), 2)
	assert.Equal(t, []string{filepath.Join("testdata", "map1.dmm")}, env.Resources())
}

func TestLazyAndEagerBodies(t *testing.T) {
	lazy := loadFixture(t)
	proc, err := lookup(t, lazy, "/obj/foo").Proc("proc2")
	require.NoError(t, err)
	assert.False(t, proc.Parsed())

	first, err := proc.Body()
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.True(t, proc.Parsed())
	second, err := proc.Body()
	require.NoError(t, err)
	assert.Same(t, first[0], second[0])

	eager := loadFixture(t, WithProcParsing(ProcsEager))
	proc, err = lookup(t, eager, "/obj/foo").Proc("proc2")
	require.NoError(t, err)
	assert.True(t, proc.Parsed())
}

func TestBrokenBodyOnlyFailsEagerLoads(t *testing.T) {
	src := "/obj/foo/proc/broken()\n\tif x\n"

	env, err := Parse("broken.dm", src)
	require.NoError(t, err)
	proc, err := lookup(t, env, "/obj/foo").Proc("broken")
	require.NoError(t, err)
	_, err = proc.Body()
	assert.ErrorIs(t, err, dmerr.ErrParse)

	_, err = Parse("broken.dm", src, WithProcParsing(ProcsEager))
	assert.ErrorIs(t, err, dmerr.ErrParse)
}

func TestWalkProc(t *testing.T) {
	env := loadFixture(t)

	var calls []string
	v := ast.NewVisitor().On(ast.KindCall, func(n ast.Node, loc source.Location) error {
		assert.Equal(t, ast.KindCall, n.Kind())
		calls = append(calls, n.(*ast.Call).Name)
		return nil
	})
	require.NoError(t, env.WalkProc(dmpath.MustNew("/obj/foo"), "proc2", v))
	assert.Equal(t, []string{"proc1", "proc1"}, calls)

	err := env.WalkProc(dmpath.Root(), "forward_declared", v)
	assert.ErrorIs(t, err, ErrEmptyProc)

	err = env.WalkProc(dmpath.MustNew("/obj/foo"), "missing", v)
	assert.ErrorIs(t, err, dmerr.ErrNotFound)

	stop := errors.New("stop")
	halting := ast.NewVisitor().On(ast.KindParentCall, func(ast.Node, source.Location) error { return stop })
	err = env.WalkProc(dmpath.MustNew("/obj/foo/bar"), "proc1", halting)
	assert.ErrorIs(t, err, stop)
}

func TestSetVar(t *testing.T) {
	env := loadFixture(t)
	baz := lookup(t, env, "/obj/foo/baz")

	require.NoError(t, baz.SetVar("a", constant.Int(9)))
	got, err := baz.Value("a")
	require.NoError(t, err)
	assert.True(t, constant.Int(9).Equal(got))
	assert.Equal(t, []string{"a"}, baz.VarNames(VarFilter{Modified: true}))

	foo, err := lookup(t, env, "/obj/foo").Value("a")
	require.NoError(t, err)
	assert.True(t, constant.Int(3).Equal(foo), "parent is untouched")

	assert.ErrorIs(t, baz.SetVar("nope", constant.Null()), dmerr.ErrNotFound)
}

func TestParseForms(t *testing.T) {
	fsys := fstest.MapFS{
		"env.dme": {Data: []byte("#include \"a.dm\"\n/mob/player{var/hp = MAX_HP; name = \"player\"}\n")},
		"a.dm": {Data: []byte(`
/obj
	var/list/items[3]
	weapon
		sword
			name = "sword"
			proc/swing(var/mob/target as mob in view(), power = 1) as num
				return power
	operator+(other)
		return src
`)},
	}

	env, err := Load(context.Background(), "env.dme", WithFS(fsys), WithDefine("MAX_HP", "100"))
	require.NoError(t, err)

	hp, err := lookup(t, env, "/mob/player").Value("hp")
	require.NoError(t, err)
	assert.True(t, constant.Int(100).Equal(hp))

	items, err := lookup(t, env, "/obj").VarDecl("items")
	require.NoError(t, err)
	assert.Equal(t, "/list", items.Type.Rel())

	swing, err := lookup(t, env, "/obj/weapon/sword").Proc("swing")
	require.NoError(t, err)
	want := []string{"target", "power"}
	var got []string
	for _, p := range swing.Params {
		got = append(got, p.Name)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"mob"}, swing.Params[0].As)

	_, err = lookup(t, env, "/obj").Proc("operator+")
	assert.NoError(t, err)
}

func TestLoadErrors(t *testing.T) {
	testCases := []struct {
		name string
		fsys fstest.MapFS
		want error
	}{
		{"missing root", fstest.MapFS{}, dmerr.ErrIO},
		{"missing include", fstest.MapFS{"env.dme": {Data: []byte("#include \"nope.dm\"\n")}}, dmerr.ErrIO},
		{"bad value", fstest.MapFS{"env.dme": {Data: []byte("/obj/foo\n\tvar/a = (1\n")}}, dmerr.ErrParse},
		{"stray brace", fstest.MapFS{"env.dme": {Data: []byte("/obj/foo }\n")}}, dmerr.ErrParse},
		{"proc without parens", fstest.MapFS{"env.dme": {Data: []byte("/obj/proc/foo\n")}}, dmerr.ErrParse},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(context.Background(), "env.dme", WithFS(tc.fsys))
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLoadHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Load(ctx, filepath.Join("testdata", "testenv.dme"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseProcParsing(t *testing.T) {
	mode, err := ParseProcParsing("eager")
	require.NoError(t, err)
	assert.Equal(t, ProcsEager, mode)
	_, err = ParseProcParsing("sometimes")
	assert.Error(t, err)
}
