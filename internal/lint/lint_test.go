package lint

import (
	"path/filepath"
	"testing"

	"avulto/internal/constant"
	"avulto/internal/dme"
	"avulto/internal/dmerr"
	"avulto/internal/dmm"
	"avulto/internal/dmpath"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

const lintSource = `/obj/item
	var/force = 5
	proc/attack()
		sleep(10)
		spawn(5)
			del src

/obj/item/sword
	force = 0

/obj/item/shield

/mob/proc/think()
	sleep(1)
`

func loadRules(t *testing.T) *RuleSet {
	t.Helper()
	rs, err := LoadRules(filepath.Join("testdata", "rules.hcl"))
	require.NoError(t, err)
	return rs
}

type brief struct {
	Rule     string
	Severity Severity
	Line     int
	Subject  string
}

func briefs(fs []Finding) []brief {
	out := make([]brief, len(fs))
	for i, f := range fs {
		out[i] = brief{Rule: f.Rule, Severity: f.Severity, Line: f.Location.Line, Subject: f.Subject}
	}
	return out
}

func TestLoadRules(t *testing.T) {
	rs := loadRules(t)
	assert.Equal(t, 5, rs.Len())

	require.Len(t, rs.Calls, 1)
	assert.True(t, rs.Calls[0].Procs["sleep"])
	assert.Equal(t, Warning, rs.Calls[0].Severity)

	require.Len(t, rs.Nodes, 1)
	assert.Equal(t, Error, rs.Nodes[0].Severity)
	assert.Len(t, rs.Nodes[0].Kinds, 2)

	require.Len(t, rs.Vars, 2)
	require.NotNil(t, rs.Vars[0].Forbid)
	assert.True(t, rs.Vars[0].Forbid.Equal(constant.Int(0)))
	assert.Nil(t, rs.Vars[0].Expect)
	assert.True(t, rs.Vars[1].Required)

	require.Len(t, rs.Tiles, 1)
	assert.Len(t, rs.Tiles[0].Single, 2)
}

func TestLoadRulesMissingFile(t *testing.T) {
	_, err := LoadRules(filepath.Join("testdata", "missing.hcl"))
	assert.ErrorIs(t, err, dmerr.ErrIO)
}

func TestParseRulesErrors(t *testing.T) {
	testCases := []struct {
		name string
		src  string
	}{
		{name: "syntax", src: `forbid_call "x" {`},
		{name: "unknown block", src: `nope "x" {}`},
		{name: "missing attribute", src: `forbid_call "x" {}`},
		{name: "bad severity", src: "forbid_call \"x\" {\n  procs = [\"a\"]\n  severity = \"fatal\"\n}"},
		{name: "bad kind", src: `forbid_node "x" { kinds = ["Nope"] }`},
		{name: "bad path", src: `tile_check "x" { single = ["/turf//floor"] }`},
		{name: "duplicate", src: "tile_check \"x\" {}\ntile_check \"x\" {}"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRules("rules.hcl", []byte(tc.src))
			assert.Error(t, err)
		})
	}
}

func TestCheckEnvironment(t *testing.T) {
	env, err := dme.Parse("lint.dme", lintSource)
	require.NoError(t, err)

	findings, err := loadRules(t).CheckEnvironment(env)
	require.NoError(t, err)

	want := []brief{
		{Rule: "no_sleep_items", Severity: Warning, Line: 4, Subject: "/obj/item/proc/attack"},
		{Rule: "no_spawn", Severity: Error, Line: 5, Subject: "/obj/item/proc/attack"},
		{Rule: "no_spawn", Severity: Error, Line: 6, Subject: "/obj/item/proc/attack"},
		{Rule: "force_positive", Severity: Warning, Line: 9, Subject: "/obj/item/sword"},
		{Rule: "sword_force", Severity: Warning, Line: 9, Subject: "/obj/item/sword"},
	}
	if diff := cmp.Diff(want, briefs(findings)); diff != "" {
		t.Errorf("findings mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "items must not sleep", findings[0].Message)
	assert.Contains(t, findings[4].Message, "want 10")
	assert.True(t, Failed(findings, Error))
	assert.False(t, Failed(findings[:1], Error))
}

func TestVarRuleMissingAndRequired(t *testing.T) {
	env, err := dme.Parse("lint.dme", lintSource)
	require.NoError(t, err)

	rs, err := ParseRules("inline.hcl", []byte(`
var_check "needs_sharpness" {
  types = ["/obj/item/sword"]
  var   = "sharpness"
}
var_check "own_force" {
  types    = ["/obj/item/shield"]
  var      = "force"
  required = true
}
`))
	require.NoError(t, err)

	findings, err := rs.CheckEnvironment(env)
	require.NoError(t, err)
	require.Len(t, findings, 2)
	byRule := map[string]Finding{}
	for _, f := range findings {
		byRule[f.Rule] = f
	}
	assert.Contains(t, byRule["needs_sharpness"].Message, "not defined")
	assert.Contains(t, byRule["own_force"].Message, "type itself")
}

const lintMap = `"a" = (/turf/floor,/area/a)
"b" = (/mob/dummy,/turf/floor,/turf/wall,/area/a)

(1,1,1) = {"
ab
ab
"}
`

func TestCheckMap(t *testing.T) {
	m, err := dmm.Parse("lint.dmm", lintMap)
	require.NoError(t, err)

	findings := loadRules(t).CheckMap(m)
	require.Len(t, findings, 2)
	for _, f := range findings {
		assert.Equal(t, "one_turf", f.Rule)
		assert.Equal(t, "lint.dmm", f.Location.File)
		assert.Contains(t, f.Subject, `"b" and 1 more`)
	}
	assert.Contains(t, findings[0].Message, "under /turf")
	assert.Contains(t, findings[1].Message, "/mob/dummy")
}

func TestToConstant(t *testing.T) {
	testCases := []struct {
		name string
		in   cty.Value
		want constant.Value
	}{
		{name: "null", in: cty.NullVal(cty.String), want: constant.Null()},
		{name: "number", in: cty.NumberFloatVal(1.5), want: constant.Number(1.5)},
		{name: "string", in: cty.StringVal("bar"), want: constant.String("bar")},
		{name: "path", in: cty.StringVal("/obj/item"), want: constant.Path(dmpath.MustNew("/obj/item"))},
		{name: "bool", in: cty.True, want: constant.Int(1)},
		{
			name: "tuple",
			in:   cty.TupleVal([]cty.Value{cty.NumberIntVal(1), cty.StringVal("a")}),
			want: constant.List(constant.Item(constant.Int(1)), constant.Item(constant.String("a"))),
		},
		{
			name: "object",
			in:   cty.ObjectVal(map[string]cty.Value{"k": cty.NumberIntVal(2)}),
			want: constant.List(constant.Pair(constant.String("k"), constant.Int(2))),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := toConstant(tc.in)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "got %s", got)
		})
	}

	_, err := toConstant(cty.UnknownVal(cty.String))
	assert.Error(t, err)
}

func TestFindingString(t *testing.T) {
	f := Finding{Rule: "r", Severity: Error, Message: "bad", Subject: "/obj"}
	f.Location.File, f.Location.Line = "a.dm", 3
	assert.Equal(t, "a.dm:3: error: [r] /obj: bad", f.String())
}
