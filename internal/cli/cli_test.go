package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"avulto/internal/constant"
	"avulto/internal/dme"
	"avulto/internal/dmm"
	"avulto/internal/dmpath"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	envFixture  = filepath.Join("..", "dme", "testdata", "testenv.dme")
	mapFixture  = filepath.Join("..", "dmm", "testdata", "map1.dmm")
	iconFixture = filepath.Join("..", "dmi", "testdata", "icon1.dmi")
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("WORKER_COUNT", "2")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func lines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

func TestTypesCommand(t *testing.T) {
	out, err := run(t, "types", envFixture, "/obj/foo")
	require.NoError(t, err)
	assert.Equal(t, []string{"/obj/foo", "/obj/foo/bar", "/obj/foo/baz"}, lines(out))

	_, err = run(t, "types", envFixture, "not a path")
	assert.Error(t, err)
}

func TestVarsCommand(t *testing.T) {
	out, err := run(t, "vars", envFixture, "/obj/foo/bar", "--modified")
	require.NoError(t, err)
	assert.Equal(t, []string{"a = 4\t(modified on /obj/foo/bar)"}, lines(out))
}

func TestProcsCommand(t *testing.T) {
	out, err := run(t, "procs", envFixture, "/obj/foo", "--declared")
	require.NoError(t, err)
	assert.Contains(t, out, "/obj/foo/proc/proc2(mob/M, count = ...)")
	assert.Contains(t, out, "/obj/foo/proc/proc1()")
}

func TestWalkCommand(t *testing.T) {
	out, err := run(t, "walk", envFixture, "/obj/foo", "proc2", "--kind", "Call")
	require.NoError(t, err)
	got := lines(out)
	require.Len(t, got, 2)
	for _, l := range got {
		assert.True(t, strings.HasSuffix(l, "\tCall"), l)
	}

	_, err = run(t, "walk", envFixture, "/obj/foo", "proc2", "--kind", "Nope")
	assert.Error(t, err)
}

func TestMapCommands(t *testing.T) {
	out, err := run(t, "map", "info", mapFixture)
	require.NoError(t, err)
	assert.Equal(t, "map1.dmm\t10x10x1\tdmm\tkey=1\ttiles=4\n", out)

	out, err = run(t, "map", "tile", mapFixture, "5", "5")
	require.NoError(t, err)
	assert.Contains(t, out, `0	/obj/foo/bar{name = "bar"; dir = 4}`)
	assert.Contains(t, out, "turf\t/turf/wall")
	assert.Contains(t, out, "area\t/area/station/hall")

	_, err = run(t, "map", "tile", mapFixture, "11", "1")
	assert.Error(t, err)

	converted := filepath.Join(t.TempDir(), "out.dmm")
	_, err = run(t, "map", "convert", mapFixture, converted, "--format", "tgm")
	require.NoError(t, err)
	before, err := dmm.Load(mapFixture)
	require.NoError(t, err)
	after, err := dmm.Load(converted)
	require.NoError(t, err)
	assert.Equal(t, dmm.FormatTGM, after.Format())
	changed, err := dmm.Diff(before, after)
	require.NoError(t, err)
	assert.Empty(t, changed)
}

func TestIconCommands(t *testing.T) {
	out, err := run(t, "icon", "info", iconFixture)
	require.NoError(t, err)
	assert.Contains(t, out, "icon1.dmi\t32x32\tstates=4")
	assert.Contains(t, out, `"blinker" dirs=4 frames=2 delays=[1 2] rewind`)
	assert.Contains(t, out, `"walk" dirs=1 frames=1 movement`)

	dir := t.TempDir()
	_, err = run(t, "icon", "extract", iconFixture, "blinker", dir)
	require.NoError(t, err)
	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, files, 8)
	assert.FileExists(t, filepath.Join(dir, "blinker_south_0.png"))
	assert.FileExists(t, filepath.Join(dir, "blinker_west_1.png"))

	_, err = run(t, "icon", "extract", iconFixture, "missing", dir)
	assert.Error(t, err)
}

const cliRules = `
forbid_call "no_proc1" {
  procs = ["proc1"]
  types = ["/obj"]
}

tile_check "one_area" {
  single   = ["/area"]
  severity = "error"
}
`

func TestLintCommand(t *testing.T) {
	rules := filepath.Join(t.TempDir(), "rules.hcl")
	require.NoError(t, os.WriteFile(rules, []byte(cliRules), 0o644))

	out, err := run(t, "lint", envFixture, mapFixture, "--rules", rules)
	require.NoError(t, err)
	assert.Contains(t, out, "[no_proc1] /obj/foo/proc/proc2")

	_, err = run(t, "lint", envFixture, "--rules", rules, "--fail-on", "warning")
	assert.Error(t, err)

	_, err = run(t, "lint", envFixture, "--rules", filepath.Join(t.TempDir(), "missing.hcl"))
	assert.Error(t, err)
}

func TestFormatVarTruncatesLongValues(t *testing.T) {
	long := &dme.VarDecl{
		Name:  "motd",
		Type:  dmpath.Root(),
		Value: constant.String(strings.Repeat("x", 200)),
		Const: true,
		Tag:   dme.Declared,
		Owner: dmpath.MustNew("/world"),
	}
	got := formatVar(long)
	assert.Equal(t, "motd = \""+strings.Repeat("x", maxValueWidth-1)+"...\t(declared on /world)", got)

	short := *long
	short.Value = constant.Int(4)
	assert.Equal(t, "motd = 4\t(declared on /world)", formatVar(&short))
}

func TestSplitDefine(t *testing.T) {
	testCases := []struct {
		in, name, value string
	}{
		{in: "DEBUG", name: "DEBUG", value: "1"},
		{in: "SPEED=8", name: "SPEED", value: "8"},
		{in: "EMPTY=", name: "EMPTY", value: ""},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			name, value := splitDefine(tc.in)
			assert.Equal(t, tc.name, name)
			assert.Equal(t, tc.value, value)
		})
	}
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "unnamed", safeName(""))
	assert.Equal(t, "a_b", safeName("a/b"))
}
