package dmm

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"avulto/internal/constant"
	"avulto/internal/dmerr"
	"avulto/internal/dmpath"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T, name string) *Map {
	t.Helper()
	m, err := Load(filepath.Join("testdata", name))
	require.NoError(t, err)
	return m
}

func tileAt(t *testing.T, m *Map, x, y, z int) *Tile {
	t.Helper()
	tile, err := m.TileDef(x, y, z)
	require.NoError(t, err)
	return tile
}

func paths(tile *Tile) []string {
	var out []string
	for _, pf := range tile.Prefabs() {
		out = append(out, pf.Path.Rel())
	}
	return out
}

func reparse(t *testing.T, m *Map, opts ...SaveOption) (*Map, string) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, m.Encode(&buf, opts...))
	out, err := Parse("reparsed.dmm", buf.String())
	require.NoError(t, err, buf.String())
	return out, buf.String()
}

func TestLoadFixture(t *testing.T) {
	m := loadFixture(t, "map1.dmm")

	assert.Equal(t, Coord{X: 10, Y: 10, Z: 1}, m.Size())
	assert.Equal(t, FormatDMM, m.Format())
	assert.Equal(t, 4, m.Len())

	tile := tileAt(t, m, 7, 7, 1)
	assert.Equal(t, []int{0}, tile.Find(dmpath.MustNew("/obj/foo")))
	a, err := tile.PrefabVar(0, "a")
	require.NoError(t, err)
	assert.True(t, a.Equal(constant.Int(4)))

	assert.True(t, tileAt(t, m, 1, 1, 1).Equal(tileAt(t, m, 1, 2, 1)))
	assert.False(t, tileAt(t, m, 1, 1, 1).Equal(tile))

	corner := tileAt(t, m, 10, 10, 1)
	assert.Equal(t, []int{0}, corner.FindExact(dmpath.MustNew("/obj/foo")))
}

func TestTileDefOutOfRange(t *testing.T) {
	m := loadFixture(t, "map1.dmm")

	testCases := []struct {
		name    string
		x, y, z int
	}{
		{name: "zero x", x: 0, y: 1, z: 1},
		{name: "past width", x: 11, y: 1, z: 1},
		{name: "past height", x: 1, y: 11, z: 1},
		{name: "missing level", x: 1, y: 1, z: 2},
		{name: "negative", x: -3, y: 2, z: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.TileDef(tc.x, tc.y, tc.z)
			require.ErrorIs(t, err, dmerr.ErrOutOfRange)
		})
	}
}

func TestGridOrientation(t *testing.T) {
	m := loadFixture(t, "map1.dmm")

	assert.Equal(t, "b", mustKey(t, m, 7, 7, 1))
	assert.Equal(t, "c", mustKey(t, m, 10, 10, 1))
	assert.Equal(t, "d", mustKey(t, m, 5, 5, 1))
	assert.Equal(t, "a", mustKey(t, m, 10, 1, 1))
	assert.Len(t, m.Coords(), 100)
	assert.Equal(t, Coord{X: 1, Y: 1, Z: 1}, m.Coords()[0])
	assert.Equal(t, Coord{X: 2, Y: 1, Z: 1}, m.Coords()[1])
	assert.Equal(t, []Coord{{X: 7, Y: 7, Z: 1}}, m.CoordsOf(tileAt(t, m, 7, 7, 1)))
}

func mustKey(t *testing.T, m *Map, x, y, z int) string {
	t.Helper()
	k, err := m.Key(x, y, z)
	require.NoError(t, err)
	return k
}

func TestTileQueries(t *testing.T) {
	m := loadFixture(t, "map1.dmm")
	tile := tileAt(t, m, 5, 5, 1)

	assert.Equal(t, []string{"/obj/foo/bar", "/obj/item", "/turf/wall", "/area/station/hall"}, paths(tile))
	assert.Equal(t, []int{0, 1}, tile.Find(dmpath.MustNew("/obj")))
	assert.Equal(t, []int{0}, tile.Find(dmpath.MustNew("/obj/foo")))
	assert.Empty(t, tile.FindExact(dmpath.MustNew("/obj/foo")))

	idx, ok, err := tile.Only(dmpath.MustNew("/turf"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, idx)

	_, ok, err = tile.Only(dmpath.MustNew("/mob"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = tile.Only(dmpath.MustNew("/obj"))
	assert.Error(t, err)

	area, ok := tile.AreaPath()
	require.True(t, ok)
	assert.Equal(t, "/area/station/hall", area.Rel())
	turf, ok := tile.TurfPath()
	require.True(t, ok)
	assert.Equal(t, "/turf/wall", turf.Rel())

	vars, err := tile.PrefabVars(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "dir"}, vars.Keys())
	name, _ := vars.Get("name")
	assert.True(t, name.Equal(constant.String("bar")))
}

func TestPrefabVarErrors(t *testing.T) {
	m := loadFixture(t, "map1.dmm")
	tile := tileAt(t, m, 7, 7, 1)

	_, err := tile.PrefabVar(0, "missing")
	require.ErrorIs(t, err, dmerr.ErrNotFound)

	v, err := tile.PrefabVarOr(0, "missing", constant.Int(9))
	require.NoError(t, err)
	assert.True(t, v.Equal(constant.Int(9)))

	_, err = tile.PrefabVar(5, "a")
	require.ErrorIs(t, err, dmerr.ErrOutOfRange)
	_, err = tile.PrefabVarOr(5, "a", constant.Null())
	require.ErrorIs(t, err, dmerr.ErrOutOfRange)
	_, err = tile.PrefabPath(-1)
	require.ErrorIs(t, err, dmerr.ErrOutOfRange)

	require.ErrorIs(t, tile.DelPrefabVar(0, "missing"), dmerr.ErrNotFound)
}

func TestCoordinateEditsAreCopyOnWrite(t *testing.T) {
	m := loadFixture(t, "map1.dmm")
	tile := tileAt(t, m, 1, 1, 1)
	neighbour := tileAt(t, m, 1, 2, 1)

	require.NoError(t, tile.SetPrefabVar(0, "icon_state", constant.String("dirty")))
	assert.False(t, tile.Equal(neighbour))
	assert.Equal(t, 5, m.Len())
	_, err := neighbour.PrefabVar(0, "icon_state")
	assert.ErrorIs(t, err, dmerr.ErrNotFound)

	require.NoError(t, tile.DelPrefabVar(0, "icon_state"))
	assert.True(t, tile.Equal(neighbour))
	assert.Equal(t, 4, m.Len())

	require.NoError(t, tile.AddPath(0, dmpath.MustNew("/obj/effect/helper")))
	assert.Equal(t, []string{"/obj/effect/helper", "/turf/floor", "/area/station"}, paths(tile))
	require.NoError(t, tile.AddPath(3, dmpath.MustNew("/obj/effect/top")))
	assert.Equal(t, 4, tile.Len())
	require.ErrorIs(t, tile.AddPath(9, dmpath.MustNew("/obj/x")), dmerr.ErrOutOfRange)

	require.NoError(t, tile.DelPrefab(3))
	require.NoError(t, tile.SetPath(0, dmpath.MustNew("/obj/effect/other")))
	assert.Equal(t, []string{"/obj/effect/other", "/turf/floor", "/area/station"}, paths(tile))
	assert.Equal(t, []string{"/turf/floor", "/area/station"}, paths(neighbour))
}

func TestSharedEditsReachEveryCoordinate(t *testing.T) {
	m := loadFixture(t, "map1.dmm")

	tiles := m.Tiles()
	require.Len(t, tiles, 4)
	keys := make([]string, len(tiles))
	for i, tile := range tiles {
		keys[i] = tile.Key()
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, keys)

	floor := tiles[0]
	require.NoError(t, floor.SetPath(0, dmpath.MustNew("/turf/carpet")))
	for _, c := range []Coord{{1, 1, 1}, {5, 4, 1}, {9, 10, 1}} {
		turf, ok := tileAt(t, m, c.X, c.Y, c.Z).TurfPath()
		require.True(t, ok)
		assert.Equal(t, "/turf/carpet", turf.Rel(), c.String())
	}
	assert.Equal(t, "a", mustKey(t, m, 1, 1, 1))

	plain := tiles[2]
	require.NoError(t, plain.SetPrefabVar(0, "a", constant.Int(4)))
	assert.True(t, tileAt(t, m, 10, 10, 1).Equal(tileAt(t, m, 7, 7, 1)))
	assert.Equal(t, 3, m.Len())
	assert.Len(t, m.CoordsOf(plain), 2)
}

func TestRoundTrip(t *testing.T) {
	testCases := []struct {
		name    string
		fixture string
		format  Format
	}{
		{name: "dmm as dmm", fixture: "map1.dmm", format: FormatDMM},
		{name: "dmm as tgm", fixture: "map1.dmm", format: FormatTGM},
		{name: "tgm as tgm", fixture: "map2.dmm", format: FormatTGM},
		{name: "tgm as dmm", fixture: "map2.dmm", format: FormatDMM},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := loadFixture(t, tc.fixture)
			out, text := reparse(t, m, WithFormat(tc.format))

			assert.Equal(t, tc.format, out.Format())
			assert.Equal(t, m.Size(), out.Size())
			diff, err := Diff(m, out)
			require.NoError(t, err)
			assert.Empty(t, diff, text)
			for _, c := range m.Coords() {
				assert.Equal(t, mustKey(t, m, c.X, c.Y, c.Z), mustKey(t, out, c.X, c.Y, c.Z), c.String())
			}
		})
	}
}

func TestTGMLayout(t *testing.T) {
	m := loadFixture(t, "map2.dmm")

	assert.Equal(t, FormatTGM, m.Format())
	assert.Equal(t, Coord{X: 2, Y: 3, Z: 1}, m.Size())
	assert.Equal(t, 2, m.KeyLen())
	assert.Equal(t, "ab", mustKey(t, m, 1, 2, 1))
	assert.Equal(t, "ab", mustKey(t, m, 2, 3, 1))
	assert.Equal(t, "aa", mustKey(t, m, 2, 1, 1))

	desc, err := tileAt(t, m, 1, 2, 1).PrefabVar(0, "desc")
	require.NoError(t, err)
	assert.True(t, desc.Equal(constant.String("tgm")))

	_, text := reparse(t, m)
	assert.True(t, strings.HasPrefix(text, tgmHeader+"\n"))
	assert.Contains(t, text, "/obj/foo{\n\ta = 4;\n\tdesc = \"tgm\"\n\t},\n")
}

func TestEncodeDMM(t *testing.T) {
	m, err := New(Coord{X: 3, Y: 2, Z: 1}, dmpath.MustNew("/turf/floor"), dmpath.MustNew("/area/space"))
	require.NoError(t, err)
	corner := tileAt(t, m, 3, 2, 1)
	require.NoError(t, corner.AddPath(0, dmpath.MustNew("/obj/lamp")))
	require.NoError(t, corner.SetPrefabVar(0, "light", constant.Int(5)))

	var buf bytes.Buffer
	require.NoError(t, m.Encode(&buf))
	want := `"a" = (/turf/floor,/area/space)
"b" = (/obj/lamp{light = 5},/turf/floor,/area/space)

(1,1,1) = {"
aab
aaa
"}
`
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("encoded map mismatch (-want +got):\n%s", diff)
	}
}

func TestKeysGrowWithContent(t *testing.T) {
	m, err := New(Coord{X: 60, Y: 1, Z: 1}, dmpath.MustNew("/turf/floor"))
	require.NoError(t, err)
	for x := 1; x <= 60; x++ {
		require.NoError(t, tileAt(t, m, x, 1, 1).SetPrefabVar(0, "tag", constant.Int(x)))
	}
	assert.Equal(t, 60, m.Len())

	out, _ := reparse(t, m)
	assert.Equal(t, 2, out.KeyLen())
	diff, err := Diff(m, out)
	require.NoError(t, err)
	assert.Empty(t, diff)
}

func TestValueFolding(t *testing.T) {
	src := `"a" = (/obj/x{n = 1 + 2; s = "hi"; neg = -4; l = list("k" = 1); p = /obj/y; r = newlist(/obj/z); z = null})

(1,1,1) = {"
a
"}
`
	m, err := Parse("values.dmm", src)
	require.NoError(t, err)
	tile := tileAt(t, m, 1, 1, 1)

	get := func(name string) constant.Value {
		v, err := tile.PrefabVar(0, name)
		require.NoError(t, err)
		return v
	}
	assert.True(t, get("n").Equal(constant.Int(3)))
	assert.True(t, get("s").Equal(constant.String("hi")))
	assert.True(t, get("neg").Equal(constant.Int(-4)))
	assert.Equal(t, constant.KindList, get("l").Kind())
	assert.True(t, get("p").Equal(constant.Path(dmpath.MustNew("/obj/y"))))
	raw, ok := get("r").RawText()
	require.True(t, ok)
	assert.Equal(t, "newlist(/obj/z)", raw)
	assert.True(t, get("z").IsNull())
}

func TestParseErrors(t *testing.T) {
	testCases := []struct {
		name string
		src  string
	}{
		{name: "no dictionary", src: "(1,1,1) = {\"\na\n\"}\n"},
		{name: "no grid", src: "\"a\" = (/turf)\n"},
		{name: "mixed key length", src: "\"a\" = (/turf)\n\"bb\" = (/turf)\n(1,1,1) = {\"\na\n\"}\n"},
		{name: "duplicate key", src: "\"a\" = (/turf)\n\"a\" = (/area)\n(1,1,1) = {\"\na\n\"}\n"},
		{name: "unknown key", src: "\"a\" = (/turf)\n(1,1,1) = {\"\nab\n\"}\n"},
		{name: "ragged rows", src: "\"a\" = (/turf)\n(1,1,1) = {\"\naa\na\n\"}\n"},
		{name: "hole", src: "\"a\" = (/turf)\n(1,1,1) = {\"\na\n\"}\n(3,1,1) = {\"\na\n\"}\n"},
		{name: "bad prefab", src: "\"a\" = (turf)\n(1,1,1) = {\"\na\n\"}\n"},
		{name: "invalid key", src: "\"1\" = (/turf)\n(1,1,1) = {\"\n1\n\"}\n"},
		{name: "unterminated var", src: "\"a\" = (/turf{a = 1"},
		{name: "huge origin", src: "\"a\" = (/turf)\n(100000000,100000000,1000) = {\"\na\n\"}\n"},
		{name: "too many levels", src: "\"a\" = (/turf)\n(1,1,101) = {\"\na\n\"}\n"},
		{name: "row too wide", src: "\"a\" = (/turf)\n(1,1,1) = {\"\n" + strings.Repeat("a", MaxWidth+1) + "\n\"}\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse("broken.dmm", tc.src)
			require.ErrorIs(t, err, dmerr.ErrParse)
		})
	}
}

func TestNewRejectsOversizedMaps(t *testing.T) {
	for _, size := range []Coord{{X: MaxWidth + 1, Y: 1, Z: 1}, {X: 1000, Y: 1000, Z: 17}} {
		_, err := New(size, dmpath.MustNew("/turf"))
		assert.ErrorIs(t, err, dmerr.ErrOutOfRange, size.String())
	}
}

func TestTextMacrosRoundTrip(t *testing.T) {
	src := `"a" = (/area/a{name = "\improper Bridge"; desc = "\the thing\there"})

(1,1,1) = {"
a
"}
`
	m, err := Parse("macros.dmm", src)
	require.NoError(t, err)
	name, err := tileAt(t, m, 1, 1, 1).PrefabVar(0, "name")
	require.NoError(t, err)
	assert.True(t, constant.String(`\improper Bridge`).Equal(name), "got %s", name)

	out, text := reparse(t, m)
	assert.Contains(t, text, `name = "\improper Bridge"`)
	assert.Contains(t, text, `desc = "\the thing\there"`)
	assert.NotContains(t, text, `\\`)
	diff, err := Diff(m, out)
	require.NoError(t, err)
	assert.Empty(t, diff)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "missing.dmm"))
	require.ErrorIs(t, err, dmerr.ErrIO)
}

func TestSave(t *testing.T) {
	m := loadFixture(t, "map1.dmm")
	path := filepath.Join(t.TempDir(), "out.dmm")
	require.NoError(t, m.Save(path, WithFormat(FormatTGM)))

	out, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, FormatTGM, out.Format())
	diff, err := Diff(m, out)
	require.NoError(t, err)
	assert.Empty(t, diff)
}

func TestDiffSizeMismatch(t *testing.T) {
	a, err := New(Coord{X: 2, Y: 2, Z: 1})
	require.NoError(t, err)
	b, err := New(Coord{X: 3, Y: 2, Z: 1})
	require.NoError(t, err)
	_, err = Diff(a, b)
	require.ErrorIs(t, err, dmerr.ErrOutOfRange)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("TGM")
	require.NoError(t, err)
	assert.Equal(t, FormatTGM, f)
	_, err = ParseFormat("xml")
	assert.Error(t, err)
}
