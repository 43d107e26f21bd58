// Package dmm reads, edits and writes DM map files. A map is a dense
// grid of tiles; tile contents are interned so that coordinates with the
// same prefab stack share one record.
package dmm

import (
	"fmt"
	"sort"
	"strings"

	"avulto/internal/dmerr"
	"avulto/internal/dmpath"
)

// Format selects the on-disk grid layout.
type Format int

const (
	// FormatDMM writes one row string per y for each z-level.
	FormatDMM Format = iota
	// FormatTGM writes one column block per x and splits prefab vars
	// over several lines, which merges better under version control.
	FormatTGM
)

func (f Format) String() string {
	if f == FormatTGM {
		return "tgm"
	}
	return "dmm"
}

// ParseFormat accepts "dmm" or "tgm".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dmm":
		return FormatDMM, nil
	case "tgm":
		return FormatTGM, nil
	}
	return FormatDMM, fmt.Errorf("unknown map format %q", s)
}

// Coord is a 1-based map position.
type Coord struct {
	X, Y, Z int
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// Map extents are capped the way DM caps world.maxx and world.maxy, with a
// bound on z-levels and on the total tile count.
const (
	MaxWidth  = 1000
	MaxHeight = 1000
	MaxLevels = 100
	MaxTiles  = 16_000_000
)

// checkSize reports extents too large to allocate. The axis caps keep the
// product far from overflow.
func checkSize(c Coord) error {
	if c.X > MaxWidth || c.Y > MaxHeight || c.Z > MaxLevels {
		return fmt.Errorf("extents %s exceed %dx%dx%d", c, MaxWidth, MaxHeight, MaxLevels)
	}
	if c.X*c.Y*c.Z > MaxTiles {
		return fmt.Errorf("extents %s hold more than %d tiles", c, MaxTiles)
	}
	return nil
}

// Map is a loaded or newly created map.
type Map struct {
	name    string
	size    Coord
	keyLen  int
	format  Format
	grid    []*record
	records map[string]*record
}

func newMap(name string, size Coord) *Map {
	return &Map{
		name:    name,
		size:    size,
		keyLen:  1,
		grid:    make([]*record, size.X*size.Y*size.Z),
		records: make(map[string]*record),
	}
}

// New creates a map of the given extents with every tile holding fill.
func New(size Coord, fill ...dmpath.Path) (*Map, error) {
	if size.X < 1 || size.Y < 1 || size.Z < 1 {
		return nil, dmerr.OutOfRange("map size", "%s must be positive", size)
	}
	if err := checkSize(size); err != nil {
		return nil, dmerr.OutOfRange("map size", "%v", err)
	}
	m := newMap("", size)
	stack := make([]Prefab, len(fill))
	for i, p := range fill {
		stack[i] = NewPrefab(p)
	}
	r := m.intern(stack)
	for i := range m.grid {
		m.place(i, r)
	}
	return m, nil
}

// Name is the file the map was loaded from, if any.
func (m *Map) Name() string { return m.name }

// Size reports the extents as (max x, max y, max z).
func (m *Map) Size() Coord { return m.size }

// Format is the layout the map was read in.
func (m *Map) Format() Format { return m.format }

// KeyLen is the dictionary key length currently in use.
func (m *Map) KeyLen() int { return m.keyLen }

// Len is the number of distinct tile contents in use.
func (m *Map) Len() int { return len(m.records) }

func (m *Map) index(c Coord) (int, error) {
	if c.X < 1 || c.Y < 1 || c.Z < 1 || c.X > m.size.X || c.Y > m.size.Y || c.Z > m.size.Z {
		return 0, dmerr.OutOfRange("coordinate", "%s outside map of size %s", c, m.size)
	}
	return (c.Z-1)*m.size.X*m.size.Y + (c.Y-1)*m.size.X + (c.X - 1), nil
}

func (m *Map) coordOf(i int) Coord {
	layer := m.size.X * m.size.Y
	return Coord{X: i%m.size.X + 1, Y: (i%layer)/m.size.X + 1, Z: i/layer + 1}
}

// TileDef returns the tile at (x, y, z).
func (m *Map) TileDef(x, y, z int) (*Tile, error) {
	c := Coord{X: x, Y: y, Z: z}
	i, err := m.index(c)
	if err != nil {
		return nil, err
	}
	return &Tile{m: m, coord: c, idx: i}, nil
}

// Coords lists every position, x varying fastest.
func (m *Map) Coords() []Coord {
	out := make([]Coord, len(m.grid))
	for i := range m.grid {
		out[i] = m.coordOf(i)
	}
	return out
}

// Tiles returns one tile per distinct content, ordered by key. Edits made
// through these tiles apply to every coordinate sharing the content.
func (m *Map) Tiles() []*Tile {
	m.assignKeys()
	recs := m.liveRecords()
	out := make([]*Tile, len(recs))
	for i, r := range recs {
		out[i] = &Tile{m: m, idx: -1, rec: r}
	}
	return out
}

// Key returns the dictionary key the tile at (x, y, z) will be written
// with.
func (m *Map) Key(x, y, z int) (string, error) {
	i, err := m.index(Coord{X: x, Y: y, Z: z})
	if err != nil {
		return "", err
	}
	m.assignKeys()
	return m.grid[i].key, nil
}

// CoordsOf lists the positions holding the same content as t.
func (m *Map) CoordsOf(t *Tile) []Coord {
	r := t.record()
	var out []Coord
	for i, g := range m.grid {
		if g == r {
			out = append(out, m.coordOf(i))
		}
	}
	return out
}

func (m *Map) intern(stack []Prefab) *record {
	r := newRecord(stack)
	if existing, ok := m.records[r.hash]; ok {
		return existing
	}
	m.records[r.hash] = r
	return r
}

func (m *Map) place(i int, r *record) {
	old := m.grid[i]
	if old == r {
		return
	}
	m.grid[i] = r
	r.refs++
	if old != nil {
		m.release(old)
	}
}

func (m *Map) release(r *record) {
	r.refs--
	if r.refs <= 0 && m.records[r.hash] == r {
		delete(m.records, r.hash)
	}
}

// rewrite replaces a record's stack in place, merging it into another
// record when the new content already exists.
func (m *Map) rewrite(r *record, stack []Prefab) *record {
	next := newRecord(stack)
	if r.refs <= 0 {
		r.stack, r.hash = next.stack, next.hash
		return r
	}
	if m.records[r.hash] == r {
		delete(m.records, r.hash)
	}
	if other, ok := m.records[next.hash]; ok && other != r {
		for i, g := range m.grid {
			if g == r {
				m.grid[i] = other
				other.refs++
			}
		}
		r.refs = 0
		return other
	}
	r.stack, r.hash = next.stack, next.hash
	m.records[r.hash] = r
	return r
}

// liveRecords returns records in use, ordered by key and then by first
// appearance.
func (m *Map) liveRecords() []*record {
	first := make(map[*record]int, len(m.records))
	for i, r := range m.grid {
		if _, ok := first[r]; !ok {
			first[r] = i
		}
	}
	recs := make([]*record, 0, len(first))
	for r := range first {
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.key != b.key {
			if a.key == "" || b.key == "" {
				return b.key == ""
			}
			return keyLess(a.key, b.key)
		}
		return first[a] < first[b]
	})
	return recs
}

// Diff lists the coordinates whose contents differ between a and b.
func Diff(a, b *Map) ([]Coord, error) {
	if a.size != b.size {
		return nil, dmerr.OutOfRange("map size", "%s does not match %s", a.size, b.size)
	}
	var out []Coord
	for i := range a.grid {
		ra, rb := a.grid[i], b.grid[i]
		if ra.hash != rb.hash || !stacksEqual(ra.stack, rb.stack) {
			out = append(out, a.coordOf(i))
		}
	}
	return out, nil
}
