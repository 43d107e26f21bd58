package dmm

import (
	"fmt"

	"avulto/internal/constant"
	"avulto/internal/dmerr"
	"avulto/internal/dmpath"
)

var (
	areaRoot = dmpath.MustNew("/area")
	turfRoot = dmpath.MustNew("/turf")
)

// Tile is a view of one prefab stack. A tile from TileDef is bound to a
// coordinate and edits to it only affect that coordinate. A tile from
// Map.Tiles is bound to shared content and edits reach every coordinate
// holding it.
type Tile struct {
	m     *Map
	coord Coord
	idx   int
	rec   *record
}

func (t *Tile) record() *record {
	if t.idx >= 0 {
		return t.m.grid[t.idx]
	}
	return t.rec
}

func (t *Tile) stack() []Prefab { return t.record().stack }

// Coord reports the position a coordinate-bound tile refers to.
func (t *Tile) Coord() (Coord, bool) {
	return t.coord, t.idx >= 0
}

// Key is the dictionary key of the tile's content.
func (t *Tile) Key() string {
	t.m.assignKeys()
	return t.record().key
}

// Len is the stack height.
func (t *Tile) Len() int { return len(t.stack()) }

// Prefabs returns a copy of the stack, bottom first as written in the
// dictionary.
func (t *Tile) Prefabs() []Prefab { return cloneStack(t.stack()) }

// Find returns the stack positions whose path is p or a subtype of p.
func (t *Tile) Find(p dmpath.Path) []int {
	var out []int
	for i, pf := range t.stack() {
		if pf.Path.IsPrefixedBy(p) {
			out = append(out, i)
		}
	}
	return out
}

// FindExact returns the stack positions whose path is exactly p.
func (t *Tile) FindExact(p dmpath.Path) []int {
	var out []int
	for i, pf := range t.stack() {
		if pf.Path.Equal(p) {
			out = append(out, i)
		}
	}
	return out
}

// Only returns the single stack position matching p. ok is false when
// nothing matches; more than one match is an error.
func (t *Tile) Only(p dmpath.Path) (idx int, ok bool, err error) {
	found := t.Find(p)
	switch len(found) {
	case 0:
		return -1, false, nil
	case 1:
		return found[0], true, nil
	}
	return -1, false, fmt.Errorf("only %s: %d prefabs match", p, len(found))
}

func (t *Tile) at(i int) (Prefab, error) {
	st := t.stack()
	if i < 0 || i >= len(st) {
		return Prefab{}, dmerr.OutOfRange("prefab index", "%d not in tile of %d prefabs", i, len(st))
	}
	return st[i], nil
}

// PrefabPath is the type path at stack position i.
func (t *Tile) PrefabPath(i int) (dmpath.Path, error) {
	pf, err := t.at(i)
	if err != nil {
		return dmpath.Path{}, err
	}
	return pf.Path, nil
}

// PrefabVar reads one override at stack position i.
func (t *Tile) PrefabVar(i int, name string) (constant.Value, error) {
	pf, err := t.at(i)
	if err != nil {
		return constant.Null(), err
	}
	v, ok := pf.Vars.Get(name)
	if !ok {
		return constant.Null(), dmerr.NotFound("prefab var", name)
	}
	return v, nil
}

// PrefabVarOr is PrefabVar with a fallback for unset overrides.
func (t *Tile) PrefabVarOr(i int, name string, def constant.Value) (constant.Value, error) {
	v, err := t.PrefabVar(i, name)
	if err != nil {
		if _, rangeErr := t.at(i); rangeErr != nil {
			return constant.Null(), rangeErr
		}
		return def, nil
	}
	return v, nil
}

// PrefabVars returns a copy of every override at stack position i.
func (t *Tile) PrefabVars(i int) (constant.Vars, error) {
	pf, err := t.at(i)
	if err != nil {
		return constant.Vars{}, err
	}
	return pf.Vars.Clone(), nil
}

// AreaPath returns the first /area in the stack.
func (t *Tile) AreaPath() (dmpath.Path, bool) { return t.firstUnder(areaRoot) }

// TurfPath returns the first /turf in the stack.
func (t *Tile) TurfPath() (dmpath.Path, bool) { return t.firstUnder(turfRoot) }

func (t *Tile) firstUnder(root dmpath.Path) (dmpath.Path, bool) {
	for _, pf := range t.stack() {
		if pf.Path.IsPrefixedBy(root) {
			return pf.Path, true
		}
	}
	return dmpath.Path{}, false
}

// Equal compares stacks element-wise regardless of where the tiles are.
func (t *Tile) Equal(o *Tile) bool {
	a, b := t.record(), o.record()
	return a == b || (a.hash == b.hash && stacksEqual(a.stack, b.stack))
}

func (t *Tile) String() string { return "(" + stackText(t.stack()) + ")" }

// SetPath replaces the type at stack position i, keeping its overrides.
func (t *Tile) SetPath(i int, p dmpath.Path) error {
	return t.mutate(i, false, func(st []Prefab) []Prefab {
		st[i].Path = p
		return st
	})
}

// SetPrefabVar sets an override at stack position i.
func (t *Tile) SetPrefabVar(i int, name string, v constant.Value) error {
	return t.mutate(i, false, func(st []Prefab) []Prefab {
		st[i].Vars.Set(name, v)
		return st
	})
}

// DelPrefabVar removes an override at stack position i.
func (t *Tile) DelPrefabVar(i int, name string) error {
	pf, err := t.at(i)
	if err != nil {
		return err
	}
	if _, ok := pf.Vars.Get(name); !ok {
		return dmerr.NotFound("prefab var", name)
	}
	return t.mutate(i, false, func(st []Prefab) []Prefab {
		st[i].Vars.Delete(name)
		return st
	})
}

// AddPath inserts a bare prefab of type p at stack position i; i may
// equal Len to append.
func (t *Tile) AddPath(i int, p dmpath.Path) error {
	return t.mutate(i, true, func(st []Prefab) []Prefab {
		st = append(st, Prefab{})
		copy(st[i+1:], st[i:])
		st[i] = NewPrefab(p)
		return st
	})
}

// DelPrefab removes stack position i.
func (t *Tile) DelPrefab(i int) error {
	return t.mutate(i, false, func(st []Prefab) []Prefab {
		return append(st[:i], st[i+1:]...)
	})
}

func (t *Tile) mutate(i int, inserting bool, edit func([]Prefab) []Prefab) error {
	n := t.Len()
	limit := n
	if inserting {
		limit = n + 1
	}
	if i < 0 || i >= limit {
		return dmerr.OutOfRange("prefab index", "%d not in tile of %d prefabs", i, n)
	}
	next := edit(cloneStack(t.stack()))
	if t.idx >= 0 {
		t.m.place(t.idx, t.m.intern(next))
		return nil
	}
	t.rec = t.m.rewrite(t.rec, next)
	return nil
}
