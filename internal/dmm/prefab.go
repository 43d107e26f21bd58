package dmm

import (
	"strings"

	"avulto/internal/constant"
	"avulto/internal/dmpath"
	"avulto/internal/textutil"
)

// Prefab is one instance in a tile's stack: a type path plus variable
// overrides in the order they were written.
type Prefab struct {
	Path dmpath.Path
	Vars constant.Vars
}

// NewPrefab returns a prefab with no overrides.
func NewPrefab(p dmpath.Path) Prefab {
	return Prefab{Path: p}
}

// String renders the prefab as it appears in a map dictionary.
func (p Prefab) String() string {
	return p.Path.Rel() + p.Vars.String()
}

// Equal compares path and overrides, including override order.
func (p Prefab) Equal(o Prefab) bool {
	return p.Path.Equal(o.Path) && p.Vars.Equal(o.Vars)
}

// Clone returns a copy whose overrides can be changed independently.
func (p Prefab) Clone() Prefab {
	return Prefab{Path: p.Path, Vars: p.Vars.Clone()}
}

func cloneStack(stack []Prefab) []Prefab {
	out := make([]Prefab, len(stack))
	for i, p := range stack {
		out[i] = p.Clone()
	}
	return out
}

func stackText(stack []Prefab) string {
	parts := make([]string, len(stack))
	for i, p := range stack {
		parts[i] = p.String()
	}
	return strings.Join(parts, ",")
}

func stacksEqual(a, b []Prefab) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// record is interned tile content shared by every coordinate with the
// same stack.
type record struct {
	stack []Prefab
	hash  string
	key   string
	refs  int
}

func newRecord(stack []Prefab) *record {
	return &record{stack: stack, hash: textutil.Hash(stackText(stack))}
}
