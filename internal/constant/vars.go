package constant

import "strings"

// Vars is an insertion-ordered name → value mapping, used for prefab
// overrides. The zero value is empty and ready to use.
type Vars struct {
	keys []string
	vals map[string]Value
}

// NewVars builds a mapping from alternating name/value pairs.
func NewVars(pairs ...any) Vars {
	var vs Vars
	for i := 0; i+1 < len(pairs); i += 2 {
		vs.Set(pairs[i].(string), pairs[i+1].(Value))
	}
	return vs
}

func (vs Vars) Len() int { return len(vs.keys) }

// Keys returns names in insertion order.
func (vs Vars) Keys() []string {
	out := make([]string, len(vs.keys))
	copy(out, vs.keys)
	return out
}

func (vs Vars) Get(name string) (Value, bool) {
	v, ok := vs.vals[name]
	return v, ok
}

// Set overwrites in place or appends a new name.
func (vs *Vars) Set(name string, v Value) {
	if vs.vals == nil {
		vs.vals = make(map[string]Value)
	}
	if _, ok := vs.vals[name]; !ok {
		vs.keys = append(vs.keys, name)
	}
	vs.vals[name] = v
}

// Delete removes name, reporting whether it was present.
func (vs *Vars) Delete(name string) bool {
	if _, ok := vs.vals[name]; !ok {
		return false
	}
	delete(vs.vals, name)
	for i, k := range vs.keys {
		if k == name {
			vs.keys = append(vs.keys[:i:i], vs.keys[i+1:]...)
			break
		}
	}
	return true
}

// Clone returns an independent copy.
func (vs Vars) Clone() Vars {
	out := Vars{keys: vs.Keys()}
	if vs.vals != nil {
		out.vals = make(map[string]Value, len(vs.vals))
		for k, v := range vs.vals {
			out.vals[k] = v
		}
	}
	return out
}

// Equal is order-sensitive: the same names, in the same order, with equal
// values.
func (vs Vars) Equal(o Vars) bool {
	if len(vs.keys) != len(o.keys) {
		return false
	}
	for i, k := range vs.keys {
		if o.keys[i] != k || !vs.vals[k].Equal(o.vals[k]) {
			return false
		}
	}
	return true
}

// Each calls fn for every entry in order.
func (vs Vars) Each(fn func(name string, v Value)) {
	for _, k := range vs.keys {
		fn(k, vs.vals[k])
	}
}

// String renders the overrides the way map files write them:
// {a = 1; b = "x"}. Empty mappings render as "".
func (vs Vars) String() string {
	if len(vs.keys) == 0 {
		return ""
	}
	parts := make([]string, 0, len(vs.keys))
	for _, k := range vs.keys {
		parts = append(parts, k+" = "+vs.vals[k].String())
	}
	return "{" + strings.Join(parts, "; ") + "}"
}
