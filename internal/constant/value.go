// Package constant holds the literal values DM code and map files carry:
// numbers, strings, resources, paths, lists and null.
package constant

import (
	"math"
	"strconv"
	"strings"

	"avulto/internal/dmpath"
	"avulto/internal/textutil"
)

// Kind discriminates Value.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindResource
	KindPath
	KindList
	// KindRaw holds source text that is not a foldable constant, such as a
	// call to newlist() in a map file. It is preserved verbatim.
	KindRaw
)

var kindNames = [...]string{"null", "number", "string", "resource", "path", "list", "raw"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is an immutable DM constant. The zero value is null.
type Value struct {
	kind Kind
	num  float64
	str  string
	path dmpath.Path
	list []Entry
}

// Entry is one element of a list constant. Keyed entries come from
// associative literals such as list("a" = 1).
type Entry struct {
	Key   Value
	Value Value
	Keyed bool
}

func Null() Value                 { return Value{} }
func Number(f float64) Value      { return Value{kind: KindNumber, num: f} }
func Int(i int) Value             { return Value{kind: KindNumber, num: float64(i)} }
func String(s string) Value       { return Value{kind: KindString, str: s} }
func Resource(s string) Value     { return Value{kind: KindResource, str: s} }
func Path(p dmpath.Path) Value    { return Value{kind: KindPath, path: p} }
func Raw(text string) Value       { return Value{kind: KindRaw, str: text} }
func List(entries ...Entry) Value { return Value{kind: KindList, list: entries} }

// Item is an unkeyed list entry.
func Item(v Value) Entry { return Entry{Value: v} }

// Pair is a keyed list entry.
func Pair(k, v Value) Entry { return Entry{Key: k, Value: v, Keyed: true} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsNumber returns the numeric payload.
func (v Value) AsNumber() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// AsInt returns the numeric payload when it is integral.
func (v Value) AsInt() (int, bool) {
	if v.kind != KindNumber || v.num != math.Trunc(v.num) {
		return 0, false
	}
	return int(v.num), true
}

// AsString returns the payload of a string or resource.
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString || v.kind == KindResource
}

func (v Value) AsPath() (dmpath.Path, bool) {
	return v.path, v.kind == KindPath
}

// AsList returns a copy of the list entries.
func (v Value) AsList() ([]Entry, bool) {
	if v.kind != KindList {
		return nil, false
	}
	out := make([]Entry, len(v.list))
	copy(out, v.list)
	return out, true
}

// RawText returns the verbatim source of a raw value.
func (v Value) RawText() (string, bool) {
	return v.str, v.kind == KindRaw
}

// Truthy follows DM: null, 0 and "" are false.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindNumber:
		return v.num != 0
	case KindString:
		return v.str != ""
	default:
		return true
	}
}

// Equal compares kind and payload. Lists compare element-wise.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindNumber:
		return v.num == o.num
	case KindPath:
		return v.path.Equal(o.path)
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			a, b := v.list[i], o.list[i]
			if a.Keyed != b.Keyed || !a.Value.Equal(b.Value) {
				return false
			}
			if a.Keyed && !a.Key.Equal(b.Key) {
				return false
			}
		}
		return true
	default:
		return v.str == o.str
	}
}

// String renders v as DM source text.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindNumber:
		return FormatNumber(v.num)
	case KindString:
		return textutil.Quote(v.str)
	case KindResource:
		return "'" + v.str + "'"
	case KindPath:
		return v.path.Rel()
	case KindList:
		var b strings.Builder
		b.WriteString("list(")
		for i, e := range v.list {
			if i > 0 {
				b.WriteString(",")
			}
			if e.Keyed {
				b.WriteString(e.Key.String())
				b.WriteString(" = ")
			}
			b.WriteString(e.Value.String())
		}
		b.WriteString(")")
		return b.String()
	default:
		return v.str
	}
}

// FormatNumber renders whole numbers without a fraction.
func FormatNumber(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "1.#INF"
	case math.IsInf(f, -1):
		return "-1.#INF"
	case math.IsNaN(f):
		return "1.#IND"
	case f == math.Trunc(f) && math.Abs(f) < 1e15:
		return strconv.FormatInt(int64(f), 10)
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}
