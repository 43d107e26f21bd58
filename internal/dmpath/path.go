// Package dmpath models DM type paths.
//
// A path is kept in two forms: the relative form, as it was written, and the
// absolute form, expanded against the built-in ancestry table. Identity,
// equality and ordering use the absolute form, so "/obj/foo" and
// "/datum/atom/movable/obj/foo" denote the same type.
package dmpath

import (
	"strings"

	"avulto/internal/dmerr"
	"avulto/internal/source"
	"avulto/internal/textutil"
)

// Built-in prefixes, longest first. A written path starting with one of these
// is shortened to the prefix's last segment.
var relativePrefixes = [][]string{
	{"datum", "atom", "movable", "obj"},
	{"datum", "atom", "movable", "mob"},
	{"datum", "atom", "area"},
	{"datum", "atom", "turf"},
	{"datum", "atom"},
}

// coreRoots stand directly under the universal root instead of /datum.
var coreRoots = map[string]bool{
	"datum":              true,
	"image":              true,
	"mutable_appearance": true,
	"sound":              true,
	"icon":               true,
	"matrix":             true,
	"database":           true,
	"exception":          true,
	"regex":              true,
	"dm_filter":          true,
	"generator":          true,
	"particles":          true,
	"list":               true,
	"client":             true,
	"world":              true,
	"savefile":           true,
}

// Path is an immutable DM type path. The zero value is the root path.
type Path struct {
	abs string
	rel string
}

// Root returns the universal root "/".
func Root() Path {
	return Path{abs: "/", rel: "/"}
}

// New parses an untrusted path string. Every syntactically valid path is
// accepted; whether the type exists is a question for an environment.
func New(s string) (Path, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "/" {
		return Root(), nil
	}
	if trimmed == "" {
		return Path{}, dmerr.Parse(source.Location{}, "empty path")
	}
	if !strings.HasPrefix(trimmed, "/") {
		return Path{}, dmerr.Parse(source.Location{}, "invalid path %q: must start with /", trimmed)
	}
	for _, part := range strings.Split(trimmed[1:], "/") {
		if part == "" {
			return Path{}, dmerr.Parse(source.Location{}, "path %q contains empty parts", trimmed)
		}
		if !textutil.IsIdent(part) {
			return Path{}, dmerr.Parse(source.Location{}, "path %q contains invalid part %q", trimmed, part)
		}
	}
	return Trusted(trimmed), nil
}

// MustNew is New for literals known to be valid.
func MustNew(s string) Path {
	p, err := New(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Trusted builds a path from text already produced by a parser. No
// validation is performed.
func Trusted(s string) Path {
	rel := toRelative(s)
	return Path{abs: toAbsolute(rel), rel: rel}
}

// FromSegments builds a path from bare segments, e.g. {"obj", "foo"}.
func FromSegments(segments []string) Path {
	if len(segments) == 0 {
		return Root()
	}
	return Trusted("/" + strings.Join(segments, "/"))
}

func splitParts(s string) []string {
	var parts []string
	for _, p := range strings.Split(s, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func hasPrefix(parts, prefix []string) bool {
	if len(parts) < len(prefix) {
		return false
	}
	for i := range prefix {
		if parts[i] != prefix[i] {
			return false
		}
	}
	return true
}

func toRelative(s string) string {
	parts := splitParts(s)
	if len(parts) == 0 {
		return "/"
	}
	for _, prefix := range relativePrefixes {
		if hasPrefix(parts, prefix) {
			return "/" + strings.Join(parts[len(prefix)-1:], "/")
		}
	}
	return "/" + strings.Join(parts, "/")
}

func toAbsolute(s string) string {
	parts := splitParts(s)
	if len(parts) == 0 {
		return "/"
	}
	joined := strings.Join(parts, "/")
	switch parts[0] {
	case "area", "turf":
		return "/datum/atom/" + joined
	case "atom":
		return "/datum/" + joined
	case "obj", "mob":
		return "/datum/atom/movable/" + joined
	}
	if coreRoots[parts[0]] {
		return "/" + joined
	}
	return "/datum/" + joined
}

// Abs returns the fully expanded form.
func (p Path) Abs() string {
	if p.abs == "" {
		return "/"
	}
	return p.abs
}

// Rel returns the written form, with built-in prefixes collapsed.
func (p Path) Rel() string {
	if p.rel == "" {
		return "/"
	}
	return p.rel
}

func (p Path) String() string { return p.Rel() }

// IsRoot reports whether p is the universal root.
func (p Path) IsRoot() bool { return p.Abs() == "/" }

// Segments returns the absolute segments of p; nil for the root.
func (p Path) Segments() []string { return splitParts(p.Abs()) }

// Stem returns the last segment, or "" for the root.
func (p Path) Stem() string {
	segs := p.Segments()
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

// Parent strips the last absolute segment. The root is its own parent.
func (p Path) Parent() Path {
	segs := p.Segments()
	if len(segs) <= 1 {
		return Root()
	}
	return FromSegments(segs[:len(segs)-1])
}

// Join appends one or more segments, e.g. Join("foo") or Join("foo/bar").
func (p Path) Join(segment string) Path {
	segs := splitParts(segment)
	if len(segs) == 0 {
		return p
	}
	if p.IsRoot() {
		return FromSegments(segs)
	}
	return Trusted(p.Rel() + "/" + strings.Join(segs, "/"))
}

// ParentOf reports whether p is an ancestor of other. Unless strict is set,
// a path is its own parent. The root is a parent of every path.
func (p Path) ParentOf(other Path, strict bool) bool {
	if p.Equal(other) {
		return !strict
	}
	if p.IsRoot() {
		return true
	}
	return hasPrefix(other.Segments(), p.Segments())
}

// ChildOf is the inverse of ParentOf.
func (p Path) ChildOf(other Path, strict bool) bool {
	return other.ParentOf(p, strict)
}

// IsPrefixedBy reports whether p is prefix or one of its descendants.
func (p Path) IsPrefixedBy(prefix Path) bool {
	return prefix.ParentOf(p, false)
}

// Equal compares absolute forms.
func (p Path) Equal(other Path) bool { return p.Abs() == other.Abs() }

// Compare orders paths by absolute form.
func (p Path) Compare(other Path) int { return strings.Compare(p.Abs(), other.Abs()) }

// Less is Compare(other) < 0, for sort.Slice callers.
func (p Path) Less(other Path) bool { return p.Compare(other) < 0 }

// MarshalText renders the relative form.
func (p Path) MarshalText() ([]byte, error) { return []byte(p.Rel()), nil }

// UnmarshalText parses untrusted text.
func (p *Path) UnmarshalText(b []byte) error {
	parsed, err := New(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
