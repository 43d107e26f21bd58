package source

import "fmt"

// builtinFile marks declarations that have no textual origin.
const builtinFile = "<builtins>"

// Location points at a position inside a source unit.
type Location struct {
	File   string
	Line   int
	Column int
}

// Builtins is the location carried by types, vars and procs the
// environment knows about without any source text declaring them.
var Builtins = Location{File: builtinFile}

// At returns a location in file.
func At(file string, line, column int) Location {
	return Location{File: file, Line: line, Column: column}
}

// IsBuiltin reports whether l is the built-in sentinel.
func (l Location) IsBuiltin() bool {
	return l.File == builtinFile
}

// IsZero reports whether l carries no position at all.
func (l Location) IsZero() bool {
	return l == Location{}
}

func (l Location) String() string {
	switch {
	case l.IsBuiltin():
		return builtinFile
	case l.IsZero():
		return "<unknown>"
	case l.Column > 0:
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	default:
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	}
}
