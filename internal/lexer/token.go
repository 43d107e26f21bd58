// Package lexer turns DM source text into tokens. The pipeline is a raw
// Scanner, a Preprocessor handling # directives and macro substitution,
// and an indentation pass that rewrites significant whitespace into
// explicit "{", "}" and ";" tokens.
package lexer

import (
	"fmt"

	"avulto/internal/source"
)

// Kind classifies a token.
type Kind int

const (
	EOF Kind = iota
	Ident
	Number
	String
	Resource
	Punct
	// Directive is a whole preprocessor line; Text holds everything after "#".
	Directive
	// FileEnd marks the end of one source unit inside a multi-file stream.
	FileEnd
)

var kindNames = [...]string{"EOF", "identifier", "number", "string", "resource", "punctuation", "directive", "end of file"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token is one lexical unit.
type Token struct {
	Kind Kind
	// Text is the identifier, punctuation, number source, resource path or
	// the raw (undecoded) body of a string.
	Text string
	Num  float64
	// Literal is set for @"..." strings, which have no escapes or
	// embedded expressions.
	Literal bool
	Loc     source.Location
	// LineStart is set on the first token of a physical line; Indent is
	// its column offset from the left margin.
	LineStart bool
	Indent    int
	// Space is set when whitespace or a comment precedes the token.
	Space bool
	// Virtual tokens were inserted by the indentation pass.
	Virtual bool
}

// Is reports whether t is the punctuation p.
func (t Token) Is(p string) bool {
	return t.Kind == Punct && t.Text == p
}

// IsIdent reports whether t is the identifier or keyword name.
func (t Token) IsIdent(name string) bool {
	return t.Kind == Ident && t.Text == name
}

func (t Token) String() string {
	switch t.Kind {
	case EOF, FileEnd:
		return t.Kind.String()
	case String:
		return fmt.Sprintf("%q", t.Text)
	case Resource:
		return "'" + t.Text + "'"
	default:
		return t.Text
	}
}
