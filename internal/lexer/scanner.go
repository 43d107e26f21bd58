package lexer

import (
	"strconv"
	"strings"

	"avulto/internal/dmerr"
	"avulto/internal/source"
)

// puncts is ordered longest first so the scanner takes the longest match.
var puncts = []string{
	"<<=", ">>=", "||=", "&&=", "%%=", "...",
	"?.", "==", "!=", "<>", "<=", ">=", "&&", "||", "++", "--",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "<<", ">>",
	"**", "%%", ":=", "~=", "~!", "..", "::",
	"+", "-", "*", "/", "%", "=", "<", ">", "!", "~", "&", "|", "^",
	"?", ":", ".", ",", ";", "(", ")", "[", "]", "{", "}", "#", "@", "$",
}

// Scanner produces raw tokens from a single source unit. It does not
// interpret directives or indentation.
type Scanner struct {
	file      string
	src       string
	pos       int
	line, col int
	lineStart bool
	spaced    bool
}

// NewScanner starts scanning src, reporting locations in file.
func NewScanner(file, src string) *Scanner {
	return &Scanner{file: file, src: src, line: 1, col: 1, lineStart: true}
}

// newScannerAt scans src as if it started at loc, for text embedded in
// another token such as a string's [expression].
func newScannerAt(loc source.Location, src string) *Scanner {
	s := NewScanner(loc.File, src)
	if loc.Line > 0 {
		s.line, s.col = loc.Line, loc.Column
	}
	return s
}

// ScanAll returns every raw token of src up to, but excluding, EOF.
// Directives are rejected.
func ScanAll(file, src string) ([]Token, error) {
	return scanAll(NewScanner(file, src))
}

// ScanAt is ScanAll with locations offset to loc.
func ScanAt(loc source.Location, src string) ([]Token, error) {
	return scanAll(newScannerAt(loc, src))
}

func scanAll(s *Scanner) ([]Token, error) {
	var toks []Token
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, err
		}
		switch tok.Kind {
		case EOF:
			return toks, nil
		case Directive:
			return nil, dmerr.Parse(tok.Loc, "unexpected directive #%s", tok.Text)
		}
		toks = append(toks, tok)
	}
}

func (s *Scanner) loc() source.Location {
	return source.At(s.file, s.line, s.col)
}

func (s *Scanner) peekAt(off int) byte {
	if s.pos+off < len(s.src) {
		return s.src[s.pos+off]
	}
	return 0
}

func (s *Scanner) advance() byte {
	c := s.src[s.pos]
	s.pos++
	if c == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return c
}

// continuation reports whether a backslash-newline starts at the cursor.
func (s *Scanner) continuation() bool {
	if s.peekAt(0) != '\\' {
		return false
	}
	return s.peekAt(1) == '\n' || (s.peekAt(1) == '\r' && s.peekAt(2) == '\n')
}

func (s *Scanner) skipContinuation() {
	s.advance()
	if s.peekAt(0) == '\r' {
		s.advance()
	}
	s.advance()
}

// Next returns the following token, or an EOF token at the end of input.
func (s *Scanner) Next() (Token, error) {
	s.spaced = false
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\f':
			s.advance()
			s.spaced = true
		case c == '\n':
			s.advance()
			s.lineStart = true
			s.spaced = true
		case s.continuation():
			s.skipContinuation()
			s.spaced = true
		case c == '/' && s.peekAt(1) == '/':
			for s.pos < len(s.src) && s.src[s.pos] != '\n' {
				if s.continuation() {
					s.skipContinuation()
					continue
				}
				s.advance()
			}
			s.spaced = true
		case c == '/' && s.peekAt(1) == '*':
			if err := s.skipBlockComment(); err != nil {
				return Token{}, err
			}
			s.spaced = true
		default:
			return s.token()
		}
	}
	return Token{Kind: EOF, Loc: s.loc(), LineStart: true}, nil
}

func (s *Scanner) skipBlockComment() error {
	start := s.loc()
	depth := 0
	for s.pos < len(s.src) {
		switch {
		case s.src[s.pos] == '/' && s.peekAt(1) == '*':
			s.advance()
			s.advance()
			depth++
		case s.src[s.pos] == '*' && s.peekAt(1) == '/':
			s.advance()
			s.advance()
			depth--
			if depth == 0 {
				return nil
			}
		default:
			if s.advance() == '\n' {
				s.lineStart = true
			}
		}
	}
	return dmerr.Parse(start, "unterminated block comment")
}

func (s *Scanner) token() (Token, error) {
	tok := Token{
		Loc:       s.loc(),
		LineStart: s.lineStart,
		Indent:    s.col - 1,
		Space:     s.spaced,
	}
	s.lineStart = false
	c := s.src[s.pos]

	switch {
	case c == '#' && tok.LineStart:
		tok.Kind = Directive
		tok.Text = s.directiveText()
		return tok, nil
	case isIdentStart(c):
		start := s.pos
		for s.pos < len(s.src) && isIdentChar(s.src[s.pos]) {
			s.advance()
		}
		tok.Kind = Ident
		tok.Text = s.src[start:s.pos]
		return tok, nil
	case isDigit(c) || (c == '.' && isDigit(s.peekAt(1))):
		return s.number(tok)
	case c == '"':
		s.advance()
		raw, err := s.stringBody(tok.Loc, false)
		if err != nil {
			return tok, err
		}
		tok.Kind = String
		tok.Text = raw
		return tok, nil
	case c == '{' && s.peekAt(1) == '"':
		s.advance()
		s.advance()
		raw, err := s.stringBody(tok.Loc, true)
		if err != nil {
			return tok, err
		}
		tok.Kind = String
		tok.Text = raw
		return tok, nil
	case c == '@' && s.peekAt(1) == '"':
		s.advance()
		s.advance()
		start := s.pos
		for s.pos < len(s.src) && s.src[s.pos] != '"' && s.src[s.pos] != '\n' {
			s.advance()
		}
		if s.peekAt(0) != '"' {
			return tok, dmerr.Parse(tok.Loc, "unterminated raw string")
		}
		tok.Kind = String
		tok.Text = s.src[start:s.pos]
		tok.Literal = true
		s.advance()
		return tok, nil
	case c == '\'':
		s.advance()
		start := s.pos
		for s.pos < len(s.src) && s.src[s.pos] != '\'' && s.src[s.pos] != '\n' {
			s.advance()
		}
		if s.peekAt(0) != '\'' {
			return tok, dmerr.Parse(tok.Loc, "unterminated resource literal")
		}
		tok.Kind = Resource
		tok.Text = s.src[start:s.pos]
		s.advance()
		return tok, nil
	}

	for _, p := range puncts {
		if strings.HasPrefix(s.src[s.pos:], p) {
			// "?." before a digit is a ternary followed by a number.
			if p == "?." && isDigit(s.peekAt(2)) {
				continue
			}
			for k, n := 0, len(p); k < n; k++ {
				s.advance()
			}
			tok.Kind = Punct
			tok.Text = p
			return tok, nil
		}
	}
	return tok, dmerr.Parse(tok.Loc, "unexpected character %q", c)
}

func (s *Scanner) directiveText() string {
	s.advance() // '#'
	var b strings.Builder
	for s.pos < len(s.src) && s.src[s.pos] != '\n' {
		if s.continuation() {
			s.skipContinuation()
			b.WriteByte(' ')
			continue
		}
		if s.src[s.pos] == '/' && s.peekAt(1) == '/' {
			for s.pos < len(s.src) && s.src[s.pos] != '\n' {
				s.advance()
			}
			break
		}
		b.WriteByte(s.advance())
	}
	return strings.TrimSpace(b.String())
}

func (s *Scanner) number(tok Token) (Token, error) {
	start := s.pos
	if s.src[s.pos] == '0' && (s.peekAt(1) == 'x' || s.peekAt(1) == 'X') {
		s.advance()
		s.advance()
		for s.pos < len(s.src) && isHexDigit(s.src[s.pos]) {
			s.advance()
		}
		text := s.src[start:s.pos]
		n, err := strconv.ParseInt(text[2:], 16, 64)
		if err != nil {
			return tok, dmerr.Parse(tok.Loc, "malformed number %q", text)
		}
		tok.Kind, tok.Text, tok.Num = Number, text, float64(n)
		return tok, nil
	}
	for s.pos < len(s.src) && isDigit(s.src[s.pos]) {
		s.advance()
	}
	if s.peekAt(0) == '.' && isDigit(s.peekAt(1)) {
		s.advance()
		for s.pos < len(s.src) && isDigit(s.src[s.pos]) {
			s.advance()
		}
	}
	if c := s.peekAt(0); c == 'e' || c == 'E' {
		off := 1
		if sign := s.peekAt(1); sign == '+' || sign == '-' {
			off = 2
		}
		if isDigit(s.peekAt(off)) {
			for k, n := 0, off; k < n; k++ {
				s.advance()
			}
			for s.pos < len(s.src) && isDigit(s.src[s.pos]) {
				s.advance()
			}
		}
	}
	text := s.src[start:s.pos]
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return tok, dmerr.Parse(tok.Loc, "malformed number %q", text)
	}
	tok.Kind, tok.Text, tok.Num = Number, text, n
	return tok, nil
}

// stringBody consumes a string after its opening delimiter and returns the
// raw body. Multi-line strings end at `"}`; ordinary strings end at `"`
// and may not cross a newline.
func (s *Scanner) stringBody(start source.Location, multiline bool) (string, error) {
	var b strings.Builder
	depth := 0
	inner := false // inside a quoted string nested in an [expression]
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '\\' && s.continuation():
			s.skipContinuation()
			continue
		case c == '\\':
			b.WriteByte(s.advance())
			if s.pos < len(s.src) {
				b.WriteByte(s.advance())
			}
			continue
		case c == '\n' && !multiline && depth == 0:
			return "", dmerr.Parse(start, "unterminated string")
		case depth > 0 && c == '"':
			inner = !inner
		case depth > 0 && !inner && c == '[':
			depth++
		case depth > 0 && !inner && c == ']':
			depth--
		case depth == 0 && c == '[':
			depth++
		case depth == 0 && c == '"' && !multiline:
			s.advance()
			return b.String(), nil
		case depth == 0 && c == '"' && multiline && s.peekAt(1) == '}':
			s.advance()
			s.advance()
			return b.String(), nil
		}
		b.WriteByte(s.advance())
	}
	return "", dmerr.Parse(start, "unterminated string")
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool { return isIdentStart(c) || isDigit(c) }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
