package lexer

type indentLevel struct {
	indent  int
	virtual bool
}

// indenter rewrites significant indentation into explicit block tokens.
// A deeper line opens a block, a shallower one closes blocks, and a line
// at the same depth is separated from the previous one with ";". A deeper
// line right after a real "{" does not open a second block. Newlines
// inside parentheses and brackets are not significant.
type indenter struct {
	out    []Token
	levels []indentLevel
	parens int
}

func (in *indenter) last() (Token, bool) {
	if len(in.out) == 0 {
		return Token{}, false
	}
	return in.out[len(in.out)-1], true
}

func (in *indenter) emitVirtual(text string, tok Token) {
	in.out = append(in.out, Token{Kind: Punct, Text: text, Loc: tok.Loc, Virtual: true})
}

func (in *indenter) separate(tok Token) {
	last, ok := in.last()
	if !ok || last.Is("{") || last.Is(";") {
		return
	}
	in.emitVirtual(";", tok)
}

func (in *indenter) current() int {
	if len(in.levels) == 0 {
		return 0
	}
	return in.levels[len(in.levels)-1].indent
}

func (in *indenter) line(tok Token) {
	if tok.Indent > in.current() {
		last, _ := in.last()
		virtual := !last.Is("{")
		in.levels = append(in.levels, indentLevel{indent: tok.Indent, virtual: virtual})
		if virtual {
			in.emitVirtual("{", tok)
		}
		return
	}
	in.closeTo(tok.Indent, tok)
	// A brace on its own line belongs to the statement above it.
	if tok.Is("{") {
		return
	}
	in.separate(tok)
}

func (in *indenter) closeTo(indent int, tok Token) {
	for len(in.levels) > 0 && indent < in.current() {
		lv := in.levels[len(in.levels)-1]
		in.levels = in.levels[:len(in.levels)-1]
		if lv.virtual {
			in.separate(tok)
			in.emitVirtual("}", tok)
		}
	}
}

func (in *indenter) push(tok Token) {
	switch tok.Kind {
	case FileEnd, EOF:
		in.closeTo(-1, tok)
		in.separate(tok)
		in.parens = 0
		if tok.Kind == EOF {
			in.out = append(in.out, tok)
		}
		return
	}
	if tok.LineStart && in.parens == 0 {
		in.line(tok)
	}
	if tok.Kind == Punct {
		switch tok.Text {
		case "(", "[":
			in.parens++
		case ")", "]":
			if in.parens > 0 {
				in.parens--
			}
		}
	}
	in.out = append(in.out, tok)
}
