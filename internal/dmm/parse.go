package dmm

import (
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"avulto/internal/ast"
	"avulto/internal/constant"
	"avulto/internal/dmerr"
	"avulto/internal/dmpath"
	"avulto/internal/lexer"
	"avulto/internal/parser"
	"avulto/internal/source"
)

const tgmHeader = "//MAP CONVERTED BY dmm2tgm.py THIS HEADER COMMENT PREVENTS RECONVERSION, DO NOT REMOVE"

// Load reads and parses the map file at path.
func Load(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dmerr.IO("read", path, err)
	}
	m, err := Parse(path, string(data))
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("file", path).
		Str("size", m.size.String()).
		Int("keys", len(m.records)).
		Str("format", m.format.String()).
		Msg("Parsed map")
	return m, nil
}

// Parse reads map text. Both the classic and the TGM layouts are accepted.
func Parse(name, src string) (*Map, error) {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	toks, err := lexer.ScanAll(name, src)
	if err != nil {
		return nil, err
	}
	mp := &mapParser{name: name, toks: toks, dict: make(map[string][]Prefab)}
	if err := mp.run(); err != nil {
		return nil, err
	}
	m, err := mp.build()
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(strings.TrimSpace(src), tgmHeader) {
		m.format = FormatTGM
	}
	return m, nil
}

type gridBlock struct {
	origin Coord
	rows   []string
	loc    source.Location
}

type mapParser struct {
	name     string
	toks     []lexer.Token
	pos      int
	dict     map[string][]Prefab
	keyOrder []string
	keyLen   int
	blocks   []gridBlock
}

func (mp *mapParser) peek() lexer.Token {
	if mp.pos < len(mp.toks) {
		return mp.toks[mp.pos]
	}
	loc := source.At(mp.name, 0, 0)
	if n := len(mp.toks); n > 0 {
		loc = mp.toks[n-1].Loc
	}
	return lexer.Token{Kind: lexer.EOF, Loc: loc}
}

func (mp *mapParser) next() lexer.Token {
	tok := mp.peek()
	if mp.pos < len(mp.toks) {
		mp.pos++
	}
	return tok
}

func (mp *mapParser) expect(p string) (lexer.Token, error) {
	tok := mp.next()
	if !tok.Is(p) {
		return tok, dmerr.Parse(tok.Loc, "expected %q, found %s", p, tok)
	}
	return tok, nil
}

func (mp *mapParser) run() error {
	for mp.pos < len(mp.toks) {
		tok := mp.peek()
		switch {
		case tok.Kind == lexer.String:
			if err := mp.entry(); err != nil {
				return err
			}
		case tok.Is("("):
			if err := mp.block(); err != nil {
				return err
			}
		default:
			return dmerr.Parse(tok.Loc, "unexpected %s in map", tok)
		}
	}
	return nil
}

// entry parses `"key" = (prefab, prefab, ...)`.
func (mp *mapParser) entry() error {
	keyTok := mp.next()
	key := keyTok.Text
	if !validKey(key) {
		return dmerr.Parse(keyTok.Loc, "invalid map key %q", key)
	}
	if mp.keyLen == 0 {
		mp.keyLen = len(key)
	} else if len(key) != mp.keyLen {
		return dmerr.Parse(keyTok.Loc, "key %q has length %d, expected %d", key, len(key), mp.keyLen)
	}
	if _, dup := mp.dict[key]; dup {
		return dmerr.Parse(keyTok.Loc, "duplicate map key %q", key)
	}
	if _, err := mp.expect("="); err != nil {
		return err
	}
	if _, err := mp.expect("("); err != nil {
		return err
	}
	stack, err := mp.stack()
	if err != nil {
		return err
	}
	mp.dict[key] = stack
	mp.keyOrder = append(mp.keyOrder, key)
	return nil
}

func (mp *mapParser) stack() ([]Prefab, error) {
	var stack []Prefab
	if mp.peek().Is(")") {
		mp.next()
		return stack, nil
	}
	for {
		pf, err := mp.prefab()
		if err != nil {
			return nil, err
		}
		stack = append(stack, pf)
		tok := mp.next()
		if tok.Is(")") {
			return stack, nil
		}
		if !tok.Is(",") {
			return nil, dmerr.Parse(tok.Loc, "expected \",\" or \")\" in prefab list, found %s", tok)
		}
	}
}

func (mp *mapParser) prefab() (Prefab, error) {
	var segs []string
	start := mp.peek()
	for mp.peek().Is("/") {
		mp.next()
		seg := mp.next()
		if seg.Kind != lexer.Ident {
			return Prefab{}, dmerr.Parse(seg.Loc, "expected path segment, found %s", seg)
		}
		segs = append(segs, seg.Text)
	}
	if len(segs) == 0 {
		return Prefab{}, dmerr.Parse(start.Loc, "expected prefab path, found %s", start)
	}
	pf := NewPrefab(dmpath.FromSegments(segs))
	if !mp.peek().Is("{") {
		return pf, nil
	}
	mp.next()
	for {
		tok := mp.next()
		switch {
		case tok.Is("}"):
			return pf, nil
		case tok.Is(";"):
			continue
		case tok.Kind == lexer.Ident:
			if _, err := mp.expect("="); err != nil {
				return Prefab{}, err
			}
			v, err := mp.value(tok.Loc)
			if err != nil {
				return Prefab{}, err
			}
			pf.Vars.Set(tok.Text, v)
		default:
			return Prefab{}, dmerr.Parse(tok.Loc, "expected var name in prefab %s, found %s", pf.Path, tok)
		}
	}
}

// value captures an override up to the next ";" or "}" outside brackets
// and folds it to a constant. Expressions that do not fold keep their
// source text.
func (mp *mapParser) value(loc source.Location) (constant.Value, error) {
	var toks []lexer.Token
	depth := 0
	for {
		tok := mp.peek()
		if tok.Kind == lexer.EOF {
			return constant.Null(), dmerr.Parse(loc, "unterminated prefab var")
		}
		if depth == 0 && (tok.Is(";") || tok.Is("}")) {
			break
		}
		switch {
		case tok.Is("("), tok.Is("["), tok.Is("{"):
			depth++
		case tok.Is(")"), tok.Is("]"), tok.Is("}"):
			depth--
		}
		toks = append(toks, mp.next())
	}
	if len(toks) == 0 {
		return constant.Null(), dmerr.Parse(loc, "missing prefab var value")
	}
	if expr, err := parser.ParseExpr(toks); err == nil {
		if v, ok := ast.Fold(expr, nil); ok {
			return v, nil
		}
	}
	return constant.Raw(tokenText(toks)), nil
}

func tokenText(toks []lexer.Token) string {
	var b strings.Builder
	for i, tok := range toks {
		if i > 0 && tok.Space {
			b.WriteByte(' ')
		}
		switch tok.Kind {
		case lexer.String:
			b.WriteString(`"` + tok.Text + `"`)
		case lexer.Resource:
			b.WriteString("'" + tok.Text + "'")
		default:
			b.WriteString(tok.Text)
		}
	}
	return b.String()
}

// block parses `(x,y,z) = {"rows"}`.
func (mp *mapParser) block() error {
	open := mp.next()
	var origin [3]int
	for i := range origin {
		tok := mp.next()
		if tok.Kind != lexer.Number || tok.Num != float64(int(tok.Num)) {
			return dmerr.Parse(tok.Loc, "expected grid coordinate, found %s", tok)
		}
		origin[i] = int(tok.Num)
		sep := ","
		if i == len(origin)-1 {
			sep = ")"
		}
		if _, err := mp.expect(sep); err != nil {
			return err
		}
	}
	if _, err := mp.expect("="); err != nil {
		return err
	}
	body := mp.next()
	if body.Kind != lexer.String {
		return dmerr.Parse(body.Loc, "expected grid rows, found %s", body)
	}
	rows := strings.Split(strings.Trim(body.Text, "\n"), "\n")
	if len(rows) == 1 && rows[0] == "" {
		return dmerr.Parse(body.Loc, "empty grid block")
	}
	c := Coord{X: origin[0], Y: origin[1], Z: origin[2]}
	if c.X < 1 || c.Y < 1 || c.Z < 1 {
		return dmerr.Parse(open.Loc, "grid origin %s must be positive", c)
	}
	if err := checkSize(c); err != nil {
		return dmerr.Parse(open.Loc, "grid origin: %v", err)
	}
	mp.blocks = append(mp.blocks, gridBlock{origin: c, rows: rows, loc: open.Loc})
	return nil
}

func (mp *mapParser) build() (*Map, error) {
	if len(mp.keyOrder) == 0 {
		return nil, dmerr.Parse(source.At(mp.name, 1, 0), "map has no dictionary")
	}
	if len(mp.blocks) == 0 {
		return nil, dmerr.Parse(source.At(mp.name, 1, 0), "map has no grid")
	}

	var size Coord
	for _, b := range mp.blocks {
		width := len(b.rows[0])
		for _, row := range b.rows {
			if len(row) != width || width%mp.keyLen != 0 {
				return nil, dmerr.Parse(b.loc, "ragged grid row %q in block %s", row, b.origin)
			}
		}
		size.X = max(size.X, b.origin.X+width/mp.keyLen-1)
		size.Y = max(size.Y, b.origin.Y+len(b.rows)-1)
		size.Z = max(size.Z, b.origin.Z)
		if err := checkSize(size); err != nil {
			return nil, dmerr.Parse(b.loc, "grid block %s: %v", b.origin, err)
		}
	}

	m := newMap(mp.name, size)
	m.keyLen = mp.keyLen
	byKey := make(map[string]*record, len(mp.keyOrder))
	for _, key := range mp.keyOrder {
		r := m.intern(mp.dict[key])
		if r.key == "" {
			r.key = key
		}
		byKey[key] = r
	}

	for _, b := range mp.blocks {
		for ri, row := range b.rows {
			y := b.origin.Y + len(b.rows) - 1 - ri
			for col := 0; col*mp.keyLen < len(row); col++ {
				key := row[col*mp.keyLen : (col+1)*mp.keyLen]
				r, ok := byKey[key]
				if !ok {
					return nil, dmerr.Parse(b.loc, "unknown map key %q", key)
				}
				i, _ := m.index(Coord{X: b.origin.X + col, Y: y, Z: b.origin.Z})
				m.place(i, r)
			}
		}
	}

	for i, r := range m.grid {
		if r == nil {
			return nil, dmerr.Parse(source.At(mp.name, 1, 0), "no tile at %s", m.coordOf(i))
		}
	}
	for h, r := range m.records {
		if r.refs == 0 {
			delete(m.records, h)
		}
	}
	return m, nil
}
