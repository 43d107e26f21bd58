package lexer

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"avulto/internal/dmerr"
	"avulto/internal/source"

	"github.com/rs/zerolog/log"
)

// ReadFileFunc loads an included file. os.ReadFile is the default.
type ReadFileFunc func(name string) ([]byte, error)

// builtinDefines are always present, before any source is read.
var builtinDefines = map[string]string{
	"TRUE":       "1",
	"FALSE":      "0",
	"NORTH":      "1",
	"SOUTH":      "2",
	"EAST":       "4",
	"WEST":       "8",
	"NORTHEAST":  "5",
	"NORTHWEST":  "9",
	"SOUTHEAST":  "6",
	"SOUTHWEST":  "10",
	"UP":         "16",
	"DOWN":       "32",
	"DM_VERSION": "515",
	"DM_BUILD":   "1640",
}

// codeExts are included files that are lexed; everything else an #include
// names (maps, icons, interface files) is recorded as a resource.
var codeExts = map[string]bool{".dm": true, ".dme": true}

type frame struct {
	scanner  *Scanner
	dir      string
	condBase int
}

type cond struct {
	active bool // this branch is being emitted
	taken  bool // some branch of this group has been emitted
	parent bool // the enclosing group is active
}

// Preprocessor handles #include, #define and conditional compilation over
// a stack of scanners.
type Preprocessor struct {
	stack     []*frame
	defines   map[string][]Token
	conds     []cond
	readFile  ReadFileFunc
	rootDir   string
	seen      map[string]bool
	includes  []string
	resources []string
	pending   []Token
}

// NewPreprocessor prepares to read root. Extra defines are applied after
// the built-in ones.
func NewPreprocessor(root string, readFile ReadFileFunc, defines map[string]string) *Preprocessor {
	if readFile == nil {
		readFile = os.ReadFile
	}
	p := &Preprocessor{
		defines:  make(map[string][]Token),
		readFile: readFile,
		rootDir:  filepath.Dir(root),
		seen:     make(map[string]bool),
	}
	for name, body := range builtinDefines {
		p.define(name, body, source.Builtins)
	}
	for name, body := range defines {
		p.define(name, body, source.Builtins)
	}
	return p
}

// Push starts reading src as the file name. The first pushed unit is the
// root of the environment.
func (p *Preprocessor) Push(name, src string) {
	p.seen[filepath.Clean(name)] = true
	p.includes = append(p.includes, name)
	p.stack = append(p.stack, &frame{
		scanner:  NewScanner(name, src),
		dir:      filepath.Dir(name),
		condBase: len(p.conds),
	})
}

// Includes lists every code file read, in inclusion order.
func (p *Preprocessor) Includes() []string { return p.includes }

// Resources lists included files that are not code, such as maps.
func (p *Preprocessor) Resources() []string { return p.resources }

func (p *Preprocessor) define(name, body string, loc source.Location) {
	toks, err := ScanAt(loc, body)
	if err != nil {
		toks = nil
	}
	p.defines[name] = toks
}

func (p *Preprocessor) active() bool {
	return len(p.conds) == 0 || p.conds[len(p.conds)-1].active
}

// Next returns the next token after preprocessing. A FileEnd token is
// produced whenever a unit is exhausted; EOF follows the last one.
func (p *Preprocessor) Next() (Token, error) {
	if len(p.pending) > 0 {
		tok := p.pending[0]
		p.pending = p.pending[1:]
		return tok, nil
	}
	for len(p.stack) > 0 {
		top := p.stack[len(p.stack)-1]
		tok, err := top.scanner.Next()
		if err != nil {
			return Token{}, err
		}
		switch tok.Kind {
		case EOF:
			if len(p.conds) > top.condBase {
				return Token{}, dmerr.Parse(tok.Loc, "unterminated conditional directive")
			}
			p.stack = p.stack[:len(p.stack)-1]
			return Token{Kind: FileEnd, Loc: tok.Loc}, nil
		case Directive:
			if err := p.directive(tok, top); err != nil {
				return Token{}, err
			}
			continue
		}
		if !p.active() {
			continue
		}
		if tok.Kind == Ident {
			if _, ok := p.defines[tok.Text]; ok {
				expanded := p.expand(tok, map[string]bool{})
				if len(expanded) == 0 {
					continue
				}
				p.pending = append(p.pending, expanded[1:]...)
				return expanded[0], nil
			}
		}
		return tok, nil
	}
	return Token{Kind: EOF}, nil
}

// expand substitutes an object-like macro at the use site of tok.
func (p *Preprocessor) expand(tok Token, guard map[string]bool) []Token {
	guard[tok.Text] = true
	defer delete(guard, tok.Text)

	var out []Token
	for _, b := range p.defines[tok.Text] {
		b.Loc = tok.Loc
		b.LineStart = false
		b.Indent = 0
		b.Space = true
		if b.Kind == Ident && !guard[b.Text] {
			if _, ok := p.defines[b.Text]; ok {
				out = append(out, p.expand(b, guard)...)
				continue
			}
		}
		out = append(out, b)
	}
	if len(out) > 0 {
		out[0].LineStart = tok.LineStart
		out[0].Indent = tok.Indent
		out[0].Space = tok.Space
	}
	return out
}

func (p *Preprocessor) directive(tok Token, top *frame) error {
	name, rest, _ := strings.Cut(tok.Text, " ")
	name = strings.TrimSpace(name)
	rest = strings.TrimSpace(rest)

	switch name {
	case "ifdef", "ifndef", "if":
		parent := p.active()
		var on bool
		switch name {
		case "ifdef":
			_, on = p.defines[rest]
		case "ifndef":
			_, on = p.defines[rest]
			on = !on
		default:
			v, err := p.evalCondition(tok.Loc, rest)
			if err != nil {
				return err
			}
			on = v != 0
		}
		p.conds = append(p.conds, cond{active: parent && on, taken: on, parent: parent})
		return nil
	case "elif":
		if len(p.conds) <= top.condBase {
			return dmerr.Parse(tok.Loc, "#elif without #if")
		}
		c := &p.conds[len(p.conds)-1]
		if c.taken {
			c.active = false
			return nil
		}
		v, err := p.evalCondition(tok.Loc, rest)
		if err != nil {
			return err
		}
		c.taken = v != 0
		c.active = c.parent && c.taken
		return nil
	case "else":
		if len(p.conds) <= top.condBase {
			return dmerr.Parse(tok.Loc, "#else without #if")
		}
		c := &p.conds[len(p.conds)-1]
		c.active = c.parent && !c.taken
		c.taken = true
		return nil
	case "endif":
		if len(p.conds) <= top.condBase {
			return dmerr.Parse(tok.Loc, "#endif without #if")
		}
		p.conds = p.conds[:len(p.conds)-1]
		return nil
	}

	if !p.active() {
		return nil
	}

	switch name {
	case "include":
		return p.include(tok, top, rest)
	case "define":
		macro := rest
		end := 0
		for end < len(macro) && isIdentChar(macro[end]) {
			end++
		}
		if end == 0 || !isIdentStart(macro[0]) {
			return dmerr.Parse(tok.Loc, "malformed #define")
		}
		if end < len(macro) && macro[end] == '(' {
			return dmerr.Parse(tok.Loc, "function-like macro %s is not supported", macro[:end])
		}
		p.define(macro[:end], strings.TrimSpace(macro[end:]), tok.Loc)
	case "undef":
		delete(p.defines, rest)
	case "warn", "warning":
		log.Warn().Str("at", tok.Loc.String()).Msg(rest)
	case "error":
		return dmerr.Parse(tok.Loc, "#error %s", rest)
	default:
		log.Debug().Str("directive", name).Str("at", tok.Loc.String()).Msg("Ignoring directive")
	}
	return nil
}

func (p *Preprocessor) include(tok Token, top *frame, rest string) error {
	target := strings.Trim(rest, `"<> `)
	target = strings.ReplaceAll(target, `\`, "/")
	if target == "" {
		return dmerr.Parse(tok.Loc, "malformed #include")
	}

	candidates := []string{filepath.Join(top.dir, target)}
	if p.rootDir != top.dir {
		candidates = append(candidates, filepath.Join(p.rootDir, target))
	}

	if !codeExts[strings.ToLower(filepath.Ext(target))] {
		p.resources = append(p.resources, candidates[0])
		return nil
	}

	var lastErr error
	for _, path := range candidates {
		clean := filepath.Clean(path)
		if p.seen[clean] {
			return nil
		}
		data, err := p.readFile(clean)
		if err != nil {
			lastErr = err
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			break
		}
		log.Debug().Str("file", clean).Msg("Including file")
		p.Push(clean, string(data))
		return nil
	}
	return dmerr.IO("include", target, lastErr)
}

// evalCondition evaluates a #if expression. Unknown identifiers are 0.
func (p *Preprocessor) evalCondition(loc source.Location, expr string) (float64, error) {
	toks, err := ScanAt(loc, expr)
	if err != nil {
		return 0, err
	}
	e := &condEval{toks: toks, defines: p.defines, loc: loc}
	v, err := e.or()
	if err != nil {
		return 0, err
	}
	if e.pos != len(e.toks) {
		return 0, dmerr.Parse(loc, "unexpected %s in #if", e.toks[e.pos])
	}
	return v, nil
}
