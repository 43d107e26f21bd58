package interpolation

import (
	"fmt"
	"sort"
	"strings"
)

// Segment is one piece of a DM string body: literal text or the source of
// an embedded [expression].
type Segment struct {
	Text   string
	Expr   string
	IsExpr bool
	// Offset is the byte offset of the segment inside the raw body.
	Offset int
}

// macros are the DM text macros. They are kept in raw form, backslash
// included, and matched before the single-character escapes so that \the
// is not read as a tab.
var macros = []string{
	"the", "The", "a", "an", "A", "An",
	"he", "He", "she", "She", "his", "His", "him", "himself", "herself",
	"hers", "Hers", "proper", "improper", "th", "s",
	"icon", "ref", "roman", "Roman", "xml",
	"red", "blue", "green", "black", "yellow", "teal", "olive", "purple",
	"maroon", "gray", "silver", "white", "fuchsia", "lime", "aqua",
	"bold", "italic", "underline", "font", "sound",
}

func init() {
	sort.Slice(macros, func(i, j int) bool { return len(macros[i]) > len(macros[j]) })
}

// Macro returns the text macro name that s starts with, or "". s is the
// text following a backslash; the longest name wins.
func Macro(s string) string {
	for _, m := range macros {
		if strings.HasPrefix(s, m) {
			return m
		}
	}
	return ""
}

// escapes maps the single-character escapes DM decodes in string text.
// Any other character after a backslash is kept verbatim.
var escapes = map[byte]string{
	'n':  "\n",
	't':  "\t",
	'"':  "\"",
	'\\': "\\",
	'[':  "[",
	']':  "]",
	'\'': "'",
	'<':  "<",
	'>':  ">",
}

// HasExpressions reports whether raw contains an unescaped "[".
func HasExpressions(raw string) bool {
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '\\':
			i++
		case '[':
			return true
		}
	}
	return false
}

// Split breaks a raw string body (the text between the quotes, escapes not
// yet decoded) into literal and expression segments. Adjacent literal text
// is merged; expression bodies are returned undecoded for the parser.
func Split(raw string) ([]Segment, error) {
	var segments []Segment
	var text strings.Builder
	textStart := 0

	flush := func() {
		if text.Len() > 0 {
			segments = append(segments, Segment{Text: text.String(), Offset: textStart})
			text.Reset()
		}
	}

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch c {
		case '\\':
			if text.Len() == 0 {
				textStart = i
			}
			if i+1 >= len(raw) {
				text.WriteByte('\\')
				continue
			}
			if m := Macro(raw[i+1:]); m != "" {
				text.WriteString(`\` + m)
				i += len(m)
				continue
			}
			if dec, ok := escapes[raw[i+1]]; ok {
				text.WriteString(dec)
			} else {
				text.WriteByte('\\')
				text.WriteByte(raw[i+1])
			}
			i++
		case '[':
			end, err := matchBracket(raw, i)
			if err != nil {
				return nil, err
			}
			flush()
			expr := raw[i+1 : end]
			if strings.TrimSpace(expr) == "" {
				return nil, fmt.Errorf("empty embedded expression at offset %d", i)
			}
			segments = append(segments, Segment{Expr: expr, IsExpr: true, Offset: i + 1})
			i = end
			textStart = end + 1
		default:
			if text.Len() == 0 {
				textStart = i
			}
			text.WriteByte(c)
		}
	}
	flush()
	return segments, nil
}

// Decode returns raw with escapes decoded and brackets kept literally.
func Decode(raw string) string {
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\\' && i+1 < len(raw) {
			if m := Macro(raw[i+1:]); m != "" {
				b.WriteString(`\` + m)
				i += len(m)
				continue
			}
			if dec, ok := escapes[raw[i+1]]; ok {
				b.WriteString(dec)
				i++
				continue
			}
		}
		b.WriteByte(raw[i])
	}
	return b.String()
}

// Join renders segments back into a raw string body.
func Join(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		if s.IsExpr {
			b.WriteString("[" + s.Expr + "]")
			continue
		}
		b.WriteString(Escape(s.Text))
	}
	return b.String()
}

// Escape is the inverse of Decode for literal text: quotes, brackets,
// backslashes and control characters are escaped, while text macros are
// written back with their single backslash.
func Escape(text string) string {
	var b strings.Builder
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case '\\':
			if m := Macro(text[i+1:]); m != "" {
				b.WriteString(`\` + m)
				i += len(m)
				continue
			}
			b.WriteString(`\\`)
		case '"', '[', ']':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// matchBracket returns the index of the "]" closing the "[" at open,
// skipping nested brackets and quoted strings.
func matchBracket(raw string, open int) (int, error) {
	depth := 0
	for i := open; i < len(raw); i++ {
		switch raw[i] {
		case '\\':
			i++
		case '"':
			j := i + 1
			for j < len(raw) && raw[j] != '"' {
				if raw[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(raw) {
				return 0, fmt.Errorf("unterminated string inside embedded expression at offset %d", i)
			}
			i = j
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("unterminated embedded expression at offset %d", open)
}
