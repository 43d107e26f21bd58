package lexer

import (
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"avulto/internal/dmerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// texts renders tokens compactly; virtual tokens are marked with a tick.
func texts(toks []Token) []string {
	var out []string
	for _, t := range toks {
		switch {
		case t.Kind == EOF:
		case t.Virtual:
			out = append(out, t.Text+"'")
		case t.Kind == String:
			out = append(out, `"`+t.Text+`"`)
		default:
			out = append(out, t.String())
		}
	}
	return out
}

func TestScanAllKinds(t *testing.T) {
	toks, err := ScanAll("t.dm", `foo 12 0x1F .5 2e3 "a [b] c" 'icon.dmi' ?. <<= // comment
/* block /* nested */ */ bar @"raw[x]"`)
	require.NoError(t, err)

	require.Len(t, toks, 11)
	assert.Equal(t, Ident, toks[0].Kind)
	assert.Equal(t, 12.0, toks[1].Num)
	assert.Equal(t, 31.0, toks[2].Num)
	assert.Equal(t, 0.5, toks[3].Num)
	assert.Equal(t, 2000.0, toks[4].Num)
	assert.Equal(t, String, toks[5].Kind)
	assert.Equal(t, "a [b] c", toks[5].Text)
	assert.Equal(t, Resource, toks[6].Kind)
	assert.Equal(t, "icon.dmi", toks[6].Text)
	assert.True(t, toks[7].Is("?."))
	assert.True(t, toks[8].Is("<<="))
	assert.True(t, toks[9].IsIdent("bar"))
	assert.True(t, toks[9].LineStart)
	assert.True(t, toks[10].Literal)
	assert.Equal(t, "raw[x]", toks[10].Text)
}

func TestScanLocations(t *testing.T) {
	toks, err := ScanAll("t.dm", "a\n\tb c")
	require.NoError(t, err)
	require.Len(t, toks, 3)
	assert.Equal(t, 2, toks[1].Loc.Line)
	assert.Equal(t, 2, toks[1].Loc.Column)
	assert.True(t, toks[1].LineStart)
	assert.Equal(t, 1, toks[1].Indent)
	assert.False(t, toks[2].LineStart)
	assert.True(t, toks[2].Space)
}

func TestScanStrings(t *testing.T) {
	toks, err := ScanAll("t.dm", `"x [y ? "]" : "z"] w" {"multi
line"}`)
	require.NoError(t, err)
	require.Len(t, toks, 2)
	assert.Equal(t, `x [y ? "]" : "z"] w`, toks[0].Text)
	assert.Equal(t, "multi\nline", toks[1].Text)

	_, err = ScanAll("t.dm", "\"open\n\"")
	assert.ErrorIs(t, err, dmerr.ErrParse)
}

func TestTernaryBeforeFraction(t *testing.T) {
	toks, err := ScanAll("t.dm", "a?.5:1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "?", ".5", ":", "1"}, texts(toks))
}

func TestIndentation(t *testing.T) {
	src := strings.Join([]string{
		"/obj/foo",
		"\tname = \"foo\"",
		"\tproc/bar()",
		"\t\tif(x)",
		"\t\t\treturn 1",
		"\t\telse",
		"\t\t\treturn (1 +",
		"\t\t\t\t2)",
		"/mob",
	}, "\n")
	toks, err := Tokens("t.dm", src)
	require.NoError(t, err)

	want := "/ obj / foo {' name = \"foo\" ;' proc / bar ( ) {' if ( x ) {' return 1 ;' }' ;' else {' return ( 1 + 2 ) ;' }' ;' }' ;' }' ;' / mob ;'"
	assert.Equal(t, want, strings.Join(texts(toks), " "))
}

func TestIndentationWithBraces(t *testing.T) {
	src := "proc/a() {\n\tx()\n}\nproc/b()\n{\n\ty()\n}\n"
	toks, err := Tokens("t.dm", src)
	require.NoError(t, err)
	want := "proc / a ( ) { x ( ) ;' } ;' proc / b ( ) { y ( ) ;' } ;'"
	assert.Equal(t, want, strings.Join(texts(toks), " "))
}

func TestPreprocessor(t *testing.T) {
	files := fstest.MapFS{
		"env/code/b.dm": {Data: []byte("#define SPEED 4\n/obj/b\n")},
	}
	read := func(name string) ([]byte, error) { return fs.ReadFile(files, name) }

	src := strings.Join([]string{
		`#include "code/b.dm"`,
		`#include "maps/station.dmm"`,
		`#ifdef SPEED`,
		`var/x = SPEED`,
		`#else`,
		`var/x = 0`,
		`#endif`,
		`#if defined(NOPE) || DM_VERSION < 500`,
		`var/y = 1`,
		`#elif TRUE`,
		`var/y = NORTH`,
		`#endif`,
	}, "\n")
	res, err := LexString("env/env.dme", src, Options{ReadFile: read})
	require.NoError(t, err)

	assert.Equal(t, "/ obj / b ;' var / x = 4 ;' var / y = 1 ;'", strings.Join(texts(res.Tokens), " "))
	assert.Equal(t, []string{"env/env.dme", "env/code/b.dm"}, res.Includes)
	assert.Equal(t, []string{"env/maps/station.dmm"}, res.Resources)
}

func TestPreprocessorErrors(t *testing.T) {
	testCases := []struct {
		name string
		src  string
		is   error
	}{
		{name: "function-like macro", src: "#define F(x) x\n", is: dmerr.ErrParse},
		{name: "error directive", src: "#error stop\n", is: dmerr.ErrParse},
		{name: "unterminated if", src: "#ifdef X\nvar/a\n", is: dmerr.ErrParse},
		{name: "stray endif", src: "#endif\n", is: dmerr.ErrParse},
		{name: "missing include", src: "#include \"nope.dm\"\n", is: dmerr.ErrIO},
	}
	read := func(name string) ([]byte, error) { return nil, fs.ErrNotExist }

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LexString("root.dme", tc.src, Options{ReadFile: read})
			assert.ErrorIs(t, err, tc.is)
		})
	}
}

func TestInactiveBranchesSkipErrors(t *testing.T) {
	src := "#if 0\n#error never\n#define F(x) x\n#endif\nvar/a\n"
	toks, err := Tokens("t.dm", src)
	require.NoError(t, err)
	assert.Equal(t, "var / a ;'", strings.Join(texts(toks), " "))
}
