package interpolation

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
		want []Segment
	}{
		{
			name: "plain",
			raw:  `hello`,
			want: []Segment{{Text: "hello"}},
		},
		{
			name: "escapes",
			raw:  `a\"b\n\[x\]`,
			want: []Segment{{Text: "a\"b\n[x]"}},
		},
		{
			name: "text macro kept",
			raw:  `\the [src] hits`,
			want: []Segment{
				{Text: `\the `},
				{Expr: "src", IsExpr: true, Offset: 6},
				{Text: " hits", Offset: 10},
			},
		},
		{
			name: "longest macro wins over tab",
			raw:  `\improper Bridge, \the\tend`,
			want: []Segment{{Text: "\\improper Bridge, \\the\tend"}},
		},
		{
			name: "escaped backslash is not a macro",
			raw:  `C:\\the`,
			want: []Segment{{Text: `C:\the`}},
		},
		{
			name: "nested brackets and strings",
			raw:  `[L[1]] and [x ? "a]" : "b"]`,
			want: []Segment{
				{Expr: "L[1]", IsExpr: true, Offset: 1},
				{Text: " and ", Offset: 6},
				{Expr: `x ? "a]" : "b"`, IsExpr: true, Offset: 12},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Split(tc.raw)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Split() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSplitErrors(t *testing.T) {
	for _, raw := range []string{`[unterminated`, `[ ]`, `["open]`} {
		_, err := Split(raw)
		assert.Error(t, err, raw)
	}
}

func TestHasExpressionsAndDecode(t *testing.T) {
	assert.True(t, HasExpressions(`a [b]`))
	assert.False(t, HasExpressions(`a \[b\]`))
	assert.Equal(t, "a [b]\n", Decode(`a \[b\]\n`))
}

func TestMacro(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"the cat", "the"},
		{"themselves", "the"},
		{"th", "th"},
		{"improper Bridge", "improper"},
		{"tab", ""},
		{"n", ""},
		{"", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, Macro(tc.in))
		})
	}
}

func TestDecodeKeepsMacros(t *testing.T) {
	assert.Equal(t, "\\improper Bridge\t!", Decode(`\improper Bridge\t!`))
}

func TestJoinRoundTrip(t *testing.T) {
	for _, raw := range []string{
		`name: [src.name] \"quoted\"`,
		`\improper Bridge`,
		`\The [src] hits \himself\n`,
		`tab\there and a \\ backslash`,
	} {
		segs, err := Split(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, Join(segs))
	}
}
