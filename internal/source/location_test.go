package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocationString(t *testing.T) {
	testCases := []struct {
		name string
		loc  Location
		want string
	}{
		{name: "full", loc: At("code/foo.dm", 12, 4), want: "code/foo.dm:12:4"},
		{name: "no column", loc: At("code/foo.dm", 3, 0), want: "code/foo.dm:3"},
		{name: "builtin", loc: Builtins, want: "<builtins>"},
		{name: "zero", loc: Location{}, want: "<unknown>"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.loc.String())
		})
	}
}

func TestBuiltinSentinel(t *testing.T) {
	assert.True(t, Builtins.IsBuiltin())
	assert.False(t, At("a.dm", 1, 1).IsBuiltin())
	assert.False(t, Builtins.IsZero())
}
