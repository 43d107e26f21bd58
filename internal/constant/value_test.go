package constant

import (
	"testing"

	"avulto/internal/dmpath"

	"github.com/stretchr/testify/assert"
)

func TestValueString(t *testing.T) {
	testCases := []struct {
		name string
		v    Value
		want string
	}{
		{name: "null", v: Null(), want: "null"},
		{name: "int", v: Int(4), want: "4"},
		{name: "negative", v: Number(-2), want: "-2"},
		{name: "float", v: Number(0.5), want: "0.5"},
		{name: "string", v: String(`say "hi"`), want: `"say \"hi\""`},
		{name: "resource", v: Resource("icons/obj.dmi"), want: "'icons/obj.dmi'"},
		{name: "path", v: Path(dmpath.MustNew("/datum/atom/movable/obj/foo")), want: "/obj/foo"},
		{name: "list", v: List(Item(Int(1)), Pair(String("a"), Int(2))), want: `list(1,"a" = 2)`},
		{name: "raw", v: Raw("newlist(/obj/foo)"), want: "newlist(/obj/foo)"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.v.String())
		})
	}
}

func TestValueEqual(t *testing.T) {
	assert.True(t, Int(3).Equal(Number(3)))
	assert.False(t, Int(3).Equal(String("3")))
	assert.False(t, String("a").Equal(Resource("a")))
	assert.True(t, Path(dmpath.MustNew("/obj")).Equal(Path(dmpath.MustNew("/datum/atom/movable/obj"))))
	assert.True(t, List(Item(Int(1))).Equal(List(Item(Int(1)))))
	assert.False(t, List(Item(Int(1))).Equal(List(Pair(Int(1), Null()))))
	assert.True(t, Value{}.Equal(Null()))
}

func TestAccessors(t *testing.T) {
	n, ok := Int(7).AsInt()
	assert.True(t, ok)
	assert.Equal(t, 7, n)

	_, ok = Number(1.5).AsInt()
	assert.False(t, ok)

	s, ok := Resource("x.dmi").AsString()
	assert.True(t, ok)
	assert.Equal(t, "x.dmi", s)

	assert.False(t, Null().Truthy())
	assert.False(t, String("").Truthy())
	assert.True(t, Int(-1).Truthy())
}

func TestVarsKeepsInsertionOrder(t *testing.T) {
	var vs Vars
	vs.Set("name", String("thing"))
	vs.Set("a", Int(1))
	vs.Set("name", String("other"))

	assert.Equal(t, []string{"name", "a"}, vs.Keys())
	assert.Equal(t, `{name = "other"; a = 1}`, vs.String())

	clone := vs.Clone()
	assert.True(t, clone.Delete("name"))
	assert.False(t, clone.Delete("name"))
	assert.Equal(t, []string{"a"}, clone.Keys())
	assert.Equal(t, 2, vs.Len())

	assert.False(t, vs.Equal(clone))
	assert.True(t, vs.Equal(NewVars("name", String("other"), "a", Int(1))))
	assert.False(t, vs.Equal(NewVars("a", Int(1), "name", String("other"))))
	assert.Equal(t, "", Vars{}.String())
}
