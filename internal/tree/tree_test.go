package tree

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, data string) *Node {
	t.Helper()
	n, err := Parse([]byte(data))
	require.NoError(t, err)
	return n
}

func TestParseKeepsKeyOrder(t *testing.T) {
	n := mustParse(t, `{"b":1,"a":{"z":true,"y":null},"c":["x",2.5]}`)

	assert.Equal(t, []string{"b", "a", "c"}, n.Keys())
	out, err := json.Marshal(n)
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":1,"a":{"z":true,"y":null},"c":["x",2.5]}`, string(out))
	assert.Equal(t, `{"b":1,"a":{"z":true,"y":null},"c":["x",2.5]}`, string(out))
}

func TestUpdateSkipsFalsyAndUnknownKeys(t *testing.T) {
	d := time.Date(2025, 12, 6, 16, 0, 0, 0, time.UTC)
	target := Object(F("a", String("x")), F("d", Time(d)))
	source := mustParse(t, `{"a":"","b":"new"}`)

	Update(target, source, false)

	a, _ := target.Get("a")
	assert.Equal(t, "x", a.Str())
	_, hasB := target.Get("b")
	assert.False(t, hasB)
	dn, _ := target.Get("d")
	assert.True(t, d.Equal(dn.Time()))
}

func TestUpdateWhenEmpty(t *testing.T) {
	target := Object(
		F("a", String("x")),
		F("n", Number(3)),
		F("list", Strings("1")),
		F("nested", Object(F("inner", String("keep?")))),
	)
	source := mustParse(t, `{"a":"","n":0}`)

	Update(target, source, true)

	a, _ := target.Get("a")
	assert.Equal(t, KindString, a.Kind())
	assert.Equal(t, "", a.Str())
	n, _ := target.Get("n")
	assert.Equal(t, float64(0), n.Num())
	list, _ := target.Get("list")
	assert.Equal(t, 0, list.Len())
	nested, _ := target.Get("nested")
	inner, _ := nested.Get("inner")
	assert.Equal(t, "", inner.Str())
}

func TestUpdateCoercesByDeclaredKind(t *testing.T) {
	target := Object(
		F("name", String("")),
		F("zip", String("")),
		F("start", Time(time.Time{})),
		F("slots", Array()),
		F("person", Object(F("first", String("")), F("last", String("old")))),
		F("count", Number(1)),
	)
	source := mustParse(t, `{
		"name": "Anna",
		"zip": 12345,
		"start": "2025-12-06T16:00:00Z",
		"slots": [{"documentId":"a"}],
		"person": {"first":"Max","extra":"ignored"},
		"count": "not a number",
		"stray": "ignored"
	}`)

	Update(target, source, false)

	name, _ := target.Get("name")
	assert.Equal(t, "Anna", name.Str())
	zip, _ := target.Get("zip")
	assert.Equal(t, "12345", zip.Str())
	start, _ := target.Get("start")
	assert.Equal(t, KindTime, start.Kind())
	assert.Equal(t, 2025, start.Time().Year())
	slots, _ := target.Get("slots")
	require.Equal(t, 1, slots.Len())
	id, _ := slots.Items()[0].Get("documentId")
	assert.Equal(t, "a", id.Str())
	person, _ := target.Get("person")
	assert.Equal(t, []string{"first", "last"}, person.Keys())
	last, _ := person.Get("last")
	assert.Equal(t, "old", last.Str())
	count, _ := target.Get("count")
	assert.Equal(t, float64(1), count.Num())
	assert.Equal(t, []string{"name", "zip", "start", "slots", "person", "count"}, target.Keys())
}

func TestUpdateClonesArrays(t *testing.T) {
	target := Object(F("items", Array()))
	source := Object(F("items", Strings("a")))

	Update(target, source, false)
	srcItems, _ := source.Get("items")
	srcItems.Append(String("b"))

	items, _ := target.Get("items")
	assert.Equal(t, 1, items.Len())
}

func TestExtend(t *testing.T) {
	target := mustParse(t, `{"items":[1,2],"text":"hello","nested":{"cls":"a"}}`)
	source := mustParse(t, `{"items":[3],"text":"world","nested":{"cls":" b "},"unknown":"x"}`)

	require.NoError(t, Extend(target, source))

	out, err := json.Marshal(target)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[1,2,3],"text":"hello world","nested":{"cls":"a  b"}}`, string(out))
}

func TestExtendTrimsEmptyBase(t *testing.T) {
	target := Object(F("cls", String("")))
	require.NoError(t, Extend(target, Object(F("cls", String("font-bold")))))

	cls, _ := target.Get("cls")
	assert.Equal(t, "font-bold", cls.Str())
}

func TestExtendRejectsScalars(t *testing.T) {
	target := mustParse(t, `{"count":1}`)
	err := Extend(target, mustParse(t, `{"count":2}`))

	assert.True(t, errors.Is(err, ErrUnknownKeyType))

	target = mustParse(t, `{"flags":{"on":true}}`)
	err = Extend(target, mustParse(t, `{"flags":{"on":false}}`))
	assert.ErrorIs(t, err, ErrUnknownKeyType)
}

func TestChanged(t *testing.T) {
	base := `{"name":"Anna","list":["a","b"],"nested":{"x":1}}`

	testCases := []struct {
		name     string
		current  string
		snapshot string
		expected bool
	}{
		{name: "identical", current: base, snapshot: base, expected: false},
		{name: "whitespace only", current: `{"name":" Anna\u00ad ","list":["a","b"],"nested":{"x":1}}`, snapshot: base, expected: false},
		{name: "leaf changed", current: `{"name":"Anne","list":["a","b"],"nested":{"x":1}}`, snapshot: base, expected: true},
		{name: "reordered array", current: `{"name":"Anna","list":["b","a"],"nested":{"x":1}}`, snapshot: base, expected: true},
		{name: "longer array", current: `{"name":"Anna","list":["a","b","c"],"nested":{"x":1}}`, snapshot: base, expected: true},
		{name: "nested number", current: `{"name":"Anna","list":["a","b"],"nested":{"x":2}}`, snapshot: base, expected: true},
		{name: "empty string vs missing", current: `{"note":""}`, snapshot: `{}`, expected: false},
		{name: "null vs empty string", current: `{"note":null}`, snapshot: `{"note":" "}`, expected: false},
		{name: "null vs text", current: `{"note":null}`, snapshot: `{"note":"x"}`, expected: true},
		{name: "snapshot-only keys ignored", current: `{}`, snapshot: base, expected: false},
		{name: "kind mismatch", current: `{"name":1}`, snapshot: `{"name":"1"}`, expected: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Changed(mustParse(t, tc.current), mustParse(t, tc.snapshot)))
		})
	}
}

func TestChangedKeyTransform(t *testing.T) {
	current := mustParse(t, `{"ids":["a","b"]}`)
	snapshot := mustParse(t, `{"ids":["b","a"]}`)

	assert.True(t, Changed(current, snapshot))

	sortBoth := func(cur, snap *Node) (*Node, *Node) {
		return Strings("a", "b"), Strings("a", "b")
	}
	assert.False(t, Changed(current, snapshot, WithKeyTransform("ids", sortBoth)))
}

func TestFromAnyToAny(t *testing.T) {
	in := map[string]any{"b": []any{"x", 1.0, true}, "a": nil}
	n := FromAny(in)

	assert.Equal(t, []string{"a", "b"}, n.Keys())
	assert.Equal(t, in, n.ToAny())
}
