package compose

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRoundTripKeepsOrderAndScalars(t *testing.T) {
	in := `{"z":1.50,"a":{"y":[1,2,{"k":null}],"b":"xé"},"m":true}`
	n, err := Parse(in)
	require.NoError(t, err)
	require.Equal(t, in, n.String())
	require.Equal(t, []string{"z", "a", "m"}, n.Keys())
}

func TestParseRejectsInvalid(t *testing.T) {
	for _, in := range []string{``, `{`, `{"a":}`, `[1,]`, `nope`, `{} {}`} {
		_, err := Parse(in)
		require.Error(t, err, in)
	}
}

func TestNodeEditing(t *testing.T) {
	n := NewObject()
	n.Set("a", NewRaw("1"))
	n.Set("b", NewString("<x>"))
	n.Set("a", NewRaw("2"))
	require.Equal(t, `{"a":2,"b":"<x>"}`, n.String())

	c := n.Clone()
	c.Delete("a")
	require.Equal(t, `{"b":"<x>"}`, c.String())
	require.Equal(t, `{"a":2,"b":"<x>"}`, n.String(), "clone must not alias")

	require.Equal(t, "<x>", n.Get("b").Text())
	require.Equal(t, "2", n.Get("a").Text())
}

func TestSquashAllOfWithoutMarkersIsIdentity(t *testing.T) {
	in := `{"name":"string","tags":[{"id":1}]}`
	out, err := Resolve(in, nil)
	require.NoError(t, err)
	require.Equal(t, []string{in}, out)
}

func TestSquashAllOfNested(t *testing.T) {
	in := `{"id":1,"ALL_OF":{"name":"n","ALL_OF":{"age":2}},"child":{"all_of":{"x":true}},"list":[{"ALL_OF":{"q":1}}]}`
	n, err := Parse(in)
	require.NoError(t, err)

	SquashAllOf(n)
	require.Equal(t, `{"id":1,"name":"n","age":2,"child":{"x":true},"list":[{"q":1}]}`, n.String())
}

func TestExpandOneMarkerPerVariant(t *testing.T) {
	in := `{"id":1,"petONE_OF#/components/schemas/Cat":{"petType":"string","meow":true},"petONE_OF#/components/schemas/Dog":{"petType":"string","bark":true},"ownerANY_OF#/components/schemas/Person":{"name":"n"}}`
	out, err := Resolve(in, []string{"pet#petType"})
	require.NoError(t, err)

	require.Equal(t, []string{
		`{"id":1,"pet":{"petType":"Cat","meow":true}}`,
		`{"id":1,"pet":{"petType":"Dog","bark":true}}`,
		`{"id":1,"owner":{"name":"n"}}`,
	}, out)

	for _, p := range out {
		require.True(t, json.Valid([]byte(p)))
		require.NotContains(t, p, OneOf)
		require.NotContains(t, p, AnyOf)
	}
}

func TestExpandRootComposition(t *testing.T) {
	in := `{"ONE_OF#/components/schemas/Card":{"kind":"string","pan":"4111"},"ONE_OF#/components/schemas/Iban":{"kind":"string","iban":"DE00"}}`
	out, err := Resolve(in, []string{"#kind"})
	require.NoError(t, err)
	require.Equal(t, []string{
		`{"kind":"Card","pan":"4111"}`,
		`{"kind":"Iban","iban":"DE00"}`,
	}, out)
}

func TestExpandLeavesNestedMarkers(t *testing.T) {
	in := `{"outer":{"xONE_OF#/a/B":{"v":1}}}`
	out, err := Resolve(in, nil)
	require.NoError(t, err)
	require.Equal(t, []string{in}, out)
}

func TestExpandNonObjectRoot(t *testing.T) {
	out, err := Resolve(`[{"ALL_OF":{"a":1}}]`, nil)
	require.NoError(t, err)
	require.Equal(t, []string{`[{"a":1}]`}, out)
}

func TestMarkerHelpers(t *testing.T) {
	key := MarkerKey("pet", OneOf, "/components/schemas/Cat")
	require.Equal(t, "petONE_OF#/components/schemas/Cat", key)
	require.True(t, IsAlternativeMarker(key))
	require.False(t, IsAlternativeMarker("ALL_OF"))
	require.Equal(t, "pet", DerivedName(key))
	require.Equal(t, "Cat", SubtypeName(key))
}

func TestDuplicateArray(t *testing.T) {
	out := DuplicateArray(`{"a":1}`)
	var arr []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(out), &arr))
	require.Len(t, arr, 2)
	require.Equal(t, string(arr[0]), string(arr[1]))
}

func TestLookupAndReplace(t *testing.T) {
	payload := `{"name":"a","address":{"street":"s"},"items":[{"sku":"x"},{"sku":"y"}]}`

	root, err := Parse(payload)
	require.NoError(t, err)
	v, ok := Lookup(root, "address#street")
	require.True(t, ok)
	require.Equal(t, "s", v.Text())

	_, ok = Lookup(root, "address#missing")
	require.False(t, ok)

	out, ok := WithField(payload, "items#sku", func(cur *Node) *Node {
		return NewString(cur.Text() + "!")
	})
	require.True(t, ok)
	require.Equal(t, `{"name":"a","address":{"street":"s"},"items":[{"sku":"x!"},{"sku":"y!"}]}`, out)

	_, ok = WithField(payload, "nope", func(cur *Node) *Node { return cur })
	require.False(t, ok)

	_, ok = WithField("not json", "name", func(cur *Node) *Node { return cur })
	require.False(t, ok)
}

func TestJoinPath(t *testing.T) {
	require.Equal(t, "a", JoinPath("", "a"))
	require.Equal(t, "a#b", JoinPath("a", "b"))
}
