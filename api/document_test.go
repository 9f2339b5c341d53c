package api

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeDocument(t *testing.T, s string) *Document {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	d, err := NewDocument(m)
	require.NoError(t, err)
	return d
}

func TestNewDocument_Identifier(t *testing.T) {
	d := decodeDocument(t, `{"_id":"georgettebenjamin@andryx.com","name":"Georgette"}`)
	assert.Equal(t, "georgettebenjamin@andryx.com", d.ID())
	assert.Equal(t, 1, d.Keys())

	d = decodeDocument(t, `{"_id":12,"name":"twelve"}`)
	assert.Equal(t, "12", d.ID())

	d = decodeDocument(t, `{"name":"anonymous"}`)
	assert.Equal(t, "", d.ID())
	require.NoError(t, d.SetID("generated"))
	assert.Equal(t, "generated", d.ID())
	assert.True(t, errors.Is(d.SetID("other"), ErrCannotModifyID))

	_, err := NewDocument(map[string]interface{}{IDKey: []interface{}{"x"}})
	assert.True(t, errors.Is(err, ErrInvalidIdentifier))
}

func TestDocument_ValueForKeyPath(t *testing.T) {
	d := decodeDocument(t, `{
		"_id": "p1",
		"name": "Nolan Byrd",
		"address": {"city": "Vienna", "geo": {"lat": 48.2}},
		"tags": ["labore", "laboris"],
		"friends": [{"name": "Booker"}]
	}`)

	v, ok := d.ValueForKeyPath("address.city")
	assert.True(t, ok)
	assert.Equal(t, "Vienna", v)

	v, ok = d.ValueForKeyPath("address.geo.lat")
	assert.True(t, ok)
	assert.Equal(t, 48.2, v)

	v, ok = d.ValueForKeyPath("tags.1")
	assert.True(t, ok)
	assert.Equal(t, "laboris", v)

	v, ok = d.ValueForKeyPath("friends.0.name")
	assert.True(t, ok)
	assert.Equal(t, "Booker", v)

	v, ok = d.ValueForKeyPath("_id")
	assert.True(t, ok)
	assert.Equal(t, "p1", v)

	for _, missing := range []string{"", "address.zip", "name.first", "tags.2", "tags.x", "unknown.path"} {
		_, ok := d.ValueForKeyPath(missing)
		assert.False(t, ok, missing)
	}
}

func TestDocument_SetValueForKey(t *testing.T) {
	d := decodeDocument(t, `{"_id":"p1"}`)

	require.NoError(t, d.SetValueForKey("favorite_movie", "Star Wars"))
	assert.Equal(t, "Star Wars", d.ValueForKey("favorite_movie"))
	assert.True(t, errors.Is(d.SetValueForKey(IDKey, "p2"), ErrCannotModifyID))

	d.RemoveValueForKey("favorite_movie")
	assert.Nil(t, d.ValueForKey("favorite_movie"))
}

func TestDocument_ReplaceKeepsIdentifier(t *testing.T) {
	d := decodeDocument(t, `{"_id":"p1","name":"widget","color":"red"}`)

	d.Replace(map[string]interface{}{"name": "gadget", IDKey: "other"})
	assert.Equal(t, "p1", d.ID())
	assert.Equal(t, "gadget", d.ValueForKey("name"))
	assert.Nil(t, d.ValueForKey("color"))
}

func TestDocument_EqualAndIdentity(t *testing.T) {
	a := decodeDocument(t, `{"_id":"p1","n":1,"tags":["x"]}`)
	b := decodeDocument(t, `{"_id":"p1","n":1,"tags":["x"]}`)

	assert.True(t, a.Equal(b))
	assert.NotSame(t, a, b)

	require.NoError(t, b.SetValueForKey("n", 2))
	assert.False(t, a.Equal(b))
}

func TestDocument_MapIsACopy(t *testing.T) {
	d := decodeDocument(t, `{"_id":"p1","address":{"city":"Vienna"}}`)

	m := d.Map()
	assert.Equal(t, "p1", m[IDKey])
	m["address"].(map[string]interface{})["city"] = "Linz"

	v, _ := d.ValueForKeyPath("address.city")
	assert.Equal(t, "Vienna", v)
}

func TestDocument_MarshalJSON(t *testing.T) {
	d := decodeDocument(t, `{"_id":"p1","name":"widget"}`)

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"_id":"p1","name":"widget"}`, string(b))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(1, 1.0))
	assert.True(t, Equal(int64(3), json.Number("3")))
	assert.False(t, Equal("1", 1))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, false))
	assert.True(t, Equal(
		map[string]interface{}{"a": []interface{}{1, "b"}},
		map[string]interface{}{"a": []interface{}{1.0, "b"}},
	))
	assert.False(t, Equal([]interface{}{1}, []interface{}{1, 2}))
}

func TestGenerator(t *testing.T) {
	assert.Len(t, Generator("xid")(), 20)
	assert.Len(t, Generator("uuid")(), 36)
	assert.NotEqual(t, NextID(), NextID())
}
