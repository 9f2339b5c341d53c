package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestFormatterForAccept(t *testing.T) {
	tests := []struct {
		accept string
		want   Formatter
	}{
		{"", JSONFormatter{}},
		{"*/*", JSONFormatter{}},
		{"text/html, application/json", JSONFormatter{}},
		{"application/bson", BSONFormatter{}},
		{"text/html;q=0.9, application/bson;q=0.8", BSONFormatter{}},
		{"application/json, application/bson", JSONFormatter{}},
		{"garbage;;", JSONFormatter{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatterForAccept(tt.accept, false), tt.accept)
	}
	assert.Equal(t, JSONFormatter{Pretty: true}, FormatterForAccept("", true))
}

func TestJSONFormatter(t *testing.T) {
	b, err := JSONFormatter{}.Format(map[string]interface{}{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":1}\n", string(b))

	b, err = JSONFormatter{Pretty: true}.Format(map[string]interface{}{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}\n", string(b))
}

func TestBSONFormatter(t *testing.T) {
	b, err := BSONFormatter{}.Format(map[string]interface{}{"name": "widget"})
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, bson.Unmarshal(b, &m))
	assert.Equal(t, "widget", m["name"])

	b, err = BSONFormatter{}.Format([]string{"a", "b"})
	require.NoError(t, err)
	var wrapped struct {
		Data []string `bson:"data"`
	}
	require.NoError(t, bson.Unmarshal(b, &wrapped))
	assert.Equal(t, []string{"a", "b"}, wrapped.Data)
}

func TestBodyParserForContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        BodyParser
		wantErr     bool
	}{
		{"", JSONBodyParser{}, false},
		{"application/json", JSONBodyParser{}, false},
		{"application/json; charset=utf-8", JSONBodyParser{}, false},
		{"application/merge-patch+json", JSONBodyParser{}, false},
		{"application/x-www-form-urlencoded", FormBodyParser{}, false},
		{"multipart/form-data; boundary=xyz", nil, true},
		{"image/png", nil, true},
	}
	for _, tt := range tests {
		p, err := BodyParserForContentType(tt.contentType)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnsupportedContentType, tt.contentType)
			continue
		}
		require.NoError(t, err, tt.contentType)
		assert.Equal(t, tt.want, p, tt.contentType)
	}
}

func TestJSONBodyParser(t *testing.T) {
	m, err := JSONBodyParser{}.Parse([]byte(`{"name":"widget","price":2.5,"tags":["a"]}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"name":  "widget",
		"price": 2.5,
		"tags":  []interface{}{"a"},
	}, m)

	for _, body := range []string{"", "  ", "[1]", `"x"`, `{"a":`, `{} {}`} {
		_, err := JSONBodyParser{}.Parse([]byte(body))
		assert.Error(t, err, body)
	}
}

func TestFormBodyParser(t *testing.T) {
	m, err := FormBodyParser{}.Parse([]byte("name=widget&tag=a&tag=b"))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"name": "widget",
		"tag":  []interface{}{"a", "b"},
	}, m)

	_, err = FormBodyParser{}.Parse(nil)
	assert.ErrorIs(t, err, ErrEmptyBody)
	_, err = FormBodyParser{}.Parse([]byte("a=%zz"))
	assert.Error(t, err)
}
