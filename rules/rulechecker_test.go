package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xdbsoft/docstore/api"
)

func TestChecker_Check(t *testing.T) {
	checker := NewChecker([]Rule{
		{
			Path: "users/{userId}",
			Allow: []Allow{
				{Methods: []Method{READ}},
				{Methods: []Method{WRITE, DELETE}, If: `path.userId == user.id`},
			},
		},
		{
			Path:  "archive/*",
			Allow: []Allow{{Methods: []Method{READ}}},
		},
		{
			Path:  "locked/{id}",
			Allow: []Allow{{Methods: []Method{READ}, If: `"doc1" != "doc1"`}},
		},
	})
	require.True(t, checker.Enabled())

	alice := api.User{ID: "alice"}
	tests := []struct {
		name   string
		target api.ObjectRef
		user   api.User
		method Method
		want   bool
	}{
		{"read own", api.ObjectRef{"users", "alice"}, alice, READ, true},
		{"write own", api.ObjectRef{"users", "alice"}, alice, WRITE, true},
		{"write other", api.ObjectRef{"users", "bob"}, alice, WRITE, false},
		{"read database", api.ObjectRef{"users"}, alice, READ, true},
		{"drop database", api.ObjectRef{"users"}, alice, DELETE, false},
		{"wildcard read", api.ObjectRef{"archive", "2019"}, alice, READ, true},
		{"wildcard write", api.ObjectRef{"archive", "2019"}, alice, WRITE, false},
		{"false condition", api.ObjectRef{"locked", "doc1"}, alice, READ, false},
		{"no rule", api.ObjectRef{"shop", "1"}, api.User{}, DELETE, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := checker.Check(tt.target, tt.user, tt.method)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChecker_InvalidCondition(t *testing.T) {
	checker := NewChecker([]Rule{
		{Path: "shop/{id}", Allow: []Allow{{Methods: []Method{READ}, If: `path.id ==`}}},
	})
	_, err := checker.Check(api.ObjectRef{"shop", "1"}, api.User{}, READ)
	assert.Error(t, err)
}

func TestChecker_Empty(t *testing.T) {
	checker := NewChecker(nil)
	assert.False(t, checker.Enabled())
	ok, err := checker.Check(api.ObjectRef{"shop"}, api.User{}, DELETE)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMethodForHTTP(t *testing.T) {
	assert.Equal(t, READ, MethodForHTTP("GET"))
	assert.Equal(t, WRITE, MethodForHTTP("POST"))
	assert.Equal(t, WRITE, MethodForHTTP("PATCH"))
	assert.Equal(t, DELETE, MethodForHTTP("DELETE"))
}
