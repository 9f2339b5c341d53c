package oidc

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xdbsoft/docstore/api"
)

type fakeToken struct {
	subject string
	claims  string
}

func (t fakeToken) Subject() string { return t.subject }

func (t fakeToken) Claims(v interface{}) error {
	return json.Unmarshal([]byte(t.claims), v)
}

type fakeVerifier map[string]fakeToken

func (f fakeVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	t, ok := f[raw]
	if !ok {
		return nil, errors.New("bad signature")
	}
	return t, nil
}

func TestAuthenticate(t *testing.T) {
	a := NewWithVerifier(fakeVerifier{
		"good":   {subject: "42", claims: `{"name":"Ann","email":"ann@example.com"}`},
		"broken": {subject: "43", claims: `{`},
	}, nil)

	tests := []struct {
		name       string
		header     string
		url        string
		want       api.User
		wantErr    bool
		notAllowed bool
	}{
		{name: "anonymous", url: "/shop"},
		{name: "header", url: "/shop", header: "Bearer good", want: api.User{ID: "42", Name: "Ann", Email: "ann@example.com"}},
		{name: "query", url: "/shop?auth=good", want: api.User{ID: "42", Name: "Ann", Email: "ann@example.com"}},
		{name: "not bearer", url: "/shop", header: "Basic Zm9vOmJhcg=="},
		{name: "invalid token", url: "/shop", header: "Bearer forged", wantErr: true, notAllowed: true},
		{name: "invalid claims", url: "/shop", header: "Bearer broken", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.url, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			user, err := a.Authenticate(r)
			if tt.wantErr {
				require.Error(t, err)
				_, ok := errors.Cause(err).(interface{ IsNotAuthorized() bool })
				assert.Equal(t, tt.notAllowed, ok)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, user)
		})
	}
}
