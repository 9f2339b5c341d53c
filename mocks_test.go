package docstore

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/xdbsoft/docstore/api"
	"github.com/xdbsoft/docstore/store"
)

// mockedAuthenticator reads the user from the auth query parameter, as
// id|name|email.
type mockedAuthenticator struct{}

func (a mockedAuthenticator) Authenticate(r *http.Request) (api.User, error) {
	formBearer := r.URL.Query().Get("auth")
	if len(formBearer) == 0 {
		return api.User{}, nil
	}

	tokens := strings.Split(formBearer, "|")
	if len(tokens) != 3 {
		return api.User{}, notAuthorizedError{}
	}

	return api.User{
		ID:    tokens[0],
		Name:  tokens[1],
		Email: tokens[2],
	}, nil
}

type brokenAuthenticator struct{}

func (a brokenAuthenticator) Authenticate(r *http.Request) (api.User, error) {
	return api.User{}, errors.New("identity provider unreachable")
}

// failingGateway stores databases in memory but fails to persist once
// persistErr is set.
type failingGateway struct {
	*store.MemoryGateway
	persistErr error
}

func newFailingGateway() *failingGateway {
	return &failingGateway{MemoryGateway: store.NewMemoryGateway()}
}

func (g *failingGateway) Persist(ctx context.Context, db *api.Database) error {
	if g.persistErr != nil {
		return g.persistErr
	}
	return g.MemoryGateway.Persist(ctx, db)
}
