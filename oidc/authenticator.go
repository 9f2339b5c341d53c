// Package oidc authenticates requests carrying an OpenID Connect ID token.
package oidc

import (
	"context"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/xdbsoft/docstore/api"
)

// TokenVerifier checks a raw ID token. *oidc.IDTokenVerifier implements it
// through Verifier.
type TokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (Token, error)
}

// Token is the verified content of an ID token.
type Token interface {
	Subject() string
	Claims(v interface{}) error
}

// New discovers the issuer configuration and returns an authenticator
// verifying its tokens.
func New(ctx context.Context, openIDConnectIssuer string, logger *zap.SugaredLogger) (api.Authenticator, error) {

	provider, err := oidc.NewProvider(ctx, openIDConnectIssuer)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to discover issuer %s", openIDConnectIssuer)
	}

	config := oidc.Config{
		SkipClientIDCheck: true,
	}

	return NewWithVerifier(Verifier{provider.Verifier(&config)}, logger), nil
}

// NewWithVerifier returns an authenticator using v.
func NewWithVerifier(v TokenVerifier, logger *zap.SugaredLogger) api.Authenticator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &authenticator{verifier: v, logger: logger}
}

// Verifier adapts *oidc.IDTokenVerifier to TokenVerifier.
type Verifier struct {
	*oidc.IDTokenVerifier
}

func (v Verifier) Verify(ctx context.Context, rawIDToken string) (Token, error) {
	t, err := v.IDTokenVerifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, err
	}
	return idToken{t}, nil
}

type idToken struct {
	*oidc.IDToken
}

func (t idToken) Subject() string {
	return t.IDToken.Subject
}

type authenticator struct {
	verifier TokenVerifier
	logger   *zap.SugaredLogger
}

//getRawIDToken returns the raw token if any
func getRawIDToken(r *http.Request) string {

	//Retrieve JWT from Authorization header (or auth query parameter)
	bearerString := r.Header.Get("Authorization")
	if len(bearerString) == 0 {
		queryBearer := r.URL.Query().Get("auth")
		if len(queryBearer) > 0 {
			bearerString = "Bearer " + queryBearer
		}
	}
	if !strings.HasPrefix(bearerString, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(bearerString[len("Bearer "):])
}

// Authenticate returns the anonymous user when no token is sent.
func (a *authenticator) Authenticate(r *http.Request) (api.User, error) {

	rawIDToken := getRawIDToken(r)
	if len(rawIDToken) == 0 {
		return api.User{}, nil
	}

	idToken, err := a.verifier.Verify(r.Context(), rawIDToken)
	if err != nil {
		a.logger.Infow("invalid ID token", "error", err)
		return api.User{}, notAuthorizedError{}
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}

	if err := idToken.Claims(&claims); err != nil {
		return api.User{}, errors.Wrap(err, "unable to decode claims")
	}

	return api.User{
		ID:    idToken.Subject(),
		Name:  claims.Name,
		Email: claims.Email,
	}, nil
}

type notAuthorizedError struct {
}

func (err notAuthorizedError) Error() string {
	return "Invalid credential"
}

func (err notAuthorizedError) IsNotAuthorized() bool {
	return true
}
