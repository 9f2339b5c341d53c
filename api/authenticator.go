package api

import (
	"net/http"
)

//User is the identity attached to a request
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

//Authenticator describes the interface that a service authenticating an HTTP request should implement
type Authenticator interface {
	Authenticate(r *http.Request) (User, error)
}
