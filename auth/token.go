// Package auth defines the bearer-token boundary.
//
// Token acquisition and refresh live outside this client; components
// that need a token consume a TokenSource and never cache or manage
// token lifetime themselves.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// EnvToken is the environment variable consulted by NewEnvTokenSource.
const EnvToken = "TETHER_TOKEN"

// ErrNoToken indicates no bearer token is available.
var ErrNoToken = errors.New("no access token available")

// TokenSource supplies an opaque bearer token on demand.
type TokenSource interface {
	// AccessToken returns a bearer token for the runtime provider.
	// Implementations may block on refresh; they must respect ctx.
	AccessToken(ctx context.Context) (string, error)
}

// StaticTokenSource returns a fixed token. Used when the token comes
// from config or a flag.
type StaticTokenSource struct {
	token string
}

// NewStaticTokenSource creates a TokenSource over a fixed token.
func NewStaticTokenSource(token string) (*StaticTokenSource, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	return &StaticTokenSource{token: token}, nil
}

// AccessToken implements TokenSource.
func (s *StaticTokenSource) AccessToken(context.Context) (string, error) {
	return s.token, nil
}

// EnvTokenSource reads the token from the environment on every call,
// so an external refresher can rotate it mid-session.
type EnvTokenSource struct {
	variable string
}

// NewEnvTokenSource creates a TokenSource over an environment variable.
// Empty variable name defaults to EnvToken.
func NewEnvTokenSource(variable string) *EnvTokenSource {
	if variable == "" {
		variable = EnvToken
	}
	return &EnvTokenSource{variable: variable}
}

// AccessToken implements TokenSource.
func (s *EnvTokenSource) AccessToken(context.Context) (string, error) {
	token := os.Getenv(s.variable)
	if token == "" {
		return "", fmt.Errorf("%w: %s is unset", ErrNoToken, s.variable)
	}
	return token, nil
}
