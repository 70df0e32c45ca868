package llms

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrTokenFetch marks failures of the credential-fetch step that precedes a
// completion call. Callers surface these distinctly from completion failures.
var ErrTokenFetch = errors.New("token fetch failed")

// TokenSource produces the credential used to authorize a provider call. The
// fetch may itself hit the network and fail independently of the completion.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns a fixed credential.
type StaticTokenSource string

func (s StaticTokenSource) Token(context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("%w: empty static token", ErrTokenFetch)
	}
	return string(s), nil
}

// EnvTokenSource reads the credential from the named environment variable on
// every call, so rotation does not require a restart.
type EnvTokenSource string

func (s EnvTokenSource) Token(context.Context) (string, error) {
	token, ok := os.LookupEnv(string(s))
	if !ok || token == "" {
		return "", fmt.Errorf("%w: environment variable %s not set", ErrTokenFetch, string(s))
	}
	return token, nil
}
