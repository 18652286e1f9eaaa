package auth

import (
	"context"
	"errors"
	"strings"
)

// ErrUnauthenticated is returned when a bearer credential cannot be
// resolved to a principal.
var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator resolves bearer credentials to principals. veil_ tokens go
// through the token manager; anything else is treated as an OIDC ID token
// when a verifier is configured.
type Authenticator struct {
	tokens   *TokenManager
	verifier *IDTokenVerifier
}

// NewAuthenticator creates an authenticator. The verifier may be nil, in
// which case only API tokens are accepted.
func NewAuthenticator(tokens *TokenManager, verifier *IDTokenVerifier) *Authenticator {
	return &Authenticator{tokens: tokens, verifier: verifier}
}

// Authenticate resolves a bearer credential to a Principal.
func (a *Authenticator) Authenticate(ctx context.Context, bearer string) (*Principal, error) {
	bearer = strings.TrimSpace(bearer)
	if bearer == "" {
		return nil, ErrUnauthenticated
	}

	if strings.HasPrefix(bearer, TokenPrefix) {
		if a.tokens == nil {
			return nil, ErrUnauthenticated
		}
		principal, err := a.tokens.ValidateToken(ctx, bearer)
		if err != nil {
			return nil, ErrUnauthenticated
		}
		return principal, nil
	}

	if a.verifier == nil {
		return nil, ErrUnauthenticated
	}
	principal, err := a.verifier.Verify(ctx, bearer)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return principal, nil
}
