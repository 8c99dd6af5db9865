package auth

import (
	"context"
	"errors"
	"fmt"

	"chat-gateway/contract"
	"chat-gateway/domain"
	apperrors "chat-gateway/errors"
)

// Gate validates the credential presented at connection time before any
// gateway state is created. The handshake is all-or-nothing: either the
// token resolves to a live identity with a profile, or the connection
// attempt is rejected and nothing was touched.
type Gate struct {
	resolver contract.TokenResolver
	users    contract.UserStore
}

func NewGate(resolver contract.TokenResolver, users contract.UserStore) *Gate {
	return &Gate{resolver: resolver, users: users}
}

// Authenticate resolves a bearer token to an identity and its minimal
// profile for local caching on the connection.
//
// A missing, malformed, or expired token yields ErrUnauthenticated. A
// valid token whose referent no longer exists in the user store yields
// ErrIdentityNotFound.
func (g *Gate) Authenticate(ctx context.Context, token string) (domain.Identity, domain.Profile, error) {
	if token == "" {
		return "", domain.Profile{}, fmt.Errorf("%w: missing token", apperrors.ErrUnauthenticated)
	}

	identity, err := g.resolver.Resolve(ctx, token)
	if err != nil {
		return "", domain.Profile{}, err
	}

	profile, err := g.users.GetProfile(ctx, identity)
	if err != nil {
		if errors.Is(err, apperrors.ErrIdentityNotFound) {
			return "", domain.Profile{}, err
		}
		return "", domain.Profile{}, fmt.Errorf("%w: %w", apperrors.ErrIdentityNotFound, err)
	}
	return identity, profile, nil
}
