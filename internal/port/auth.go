package port

import "context"

// Identity is the caller established from a bearer token.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// IdentityVerifier validates a bearer token and returns the caller identity.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}
