package domain

import "context"

// Identity is the verified caller behind a bearer credential.
type Identity struct {
	UserID string
	Email  string
}

type IdentityVerifier interface {
	Verify(ctx context.Context, credential string) (*Identity, error)
}
