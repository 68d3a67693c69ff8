package mocks

import (
	"context"

	"github.com/metinatakli/creator-marketplace/internal/domain"
)

// MockIdentityVerifier accepts the credentials listed in Tokens.
type MockIdentityVerifier struct {
	Tokens map[string]domain.Identity
}

func (m *MockIdentityVerifier) Verify(ctx context.Context, credential string) (*domain.Identity, error) {
	identity, ok := m.Tokens[credential]
	if !ok {
		return nil, domain.ErrInvalidCredential
	}

	return &identity, nil
}

type MockWebhookEventStore struct {
	ClaimFunc   func(ctx context.Context, eventID string) (bool, error)
	ReleaseFunc func(ctx context.Context, eventID string) error
}

func (m *MockWebhookEventStore) Claim(ctx context.Context, eventID string) (bool, error) {
	if m.ClaimFunc == nil {
		return true, nil
	}

	return m.ClaimFunc(ctx, eventID)
}

func (m *MockWebhookEventStore) Release(ctx context.Context, eventID string) error {
	if m.ReleaseFunc == nil {
		return nil
	}

	return m.ReleaseFunc(ctx, eventID)
}
