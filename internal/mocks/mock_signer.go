package mocks

import (
	"context"
	"time"

	"github.com/metinatakli/creator-marketplace/internal/domain"
)

// MockContentSigner returns deterministic URLs derived from the object key.
type MockContentSigner struct {
	domain.ContentSigner
	Err error
}

func (m *MockContentSigner) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}

	return "https://cdn.test/" + key + "?ttl=" + ttl.String(), nil
}
