package domain

import (
	"context"
	"time"
)

// ContentSigner issues short-lived download URLs for stored content.
type ContentSigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// WebhookEventStore remembers processed webhook events so redeliveries can be
// acknowledged without being processed again.
type WebhookEventStore interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}
