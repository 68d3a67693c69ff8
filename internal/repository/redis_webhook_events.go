package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultWebhookEventTTL = 24 * time.Hour

type RedisWebhookEventStore struct {
	redis redis.UniversalClient
	ttl   time.Duration
}

func NewRedisWebhookEventStore(client redis.UniversalClient, ttl time.Duration) *RedisWebhookEventStore {
	if ttl <= 0 {
		ttl = DefaultWebhookEventTTL
	}

	return &RedisWebhookEventStore{
		redis: client,
		ttl:   ttl,
	}
}

func webhookEventKey(eventID string) string {
	return "webhook_event:" + eventID
}

// Claim reports whether the caller is the first to see eventID.
func (s *RedisWebhookEventStore) Claim(ctx context.Context, eventID string) (bool, error) {
	return s.redis.SetNX(ctx, webhookEventKey(eventID), time.Now().UTC().Unix(), s.ttl).Result()
}

func (s *RedisWebhookEventStore) Release(ctx context.Context, eventID string) error {
	return s.redis.Del(ctx, webhookEventKey(eventID)).Err()
}
