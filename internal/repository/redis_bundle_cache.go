package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/metinatakli/creator-marketplace/internal/domain"
	"github.com/redis/go-redis/v9"
)

const DefaultBundleCacheTTL = 5 * time.Minute

// CachedBundleRepository is a read-through cache in front of a
// BundleRepository. Cache failures degrade to the underlying repository.
type CachedBundleRepository struct {
	next  domain.BundleRepository
	redis redis.UniversalClient
	ttl   time.Duration
}

func NewCachedBundleRepository(
	next domain.BundleRepository,
	client redis.UniversalClient,
	ttl time.Duration) *CachedBundleRepository {

	if ttl <= 0 {
		ttl = DefaultBundleCacheTTL
	}

	return &CachedBundleRepository{
		next:  next,
		redis: client,
		ttl:   ttl,
	}
}

func bundleCacheKey(id string) string {
	return "bundle:" + id
}

func (c *CachedBundleRepository) GetById(ctx context.Context, id string) (*domain.Bundle, error) {
	key := bundleCacheKey(id)

	cached, err := c.redis.Get(ctx, key).Bytes()
	if err == nil {
		var bundle domain.Bundle
		if json.Unmarshal(cached, &bundle) == nil {
			return &bundle, nil
		}
	} else if !errors.Is(err, redis.Nil) && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	bundle, err := c.next.GetById(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(bundle)
	if err == nil {
		c.redis.Set(ctx, key, data, c.ttl)
	}

	return bundle, nil
}

func (c *CachedBundleRepository) IncrementSales(ctx context.Context, id string, amount int64) error {
	err := c.next.IncrementSales(ctx, id, amount)
	if err != nil {
		return err
	}

	return c.redis.Del(ctx, bundleCacheKey(id)).Err()
}
