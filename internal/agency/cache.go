package agency

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tourplanner/tourplanner-backend/internal/platform/logger"
)

const cacheKeyPrefix = "agency:profile:"

// CachedStore reads through redis. Writes go to the backing store and drop
// the cached entry.
type CachedStore struct {
	inner  Store
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

func NewCachedStore(inner Store, client *redis.Client, ttl time.Duration, log *logger.Logger) *CachedStore {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedStore{inner: inner, client: client, ttl: ttl, log: log}
}

func (c *CachedStore) Get(ctx context.Context, id string) (Profile, error) {
	key := cacheKeyPrefix + id
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var p Profile
		if json.Unmarshal(raw, &p) == nil {
			return p, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn("agency cache read failed", "agency_id", id, "error", err)
	}

	p, err := c.inner.Get(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	if raw, err := json.Marshal(p); err == nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.log.Warn("agency cache write failed", "agency_id", id, "error", err)
		}
	}
	return p, nil
}

func (c *CachedStore) Upsert(ctx context.Context, p Profile) (Profile, error) {
	out, err := c.inner.Upsert(ctx, p)
	if err != nil {
		return Profile{}, err
	}
	if err := c.client.Del(ctx, cacheKeyPrefix+p.ID).Err(); err != nil {
		c.log.Warn("agency cache invalidation failed", "agency_id", p.ID, "error", err)
	}
	return out, nil
}
