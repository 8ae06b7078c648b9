package qrsession

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "classroll:qr:session:"

// Cache keeps active sessions in Redis until they expire so scans avoid the
// database. A nil *Cache is valid and caches nothing.
type Cache struct {
	client *redis.Client
}

// NewCache wraps a redis client; nil client yields a nil cache.
func NewCache(client *redis.Client) *Cache {
	if client == nil {
		return nil
	}
	return &Cache{client: client}
}

// Put stores s with a TTL matching its remaining lifetime.
func (c *Cache) Put(ctx context.Context, s Session, now time.Time) error {
	if c == nil {
		return nil
	}
	ttl := s.Remaining(now)
	if ttl <= 0 {
		return nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKeyPrefix+s.ID, b, ttl).Err()
}

// Get returns the cached session, or nil on a miss.
func (c *Cache) Get(ctx context.Context, id string) (*Session, error) {
	if c == nil {
		return nil, nil
	}
	b, err := c.client.Get(ctx, cacheKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Delete drops a session from the cache.
func (c *Cache) Delete(ctx context.Context, id string) error {
	if c == nil {
		return nil
	}
	return c.client.Del(ctx, cacheKeyPrefix+id).Err()
}
