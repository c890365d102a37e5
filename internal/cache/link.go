package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dynalinks/dynalinks/internal/model"
)

// Cache key prefixes and default TTLs.
const (
	linkKeyPrefix     = "link:"
	negCacheKeySuffix = ":neg"

	// DefaultLinkTTL bounds staleness of cached link records.
	DefaultLinkTTL = time.Hour

	// DefaultNegativeTTL bounds how long an unknown code keeps
	// answering not-found without a store lookup.
	DefaultNegativeTTL = 5 * time.Minute
)

// ErrCacheMiss signals the short code is not in the cache.
var ErrCacheMiss = errors.New("cache miss")

// GetLink retrieves a link from cache by short code.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetLink(ctx context.Context, shortCode string) (*model.Link, error) {
	raw, err := c.client.Get(ctx, linkKeyPrefix+shortCode).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	link := &model.Link{}
	if err := json.Unmarshal(raw, link); err != nil {
		// A corrupt entry is treated as a miss; the caller backfills.
		c.client.Del(ctx, linkKeyPrefix+shortCode)
		return nil, ErrCacheMiss
	}

	return link, nil
}

// SetLink stores the full link record as JSON. The TTL is clamped to
// the link's remaining lifetime so a cached entry never outlives its
// expiry by more than the clock skew between store and cache.
func (c *Cache) SetLink(ctx context.Context, link *model.Link, ttl time.Duration) error {
	key := linkKeyPrefix + link.ShortCode

	if ttl <= 0 {
		ttl = DefaultLinkTTL
	}
	if link.ExpiresAt != nil {
		remaining := time.Until(*link.ExpiresAt)
		if remaining <= 0 {
			// Already expired; nothing useful to cache.
			return c.DeleteLink(ctx, link.ShortCode)
		}
		if remaining < ttl {
			ttl = remaining
		}
	}

	raw, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("failed to marshal link: %w", err)
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, key, raw, ttl)
	pipe.Del(ctx, key+negCacheKeySuffix)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache link: %w", err)
	}

	return nil
}

// DeleteLink removes a link and its negative marker from the cache.
// Called after every mutation so readers observe their own writes.
func (c *Cache) DeleteLink(ctx context.Context, shortCode string) error {
	key := linkKeyPrefix + shortCode

	if err := c.client.Del(ctx, key, key+negCacheKeySuffix).Err(); err != nil {
		return fmt.Errorf("failed to delete link from cache: %w", err)
	}

	return nil
}

// IsNegativelyCached checks if a short code is marked as not found.
func (c *Cache) IsNegativelyCached(ctx context.Context, shortCode string) (bool, error) {
	key := linkKeyPrefix + shortCode + negCacheKeySuffix

	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}

	return exists > 0, nil
}

// SetNegativeCache marks a short code as not found.
func (c *Cache) SetNegativeCache(ctx context.Context, shortCode string, ttl time.Duration) error {
	key := linkKeyPrefix + shortCode + negCacheKeySuffix

	if ttl <= 0 {
		ttl = DefaultNegativeTTL
	}
	if err := c.client.SetEx(ctx, key, "", ttl).Err(); err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}

	return nil
}
