package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitKeyPrefix = "ratelimit:"

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration

	// FailedOpen marks decisions granted because Redis was
	// unreachable rather than because the budget allowed it.
	FailedOpen bool
}

// fixedWindowScript increments the counter for the current window and
// sets the window TTL only on first increment, atomically. Returns the
// new count and the remaining window in milliseconds.
var fixedWindowScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	if ttl < 0 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
		ttl = tonumber(ARGV[1])
	end
	return {count, ttl}
`)

// Allow checks the fixed per-minute window for the given client
// identity. When Redis is unreachable the request is allowed and the
// decision is marked FailedOpen; availability wins over strictness.
func (c *Cache) Allow(ctx context.Context, clientKey string, limitPerMinute int) (*Decision, error) {
	if limitPerMinute <= 0 {
		return &Decision{Allowed: true, Remaining: 0}, nil
	}

	key := rateLimitKeyPrefix + clientKey
	windowMs := time.Minute.Milliseconds()

	values, err := fixedWindowScript.Run(ctx, c.client, []string{key}, windowMs).Int64Slice()
	if err != nil || len(values) != 2 {
		return &Decision{
			Allowed:    true,
			Remaining:  int64(limitPerMinute),
			FailedOpen: true,
		}, err
	}

	count, ttlMs := values[0], values[1]
	remaining := int64(limitPerMinute) - count
	if remaining < 0 {
		remaining = 0
	}

	decision := &Decision{
		Allowed:   count <= int64(limitPerMinute),
		Remaining: remaining,
	}
	if !decision.Allowed {
		decision.RetryAfter = time.Duration(ttlMs) * time.Millisecond
	}

	return decision, nil
}
