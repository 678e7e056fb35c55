// Package ratelimit throttles intake per vendor with a Redis-backed token
// bucket, so the limit holds across replicas of this service.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "submission-harvester:ratelimit:vendor:"

// VendorBucket is a distributed token bucket keyed by vendor URI.
type VendorBucket struct {
	client   *redis.Client
	capacity int
	refill   float64 // tokens per second
	ttl      time.Duration
}

// NewVendorBucket constructs a bucket with the provided capacity/refill.
func NewVendorBucket(client *redis.Client, capacity int, refillPerSecond float64, ttl time.Duration) *VendorBucket {
	return &VendorBucket{
		client:   client,
		capacity: capacity,
		refill:   refillPerSecond,
		ttl:      ttl,
	}
}

// Allow consumes a single token for the vendor if one is available. It
// returns the allowed flag and the remaining token count.
func (b *VendorBucket) Allow(ctx context.Context, vendor string) (bool, float64, error) {
	now := time.Now().UnixMilli()
	res, err := bucketScript.Run(ctx, b.client, []string{keyPrefix + vendor},
		b.capacity, b.refill, now, b.ttl.Milliseconds()).Result()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit check for %s: %w", vendor, err)
	}
	arr, ok := res.([]interface{})
	if !ok || len(arr) < 2 {
		return false, 0, fmt.Errorf("rate limit check for %s: unexpected script reply %v", vendor, res)
	}
	allowed := arr[0].(int64) == 1
	var tokens float64
	switch v := arr[1].(type) {
	case int64:
		tokens = float64(v)
	case float64:
		tokens = v
	}
	return allowed, tokens, nil
}

// RetryAfter estimates how long until the next token is available.
func (b *VendorBucket) RetryAfter() time.Duration {
	if b.refill <= 0 {
		return time.Minute
	}
	return time.Duration(float64(time.Second) / b.refill)
}

var bucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill = tonumber(ARGV[2]) -- tokens per second
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local data = redis.call('HMGET', key, 'tokens', 'last_ms')
local tokens = tonumber(data[1])
local last = tonumber(data[2])
if tokens == nil then tokens = capacity end
if last == nil then last = now end

local delta = math.max(0, now - last)
tokens = math.min(capacity, tokens + delta / 1000 * refill)

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call('HMSET', key, 'tokens', tokens, 'last_ms', now)
if ttl > 0 then redis.call('PEXPIRE', key, ttl) end
return {allowed, tokens}
`)
