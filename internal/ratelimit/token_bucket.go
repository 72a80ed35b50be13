package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/spf13/cast"
)

const keyGatewayTenant = "braintree:gateway:tenant:%s"

// ARGV: refill per second, capacity, key ttl in ms.
// Returns {allowed, tokens left}; the clock is redis TIME so replicas agree.
const gatewayBucketScript = `
local refill = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])

local t = redis.call("TIME")
local now = t[1] * 1000 + math.floor(t[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "refilled_at")
local tokens = tonumber(state[1]) or capacity
local refilled_at = tonumber(state[2]) or now

local elapsed = math.max(0, now - refilled_at)
tokens = math.min(capacity, tokens + (elapsed / 1000) * refill)

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call("HSET", KEYS[1], "tokens", tokens, "refilled_at", now)
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return {allowed, tostring(tokens)}
`

// BucketPolicy is the per-tenant gateway call budget.
type BucketPolicy struct {
	RatePerSecond float64
	Burst         int
}

func (p BucketPolicy) validate() error {
	if p.RatePerSecond <= 0 || p.Burst <= 0 {
		return errors.New("gateway rate limit must be positive")
	}
	return nil
}

// keyTTL keeps an idle bucket around for two full refills.
func (p BucketPolicy) keyTTL() time.Duration {
	if p.validate() != nil {
		return time.Second
	}
	seconds := math.Max(1, math.Ceil(float64(p.Burst)/p.RatePerSecond*2))
	return time.Duration(seconds) * time.Second
}

// Decision is the outcome of one gateway call token request.
type Decision struct {
	Allowed    bool
	Remaining  float64
	RetryAfter time.Duration
}

// GatewayBucket meters gateway calls per tenant with a redis-side token bucket.
type GatewayBucket struct {
	client *redis.Client
	script *redis.Script
	policy BucketPolicy
}

func NewGatewayBucket(client *redis.Client, policy BucketPolicy) (*GatewayBucket, error) {
	if client == nil {
		return nil, errors.New("gateway bucket requires a redis client")
	}
	if err := policy.validate(); err != nil {
		return nil, err
	}
	return &GatewayBucket{
		client: client,
		script: redis.NewScript(gatewayBucketScript),
		policy: policy,
	}, nil
}

func tenantBucketKey(tenantID string) string {
	return fmt.Sprintf(keyGatewayTenant, strings.TrimSpace(tenantID))
}

// Take consumes one token from the tenant's bucket.
func (b *GatewayBucket) Take(ctx context.Context, tenantID string) (Decision, error) {
	if b == nil || b.client == nil {
		return Decision{}, errors.New("gateway bucket not configured")
	}
	if strings.TrimSpace(tenantID) == "" {
		return Decision{}, errors.New("tenant id is empty")
	}

	res, err := b.script.Run(ctx, b.client,
		[]string{tenantBucketKey(tenantID)},
		b.policy.RatePerSecond,
		b.policy.Burst,
		b.policy.keyTTL().Milliseconds(),
	).Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(res) < 2 {
		return Decision{}, errors.New("unexpected gateway bucket reply")
	}
	return b.policy.decide(cast.ToInt64(res[0]) == 1, cast.ToFloat64(res[1])), nil
}

func (p BucketPolicy) decide(allowed bool, remaining float64) Decision {
	d := Decision{Allowed: allowed, Remaining: remaining}
	if !allowed && remaining < 1 {
		d.RetryAfter = time.Duration((1 - remaining) / p.RatePerSecond * float64(time.Second))
	}
	return d
}
