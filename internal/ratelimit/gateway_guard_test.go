package ratelimit

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/railzway-braintree/internal/config"
)

func TestDisabledGuardAllowsEverything(t *testing.T) {
	guard, err := NewGatewayGuard(config.Config{}, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, guard)
	assert.False(t, guard.Enabled())

	assert.NoError(t, guard.AllowTenant(context.Background(), "t1"))
	release, ok, err := guard.LockTransaction(context.Background(), "t1", "tx1")
	require.NoError(t, err)
	assert.True(t, ok)
	release()
}

func TestEnabledGuardRequiresRedis(t *testing.T) {
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, GatewayRate: 1, GatewayBurst: 1}}
	_, err := NewGatewayGuard(cfg, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestEnabledGuardRejectsNonPositiveBudget(t *testing.T) {
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, GatewayRate: 0, GatewayBurst: 5}}
	_, err := NewGatewayGuard(cfg, redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), zap.NewNop())
	assert.Error(t, err)
}

func TestBucketPolicyKeyTTL(t *testing.T) {
	assert.Equal(t, 4*time.Second, BucketPolicy{RatePerSecond: 10, Burst: 20}.keyTTL())
	assert.Equal(t, time.Second, BucketPolicy{RatePerSecond: 100, Burst: 1}.keyTTL())
	assert.Equal(t, time.Second, BucketPolicy{}.keyTTL())
}

func TestBucketPolicyDecideRetryAfter(t *testing.T) {
	policy := BucketPolicy{RatePerSecond: 2, Burst: 4}

	allowed := policy.decide(true, 3)
	assert.True(t, allowed.Allowed)
	assert.Zero(t, allowed.RetryAfter)

	denied := policy.decide(false, 0.5)
	assert.False(t, denied.Allowed)
	assert.Equal(t, 250*time.Millisecond, denied.RetryAfter)
}

func TestKeysAreScopedPerTenant(t *testing.T) {
	assert.Equal(t, "braintree:gateway:tenant:t1", tenantBucketKey(" t1 "))
	assert.Equal(t, "braintree:tx:lock:t1:tx-9", transactionLockKey("t1", " tx-9"))
}

func TestNilLockerAndLease(t *testing.T) {
	var locker *TransactionLocker
	_, err := locker.Acquire(context.Background(), "t1", "tx1")
	assert.ErrorIs(t, err, errLockerNotConfigured)

	var lease *Lease
	assert.NoError(t, lease.Release(context.Background()))
	assert.Empty(t, lease.Key())
}
