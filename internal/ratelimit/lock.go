package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const keyTransactionLock = "braintree:tx:lock:%s:%s"

// compare-and-delete so an expired holder cannot release a newer lease
const releaseLeaseScript = `
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
  return 0
end
return redis.call("DEL", KEYS[1])
`

var errLockerNotConfigured = errors.New("transaction locker not configured")

// TransactionLocker hands out short leases on a tenant's transaction id so two
// requests never submit the same transaction to the gateway concurrently.
type TransactionLocker struct {
	client  *redis.Client
	release *redis.Script
	ttl     time.Duration
}

// Lease is a held transaction lock.
type Lease struct {
	locker *TransactionLocker
	key    string
	holder string
}

func NewTransactionLocker(client *redis.Client, ttl time.Duration) *TransactionLocker {
	if client == nil {
		return nil
	}
	return &TransactionLocker{
		client:  client,
		release: redis.NewScript(releaseLeaseScript),
		ttl:     ttl,
	}
}

func transactionLockKey(tenantID, transactionID string) string {
	return fmt.Sprintf(keyTransactionLock, strings.TrimSpace(tenantID), strings.TrimSpace(transactionID))
}

// Acquire returns nil when another request already holds the transaction.
func (l *TransactionLocker) Acquire(ctx context.Context, tenantID, transactionID string) (*Lease, error) {
	if l == nil || l.client == nil {
		return nil, errLockerNotConfigured
	}
	if strings.TrimSpace(transactionID) == "" {
		return nil, errors.New("transaction id is empty")
	}
	if l.ttl <= 0 {
		return nil, errors.New("transaction lock ttl must be positive")
	}

	lease := &Lease{locker: l, key: transactionLockKey(tenantID, transactionID), holder: uuid.NewString()}
	acquired, err := l.client.SetNX(ctx, lease.key, lease.holder, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, nil
	}
	return lease, nil
}

func (l *Lease) Key() string {
	if l == nil {
		return ""
	}
	return l.key
}

// Release drops the lease if it has not expired and been taken over.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.locker == nil || l.locker.client == nil {
		return nil
	}
	return l.locker.release.Run(ctx, l.locker.client, []string{l.key}, l.holder).Err()
}
