package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCacheExpiresEntries(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &ttlCache[string, int]{items: map[string]ttlEntry[int]{}, now: func() time.Time { return now }}

	c.Set("a", 1, time.Minute)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(time.Minute + time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Empty(t, c.items)

	c.Set("b", 2, 0)
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestMemoryCustomerCacheKeysAreNormalized(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCustomerIDCache(time.Minute)

	c.Set(ctx, "Tenant-A", " ACC ", "cust-1")
	got, ok := c.Get(ctx, "tenant-a", "acc")
	assert.True(t, ok)
	assert.Equal(t, "cust-1", got)

	c.Delete(ctx, "tenant-a", "acc")
	_, ok = c.Get(ctx, "Tenant-A", "ACC")
	assert.False(t, ok)
}
