package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/railzway-braintree/internal/account/domain"
	"github.com/smallbiznis/railzway-braintree/internal/account/repository"
	"github.com/smallbiznis/railzway-braintree/internal/cache"
	"github.com/smallbiznis/railzway-braintree/internal/clock"
	"github.com/smallbiznis/railzway-braintree/internal/payerr"
	"github.com/smallbiznis/railzway-braintree/internal/testutil"
)

func newService(t *testing.T) domain.Service {
	t.Helper()
	db := testutil.OpenDB(t, &domain.CustomerMapping{})
	return NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testutil.Node(t),
		Repo:  repository.Provide(),
		Clock: clock.NewFakeClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)),
		Cache: cache.NewMemoryCustomerIDCache(time.Minute),
	})
}

func TestSetCustomerIDFirstWriteWins(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	tenantID, accountID := uuid.New(), uuid.New()

	_, ok, err := svc.GetCustomerID(ctx, tenantID, accountID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.SetCustomerID(ctx, tenantID, accountID, "cust-1"))
	require.NoError(t, svc.SetCustomerID(ctx, tenantID, accountID, "cust-1"))

	got, ok, err := svc.GetCustomerID(ctx, tenantID, accountID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "cust-1", got)
}

func TestSetCustomerIDConflictIsValidationError(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	tenantID, accountID := uuid.New(), uuid.New()

	require.NoError(t, svc.SetCustomerID(ctx, tenantID, accountID, "cust-1"))
	err := svc.SetCustomerID(ctx, tenantID, accountID, "cust-2")
	require.Error(t, err)
	assert.Equal(t, payerr.KindValidation, payerr.KindOf(err))

	got, _, err := svc.GetCustomerID(ctx, tenantID, accountID)
	require.NoError(t, err)
	assert.Equal(t, "cust-1", got)
}

func TestSetCustomerIDIgnoresPlaceholder(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	tenantID, accountID := uuid.New(), uuid.New()

	require.NoError(t, svc.SetCustomerID(ctx, tenantID, accountID, "NULL"))
	require.NoError(t, svc.SetCustomerID(ctx, tenantID, accountID, "  "))
	_, ok, err := svc.GetCustomerID(ctx, tenantID, accountID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.SetCustomerID(ctx, tenantID, accountID, "cust-9"))
	assert.NoError(t, svc.SetCustomerID(ctx, tenantID, accountID, "null"))
}
