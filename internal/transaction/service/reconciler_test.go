package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/railzway-braintree/internal/gateway"
	"github.com/smallbiznis/railzway-braintree/internal/gateway/gatewaytest"
	"github.com/smallbiznis/railzway-braintree/internal/payerr"
	"github.com/smallbiznis/railzway-braintree/internal/transaction/domain"
)

func (f *fixture) insertPending(t *testing.T, paymentID uuid.UUID, reference, instrument string) uuid.UUID {
	t.Helper()
	txID := uuid.New()
	now := f.clock.Now()
	require.NoError(t, f.repo.AddResponse(context.Background(), f.db, &domain.TransactionRecord{
		TenantID:        f.tenantID,
		AccountID:       f.account,
		PaymentID:       paymentID,
		TransactionID:   txID,
		TransactionType: domain.TransactionTypeAuthorize,
		Metadata: domain.MetadataFromMap(map[string]any{
			domain.KeyGatewayStatus:    gateway.StatusSettlementPending,
			domain.KeyFirstReferenceID: reference,
			domain.KeyInstrumentType:   instrument,
		}),
		CreatedAt: now,
		UpdatedAt: now,
	}))
	return txID
}

func TestGetPaymentInfoEmptyHistory(t *testing.T) {
	f := newFixture(t)
	views, err := f.svc.GetPaymentInfo(context.Background(), f.tenantID, f.account, uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)
	assert.Zero(t, f.fake.Calls("GetTransactionStatus"))
}

func TestGetPaymentInfoCancelsExpiredPendingAuthorization(t *testing.T) {
	f := newFixture(t)
	paymentID := uuid.New()
	f.insertPending(t, paymentID, "bt_gone", "credit_card")

	f.clock.Advance(2 * time.Hour)
	views, err := f.svc.GetPaymentInfo(context.Background(), f.tenantID, f.account, paymentID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, domain.StatusCanceled, views[0].Status)
	assert.Equal(t, expiredMessage, views[0].GatewayErrorMessage)
	assert.Equal(t, "CANCELED", views[0].Properties[domain.KeyOverriddenStatus])
	assert.Equal(t, gateway.StatusSettlementPending, views[0].Properties[domain.KeyGatewayStatus])
	assert.Zero(t, f.fake.Calls("GetTransactionStatus"))

	again, err := f.svc.GetPaymentInfo(context.Background(), f.tenantID, f.account, paymentID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCanceled, again[0].Status)
	assert.Zero(t, f.fake.Calls("GetTransactionStatus"))
}

func TestGetPaymentInfoHonorsInstrumentWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	auth, err := f.svc.Authorize(ctx, f.request(uuid.New(), uuid.New(), "10"))
	require.NoError(t, err)

	paymentID := uuid.New()
	f.insertPending(t, paymentID, auth.FirstReferenceID, "paypal_account")

	f.clock.Advance(2 * time.Hour)
	views, err := f.svc.GetPaymentInfo(ctx, f.tenantID, f.account, paymentID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, domain.StatusProcessed, views[0].Status)
	assert.Equal(t, gateway.StatusAuthorized, views[0].Properties[domain.KeyGatewayStatus])
	assert.Equal(t, 1, f.fake.Calls("GetTransactionStatus"))
}

func TestGetPaymentInfoRefreshesUntilTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	paymentID := uuid.New()
	auth, err := f.svc.Authorize(ctx, f.request(paymentID, uuid.New(), "10"))
	require.NoError(t, err)
	f.fake.SetStatus(auth.FirstReferenceID, gateway.StatusSettled)

	views, err := f.svc.GetPaymentInfo(ctx, f.tenantID, f.account, paymentID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, gateway.StatusSettled, views[0].Properties[domain.KeyGatewayStatus])
	assert.Equal(t, 1, f.fake.Calls("GetTransactionStatus"))

	_, err = f.svc.GetPaymentInfo(ctx, f.tenantID, f.account, paymentID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.fake.Calls("GetTransactionStatus"))
}

func TestGetPaymentInfoSkipsExpirationOnceFollowedUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	paymentID, authID := uuid.New(), uuid.New()
	_, err := f.svc.Authorize(ctx, f.request(paymentID, authID, "10"))
	require.NoError(t, err)
	_, err = f.svc.Capture(ctx, f.request(paymentID, uuid.New(), "10"))
	require.NoError(t, err)

	_, err = f.repo.UpdateResponse(ctx, f.db, f.tenantID, authID, map[string]any{
		domain.KeyGatewayStatus: gateway.StatusSettlementPending,
	})
	require.NoError(t, err)

	f.clock.Advance(3 * time.Hour)
	views, err := f.svc.GetPaymentInfo(ctx, f.tenantID, f.account, paymentID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	for _, v := range views {
		assert.NotEqual(t, domain.StatusCanceled, v.Status)
		assert.Equal(t, gateway.StatusSubmittedForSettlement, v.Properties[domain.KeyGatewayStatus])
	}
	assert.Equal(t, 2, f.fake.Calls("GetTransactionStatus"))
}

func TestGetPaymentInfoExpiresAbandonedRedirect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	paymentID := uuid.New()
	_, err := f.svc.RegisterRedirect(ctx, domain.TransactionTypeAuthorize, f.request(paymentID, uuid.New(), "10"))
	require.NoError(t, err)

	f.clock.Advance(29 * time.Minute)
	views, err := f.svc.GetPaymentInfo(ctx, f.tenantID, f.account, paymentID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, views[0].Status)
	assert.Zero(t, f.fake.Calls("GetTransactionStatus"))

	f.clock.Advance(2 * time.Minute)
	views, err = f.svc.GetPaymentInfo(ctx, f.tenantID, f.account, paymentID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCanceled, views[0].Status)
	assert.Equal(t, true, views[0].Properties[domain.KeyFromRedirect])
}

func TestGetPaymentInfoSurfacesGatewayFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	paymentID := uuid.New()
	_, err := f.svc.Authorize(ctx, f.request(paymentID, uuid.New(), "10"))
	require.NoError(t, err)

	f.fake.Err = gatewaytest.ErrUnavailable
	_, err = f.svc.GetPaymentInfo(ctx, f.tenantID, f.account, paymentID)
	assert.Equal(t, payerr.KindGateway, payerr.KindOf(err))
}
